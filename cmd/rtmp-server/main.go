package main

import (
	"fmt"
	"os"
)

// main dispatches on the first positional argument, a generalization of the
// teacher's single-mode flag.FlagSet entry point into the two subcommands
// SPEC_FULL adds: "run" (the streaming server) and "permit-stream" (the
// credential database CLI).
func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	switch os.Args[1] {
	case "run":
		flags, err := parseRunFlags(os.Args[2:])
		if err != nil {
			os.Exit(2)
		}
		if flags.showVersion {
			fmt.Println(version)
			return
		}
		if err := run(flags); err != nil {
			fmt.Fprintf(os.Stderr, "rtmp-server run: %v\n", err)
			os.Exit(1)
		}

	case "permit-stream":
		if err := permitStream(os.Args[2:]); err != nil {
			fmt.Fprintf(os.Stderr, "rtmp-server permit-stream: %v\n", err)
			os.Exit(1)
		}

	case "-version", "--version", "-v":
		fmt.Println(version)

	default:
		usage()
		os.Exit(2)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: rtmp-server <run|permit-stream> [flags]")
}
