package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/alxayo/go-rtmp/internal/config"
	"github.com/alxayo/go-rtmp/internal/userdb"
)

// permitStream implements the "permit-stream --user NAME --key KEY"
// subcommand: it opens the configured SQLite database and inserts or
// updates one credential.
func permitStream(args []string) error {
	fs := flag.NewFlagSet("rtmp-server permit-stream", flag.ContinueOnError)
	fs.SetOutput(os.Stdout)

	configDir := fs.String("config-dir", "./config", "Directory containing javelin.yml")
	user := fs.String("user", "", "App name to permit")
	key := fs.String("key", "", "Stream key to permit for the app")

	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" || *key == "" {
		return fmt.Errorf("both -user and -key are required")
	}

	cfg, err := config.Load(*configDir)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	db, err := userdb.Open(cfg.Database.SQLite.Path)
	if err != nil {
		return fmt.Errorf("open credential database: %w", err)
	}
	defer db.Close()

	if err := db.AddUserWithKey(*user, *key); err != nil {
		return fmt.Errorf("permit stream: %w", err)
	}

	fmt.Printf("permitted app %q with a new stream key\n", *user)
	return nil
}
