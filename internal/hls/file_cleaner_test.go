package hls

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestFileCleanerRemovesScheduledFilesAfterExpiry(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "segment.mpegts")
	if err := os.WriteFile(path, []byte("data"), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	fc := NewFileCleaner()
	fc.Schedule(10, []string{path})

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("expected %s to be removed", path)
}

func TestFileCleanerScheduleIgnoresEmptyPaths(t *testing.T) {
	fc := NewFileCleaner()
	fc.Schedule(10, nil)
	// No assertion beyond not blocking or panicking: an empty schedule must
	// be a no-op rather than an empty AfterFunc timer.
	time.Sleep(5 * time.Millisecond)
}

func TestEffectiveExpiryScalesByOneAndAHalf(t *testing.T) {
	got := effectiveExpiry(2000)
	want := 3 * time.Second
	if got != want {
		t.Fatalf("effectiveExpiry(2000) = %v, want %v", got, want)
	}
}
