package bot

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/marmos91/telebridge/internal/logger"
)

func TestHandleLogs(t *testing.T) {
	t.Run("requires file logging", func(t *testing.T) {
		f := newFixture(t, Config{})

		f.handle(trigger("/logs"))

		if got := f.out.last(t).text; got != "file logging is not enabled" {
			t.Fatalf("expected the disabled error, got %q", got)
		}
	})

	t.Run("exports the log directory as a zip", func(t *testing.T) {
		f := newFixture(t, Config{})
		dir := initFileLogging(t)
		seedLogFiles(t, dir, "telebridge-rotated-1.log", "telebridge-rotated-2.log")

		f.handle(trigger("/logs"))

		if len(f.client.docs) != 1 {
			t.Fatalf("expected one document upload, got %d", len(f.client.docs))
		}
		doc := f.client.docs[0]
		if !strings.HasPrefix(doc.filename, "telebridge-logs-") || !strings.HasSuffix(doc.filename, ".zip") {
			t.Fatalf("unexpected archive name %q", doc.filename)
		}
		if doc.caption != "Log export" {
			t.Fatalf("unexpected caption %q", doc.caption)
		}
		if doc.size == 0 {
			t.Fatal("expected a non-empty archive")
		}
	})

	t.Run("clear removes the rotated files", func(t *testing.T) {
		f := newFixture(t, Config{})
		dir := initFileLogging(t)
		seedLogFiles(t, dir, "telebridge-rotated-1.log", "telebridge-rotated-2.log")

		f.handle(trigger("/logs clear"))

		if got := f.out.last(t).text; got != "Removed 2 log files." {
			t.Fatalf("expected the clear summary, got %q", got)
		}
		entries, err := os.ReadDir(dir)
		if err != nil {
			t.Fatalf("failed to read the log dir: %v", err)
		}
		for _, entry := range entries {
			if entry.Name() != "telebridge.log" {
				t.Fatalf("expected only the live file to remain, found %s", entry.Name())
			}
		}
	})

	t.Run("rejects an unknown subcommand", func(t *testing.T) {
		f := newFixture(t, Config{})
		initFileLogging(t)

		f.handle(trigger("/logs frobnicate"))

		if got := f.out.last(t).text; got != "unknown /logs subcommand frobnicate, see /logs help" {
			t.Fatalf("expected the subcommand error, got %q", got)
		}
	})

	t.Run("help lists the subcommands", func(t *testing.T) {
		f := newFixture(t, Config{})
		initFileLogging(t)

		f.handle(trigger("/logs help"))

		if got := f.out.last(t).text; got != logsUsage {
			t.Fatalf("expected the logs usage text, got %q", got)
		}
	})
}

// initFileLogging points the logger at a temporary directory and restores
// stderr output when the test ends.
func initFileLogging(t *testing.T) string {
	t.Helper()

	dir := t.TempDir()
	if err := logger.Init(logger.Config{Level: "info", Format: "text", Output: filepath.Join(dir, "telebridge.log")}); err != nil {
		t.Fatalf("failed to enable file logging: %v", err)
	}
	t.Cleanup(func() {
		if err := logger.Init(logger.Config{Level: "info", Format: "text", Output: "stderr"}); err != nil {
			t.Fatalf("failed to restore logging: %v", err)
		}
	})
	return dir
}

// seedLogFiles drops a live log file plus the given rotated copies.
func seedLogFiles(t *testing.T, dir string, rotated ...string) {
	t.Helper()

	names := append([]string{"telebridge.log"}, rotated...)
	for _, name := range names {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("log line\n"), 0o644); err != nil {
			t.Fatalf("failed to seed %s: %v", name, err)
		}
	}
}
