// Package logsweep keeps the log directory bounded. A daily cron job
// removes rotated log files and exported archives past the retention
// window; the live log file is never touched. The same directory walk
// backs the /logs chat command's zip export and cleanup.
package logsweep

import (
	"os"
	"path/filepath"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/marmos91/telebridge/internal/logger"
)

// Config tunes the sweeper.
type Config struct {
	// Dir is the log directory to sweep.
	Dir string

	// LiveFile is the path of the file logs are currently written to.
	// It is exempt from sweeps and cleanups.
	LiveFile string

	// Retention is how long rotated files are kept.
	// Default: 7 days.
	Retention time.Duration

	// Schedule is the cron spec the sweep runs on.
	// Default: @daily.
	Schedule string
}

func (c *Config) applyDefaults() {
	if c.Retention <= 0 {
		c.Retention = 7 * 24 * time.Hour
	}
	if c.Schedule == "" {
		c.Schedule = "@daily"
	}
}

// Sweeper runs the retention sweep on a cron schedule.
type Sweeper struct {
	config Config
	cron   *cron.Cron
}

// New creates a sweeper for the configured directory.
func New(config Config) (*Sweeper, error) {
	config.applyDefaults()

	s := &Sweeper{
		config: config,
		cron:   cron.New(),
	}

	if _, err := s.cron.AddFunc(config.Schedule, s.sweep); err != nil {
		return nil, err
	}

	return s, nil
}

// Start sweeps once and begins the schedule. The immediate sweep covers
// processes that never stay up long enough for the cron to fire.
func (s *Sweeper) Start() {
	logger.Info("Starting log sweeper",
		"dir", s.config.Dir,
		"retention", s.config.Retention,
		"schedule", s.config.Schedule,
	)

	s.sweep()
	s.cron.Start()
}

// Stop halts the schedule. A sweep in progress finishes.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
}

// sweep removes sweepable files older than the retention window.
func (s *Sweeper) sweep() {
	cutoff := time.Now().Add(-s.config.Retention)

	removed, err := removeOlderThan(s.config.Dir, s.config.LiveFile, cutoff)
	if err != nil {
		logger.Error("Log sweep failed", "dir", s.config.Dir, "error", err)
		return
	}
	if removed > 0 {
		logger.Info("Swept stale log files", "dir", s.config.Dir, "removed", removed)
	}
}

// Clear removes every sweepable file regardless of age. The /logs clear
// command calls this; it reports how many files were removed.
func Clear(dir, liveFile string) (int, error) {
	return removeOlderThan(dir, liveFile, time.Now().Add(time.Hour))
}

func removeOlderThan(dir, liveFile string, cutoff time.Time) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		if liveFile != "" && sameFile(path, liveFile) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(cutoff) {
			continue
		}

		if err := os.Remove(path); err != nil {
			logger.Warn("Failed to remove log file", "path", path, "error", err)
			continue
		}
		removed++
	}

	return removed, nil
}

func sameFile(a, b string) bool {
	if a == b {
		return true
	}

	absA, errA := filepath.Abs(a)
	absB, errB := filepath.Abs(b)

	return errA == nil && errB == nil && absA == absB
}
