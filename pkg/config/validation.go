package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/marmos91/telebridge/internal/bytesize"
	"github.com/marmos91/telebridge/pkg/onedrive"
)

// uploadFragment is the alignment unit of the drive's resumable upload
// contract: every part except the last must be a whole number of fragments.
const uploadFragment = 320 * bytesize.KiB

// Validate checks the configuration for errors that would otherwise only
// surface at runtime: malformed enum values, out-of-range ports, part
// sizes the drive would reject, and a pacing window that cannot be sampled.
//
// Struct tag validation runs first, then the cross-field checks the tags
// cannot express.
func Validate(cfg *Config) error {
	validate := validator.New()
	if err := validate.Struct(cfg); err != nil {
		return err
	}

	if err := validateTransfer(&cfg.Transfer); err != nil {
		return err
	}
	if err := validatePacer(&cfg.Pacer); err != nil {
		return err
	}
	if err := validateProgress(&cfg.Progress); err != nil {
		return err
	}

	if cfg.Telemetry.Enabled && cfg.Telemetry.Endpoint == "" {
		return fmt.Errorf("telemetry is enabled but no endpoint is configured")
	}

	if err := onedrive.ValidateRootPath(cfg.Drive.RootPath); err != nil {
		return fmt.Errorf("drive.root_path: %w", err)
	}

	return nil
}

// validateTransfer rejects part sizes the drive's upload sessions would
// refuse with a 400 on the first part.
func validateTransfer(cfg *TransferConfig) error {
	if !cfg.PartSize.IsMultipleOf(uploadFragment) {
		return fmt.Errorf("transfer.part_size %s must be a positive multiple of %s", cfg.PartSize, uploadFragment)
	}
	return nil
}

// validatePacer ensures the jitter window [MinDelay, MaxDelay) is sampleable.
func validatePacer(cfg *PacerConfig) error {
	if cfg.MinDelay <= 0 {
		return fmt.Errorf("pacer.min_delay %v must be positive", cfg.MinDelay)
	}
	if cfg.MaxDelay <= cfg.MinDelay {
		return fmt.Errorf("pacer.max_delay %v must be greater than pacer.min_delay %v", cfg.MaxDelay, cfg.MinDelay)
	}
	return nil
}

func validateProgress(cfg *ProgressConfig) error {
	if cfg.Tick <= 0 {
		return fmt.Errorf("progress.tick %v must be positive", cfg.Tick)
	}
	return nil
}
