package conf

import (
	"fmt"
	"net/url"
)

// ValidateSettings rejects configurations the pipeline cannot run with.
// It normalizes a handful of recoverable values instead of failing.
func ValidateSettings(s *Settings) error {
	if s.DataDir == "" {
		return fmt.Errorf("datadir must not be empty")
	}

	if s.Import.BatchSize <= 0 {
		return fmt.Errorf("import.batchsize must be positive, got %d", s.Import.BatchSize)
	}
	if s.Import.MaxRetries < 0 {
		return fmt.Errorf("import.maxretries must not be negative, got %d", s.Import.MaxRetries)
	}
	if s.Import.RetryBackoff < 0 {
		return fmt.Errorf("import.retrybackoff must not be negative, got %v", s.Import.RetryBackoff)
	}
	if s.Import.BatchDelay < 0 {
		return fmt.Errorf("import.batchdelay must not be negative, got %v", s.Import.BatchDelay)
	}
	if s.Import.ItemDelay < 0 {
		return fmt.Errorf("import.itemdelay must not be negative, got %v", s.Import.ItemDelay)
	}

	// Dry runs never touch the network, so the URL only matters for live runs.
	if !s.Import.DryRun {
		u, err := url.Parse(s.Destination.BaseURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("destination.baseurl %q is not a valid URL", s.Destination.BaseURL)
		}
	}

	if s.Verify.SampleSize <= 0 {
		return fmt.Errorf("verify.samplesize must be positive, got %d", s.Verify.SampleSize)
	}

	switch s.Verify.Dest.Driver {
	case "sqlite", "mysql":
	default:
		return fmt.Errorf("verify.dest.driver must be sqlite or mysql, got %q", s.Verify.Dest.Driver)
	}

	return nil
}
