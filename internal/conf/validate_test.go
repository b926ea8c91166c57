package conf

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validSettings() *Settings {
	return &Settings{
		DataDir: "migration-data",
		Destination: DestinationSettings{
			BaseURL: "http://localhost:9000/api",
			Timeout: 30 * time.Second,
		},
		Import: ImportSettings{
			BatchSize:    50,
			MaxRetries:   3,
			RetryBackoff: time.Second,
		},
		Verify: VerifySettings{
			SampleSize: 25,
			Dest:       DestDBSettings{Driver: "sqlite", Path: "t.db"},
		},
	}
}

func TestValidateSettings(t *testing.T) {
	t.Run("valid settings pass", func(t *testing.T) {
		require.NoError(t, ValidateSettings(validSettings()), "expected valid settings to pass")
	})

	t.Run("zero batch size rejected", func(t *testing.T) {
		s := validSettings()
		s.Import.BatchSize = 0
		assert.Error(t, ValidateSettings(s), "expected zero batch size to fail")
	})

	t.Run("negative retries rejected", func(t *testing.T) {
		s := validSettings()
		s.Import.MaxRetries = -1
		assert.Error(t, ValidateSettings(s), "expected negative retries to fail")
	})

	t.Run("bad base URL rejected for live run", func(t *testing.T) {
		s := validSettings()
		s.Destination.BaseURL = "not a url"
		assert.Error(t, ValidateSettings(s), "expected invalid URL to fail")
	})

	t.Run("bad base URL tolerated for dry run", func(t *testing.T) {
		s := validSettings()
		s.Destination.BaseURL = ""
		s.Import.DryRun = true
		assert.NoError(t, ValidateSettings(s), "dry run should not need a destination URL")
	})

	t.Run("unknown dest driver rejected", func(t *testing.T) {
		s := validSettings()
		s.Verify.Dest.Driver = "postgres"
		assert.Error(t, ValidateSettings(s), "expected unknown driver to fail")
	})
}
