// Package conf handles the configuration of the migration tool. Settings
// are read from a YAML config file, overridden by environment variables and
// finally by command line flags.
package conf

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DestinationSettings configures the destination write API client.
type DestinationSettings struct {
	BaseURL   string        `yaml:"baseurl" mapstructure:"baseurl"`     // base URL of the destination application
	AuthToken string        `yaml:"authtoken" mapstructure:"authtoken"` // bearer token for the write API
	Timeout   time.Duration `yaml:"timeout" mapstructure:"timeout"`     // per-request timeout
}

// ImportSettings configures the batch import pipeline.
type ImportSettings struct {
	BatchSize       int           `yaml:"batchsize" mapstructure:"batchsize"`             // records per batch
	DryRun          bool          `yaml:"dryrun" mapstructure:"dryrun"`                   // validate without writing
	StopOnError     bool          `yaml:"stoponerror" mapstructure:"stoponerror"`         // abort remaining batches on first failure
	BatchDelay      time.Duration `yaml:"batchdelay" mapstructure:"batchdelay"`           // pause between batches
	ItemDelay       time.Duration `yaml:"itemdelay" mapstructure:"itemdelay"`             // pause between user imports
	MaxRetries      int           `yaml:"maxretries" mapstructure:"maxretries"`           // retry attempts for retryable failures
	RetryBackoff    time.Duration `yaml:"retrybackoff" mapstructure:"retrybackoff"`       // base backoff, doubled per attempt
	CheckpointEvery time.Duration `yaml:"checkpointevery" mapstructure:"checkpointevery"` // auto-save interval for progress checkpoints
}

// LegacyDBSettings holds read-only connection parameters for the legacy
// store records are extracted from.
type LegacyDBSettings struct {
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// DestDBSettings holds read-only connection parameters for the destination
// store, used only by verification.
type DestDBSettings struct {
	Driver   string `yaml:"driver" mapstructure:"driver"` // "mysql" or "sqlite"
	Path     string `yaml:"path" mapstructure:"path"`     // sqlite file path
	Host     string `yaml:"host" mapstructure:"host"`
	Port     string `yaml:"port" mapstructure:"port"`
	Username string `yaml:"username" mapstructure:"username"`
	Password string `yaml:"password" mapstructure:"password"`
	Database string `yaml:"database" mapstructure:"database"`
}

// VerifySettings configures the post-migration verifier.
type VerifySettings struct {
	SampleSize int            `yaml:"samplesize" mapstructure:"samplesize"` // spot-check sample size
	Dest       DestDBSettings `yaml:"dest" mapstructure:"dest"`
}

// Settings is the root configuration object.
type Settings struct {
	Debug   bool   `yaml:"debug" mapstructure:"debug"`     // enable debug logging
	DataDir string `yaml:"datadir" mapstructure:"datadir"` // mapping files, checkpoints and reports live here

	Source      LegacyDBSettings    `yaml:"source" mapstructure:"source"`
	Destination DestinationSettings `yaml:"destination" mapstructure:"destination"`
	Import      ImportSettings      `yaml:"import" mapstructure:"import"`
	Verify      VerifySettings      `yaml:"verify" mapstructure:"verify"`
}

var (
	settingsInstance *Settings
	settingsMutex    sync.RWMutex
)

// Load reads the configuration, applying defaults, config file values and
// environment overrides in that order.
func Load() (*Settings, error) {
	settingsMutex.Lock()
	defer settingsMutex.Unlock()

	setDefaultConfig()

	if err := initViper(); err != nil {
		return nil, fmt.Errorf("error initializing viper: %w", err)
	}

	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return nil, fmt.Errorf("error unmarshaling config into struct: %w", err)
	}

	if err := ValidateSettings(settings); err != nil {
		return nil, err
	}

	settingsInstance = settings
	return settings, nil
}

func initViper() error {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	if configPath, err := DefaultConfigPath(); err == nil {
		viper.AddConfigPath(configPath)
	}

	viper.SetEnvPrefix("RECIPE_MIGRATE")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return fmt.Errorf("fatal error reading config file: %w", err)
		}
		// Missing config file is fine, defaults + env + flags apply.
	}

	return nil
}

// Setting returns the settings instance loaded by Load. It panics when
// called before Load so misuse fails loudly during development.
func Setting() *Settings {
	settingsMutex.RLock()
	defer settingsMutex.RUnlock()
	if settingsInstance == nil {
		panic("conf.Setting() called before conf.Load()")
	}
	return settingsInstance
}

// DefaultConfigPath returns the per-user configuration directory.
func DefaultConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("unable to resolve user config dir: %w", err)
	}
	return filepath.Join(configDir, "recipe-migrate"), nil
}

// GenerateConfigFile writes the default configuration as YAML to path,
// refusing to overwrite an existing file.
func GenerateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file %s already exists", path)
	}

	setDefaultConfig()
	settings := &Settings{}
	if err := viper.Unmarshal(settings); err != nil {
		return fmt.Errorf("error building default settings: %w", err)
	}

	data, err := yaml.Marshal(settings)
	if err != nil {
		return fmt.Errorf("error marshaling default settings: %w", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("error creating config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}
	return nil
}
