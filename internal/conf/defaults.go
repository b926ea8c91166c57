package conf

import (
	"time"

	"github.com/spf13/viper"
)

// setDefaultConfig registers the default values for all recognized options.
func setDefaultConfig() {
	viper.SetDefault("debug", false)
	viper.SetDefault("datadir", "migration-data")

	// Destination write API
	viper.SetDefault("destination.baseurl", "http://localhost:9000/api")
	viper.SetDefault("destination.authtoken", "")
	viper.SetDefault("destination.timeout", 30*time.Second)

	// Import pipeline
	viper.SetDefault("import.batchsize", 50)
	viper.SetDefault("import.dryrun", false)
	viper.SetDefault("import.stoponerror", false)
	viper.SetDefault("import.batchdelay", 500*time.Millisecond)
	viper.SetDefault("import.itemdelay", 100*time.Millisecond)
	viper.SetDefault("import.maxretries", 3)
	viper.SetDefault("import.retrybackoff", time.Second)
	viper.SetDefault("import.checkpointevery", 30*time.Second)

	// Legacy source store
	viper.SetDefault("source.host", "localhost")
	viper.SetDefault("source.port", "3306")
	viper.SetDefault("source.username", "")
	viper.SetDefault("source.password", "")
	viper.SetDefault("source.database", "legacy_recipes")

	// Verification
	viper.SetDefault("verify.samplesize", 25)
	viper.SetDefault("verify.dest.driver", "sqlite")
	viper.SetDefault("verify.dest.path", "tastebase.db")
	viper.SetDefault("verify.dest.host", "localhost")
	viper.SetDefault("verify.dest.port", "3306")
	viper.SetDefault("verify.dest.username", "")
	viper.SetDefault("verify.dest.password", "")
	viper.SetDefault("verify.dest.database", "tastebase")
}
