// Package migrate implements the full migration run: users first, then
// recipes in batches, with checkpoint resume and report generation.
package migrate

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tastebase/recipe-migrate/internal/conf"
)

// Command creates the migrate command.
func Command(settings *conf.Settings) *cobra.Command {
	var migrationID string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run the migration against the destination API",
		Long: "Extract users and recipes from the legacy store, push them " +
			"through the destination write API in ordered batches, and write " +
			"run reports. Interrupted runs resume from their checkpoint.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigration(cmd.Context(), settings, migrationID)
		},
	}

	cmd.Flags().StringVar(&migrationID, "migration-id", "default", "Identifier grouping this run's checkpoints")
	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the migrate command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Import.BatchSize, "batchsize", viper.GetInt("import.batchsize"), "Records per batch")
	cmd.Flags().BoolVar(&settings.Import.DryRun, "dryrun", viper.GetBool("import.dryrun"), "Validate and report without writing to the destination")
	cmd.Flags().BoolVar(&settings.Import.StopOnError, "stoponerror", viper.GetBool("import.stoponerror"), "Abandon remaining batches after a batch with failures")
	cmd.Flags().DurationVar(&settings.Import.BatchDelay, "batchdelay", viper.GetDuration("import.batchdelay"), "Pause between batches")
	cmd.Flags().IntVar(&settings.Import.MaxRetries, "maxretries", viper.GetInt("import.maxretries"), "Retry attempts for retryable failures")
	cmd.Flags().DurationVar(&settings.Import.RetryBackoff, "retrybackoff", viper.GetDuration("import.retrybackoff"), "Base retry backoff, doubled per attempt")
	cmd.Flags().StringVar(&settings.Destination.BaseURL, "baseurl", viper.GetString("destination.baseurl"), "Base URL of the destination write API")
	cmd.Flags().StringVar(&settings.Destination.AuthToken, "authtoken", viper.GetString("destination.authtoken"), "Bearer token for the destination write API")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

// progressLine renders a one-line batch progress update with an ETA
// estimated from the throughput so far.
func progressLine(processed, total int, start time.Time) string {
	if total == 0 {
		return "no records to process"
	}
	pct := float64(processed) / float64(total) * 100

	eta := "n/a"
	if processed > 0 && processed < total {
		elapsed := time.Since(start)
		remaining := time.Duration(float64(elapsed) / float64(processed) * float64(total-processed))
		eta = remaining.Round(time.Second).String()
	}
	return fmt.Sprintf("%d/%d records (%.1f%%), eta %s", processed, total, pct, eta)
}
