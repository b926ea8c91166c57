// Package verify implements the post-migration verification command.
package verify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tastebase/recipe-migrate/internal/conf"
	"github.com/tastebase/recipe-migrate/internal/datastore"
	"github.com/tastebase/recipe-migrate/internal/errors"
	"github.com/tastebase/recipe-migrate/internal/idmap"
	"github.com/tastebase/recipe-migrate/internal/report"
	"github.com/tastebase/recipe-migrate/internal/verify"
)

// Command creates the verify command.
func Command(settings *conf.Settings) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Verify the migrated data against the legacy store",
		Long: "Compare the destination database against the legacy store " +
			"using the persisted id mappings: record counts, spot checks, " +
			"field population, markup artifacts, ordering, tags and " +
			"ownership. Exits non-zero when the overall verdict is fail.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerification(cmd.Context(), settings)
		},
	}

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}
	return cmd
}

// setupFlags configures flags specific to the verify command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVar(&settings.Verify.SampleSize, "samplesize", viper.GetInt("verify.samplesize"), "Number of recipes to spot-check")
	cmd.Flags().StringVar(&settings.Verify.Dest.Driver, "destdriver", viper.GetString("verify.dest.driver"), "Destination database driver (sqlite or mysql)")
	cmd.Flags().StringVar(&settings.Verify.Dest.Path, "destpath", viper.GetString("verify.dest.path"), "Destination sqlite database path")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}
	return nil
}

func runVerification(ctx context.Context, settings *conf.Settings) error {
	store := idmap.NewStore(settings.DataDir)
	if err := store.Load(); err != nil {
		return err
	}

	legacy, err := datastore.OpenLegacy(&settings.Source, settings.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = legacy.Close() }()

	dest, err := datastore.OpenDest(&settings.Verify.Dest, settings.Debug)
	if err != nil {
		return err
	}
	defer func() { _ = dest.Close() }()

	verifier := verify.New(legacy, dest, store, settings.Verify.SampleSize)
	result, err := verifier.Run(ctx)
	if err != nil {
		return err
	}

	text := verify.RenderText(result)
	fmt.Print(text)

	gen := report.NewGenerator(filepath.Join(settings.DataDir, "reports"))
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return errors.New(fmt.Errorf("marshaling verification result: %w", err)).
			Component("verify").
			Category(errors.CategoryReport).
			Build()
	}
	if _, err := gen.WriteArtifact("verification", "json", data); err != nil {
		return err
	}
	if _, err := gen.WriteArtifact("verification", "txt", []byte(text)); err != nil {
		return err
	}
	if _, err := gen.WriteArtifact("verification", "md", []byte(verify.RenderMarkdown(result))); err != nil {
		return err
	}

	if result.Overall == verify.StatusFail {
		return errors.Newf("verification failed").
			Component("verify").
			Category(errors.CategoryVerification).
			Build()
	}
	return nil
}
