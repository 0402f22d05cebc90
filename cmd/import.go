package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hausmatch/leadflow/internal/audit"
	"github.com/hausmatch/leadflow/internal/config"
	"github.com/hausmatch/leadflow/internal/db"
	"github.com/hausmatch/leadflow/internal/flows"
	"github.com/hausmatch/leadflow/internal/importers"
	"github.com/hausmatch/leadflow/internal/progress"
)

var (
	importPattern string
	importPublish bool
)

var importCmd = &cobra.Command{
	Use:   "import [dir]",
	Short: "Import flow definition files as draft versions",
	Long: `Scans a directory for flow definition files (YAML or JSON), validates
each one, and saves it as a new draft version. Definitions whose slug
matches an existing flow create a new version of that flow; others
create a new flow. Invalid files are reported and skipped.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		root := cfg.FlowsDir
		if len(args) == 1 {
			root = args[0]
		}
		pattern := cfg.Import.Pattern
		if importPattern != "" {
			pattern = importPattern
		}
		publish := cfg.Import.Publish || importPublish

		if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
			return fmt.Errorf("creating data dir: %w", err)
		}

		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		auditStore := audit.NewStore(database)
		flowStore := flows.NewStore(database, auditStore)
		importer := importers.New(flowStore, auditStore)

		summary, err := importer.ImportGlob(context.Background(), root, pattern, publish, progress.NewReporter("Importing flows"))
		if err != nil {
			return err
		}

		fmt.Printf("Imported %d flow(s), %d failed\n", summary.Imported, summary.Failed)
		for _, res := range summary.Results {
			if res.Err != "" {
				fmt.Fprintf(os.Stderr, "  %s: %s\n", res.Path, res.Err)
			} else if verbose {
				fmt.Printf("  %s -> flow %s v%d\n", res.Path, res.FlowID, res.Version)
			}
		}
		if summary.Failed > 0 {
			return fmt.Errorf("%d file(s) failed to import", summary.Failed)
		}
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPattern, "pattern", "", "glob pattern for definition files (overrides config)")
	importCmd.Flags().BoolVar(&importPublish, "publish", false, "publish each imported flow after saving")
	rootCmd.AddCommand(importCmd)
}
