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
	"github.com/hausmatch/leadflow/internal/migrate"
	"github.com/hausmatch/leadflow/internal/progress"
)

var migrateAll bool

var migrateCmd = &cobra.Command{
	Use:   "migrate [legacy-flow-id]",
	Short: "Migrate legacy flows into the payload format",
	Long: `Reads a flow from the legacy relational tables, assembles a
self-contained payload, validates it, and saves it as version 1.
Flows that were active in the legacy system are published. Migration
is idempotent: a flow that already has versions is skipped.

With --all, every legacy flow is migrated and individual failures do
not abort the batch.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if !migrateAll && len(args) != 1 {
			return fmt.Errorf("provide a legacy flow id or use --all")
		}

		cfg, err := config.Load(cfgFile)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}

		database, err := db.Open(cfg.DatabasePath())
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		auditStore := audit.NewStore(database)
		flowStore := flows.NewStore(database, auditStore)
		adapter := migrate.NewAdapter(database, flowStore, auditStore)

		ctx := context.Background()

		if migrateAll {
			bulk, err := adapter.MigrateAll(ctx, progress.NewReporter("Migrating flows"))
			if err != nil {
				return err
			}
			fmt.Printf("Migrated %d, skipped %d, failed %d\n", bulk.Migrated, bulk.Skipped, bulk.Failed)
			for _, msg := range bulk.Errors {
				fmt.Fprintf(os.Stderr, "  %s\n", msg)
			}
			if bulk.Failed > 0 {
				return fmt.Errorf("%d flow(s) failed to migrate", bulk.Failed)
			}
			return nil
		}

		res, err := adapter.Migrate(ctx, args[0])
		if err != nil {
			return err
		}
		switch {
		case res.Skipped:
			fmt.Printf("Flow %s already migrated, skipping\n", res.LegacyID)
		case res.Published:
			fmt.Printf("Migrated flow %s as v%d (published)\n", res.LegacyID, res.Version)
		default:
			fmt.Printf("Migrated flow %s as v%d (draft)\n", res.LegacyID, res.Version)
		}
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateAll, "all", false, "migrate every legacy flow")
	rootCmd.AddCommand(migrateCmd)
}
