package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/hausmatch/leadflow/internal/audit"
	"github.com/hausmatch/leadflow/internal/config"
	"github.com/hausmatch/leadflow/internal/db"
	"github.com/hausmatch/leadflow/internal/flows"
)

var flowsCmd = &cobra.Command{
	Use:   "flows",
	Short: "Inspect stored flows",
}

var flowsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all flows",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openFlowStore()
		if err != nil {
			return err
		}
		defer cleanup()

		records, err := store.ListFlows(context.Background())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tSLUG\tNAME\tSTATUS\tUPDATED")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID, rec.Slug, rec.Name, rec.Status, rec.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var flowsShowCmd = &cobra.Command{
	Use:   "show <flow-id>",
	Short: "Print a flow's draft payload as JSON",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openFlowStore()
		if err != nil {
			return err
		}
		defer cleanup()

		payload, version, err := store.GetDraftVersion(context.Background(), args[0])
		if err != nil {
			return err
		}

		fmt.Fprintf(os.Stderr, "draft version %d\n", version)
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	},
}

var flowsVersionsCmd = &cobra.Command{
	Use:   "versions <flow-id>",
	Short: "List a flow's stored versions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, cleanup, err := openFlowStore()
		if err != nil {
			return err
		}
		defer cleanup()

		versions, err := store.ListVersions(context.Background(), args[0])
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tSTATUS\tCREATED")
		for _, v := range versions {
			fmt.Fprintf(w, "%d\t%s\t%s\n", v.Version, v.Status, v.CreatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

func openFlowStore() (*flows.Store, func(), error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	database, err := db.Open(cfg.DatabasePath())
	if err != nil {
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}

	auditStore := audit.NewStore(database)
	store := flows.NewStore(database, auditStore)
	return store, func() { database.Close() }, nil
}

func init() {
	flowsCmd.AddCommand(flowsListCmd)
	flowsCmd.AddCommand(flowsShowCmd)
	flowsCmd.AddCommand(flowsVersionsCmd)
	rootCmd.AddCommand(flowsCmd)
}
