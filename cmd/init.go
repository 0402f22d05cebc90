package cmd

import (
	"github.com/spf13/cobra"

	"github.com/hausmatch/leadflow/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize leadflow configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure leadflow and generates a .leadflow.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
