package main

import (
	"fmt"
	"os"

	"github.com/deepnoodle-ai/forky/internal/tablewriter"
	"github.com/spf13/cobra"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models the configured provider offers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		models := svc.AvailableModels()
		if len(models) == 0 {
			fmt.Printf("Provider %q does not enumerate models.\n", cfg.Provider)
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name"})
		for _, m := range models {
			table.Append([]string{m.ID, m.Name})
		}
		table.Render()
		return nil
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
