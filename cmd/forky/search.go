package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/deepnoodle-ai/forky/internal/tablewriter"
	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query...>",
	Short: "Full-text search across all conversations",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		results, err := svc.Search(rootCtx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}
		if len(results) == 0 {
			fmt.Println("No matches.")
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"Conversation", "Node", "Role", "Snippet"})
		for _, r := range results {
			table.Append([]string{
				r.ConversationName,
				shortID(r.NodeID),
				r.Role,
				truncate(r.Snippet, 70),
			})
		}
		table.Render()
		return nil
	},
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}
