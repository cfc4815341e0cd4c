package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/deepnoodle-ai/forky/internal/tablewriter"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List all conversations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		summaries, err := svc.ListConversations(rootCtx)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Println("No conversations yet. Create one with 'forky new <name>'.")
			return nil
		}
		table := tablewriter.NewWriter(os.Stdout)
		table.SetHeader([]string{"ID", "Name", "Nodes", "Updated", ""})
		for _, s := range summaries {
			marker := ""
			if s.IsActive {
				marker = color.GreenString("active")
			}
			table.Append([]string{
				shortID(s.ID),
				s.Name,
				strconv.Itoa(s.NodeCount),
				formatAge(s.UpdatedAt),
				marker,
			})
		}
		table.Render()
		return nil
	},
}

var newCmd = &cobra.Command{
	Use:   "new <name>",
	Short: "Create a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		conv, err := svc.CreateConversation(rootCtx, args[0])
		if err != nil {
			return err
		}
		if _, err := svc.LoadConversation(rootCtx, conv.ID); err != nil {
			return err
		}
		fmt.Printf("Created conversation %s (%s)\n", conv.Name, shortID(conv.ID))
		return nil
	},
}

var openCmd = &cobra.Command{
	Use:   "open <conversation>",
	Short: "Make a conversation active and show its recent history",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, args[0])
		if err != nil {
			return err
		}
		conv, err := svc.LoadConversation(rootCtx, id)
		if err != nil {
			return err
		}
		history, err := svc.GetHistory(rootCtx, id)
		if err != nil {
			return err
		}
		fmt.Printf("Opened %s (%s), %d nodes\n", conv.Name, shortID(conv.ID), conv.Graph.Len())
		start := len(history) - 6
		if start < 0 {
			start = 0
		}
		for _, n := range history[start:] {
			if n.Content == "" {
				continue
			}
			fmt.Printf("%s %s\n", roleColor(n.Role)("%s:", n.Role), truncate(n.Content, 100))
		}
		return nil
	},
}

var renameCmd = &cobra.Command{
	Use:   "rename <conversation> <name>",
	Short: "Rename a conversation",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, args[0])
		if err != nil {
			return err
		}
		if err := svc.RenameConversation(rootCtx, id, args[1]); err != nil {
			return err
		}
		fmt.Printf("Renamed %s to %q\n", shortID(id), args[1])
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <conversation>",
	Short: "Delete a conversation and all its nodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, args[0])
		if err != nil {
			return err
		}
		if err := svc.DeleteConversation(rootCtx, id); err != nil {
			return err
		}
		fmt.Printf("Deleted conversation %s\n", shortID(id))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(listCmd, newCmd, openCmd, renameCmd, deleteCmd)
}
