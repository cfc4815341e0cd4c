package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var (
	forkConversation     string
	checkoutConversation string
	mergeConversation    string
	mergePrompt          string
	deleteNodeConv       string
)

var forkCmd = &cobra.Command{
	Use:   "fork [branch-name]",
	Short: "Start a new branch at the current node",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, forkConversation)
		if err != nil {
			return err
		}
		branchName := ""
		if len(args) > 0 {
			branchName = args[0]
		}
		markerID, err := svc.Fork(rootCtx, id, branchName)
		if err != nil {
			return err
		}
		fmt.Printf("Forked at %s\n", shortID(markerID))
		return nil
	},
}

var checkoutCmd = &cobra.Command{
	Use:   "checkout <node-or-branch>",
	Short: "Move the current pointer to a node id or branch name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, checkoutConversation)
		if err != nil {
			return err
		}
		nodeID, err := svc.Checkout(rootCtx, id, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("Now at %s\n", shortID(nodeID))
		return nil
	},
}

var mergeCmd = &cobra.Command{
	Use:   "merge <target-node>",
	Short: "Merge another branch into the current one",
	Long: `Merge the branch ending at the target node into the current branch.
The two histories are summarized, diffed against their common ancestor,
and combined into a single merge node. Conflicting changes are kept with
the current branch taking precedence and the conflict recorded.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, mergeConversation)
		if err != nil {
			return err
		}
		outcome, err := svc.MergeBranches(rootCtx, id, args[0], mergePrompt)
		if err != nil {
			return err
		}
		fmt.Printf("Merged into %s\n", shortID(outcome.NewNodeID))
		if outcome.StructuralOnly {
			fmt.Println(systemColor("Summaries unavailable: merged structurally without conflict detection."))
		}
		if outcome.HasConflicts {
			fmt.Println(systemColor("%d conflicts resolved in favor of the current branch:", len(outcome.Conflicts)))
			for _, c := range outcome.Conflicts {
				fmt.Printf("  %s (%s): kept %q over %q\n", c.Category, c.Kind, truncate(c.LeftItem, 50), truncate(c.RightItem, 50))
			}
		}
		return nil
	},
}

var deleteNodeCmd = &cobra.Command{
	Use:   "delete-node <node-id>",
	Short: "Delete a node, splicing its children onto its parents",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, deleteNodeConv)
		if err != nil {
			return err
		}
		if err := svc.DeleteNode(rootCtx, id, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted node %s\n", shortID(args[0]))
		return nil
	},
}

func init() {
	addConversationFlag(forkCmd, &forkConversation)
	addConversationFlag(checkoutCmd, &checkoutConversation)
	addConversationFlag(mergeCmd, &mergeConversation)
	mergeCmd.Flags().StringVarP(&mergePrompt, "prompt", "p", "", "Guidance for synthesizing the merged reply")
	addConversationFlag(deleteNodeCmd, &deleteNodeConv)
	rootCmd.AddCommand(forkCmd, checkoutCmd, mergeCmd, deleteNodeCmd)
}
