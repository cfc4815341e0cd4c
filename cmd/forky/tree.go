package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/deepnoodle-ai/forky/service"
	"github.com/spf13/cobra"
)

var treeConversation string

var treeCmd = &cobra.Command{
	Use:   "tree",
	Short: "Render the conversation DAG",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, treeConversation)
		if err != nil {
			return err
		}
		view, err := svc.GetGraph(rootCtx, id)
		if err != nil {
			return err
		}
		renderTree(os.Stdout, view)
		return nil
	},
}

// renderTree draws the DAG as a tree along primary-parent edges. Merge
// nodes keep their place under the left parent and name the right parent
// they pulled in.
func renderTree(w io.Writer, view *service.GraphView) {
	byID := make(map[string]service.NodeView, len(view.Nodes))
	children := make(map[string][]string)
	var rootID string
	for _, n := range view.Nodes {
		byID[n.ID] = n
		if len(n.ParentIDs) == 0 {
			rootID = n.ID
			continue
		}
		primary := n.ParentIDs[0]
		children[primary] = append(children[primary], n.ID)
	}
	if rootID == "" {
		return
	}

	var walk func(id, prefix string, last bool, top bool)
	walk = func(id, prefix string, last bool, top bool) {
		node := byID[id]
		connector := "├── "
		childPrefix := prefix + "│   "
		if last {
			connector = "└── "
			childPrefix = prefix + "    "
		}
		if top {
			connector = ""
			childPrefix = ""
		}
		fmt.Fprintf(w, "%s%s%s\n", prefix, connector, nodeLabel(node))

		kids := children[id]
		for i, childID := range kids {
			walk(childID, childPrefix, i == len(kids)-1, false)
		}
	}
	walk(rootID, "", true, true)
}

func nodeLabel(n service.NodeView) string {
	var label string
	switch {
	case len(n.ParentIDs) == 0:
		label = dimColor("root")
	case n.IsMerge:
		right := ""
		if len(n.ParentIDs) == 2 {
			right = shortID(n.ParentIDs[1])
		}
		label = fmt.Sprintf("%s %s  %s", mergeColor("merge(%s)", right), dimColor(shortID(n.ID)), truncate(n.Content, 60))
		if n.Merge != nil && len(n.Merge.Conflicts) > 0 {
			label += systemColor(" [%d conflicts]", len(n.Merge.Conflicts))
		}
	case n.BranchName != "":
		label = fmt.Sprintf("%s %s", systemColor("fork [%s]", n.BranchName), dimColor(shortID(n.ID)))
	default:
		label = fmt.Sprintf("%s %s  %s", roleColor(n.Role)("%s", n.Role), dimColor(shortID(n.ID)), truncate(n.Content, 60))
	}
	if n.IsCurrent {
		label += currentColor(" <- current")
	}
	return strings.TrimRight(label, " ")
}

func init() {
	addConversationFlag(treeCmd, &treeConversation)
	rootCmd.AddCommand(treeCmd)
}
