package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var chatConversation string

var chatCmd = &cobra.Command{
	Use:   "chat <message...>",
	Short: "Send a message and stream the reply",
	Long: `Send a message on the current branch of a conversation and stream the
assistant's reply. Interrupting mid-stream keeps the partial reply as a
truncated turn.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := resolveConversation(rootCtx, chatConversation)
		if err != nil {
			return err
		}
		message := strings.Join(args, " ")

		stream, err := svc.ChatStream(rootCtx, id, message)
		if err != nil {
			return err
		}
		for {
			chunk, ok := stream.Next(rootCtx)
			if !ok {
				if rootCtx.Err() != nil {
					// Interrupted: drain so the partial turn commits
					// before the process exits.
					for {
						if _, ok := stream.Next(context.Background()); !ok {
							break
						}
					}
				}
				break
			}
			fmt.Print(chunk)
		}
		fmt.Println()
		if err := stream.Err(); err != nil {
			return err
		}
		if result := stream.Result(); result != nil && result.Truncated {
			fmt.Fprintln(os.Stderr, dimColor("(interrupted: partial reply saved)"))
		}
		return nil
	},
}

func init() {
	addConversationFlag(chatCmd, &chatConversation)
	rootCmd.AddCommand(chatCmd)
}
