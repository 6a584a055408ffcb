package main

import (
	"fmt"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/kv"
	"github.com/spf13/cobra"
)

func newReplayCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <conversation-id>",
		Short: "Replay the edit history of a conversation in order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID := args[0]

			store, err := openSnapshotStore()
			if err != nil {
				return err
			}
			snapshots := kv.NewSnapshots(store)

			history, err := snapshots.LoadEditHistory(conversationID)
			if err != nil {
				return err
			}
			if len(history) == 0 {
				fmt.Printf("no edit history for conversation %s\n", conversationID)
				return nil
			}

			for i, edit := range history {
				when := time.Unix(edit.Timestamp, 0).Format(time.RFC3339)
				if edit.NewContent == nil {
					fmt.Printf("%d. %s  deleted message %d of version %d (was %q)\n",
						i+1, when, edit.MessageIndex, edit.VersionIndex+1, edit.OldContent)
					continue
				}
				fmt.Printf("%d. %s  edited message %d of version %d: %q -> %q\n",
					i+1, when, edit.MessageIndex, edit.VersionIndex+1, edit.OldContent, *edit.NewContent)
			}

			return nil
		},
	}
}
