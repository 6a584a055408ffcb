package main

import (
	"fmt"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/kv"
	"github.com/go-go-golems/palimpsest/pkg/split"
	"github.com/spf13/cobra"
)

func newInspectCommand() *cobra.Command {
	var showMessages bool

	cmd := &cobra.Command{
		Use:   "inspect <conversation-id>",
		Short: "Show the snapshotted version history of a conversation",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			conversationID := args[0]

			store, err := openSnapshotStore()
			if err != nil {
				return err
			}
			snapshots := kv.NewSnapshots(store)

			versionList, err := snapshots.LoadVersions(conversationID)
			if err != nil {
				return err
			}
			if len(versionList) == 0 {
				fmt.Printf("no snapshots for conversation %s\n", conversationID)
				return nil
			}

			cursor, err := snapshots.LoadCursor(conversationID)
			if err != nil {
				return err
			}

			for i, version := range versionList {
				marker := " "
				if i == cursor {
					marker = "*"
				}
				fmt.Printf("%s version %d  %s  %d messages, %d edits\n",
					marker,
					version.ID,
					time.Unix(version.Timestamp, 0).Format(time.RFC3339),
					len(version.Messages),
					len(version.Edits),
				)

				if !showMessages {
					continue
				}
				for j, msg := range version.Messages {
					for _, segment := range split.Parse(msg.Content) {
						speaker := string(msg.Role)
						if segment.Character != "" {
							speaker = segment.Character
						}
						fmt.Printf("    [%d] %s: %s\n", j, speaker, segment.Content)
					}
				}
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&showMessages, "messages", false, "print each version's messages")

	return cmd
}
