package main

import (
	"context"
	"fmt"
	"time"

	"github.com/go-go-golems/palimpsest/pkg/backend"
	"github.com/go-go-golems/palimpsest/pkg/events"
	"github.com/go-go-golems/palimpsest/pkg/kv"
	"github.com/go-go-golems/palimpsest/pkg/streaming"
	"github.com/go-go-golems/palimpsest/pkg/versions"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// consolePrinter renders stream events as they arrive, the way the chat UI
// would.
type consolePrinter struct{}

func (consolePrinter) HandleStart(context.Context, *events.EventStreamStart) error {
	fmt.Print("assistant: ")
	return nil
}

func (consolePrinter) HandlePartialCompletion(_ context.Context, e *events.EventPartialCompletion) error {
	fmt.Print(e.Delta)
	return nil
}

func (consolePrinter) HandleFinal(context.Context, *events.EventFinal) error {
	fmt.Println()
	return nil
}

func (consolePrinter) HandleError(_ context.Context, e *events.EventError) error {
	fmt.Printf("\n(stream error: %s)\n", e.ErrorString)
	return nil
}

func (consolePrinter) HandleInterrupt(context.Context, *events.EventInterrupt) error {
	fmt.Println("\n(stream cancelled)")
	return nil
}

func newDemoCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run a scripted edit/stream session against an in-memory backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}

			router, err := events.NewEventRouter()
			if err != nil {
				return err
			}
			defer func() {
				if err := router.Close(); err != nil {
					log.Warn().Err(err).Msg("failed to close event router")
				}
			}()

			router.AddStreamHandler("console", "chat", consolePrinter{})

			routerCtx, cancelRouter := context.WithCancel(ctx)
			defer cancelRouter()
			go func() {
				if err := router.Run(routerCtx); err != nil && routerCtx.Err() == nil {
					log.Error().Err(err).Msg("event router stopped")
				}
			}()
			<-router.Running()

			const conversationID = "demo"

			service := backend.NewFakeService()
			service.AddConversation(&backend.Conversation{ID: conversationID})
			service.QueueChunks("It was", " the best of times,", " it was the worst of times.")
			service.ChunkDelay = 80 * time.Millisecond
			service.QueueReply("It was the age of wisdom.")

			snapshots := kv.NewSnapshots(kv.NewMemoryStore())
			registry := versions.NewRegistry(versions.WithSnapshotter(snapshots))
			store := registry.Initialize(conversationID, nil)

			engine := versions.NewEngine(registry, service,
				versions.WithNotifier(backend.LogNotifier{}))

			reconciler := streaming.NewReconciler(store,
				streaming.WithSink(streaming.NewWatermillSink(router.Publisher, "chat")))

			fmt.Println("user: Tell me about the times.")
			if _, err := streaming.Send(ctx, service, reconciler, backend.LogNotifier{}, "Tell me about the times."); err != nil {
				return err
			}

			fmt.Println("\nediting the prompt, regenerating from message 0...")
			if err := engine.EditMessage(ctx, conversationID, 0, "Summarize the times in one line."); err != nil {
				return err
			}

			fmt.Println("\nversion history:")
			for i, version := range store.Versions() {
				marker := " "
				if i == store.Cursor() {
					marker = "*"
				}
				fmt.Printf("%s version %d: %d messages, %d edits\n",
					marker, version.ID, len(version.Messages), len(version.Edits))
			}

			for _, msg := range store.CurrentMessages() {
				fmt.Printf("  %s: %s\n", msg.Role, msg.Content)
			}

			return nil
		},
	}
}
