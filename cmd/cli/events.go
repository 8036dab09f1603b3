package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/IvanKem/clever-document-assistant-ru/internal/config"
	"github.com/IvanKem/clever-document-assistant-ru/pkg/events"
	pktNats "github.com/IvanKem/clever-document-assistant-ru/pkg/nats"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

func newEventsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Tail session events mirrored to NATS",
		RunE:  runEvents,
	}

	cmd.Flags().String("nats-url", "", "NATS server url (defaults to NATS_URL)")
	cmd.Flags().String("type", "*", "event type to follow, e.g. QUERY_FAILED")
	cmd.Flags().String("durable", "", "durable consumer name; empty for an ephemeral one")

	return cmd
}

func runEvents(cmd *cobra.Command, _ []string) error {
	url, _ := cmd.Flags().GetString("nats-url")
	eventType, _ := cmd.Flags().GetString("type")
	durable, _ := cmd.Flags().GetString("durable")

	if url == "" {
		url = config.Load().App.NatsURL
	}
	if url == "" {
		return fmt.Errorf("NATS url is not set, pass --nats-url or set NATS_URL")
	}

	sub, err := pktNats.NewSubscriber(url)
	if err != nil {
		return err
	}
	defer sub.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cancel, err := sub.Subscribe(ctx, eventType, durable, func(_ context.Context, env events.Envelope) error {
		printEvent(env)
		return nil
	})
	if err != nil {
		return err
	}
	defer cancel()

	color.Cyan("Listening for %s events on %s", eventType, url)
	<-ctx.Done()
	return nil
}

func printEvent(env events.Envelope) {
	line := fmt.Sprintf("%s %-15s user=%v", env.OccurredAt.Format("15:04:05"), env.Type, env.Data["user_id"])
	switch env.Type {
	case events.QueryFailed, events.AssetRejected:
		color.Red("%s kind=%v", line, env.Data["kind"])
	case events.QueryCompleted:
		color.Green("%s pages=%v", line, env.Data["pages"])
	default:
		color.White("%s", line)
	}
}
