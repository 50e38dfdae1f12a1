package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/parceltrack/internal/events"
)

var emitCmd = &cobra.Command{
	Use:   "emit [file]",
	Short: "Publish change notifications to the feed",
	Long: `Reads change notifications and publishes each one to the change feed
subject. Input is a single JSON object or JSON lines, one notification per
line, from the named file or stdin.`,
	GroupID:           "feed",
	Args:              cobra.MaximumNArgs(1),
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		var r io.Reader = os.Stdin
		if len(args) == 1 && args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return err
			}
			defer f.Close()
			r = f
		}

		msgs, err := readNotifications(r)
		if err != nil {
			return err
		}

		pub, err := publisherFromFlags(cmd)
		if err != nil {
			return err
		}
		defer pub.Close()

		subject, _ := cmd.Flags().GetString("subject")
		if err := publishAll(context.Background(), pub, subject, msgs); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "published %d notifications to %s\n", len(msgs), subject)
		return nil
	},
}

func init() {
	addFeedFlags(emitCmd)
}

// addFeedFlags registers the NATS connection flags shared by emit and seed.
func addFeedFlags(cmd *cobra.Command) {
	natsURL := os.Getenv("PARCELTRACK_NATS_URL")
	if natsURL == "" {
		natsURL = "nats://localhost:4222"
	}
	subject := os.Getenv("PARCELTRACK_SUBJECT")
	if subject == "" {
		subject = events.TopicTrackingChanges
	}
	cmd.Flags().String("nats-url", natsURL, "NATS server URL")
	cmd.Flags().String("subject", subject, "change feed subject")
}

func publisherFromFlags(cmd *cobra.Command) (*events.NATSPublisher, error) {
	url, _ := cmd.Flags().GetString("nats-url")
	return events.NewNATSPublisher(url)
}

// readNotifications reads JSON lines, each of which must be valid JSON.
// Blank lines are ignored.
func readNotifications(r io.Reader) ([][]byte, error) {
	var msgs [][]byte
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		if !json.Valid(b) {
			return nil, fmt.Errorf("line %d: invalid JSON", line)
		}
		msgs = append(msgs, bytes.Clone(b))
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading notifications: %w", err)
	}
	return msgs, nil
}

func publishAll(ctx context.Context, pub *events.NATSPublisher, subject string, msgs [][]byte) error {
	for i, m := range msgs {
		if err := pub.Publish(ctx, subject, m); err != nil {
			return fmt.Errorf("publishing notification %d: %w", i+1, err)
		}
	}
	return pub.Flush()
}
