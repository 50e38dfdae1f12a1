package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/parceltrack/internal/seed"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Generate synthetic tracking notifications",
	Long: `Generates parcels with realistic event histories and emits the change
notifications that build them: one insert per parcel, then an update for
each appended event. With --shuffle and --redeliver the output mimics an
unordered, at-least-once feed.

With --dry-run notifications are written to stdout as JSON lines instead of
being published.`,
	GroupID:           "feed",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := seedOptionsFromFlags(cmd)
		if err != nil {
			return err
		}
		parcels, _ := cmd.Flags().GetInt("parcels")
		shuffle, _ := cmd.Flags().GetBool("shuffle")
		redeliver, _ := cmd.Flags().GetFloat64("redeliver")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		g := seed.New(opts)
		msgs, err := generate(g, parcels)
		if err != nil {
			return err
		}
		msgs = g.Redeliver(msgs, redeliver)
		if shuffle {
			g.Shuffle(msgs)
		}

		if dryRun {
			for _, m := range msgs {
				fmt.Fprintln(os.Stdout, string(m))
			}
			return nil
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
		fmt.Fprintf(os.Stderr, "published %d notifications for %d parcels to %s (seed %d)\n",
			len(msgs), parcels, subject, g.Seed())
		return nil
	},
}

func init() {
	seedCmd.Flags().Int("parcels", 100, "number of parcels to generate")
	seedCmd.Flags().Int("first", 1, "number of the first tracking reference (NZ000000001)")
	seedCmd.Flags().String("from", "", "earliest first-event time (default 7 days before --to)")
	seedCmd.Flags().String("to", "", "latest first-event time (default now)")
	seedCmd.Flags().Int("max-events", 20, "maximum events per parcel")
	seedCmd.Flags().Uint64("seed", 0, "random seed (0 picks one)")
	seedCmd.Flags().Bool("shuffle", false, "shuffle notifications across parcels")
	seedCmd.Flags().Float64("redeliver", 0, "probability of delivering a notification twice")
	seedCmd.Flags().Bool("dry-run", false, "write notifications to stdout instead of publishing")
	addFeedFlags(seedCmd)
}

func seedOptionsFromFlags(cmd *cobra.Command) (seed.Options, error) {
	var opts seed.Options
	opts.First, _ = cmd.Flags().GetInt("first")
	opts.MaxEvents, _ = cmd.Flags().GetInt("max-events")
	opts.Seed, _ = cmd.Flags().GetUint64("seed")

	for name, dst := range map[string]*time.Time{"from": &opts.From, "to": &opts.To} {
		v, _ := cmd.Flags().GetString(name)
		if v == "" {
			continue
		}
		t, err := parseTimeArg(v)
		if err != nil {
			return opts, fmt.Errorf("--%s: %w", name, err)
		}
		*dst = t
	}
	return opts, nil
}

func generate(g *seed.Generator, parcels int) ([][]byte, error) {
	var msgs [][]byte
	for i := 0; i < parcels; i++ {
		p, err := g.Next()
		if err != nil {
			return nil, err
		}
		n, err := p.Notifications()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, n...)
	}
	return msgs, nil
}
