package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/parceltrack/internal/client"
)

var listCmd = &cobra.Command{
	Use:     "list",
	Short:   "List parcels by owning party, status and event time",
	GroupID: "query",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := listRequestFromFlags(cmd)
		if err != nil {
			return err
		}

		resp, err := ptClient.ListParcelItemEvents(context.Background(), req)
		if err != nil {
			return fmt.Errorf("listing parcel item events: %w", err)
		}

		if jsonOutput {
			return printJSON(os.Stdout, resp)
		}
		printRecordList(os.Stdout, resp.Records, resp.Total)
		return nil
	},
}

func init() {
	addFilterFlags(listCmd)
	listCmd.Flags().Int("limit", 50, "maximum number of records")
	listCmd.Flags().Int("offset", 0, "number of records to skip")
}

// addFilterFlags registers the flags shared by list and export.
func addFilterFlags(cmd *cobra.Command) {
	cmd.Flags().StringSlice("tpid", nil, "owning party (repeatable or comma-separated)")
	cmd.Flags().String("edifact-code", "", "EDIFACT status code of the latest event (e.g. 500)")
	cmd.Flags().String("since", "", "latest event at or after this time (RFC 3339 or YYYY-MM-DD)")
	cmd.Flags().String("until", "", "latest event before this time (RFC 3339 or YYYY-MM-DD)")
}

func listRequestFromFlags(cmd *cobra.Command) (*client.ListParcelItemEventsRequest, error) {
	req := &client.ListParcelItemEventsRequest{}
	req.TPID, _ = cmd.Flags().GetStringSlice("tpid")
	req.EdifactCode, _ = cmd.Flags().GetString("edifact-code")

	var err error
	if req.Since, err = timeFlag(cmd, "since"); err != nil {
		return nil, err
	}
	if req.Until, err = timeFlag(cmd, "until"); err != nil {
		return nil, err
	}
	if cmd.Flags().Lookup("limit") != nil {
		req.Limit, _ = cmd.Flags().GetInt("limit")
		req.Offset, _ = cmd.Flags().GetInt("offset")
	}
	return req, nil
}

func timeFlag(cmd *cobra.Command, name string) (*time.Time, error) {
	v, _ := cmd.Flags().GetString(name)
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	t, err := parseTimeArg(v)
	if err != nil {
		return nil, fmt.Errorf("--%s: %w", name, err)
	}
	return &t, nil
}

// parseTimeArg accepts RFC 3339 timestamps and plain dates (UTC midnight).
func parseTimeArg(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.DateOnly, s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("invalid time %q (want RFC 3339 or YYYY-MM-DD)", s)
}
