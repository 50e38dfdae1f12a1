package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/client"
	"github.com/alfredjeanlab/parceltrack/internal/model"
	"github.com/alfredjeanlab/parceltrack/internal/ui"
)

const timeLayout = "2006-01-02 15:04:05"

func printJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling JSON: %w", err)
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

// rawText renders a pass-through JSON value for a table cell: strings
// unquoted, other values as their JSON text, absent as "".
func rawText(raw json.RawMessage) string {
	s := bytes.TrimSpace(raw)
	if len(s) == 0 || string(s) == "null" {
		return ""
	}
	var str string
	if err := json.Unmarshal(s, &str); err == nil {
		return str
	}
	return string(s)
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func printRecord(w io.Writer, rec *model.ParcelItemEvent) {
	ev := rec.LatestEvent
	code := rawText(ev.EventEdifactCode)

	fmt.Fprintf(w, "Tracking Ref:  %s\n", ui.RenderAccent(rec.TrackingReference))
	fmt.Fprintf(w, "TPID:          %s\n", rec.TPID)
	fmt.Fprintf(w, "Status:        %s\n", ui.RenderStatus(code, strings.TrimSpace(code+" "+ev.EventDescription)))
	if t := formatTime(ev.Time); t != "" {
		fmt.Fprintf(w, "Event Time:    %s\n", t)
	} else {
		fmt.Fprintf(w, "Event Time:    %s\n", rawText(ev.EventDatetime))
	}
	if ev.DepotName != "" {
		fmt.Fprintf(w, "Depot:         %s\n", ev.DepotName)
	}
	if ev.RunName != "" {
		fmt.Fprintf(w, "Run:           %s\n", ev.RunName)
	}
	if ev.EventType != "" {
		fmt.Fprintf(w, "Event Type:    %s\n", ev.EventType)
	}
	if ev.ReasonStatus != "" {
		fmt.Fprintf(w, "Reason:        %s\n", ev.ReasonStatus)
	}
	if c := rawText(ev.EventCode); c != "" {
		fmt.Fprintf(w, "Event Code:    %s\n", c)
	}
	fmt.Fprintf(w, "Seq Ref:       %s\n", ev.SeqRef)
	if !rec.UpdatedAt.IsZero() {
		fmt.Fprintf(w, "Updated At:    %s\n", ui.RenderMuted(formatTime(rec.UpdatedAt)))
	}
}

func printRecordList(w io.Writer, recs []*model.ParcelItemEvent, total int) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TRACKING REF\tTPID\tCODE\tSTATUS\tEVENT TIME\tDEPOT")
	for _, r := range recs {
		ev := r.LatestEvent
		desc := ev.EventDescription
		if len(desc) > 30 {
			desc = desc[:27] + "..."
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.TrackingReference,
			r.TPID,
			rawText(ev.EventEdifactCode),
			desc,
			formatTime(ev.Time),
			ev.DepotName,
		)
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d records (%d total)\n", len(recs), total)
}

func printStats(w io.Writer, resp *client.StatsResponse) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TPID\tPARCELS\tLATEST EVENT")
	total := 0
	for _, c := range resp.TPIDs {
		total += c.Count
		fmt.Fprintf(tw, "%s\t%d\t%s\n", c.TPID, c.Count, formatTime(c.LatestEventAt))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d parcels across %d tpids\n", total, len(resp.TPIDs))

	if c := resp.Consumer; c != nil {
		fmt.Fprintf(w, "\n%s %s\n", ui.RenderAccent("Consumer"), ui.RenderMuted(c.ID))
		fmt.Fprintf(w, "  received %d, filtered %d\n", c.Received, c.Filtered)
		fmt.Fprintf(w, "  created %d, updated %d, stale %d\n", c.Created, c.Updated, c.Stale)
		fmt.Fprintf(w, "  skipped %d, failed %d\n", c.Skipped, c.Failed)
	}
}
