package main

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/parceltrack/internal/client"
	"github.com/alfredjeanlab/parceltrack/internal/model"
)

func TestParseTimeArg(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Time
		wantErr bool
	}{
		{"2025-03-01", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), false},
		{"2025-03-01T10:00:00Z", time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), false},
		{" 2025-03-01T10:00:00+13:00 ", time.Date(2025, 2, 28, 21, 0, 0, 0, time.UTC), false},
		{"yesterday", time.Time{}, true},
	}
	for _, tt := range tests {
		got, err := parseTimeArg(tt.in)
		if (err != nil) != tt.wantErr {
			t.Fatalf("parseTimeArg(%q) err = %v", tt.in, err)
		}
		if !tt.wantErr && !got.Equal(tt.want) {
			t.Errorf("parseTimeArg(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func newFilterCmd(withPaging bool) *cobra.Command {
	cmd := &cobra.Command{Use: "x"}
	addFilterFlags(cmd)
	if withPaging {
		cmd.Flags().Int("limit", 50, "")
		cmd.Flags().Int("offset", 0, "")
	}
	return cmd
}

func TestListRequestFromFlags(t *testing.T) {
	cmd := newFilterCmd(true)
	if err := cmd.ParseFlags([]string{
		"--tpid", "1000011,1000012", "--edifact-code", "500",
		"--since", "2025-03-01", "--limit", "10", "--offset", "20",
	}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	req, err := listRequestFromFlags(cmd)
	if err != nil {
		t.Fatalf("listRequestFromFlags: %v", err)
	}
	if len(req.TPID) != 2 || req.TPID[1] != "1000012" {
		t.Errorf("TPID = %v", req.TPID)
	}
	if req.EdifactCode != "500" {
		t.Errorf("EdifactCode = %q", req.EdifactCode)
	}
	if req.Since == nil || req.Since.Day() != 1 || req.Until != nil {
		t.Errorf("Since = %v, Until = %v", req.Since, req.Until)
	}
	if req.Limit != 10 || req.Offset != 20 {
		t.Errorf("Limit/Offset = %d/%d", req.Limit, req.Offset)
	}
}

func TestListRequestFromFlags_BadTime(t *testing.T) {
	cmd := newFilterCmd(false)
	if err := cmd.ParseFlags([]string{"--until", "soon"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}
	_, err := listRequestFromFlags(cmd)
	if err == nil || !strings.Contains(err.Error(), "--until") {
		t.Fatalf("expected --until error, got %v", err)
	}
}

func TestReadNotifications(t *testing.T) {
	in := `{"operationType":"insert"}

{"tracking_reference":"NZ1","tracking_events":[]}
`
	msgs, err := readNotifications(strings.NewReader(in))
	if err != nil {
		t.Fatalf("readNotifications: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("expected 2 notifications, got %d", len(msgs))
	}

	if _, err := readNotifications(strings.NewReader("{\"a\":1}\n{oops\n")); err == nil || !strings.Contains(err.Error(), "line 2") {
		t.Fatalf("expected line 2 error, got %v", err)
	}
}

func TestSeedOptionsFromFlags(t *testing.T) {
	cmd := &cobra.Command{Use: "seed"}
	cmd.Flags().AddFlagSet(seedCmd.Flags())
	if err := cmd.ParseFlags([]string{"--first", "500", "--from", "2025-03-01", "--to", "2025-03-07", "--seed", "9"}); err != nil {
		t.Fatalf("ParseFlags: %v", err)
	}

	opts, err := seedOptionsFromFlags(cmd)
	if err != nil {
		t.Fatalf("seedOptionsFromFlags: %v", err)
	}
	if opts.First != 500 || opts.Seed != 9 || opts.MaxEvents != 20 {
		t.Errorf("opts = %+v", opts)
	}
	if opts.From.Day() != 1 || opts.To.Day() != 7 {
		t.Errorf("window = %v..%v", opts.From, opts.To)
	}
}

// stubClient serves list pages from a fixed slice.
type stubClient struct {
	client.ParcelTrackClient
	recs []*model.ParcelItemEvent
	err  error
	reqs []*client.ListParcelItemEventsRequest
}

func (s *stubClient) ListParcelItemEvents(_ context.Context, req *client.ListParcelItemEventsRequest) (*client.ListParcelItemEventsResponse, error) {
	s.reqs = append(s.reqs, req)
	if s.err != nil {
		return nil, s.err
	}
	end := min(req.Offset+req.Limit, len(s.recs))
	if req.Offset >= end {
		return &client.ListParcelItemEventsResponse{Total: len(s.recs)}, nil
	}
	return &client.ListParcelItemEventsResponse{Records: s.recs[req.Offset:end], Total: len(s.recs)}, nil
}

func TestClientLister(t *testing.T) {
	stub := &stubClient{recs: []*model.ParcelItemEvent{testRecord(), testRecord()}}
	l := clientLister{stub}

	recs, total, err := l.ListParcelItemEvents(context.Background(), model.ParcelItemEventFilter{
		TPID: []string{"1000011"}, EdifactCode: "500", Limit: 1, Offset: 1,
	})
	if err != nil {
		t.Fatalf("ListParcelItemEvents: %v", err)
	}
	if len(recs) != 1 || total != 2 {
		t.Fatalf("got %d records, total %d", len(recs), total)
	}
	req := stub.reqs[0]
	if req.EdifactCode != "500" || req.Limit != 1 || req.Offset != 1 || req.TPID[0] != "1000011" {
		t.Fatalf("request = %+v", req)
	}

	stub.err = errors.New("HTTP 401: unauthorized")
	if _, _, err := l.ListParcelItemEvents(context.Background(), model.ParcelItemEventFilter{Limit: 1}); err == nil {
		t.Fatal("expected error")
	}
}

func TestColorizeHelp(t *testing.T) {
	in := "Usage:\n  parceltrack <command>\n\nQuery:\n  show        Show a parcel\n\nFlags:\n      --url string   server URL (default \"http://localhost:8080\")\n"
	// Colors are forced off in this package, so styling is a no-op.
	if got := colorizeHelp(in); got != in {
		t.Fatalf("colorizeHelp changed uncolored text:\n%s", got)
	}
}

func TestRootCommandsGrouped(t *testing.T) {
	for _, c := range rootCmd.Commands() {
		if c.Name() == "help" || c.Name() == "completion" {
			continue
		}
		if c.GroupID == "" {
			t.Errorf("command %q has no group", c.Name())
		}
	}
}
