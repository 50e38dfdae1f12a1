package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/alfredjeanlab/parceltrack/internal/client"
	"github.com/alfredjeanlab/parceltrack/internal/model"
	ptsync "github.com/alfredjeanlab/parceltrack/internal/sync"
)

var exportCmd = &cobra.Command{
	Use:     "export",
	Short:   "Write a JSONL snapshot of the projection",
	GroupID: "query",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		req, err := listRequestFromFlags(cmd)
		if err != nil {
			return err
		}
		filter := model.ParcelItemEventFilter{
			TPID:        req.TPID,
			EdifactCode: req.EdifactCode,
			Since:       req.Since,
			Until:       req.Until,
		}

		var w io.Writer = os.Stdout
		if path, _ := cmd.Flags().GetString("output"); path != "" && path != "-" {
			f, err := os.Create(path)
			if err != nil {
				return fmt.Errorf("creating %s: %w", path, err)
			}
			defer f.Close()
			w = f
		}

		return ptsync.ExportJSONL(context.Background(), clientLister{ptClient}, filter, w)
	},
}

func init() {
	addFilterFlags(exportCmd)
	exportCmd.Flags().StringP("output", "o", "", "output file (default stdout)")
}

// clientLister pages through the server's list API for an export.
type clientLister struct {
	c client.ParcelTrackClient
}

func (l clientLister) ListParcelItemEvents(ctx context.Context, f model.ParcelItemEventFilter) ([]*model.ParcelItemEvent, int, error) {
	resp, err := l.c.ListParcelItemEvents(ctx, &client.ListParcelItemEventsRequest{
		TPID:        f.TPID,
		EdifactCode: f.EdifactCode,
		Since:       f.Since,
		Until:       f.Until,
		Limit:       f.Limit,
		Offset:      f.Offset,
	})
	if err != nil {
		return nil, 0, err
	}
	return resp.Records, resp.Total, nil
}
