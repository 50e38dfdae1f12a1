// Package client provides a transport-agnostic interface for the parceltrack
// read API and an HTTP/JSON implementation of it.
package client

import (
	"context"
	"time"

	"github.com/alfredjeanlab/parceltrack/internal/consumer"
	"github.com/alfredjeanlab/parceltrack/internal/model"
)

// ParcelTrackClient is the interface the parceltrack CLI commands use to
// query a running server. It is implemented by HTTPClient.
type ParcelTrackClient interface {
	GetParcelItemEvent(ctx context.Context, trackingReference string) (*model.ParcelItemEvent, error)
	ListParcelItemEvents(ctx context.Context, req *ListParcelItemEventsRequest) (*ListParcelItemEventsResponse, error)
	Stats(ctx context.Context) (*StatsResponse, error)
	Health(ctx context.Context) (string, error)

	// Lifecycle
	Close() error
}

// ListParcelItemEventsRequest filters a listing. Zero values are not sent.
type ListParcelItemEventsRequest struct {
	TPID        []string
	EdifactCode string
	Since       *time.Time
	Until       *time.Time
	Limit       int
	Offset      int
}

// ListParcelItemEventsResponse is one page of records and the total match count.
type ListParcelItemEventsResponse struct {
	Records []*model.ParcelItemEvent `json:"records"`
	Total   int                      `json:"total"`
}

// StatsResponse carries per-tpid volume and, when the server runs a
// consumer, its counters.
type StatsResponse struct {
	TPIDs    []*model.TPIDCount `json:"tpids"`
	Consumer *consumer.Stats    `json:"consumer,omitempty"`
}
