// Package server exposes the parcel_item_event projection over HTTP, streams
// projection changes as server-sent events, and serves a gRPC health
// endpoint.
package server

import (
	"context"
	"log/slog"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/alfredjeanlab/parceltrack/internal/consumer"
	"github.com/alfredjeanlab/parceltrack/internal/events"
	"github.com/alfredjeanlab/parceltrack/internal/store"
)

// StatsSource reports live consumer counters.
type StatsSource interface {
	Stats() consumer.Stats
}

// pinger is implemented by stores that can check their connection.
type pinger interface {
	Ping(ctx context.Context) error
}

// Server serves read access to the projection.
type Server struct {
	store  store.Store
	stats  StatsSource
	logger *slog.Logger
	health *health.Server
	hub    *changeHub
}

var _ events.Publisher = (*Server)(nil)

// New returns a Server backed by s. stats may be nil when no consumer runs
// in this process.
func New(s store.Store, stats StatsSource, logger *slog.Logger) *Server {
	hs := health.NewServer()
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return &Server{
		store:  s,
		stats:  stats,
		logger: logger,
		health: hs,
		hub:    newChangeHub(streamReplaySize),
	}
}

// SetStats attaches consumer counters after construction, for when the
// consumer itself publishes through this server. Call it before serving.
func (s *Server) SetStats(stats StatsSource) {
	s.stats = stats
}

// Shutdown marks every gRPC health service NOT_SERVING and ends open
// change streams.
func (s *Server) Shutdown() {
	s.health.Shutdown()
	s.hub.close()
}

// ping checks the store when it supports it.
func (s *Server) ping(ctx context.Context) error {
	if p, ok := s.store.(pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}
