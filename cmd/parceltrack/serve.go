package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"

	"github.com/alfredjeanlab/parceltrack/internal/changefeed"
	"github.com/alfredjeanlab/parceltrack/internal/config"
	"github.com/alfredjeanlab/parceltrack/internal/consumer"
	"github.com/alfredjeanlab/parceltrack/internal/events"
	"github.com/alfredjeanlab/parceltrack/internal/logging"
	"github.com/alfredjeanlab/parceltrack/internal/projector"
	"github.com/alfredjeanlab/parceltrack/internal/server"
	"github.com/alfredjeanlab/parceltrack/internal/store/postgres"
	ptsync "github.com/alfredjeanlab/parceltrack/internal/sync"
)

var serveCmd = &cobra.Command{
	Use:               "serve",
	Short:             "Run the change feed consumer and the read API",
	GroupID:           "system",
	Args:              cobra.NoArgs,
	PersistentPreRunE: noClient,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load()
		if err != nil {
			return err
		}
		logger := logging.Init(cfg.LogFormat, cfg.LogLevel)

		store, err := postgres.New(cfg.DatabaseURL)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				logger.Error("error closing store", "err", err)
			}
		}()

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		srv := server.New(store, nil, logger)

		// Change feed consumer. Applied changes go to stream clients and,
		// with NATS, back onto the bus.
		consumerDone := make(chan struct{})
		if cfg.NATSURL != "" {
			sub, err := newSubscriber(cfg, logger)
			if err != nil {
				return err
			}
			defer sub.Close()

			pub, err := events.NewNATSPublisher(cfg.NATSURL)
			if err != nil {
				return err
			}
			defer pub.Close()

			cons := consumer.New(
				changefeed.NewFilter(logger),
				projector.New(store, logger, projector.WithPublisher(events.Fanout{srv, pub})),
				consumer.Config{Workers: cfg.Workers, StoreTimeout: cfg.StoreTimeout},
				logger,
			)
			srv.SetStats(cons)
			go func() {
				defer close(consumerDone)
				if err := cons.Run(ctx, sub, cfg.Subject); err != nil {
					logger.Error("consumer error", "err", err)
					stop()
				}
			}()
		} else {
			close(consumerDone)
			logger.Info("change feed disabled (PARCELTRACK_NATS_URL not set)")
		}

		// HTTP read API.
		httpServer := &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           srv.NewHTTPHandler(cfg.AuthToken),
			ReadHeaderTimeout: 10 * time.Second,
		}
		go func() {
			logger.Info("HTTP server listening", "addr", cfg.HTTPAddr)
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("HTTP server error", "err", err)
				stop()
			}
		}()

		// gRPC health endpoint.
		var grpcServer *grpc.Server
		if cfg.GRPCAddr != "" {
			lis, err := net.Listen("tcp", cfg.GRPCAddr)
			if err != nil {
				return err
			}
			grpcServer = srv.NewGRPCServer(cfg.AuthToken)
			go func() {
				logger.Info("gRPC server listening", "addr", cfg.GRPCAddr)
				if err := grpcServer.Serve(lis); err != nil {
					logger.Error("gRPC server error", "err", err)
				}
			}()
		}

		scheduler := newSyncScheduler(cfg, store, logger)
		if scheduler != nil {
			scheduler.Start()
			logger.Info("sync scheduler started", "interval", cfg.SyncInterval)
		}

		logger.Info("parceltrack server started",
			"http_addr", cfg.HTTPAddr,
			"grpc_addr", cfg.GRPCAddr,
			"subject", cfg.Subject,
			"jetstream", cfg.JetStream(),
		)

		<-ctx.Done()
		logger.Info("shutting down")

		srv.Shutdown()
		<-consumerDone
		logger.Info("consumer drained")

		if scheduler != nil {
			scheduler.Stop()
			logger.Info("sync scheduler stopped")
		}
		if grpcServer != nil {
			grpcServer.GracefulStop()
			logger.Info("gRPC server stopped")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", "err", err)
		}
		logger.Info("shutdown complete")
		return nil
	},
}

func newSubscriber(cfg *config.Config, logger *slog.Logger) (*events.NATSSubscriber, error) {
	sub, err := events.NewNATSSubscriber(cfg.NATSURL,
		nats.Name("parceltrack"),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", "err", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, err
	}
	if !cfg.JetStream() {
		logger.Warn("jetstream disabled, change feed delivery is at-most-once")
		return sub, nil
	}

	err = sub.EnableJetStream(events.JetStreamConfig{
		Stream:  cfg.Stream,
		Durable: cfg.Durable,
		AckWait: cfg.AckWait,
	})
	if err == nil {
		err = sub.EnsureStream(cfg.Subject)
	}
	if err != nil {
		sub.Close()
		return nil, err
	}
	logger.Info("change feed enabled", "nats_url", cfg.NATSURL, "stream", cfg.Stream, "durable", cfg.Durable)
	return sub, nil
}

// newSyncScheduler returns nil when syncing is disabled or no destination
// is configured.
func newSyncScheduler(cfg *config.Config, l ptsync.Lister, logger *slog.Logger) *ptsync.Scheduler {
	if cfg.SyncInterval <= 0 {
		return nil
	}

	var dests []ptsync.Destination
	if cfg.SyncS3Bucket != "" {
		d, err := ptsync.NewS3Destination(context.Background(), ptsync.S3Options{
			Bucket:   cfg.SyncS3Bucket,
			Key:      cfg.SyncS3Key,
			Region:   cfg.SyncS3Region,
			Endpoint: cfg.SyncS3Endpoint,
		})
		if err != nil {
			logger.Error("failed to create S3 sync destination", "err", err)
		} else {
			dests = append(dests, d)
			logger.Info("sync S3 destination enabled", "bucket", cfg.SyncS3Bucket, "key", cfg.SyncS3Key)
		}
	}
	if cfg.SyncGitRepo != "" {
		dests = append(dests, ptsync.NewGitDestination(cfg.SyncGitRepo, cfg.SyncGitFile, cfg.SyncGitBranch))
		logger.Info("sync git destination enabled", "repo", cfg.SyncGitRepo, "file", cfg.SyncGitFile)
	}

	if len(dests) == 0 {
		return nil
	}
	return ptsync.NewScheduler(l, dests, cfg.SyncInterval, logger)
}
