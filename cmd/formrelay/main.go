package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/synaptica-ai/formrelay/pkg/common/config"
	"github.com/synaptica-ai/formrelay/pkg/common/database"
	"github.com/synaptica-ai/formrelay/pkg/common/kafka"
	"github.com/synaptica-ai/formrelay/pkg/common/logger"
	"github.com/synaptica-ai/formrelay/pkg/ingestion"
	"github.com/synaptica-ai/formrelay/pkg/relay"
	"github.com/synaptica-ai/formrelay/pkg/storage"
	"github.com/synaptica-ai/formrelay/pkg/web"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logger.Init()
	cfg, err := config.Load()
	if err != nil {
		logger.Log.WithError(err).Fatal("invalid configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, closeSinks := setupSinks(ctx, cfg)
	defer closeSinks()

	if err := run(ctx, cfg, sinks); err != nil {
		logger.Log.WithError(err).Error("formrelay exited with error")
		closeSinks()
		os.Exit(1)
	}
	logger.Log.Info("formrelay stopped")
}

// run starts the Web Service and the Ingestion Service and blocks until ctx
// is cancelled or either of them fails.
func run(ctx context.Context, cfg *config.Config, sinks []ingestion.Sink) error {
	store := storage.NewRecordStore(cfg.StoragePath)
	ingest := ingestion.NewService(cfg.SocketAddr(), cfg.BufferSize, store, ingestion.WithSinks(sinks...))
	if err := ingest.Listen(); err != nil {
		return err
	}

	sender := relay.NewClient(cfg.SocketAddr())
	defer sender.Close()

	handler := web.NewHTTPHandler(cfg.DocumentRoot, sender, cfg.MaxRequestBody)
	server := &http.Server{
		Addr:         cfg.HTTPAddr(),
		Handler:      web.NewRouter(handler),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  120 * time.Second,
	}
	ln, err := net.Listen("tcp", server.Addr)
	if err != nil {
		ingest.Close()
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return ingest.Serve(gctx)
	})

	g.Go(func() error {
		logger.WithFields(map[string]interface{}{
			"addr":          ln.Addr().String(),
			"document_root": cfg.DocumentRoot,
		}).Info("Web Service started")

		if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Log.Info("Shutting down Web Service...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Log.WithError(err).Error("server forced to shutdown")
			return server.Close()
		}
		return nil
	})

	return g.Wait()
}

// setupSinks connects the optional record sinks that are configured. A sink
// that cannot be reached at startup is skipped with a warning.
func setupSinks(ctx context.Context, cfg *config.Config) ([]ingestion.Sink, func()) {
	var sinks []ingestion.Sink
	var closers []func() error

	if cfg.KafkaTopic != "" {
		producer := kafka.NewProducer(cfg.KafkaBrokers, cfg.KafkaTopic)
		closers = append(closers, producer.Close)
		sinks = append(sinks, ingestion.NewKafkaSink(producer))
		logger.WithField("topic", cfg.KafkaTopic).Info("Kafka sink enabled")
	}

	if cfg.RedisAddr != "" {
		client, err := database.NewRedis(ctx, cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("Redis sink disabled")
		} else {
			closers = append(closers, client.Close)
			sinks = append(sinks, ingestion.NewRecentSink(storage.NewRecentList(client, cfg.RedisRecentKey, cfg.RedisRecentLimit)))
			logger.WithField("key", cfg.RedisRecentKey).Info("Redis sink enabled")
		}
	}

	if cfg.PostgresDSN != "" {
		db, err := database.NewPostgres(cfg)
		if err != nil {
			logger.Log.WithError(err).Warn("PostgreSQL sink disabled")
		} else {
			archive := storage.NewArchive(db)
			if err := archive.AutoMigrate(); err != nil {
				logger.Log.WithError(err).Warn("PostgreSQL sink disabled, migration failed")
				_ = database.ClosePostgres(db)
			} else {
				closers = append(closers, func() error { return database.ClosePostgres(db) })
				sinks = append(sinks, ingestion.NewArchiveSink(archive))
				logger.Log.Info("PostgreSQL sink enabled")
			}
		}
	}

	closed := false
	return sinks, func() {
		if closed {
			return
		}
		closed = true
		for _, c := range closers {
			if err := c(); err != nil {
				logger.Log.WithError(err).Warn("failed to close sink")
			}
		}
	}
}
