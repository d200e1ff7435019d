package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nastyaeremenko/yatube/internal/config"
	"github.com/nastyaeremenko/yatube/internal/db"
	"github.com/nastyaeremenko/yatube/internal/logging"
	"github.com/nastyaeremenko/yatube/internal/monitoring"
	"github.com/nastyaeremenko/yatube/internal/server"
	"github.com/nastyaeremenko/yatube/internal/storage"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	log "github.com/sirupsen/logrus"
)

var mainDepsProvider = defaultDeps
var mainRunner = realMain

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	migrate         func(context.Context, db.Executor) error
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		migrate:         db.Migrate,
		notify:          signal.Notify,
		run:             Run,
	}
}

func realMain(deps mainDeps) {
	cfg := deps.loadConfig()
	logging.Setup(cfg.LogLevel)

	pg, err := deps.connectPostgres(cfg)
	if err != nil {
		log.WithError(err).Error("postgres connection failed")
	}
	if pg != nil {
		if err := deps.migrate(context.Background(), pg); err != nil {
			log.WithError(err).Error("schema migration failed")
		}
	}

	rdb := deps.connectRedis(cfg)

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.WithError(err).Error("server exited with error")
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and waits for termination signals.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	var database db.Querier
	if pg != nil {
		database = pg
	}

	opts, writer := serverOptions(ctx, cfg)
	srv := server.NewServer(cfg, database, rdb, opts...)

	if listen == nil {
		listen = defaultListen
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case <-signals:
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}
	if err := srv.Close(); err != nil {
		log.WithError(err).Warn("stream hub close failed")
	}
	if writer != nil {
		if err := writer.Close(); err != nil {
			log.WithError(err).Warn("kafka writer close failed")
		}
	}
	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}

// serverOptions picks S3 for media when a bucket is configured and ships
// request logs when brokers are set. The returned writer must be closed.
func serverOptions(ctx context.Context, cfg config.Config) ([]server.Option, *kafka.Writer) {
	var opts []server.Option

	if cfg.AWSBucket != "" {
		store, err := storage.NewS3(ctx, cfg.AWSBucket, cfg.AWSRegion, cfg.AWSAccessKeyID, cfg.AWSSecretAccessKey)
		if err != nil {
			log.WithError(err).Warn("s3 unavailable, storing media on disk")
		} else {
			opts = append(opts, server.WithMedia(store))
		}
	}

	var writer *kafka.Writer
	if brokers := cfg.Brokers(); len(brokers) > 0 {
		writer = monitoring.NewKafkaWriter(brokers, cfg.KafkaTopic)
		opts = append(opts, server.WithRequestLog(writer))
	}
	return opts, writer
}
