// Command api serves the collection lifecycle, sample ingest, live snapshot
// stream and saved sessions over HTTP.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"backend-mtbtrainer/internal/config"
	"backend-mtbtrainer/internal/db"
	"backend-mtbtrainer/internal/server"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

const shutdownTimeout = 5 * time.Second

var mainDepsProvider = defaultDeps
var mainRunner = realMain
var newServer = server.NewServer

func main() {
	mainRunner(mainDepsProvider())
}

type mainDeps struct {
	loadConfig      func() config.Config
	connectPostgres func(config.Config) (*pgxpool.Pool, error)
	connectRedis    func(config.Config) *redis.Client
	notify          func(chan<- os.Signal, ...os.Signal)
	run             func(context.Context, config.Config, *pgxpool.Pool, *redis.Client, <-chan os.Signal, ListenFunc) error
}

func defaultDeps() mainDeps {
	return mainDeps{
		loadConfig:      config.Load,
		connectPostgres: db.ConnectPostgres,
		connectRedis:    db.ConnectRedis,
		notify:          signal.Notify,
		run:             Run,
	}
}

// realMain degrades instead of failing: without Postgres the sessions API
// is off, without redis snapshots are only delivered locally.
func realMain(deps mainDeps) {
	cfg := deps.loadConfig()

	pg, err := deps.connectPostgres(cfg)
	switch {
	case err != nil:
		log.Printf("postgres connection failed, sessions api disabled: %v", err)
	case pg == nil:
		log.Printf("postgres not configured, sessions api disabled")
	}

	rdb := deps.connectRedis(cfg)
	if cfg.MQTTBroker != "" {
		log.Printf("mqtt source enabled: %s %s", cfg.MQTTBroker, cfg.MQTTTopic)
	}

	signals := make(chan os.Signal, 1)
	deps.notify(signals, syscall.SIGINT, syscall.SIGTERM)

	if err := deps.run(context.Background(), cfg, pg, rdb, signals, nil); err != nil {
		log.Printf("server exited with error: %v", err)
	}
}

type ListenFunc func(app *fiber.App, addr string) error

var defaultListen ListenFunc = func(app *fiber.App, addr string) error {
	return app.Listen(addr)
}

var shutdownFn = func(app *fiber.App, ctx context.Context) error {
	return app.ShutdownWithContext(ctx)
}

// Run starts the HTTP server and the session persister and waits for
// termination signals. An active session is stopped and persisted before
// Run returns.
func Run(ctx context.Context, cfg config.Config, pg *pgxpool.Pool, rdb *redis.Client, signals <-chan os.Signal, listen ListenFunc) error {
	srv := newServer(cfg, pg, rdb)
	if listen == nil {
		listen = defaultListen
	}

	persistCtx, stopPersist := context.WithCancel(context.Background())
	persisted := make(chan struct{})
	go func() {
		defer close(persisted)
		srv.Persist(persistCtx)
	}()
	defer func() {
		stopPersist()
		<-persisted
	}()

	errCh := make(chan error, 1)
	go func() {
		errCh <- listen(srv.App, cfg.ServerPort)
	}()

	select {
	case sig := <-signals:
		log.Printf("received %v, shutting down", sig)
	case <-ctx.Done():
	case err := <-errCh:
		if err != nil {
			return err
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	// no new ingest or lifecycle requests past this point
	if err := shutdownFn(srv.App, shutdownCtx); err != nil {
		return err
	}

	if srv.Controller.Stop() {
		log.Printf("stopped the active session on shutdown")
	}
	stopPersist()
	<-persisted
	srv.Flush(shutdownCtx)
	_ = srv.Stream.Close()

	if pg != nil {
		pg.Close()
	}
	if rdb != nil {
		_ = rdb.Close()
	}
	return nil
}
