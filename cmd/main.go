package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stovelink"
	"stovelink/internal/discovery"
	"stovelink/internal/handlers"
	"stovelink/internal/logger"
	"stovelink/internal/repository"
	"stovelink/internal/repository/db"
	"stovelink/internal/server"
	"stovelink/internal/service"
	"stovelink/internal/stove"
	"stovelink/internal/worker"

	"github.com/google/uuid"
	"github.com/spf13/viper"
)

func main() {
	log := logger.Get(logLevel())

	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	database, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := database.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	repos := repository.NewRepository(database)

	w, err := buildWorker(log)
	if err != nil {
		log.Fatalw("failed to build stove worker", "err", err)
	}

	services := service.NewService(repos,
		w,
		viper.GetString("auth.signing_key"),
		viper.GetDuration("auth.token_ttl"),
	)
	apiHandler := handlers.NewHandler(services, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		w.Run(ctx)
	}()
	go recordEvents(ctx, w.Events(), repos.EventRepo, log)

	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	waitForShutdown(cancel, srv, workerDone, log)
}

func logLevel() string {
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		return lvl
	}
	return logger.InfoLevel
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "stovelink.db")
		dbPath = "stovelink.db"
	}
	return db.InitDB(dbPath)
}

// buildWorker assembles the discovery scanner, the device factory and the
// session worker from configuration.
func buildWorker(log *logger.Logger) (*worker.Worker, error) {
	loc := time.UTC
	if tz := viper.GetString("stove.timezone"); tz != "" {
		l, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("load stove timezone %q: %w", tz, err)
		}
		loc = l
	}

	factory := func(address string) (worker.Device, error) {
		return stove.NewNetFlame(stove.Config{
			BaseURL:    "http://" + address,
			CGIPath:    viper.GetString("stove.cgi_path"),
			Timeout:    viper.GetDuration("stove.timeout"),
			Retries:    viper.GetInt("stove.retries"),
			RetryDelay: viper.GetDuration("stove.retry_delay"),
			AuthMode:   stove.AuthMode(viper.GetString("stove.auth_mode")),
			Username:   viper.GetString("stove.username"),
			Password:   viper.GetString("stove.password"),
		}, loc)
	}

	scanner := discovery.NewNmapScanner()
	if path := viper.GetString("stove.nmap_path"); path != "" {
		scanner.NmapPath = path
	}

	return worker.New(worker.Config{
		SubnetCIDR:        viper.GetString("stove.subnet_cidr"),
		MAC:               viper.GetString("stove.mac"),
		DiscoveryInterval: viper.GetDuration("stove.discovery_interval"),
		PollInterval:      viper.GetDuration("stove.poll_interval"),
	}, scanner, factory, log)
}

// recordEvents persists session lifecycle events from the worker so they
// show up in the log query API alongside queued commands.
func recordEvents(ctx context.Context, events <-chan worker.Event, repo repository.EventRepo, log *logger.Logger) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			rec, keep := toStoveEvent(ev)
			if !keep {
				continue
			}
			if err := repo.Append(ctx, rec); err != nil {
				log.Errorw("failed to persist stove event", "type", rec.Type, "err", err)
			}
		}
	}
}

// toStoveEvent maps worker events onto persisted log records. Snapshot
// events are high-frequency telemetry and are not stored.
func toStoveEvent(ev worker.Event) (stovelink.StoveEvent, bool) {
	base := stovelink.StoveEvent{
		EventID:    uuid.NewString(),
		OccurredAt: ev.At.UTC(),
	}
	switch ev.Kind {
	case worker.EventConnected:
		base.Type = "CONNECTED"
		base.Description = "stove session established"
		base.Metadata = json.RawMessage(fmt.Sprintf(`{"address":%q}`, ev.Address))
	case worker.EventDisconnected:
		base.Type = "DISCONNECTED"
		base.Description = "stove session lost"
		base.Metadata = json.RawMessage(fmt.Sprintf(`{"reason":%q}`, ev.Reason))
	case worker.EventLog:
		base.Type = "ERROR"
		base.Description = ev.Message
	default:
		return stovelink.StoveEvent{}, false
	}
	return base, true
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, workerDone <-chan struct{}, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down...")

	// stop the worker and the event recorder
	cancel()
	select {
	case <-workerDone:
	case <-time.After(5 * time.Second):
		log.Warnw("stove worker did not stop in time")
	}

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
