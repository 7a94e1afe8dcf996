// Horn node - networked horn actuator
//
// The node brings its network link up, joins the vehicle messaging bus,
// listens for horn commands on a single topic, drives the horn output and
// echoes the resulting state back on the same topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nerrad567/horn-node/internal/actuator"
	"github.com/nerrad567/horn-node/internal/api"
	"github.com/nerrad567/horn-node/internal/audit"
	"github.com/nerrad567/horn-node/internal/bridges/horn"
	"github.com/nerrad567/horn-node/internal/infrastructure/config"
	"github.com/nerrad567/horn-node/internal/infrastructure/database"
	"github.com/nerrad567/horn-node/internal/infrastructure/influxdb"
	"github.com/nerrad567/horn-node/internal/infrastructure/logging"
	"github.com/nerrad567/horn-node/internal/link"
	"github.com/nerrad567/horn-node/internal/process"
	"github.com/nerrad567/horn-node/internal/session"
	"github.com/nerrad567/horn-node/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "configs/config.yaml"

// Supplicant restart backoff.
const (
	supplicantRestartDelay    = 2 * time.Second
	supplicantMaxRestartDelay = 30 * time.Second
)

// ErrLinkDown is returned when the link cannot be brought up.
var ErrLinkDown = errors.New("link bring-up failed")

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the node and blocks until ctx is cancelled. Teardown runs in
// reverse order through defers.
func run(ctx context.Context) error { //nolint:gocognit,gocyclo // startup sequence: each optional component adds a branch
	log := logging.Default()
	log.Info("starting horn node",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version).With("node_id", cfg.Node.ID)
	log.Info("configuration loaded", "path", configPath)

	// Actuator first so the output is in a known state before any command.
	driver, err := actuator.Open(cfg.Actuator, log.Component("actuator"))
	if err != nil {
		return fmt.Errorf("opening actuator: %w", err)
	}
	defer func() {
		if closeErr := driver.Close(); closeErr != nil {
			log.Error("error closing actuator", "error", closeErr)
		}
	}()

	var auditRepo *audit.SQLiteRepository
	if cfg.Database.Enabled {
		db, dbErr := database.Open(ctx, database.ConfigFrom(cfg.Database))
		if dbErr != nil {
			return fmt.Errorf("opening database: %w", dbErr)
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		if migrateErr := db.Migrate(ctx, migrations.FS); migrateErr != nil {
			return fmt.Errorf("running migrations: %w", migrateErr)
		}
		auditRepo = audit.NewSQLiteRepository(db.DB)
		log.Info("actuation log ready", "path", db.Path())
	}

	var influxClient *influxdb.Client
	if cfg.InfluxDB.Enabled {
		influxClient, err = influxdb.Connect(ctx, cfg.InfluxDB)
		if err != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		influxClient.SetOnError(func(err error) {
			log.Error("InfluxDB write error", "error", err)
		})
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)
	}

	linkLog := log.Component("link")
	station, closeStation := newStation(cfg.Link, linkLog)
	defer func() {
		if closeErr := closeStation(); closeErr != nil {
			linkLog.Warn("error closing station", "error", closeErr)
		}
	}()

	manager, err := bringUpLink(ctx, cfg, station, influxClient, linkLog)
	if err != nil {
		if ctx.Err() != nil {
			log.Info("shutdown requested during link bring-up")
			return nil
		}
		return err
	}

	mode, err := session.ParseMode(cfg.Bus.Mode)
	if err != nil {
		return fmt.Errorf("bus mode: %w", err)
	}
	sessionLog := log.Component("session")
	sessCfg := session.BuildConfig(mode, cfg.Bus.Connect, sessionLog)

	sess, err := session.Open(ctx, sessCfg, session.Deps{Bus: cfg.Bus, Logger: sessionLog})
	if err != nil {
		return fmt.Errorf("opening session: %w", err)
	}
	defer func() {
		log.Info("closing session")
		if closeErr := sess.Close(); closeErr != nil {
			log.Error("error closing session", "error", closeErr)
		}
	}()

	var hub *api.Hub
	if cfg.API.Enabled {
		hub = api.NewHub(log.Component("api"))
	}

	opts := horn.BridgeOptions{
		Session:        sess,
		Topic:          cfg.Bus.Topic,
		Driver:         driver,
		NodeID:         cfg.Node.ID,
		PublishTimeout: cfg.GetPublishTimeout(),
		Logger:         log.Component("horn"),
	}
	if auditRepo != nil {
		opts.Recorder = &auditRecorder{repo: auditRepo}
	}
	if influxClient != nil {
		opts.Telemetry = influxClient
	}
	if hub != nil {
		opts.Events = hub
	}

	bridge, err := horn.NewBridge(opts)
	if err != nil {
		return fmt.Errorf("creating horn bridge: %w", err)
	}
	if err := bridge.Start(ctx); err != nil {
		return fmt.Errorf("starting horn bridge: %w", err)
	}
	defer func() {
		log.Info("stopping horn bridge")
		bridge.Stop()
	}()

	healthCfg := horn.HealthReporterConfig{
		NodeID:   cfg.Node.ID,
		Version:  version,
		Interval: cfg.GetHealthInterval(),
		Bridge:   bridge,
		Link:     manager,
	}
	if influxClient != nil {
		healthCfg.Sink = influxClient
	}
	if hc, ok := sess.(session.HealthChecker); ok {
		healthCfg.Bus = hc
	}
	reporter := horn.NewHealthReporter(healthCfg)
	reporter.SetLogger(log.Component("health"))
	reporter.Start(ctx)
	defer reporter.Stop()

	if cfg.API.Enabled {
		deps := api.Deps{
			Config:  cfg.API,
			Logger:  log.Component("api"),
			Version: version,
			Status:  reporter,
			Hub:     hub,
		}
		if auditRepo != nil {
			deps.Audit = auditRepo
		}
		srv, srvErr := api.New(deps)
		if srvErr != nil {
			return fmt.Errorf("creating API server: %w", srvErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error closing API server", "error", closeErr)
			}
		}()
	}

	log.Info("horn node ready", "topic", cfg.Bus.Topic, "transport", cfg.Bus.Transport)

	<-ctx.Done()

	log.Info("shutdown signal received, cleaning up")
	return nil
}

// getConfigPath returns HORNNODE_CONFIG if set, otherwise the default.
func getConfigPath() string {
	if path := os.Getenv("HORNNODE_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}

// bringUpLink blocks until the link is connected, failed or timed out.
// influxClient may be nil.
func bringUpLink(ctx context.Context, cfg *config.Config, station link.Station, influxClient *influxdb.Client, linkLog *logging.Logger) (*link.Manager, error) {
	policy, err := link.ParseRetryPolicy(cfg.Link.RetryPolicy)
	if err != nil {
		return nil, err
	}

	manager := link.NewManager(station, link.Options{
		MaxRetry: cfg.Link.MaxRetry,
		Policy:   policy,
		Logger:   linkLog,
		OnStateChange: func(from, to link.ConnectionState) {
			linkLog.Debug("link state changed", "from", from.String(), "to", to.String())
		},
	})

	start := time.Now()
	result := manager.Establish(ctx, cfg.GetLinkTimeout())
	elapsed := time.Since(start)

	if influxClient != nil {
		influxClient.WriteLinkResult(cfg.Node.ID, result.String(), manager.Attempts(), manager.Retries(), elapsed)
	}

	if result != link.ResultConnected {
		return nil, fmt.Errorf("%w: %s after %d attempts", ErrLinkDown, result, manager.Attempts())
	}
	linkLog.Info("link up",
		"address", manager.Address(),
		"attempts", manager.Attempts(),
		"elapsed", elapsed.Round(time.Millisecond),
	)
	return manager, nil
}

// newStation builds the configured station and its teardown. The netif
// teardown stops the supplicant.
func newStation(cfg config.LinkConfig, log *logging.Logger) (link.Station, func() error) {
	if cfg.Station != "netif" {
		return link.NewPresetStation("preset"), func() error { return nil }
	}

	opts := link.NetifOptions{
		Interface:      cfg.Interface,
		AttemptTimeout: time.Duration(cfg.AttemptTimeout) * time.Second,
		SSID:           cfg.SSID,
		Password:       cfg.Password,
		Logger:         log,
	}
	if cfg.Supplicant.Enabled {
		sup := process.NewSupervisor(process.Config{
			Name:             "supplicant",
			Binary:           cfg.Supplicant.Binary,
			Args:             cfg.Supplicant.Args,
			RestartOnFailure: true,
			RestartDelay:     supplicantRestartDelay,
			MaxRestartDelay:  supplicantMaxRestartDelay,
		})
		sup.SetLogger(log.Component("supplicant"))
		opts.Supplicant = sup
		opts.SupplicantConfigPath = cfg.Supplicant.ConfigPath
	}

	station := link.NewNetifStation(opts)
	return station, station.Close
}

// auditRecorder adapts the actuation log repository to horn.ActuationRecorder.
type auditRecorder struct {
	repo audit.Repository
}

// RecordActuation implements horn.ActuationRecorder.
func (a *auditRecorder) RecordActuation(ctx context.Context, ev horn.Event) error {
	return a.repo.Create(ctx, &audit.Entry{
		NodeID:    ev.NodeID,
		Topic:     ev.Topic,
		Verdict:   ev.Verdict,
		On:        ev.On,
		Actuated:  ev.Actuated,
		Published: ev.Published,
		Error:     ev.Error,
		CreatedAt: ev.Timestamp,
	})
}
