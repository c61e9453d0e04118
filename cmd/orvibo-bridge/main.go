// Orvibo bridge exposes an Orvibo-style UDP smart plug controller as an
// on/off accessory.
//
// The bridge listens for status lines on a UDP port, probes the device
// when its state is unknown and forwards local changes back over UDP.
// The accessory is published on MQTT with Home Assistant discovery, and
// state changes can be recorded to SQLite and InfluxDB.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/netip"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rhx/orvibo-udp-hap/internal/accessory"
	"github.com/rhx/orvibo-udp-hap/internal/api"
	"github.com/rhx/orvibo-udp-hap/internal/bridges/orvibo"
	"github.com/rhx/orvibo-udp-hap/internal/discovery"
	"github.com/rhx/orvibo-udp-hap/internal/history"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/config"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/database"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/influxdb"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/logging"
	"github.com/rhx/orvibo-udp-hap/internal/infrastructure/mqtt"
	"github.com/rhx/orvibo-udp-hap/internal/udp"
	"github.com/rhx/orvibo-udp-hap/migrations"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const (
	defaultConfigPath = "configs/config.yaml"
	configEnv         = "ORVIBO_BRIDGE_CONFIG"

	resolveTimeout = 5 * time.Second
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// run wires the bridge together and serves it until ctx is cancelled.
//
// Parameters:
//   - ctx: Context for cancellation and shutdown signals
//
// Returns:
//   - error: nil on clean shutdown, or error describing failure
func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting orvibo bridge",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log.Info("configuration loaded", "path", configPath)

	log = logging.New(cfg.Logging, version)
	log.Info("logger initialised",
		"level", cfg.Logging.Level,
		"format", cfg.Logging.Format,
	)
	defer log.Info("Exiting.")
	log.Debug("effective configuration", "config", cfg.Redacted())

	kind, err := accessory.ParseKind(cfg.Bridge.Kind)
	if err != nil {
		return fmt.Errorf("bridge kind: %w", err)
	}
	info := accessory.Info{
		Name:             cfg.Bridge.Name,
		Manufacturer:     cfg.Bridge.Manufacturer,
		Model:            cfg.Bridge.Model,
		SerialNumber:     cfg.Bridge.Serial,
		FirmwareRevision: cfg.Bridge.Firmware,
	}
	acc := accessory.New(kind, info)

	host, err := resolveHost(ctx, cfg.UDP.Host)
	if err != nil {
		return fmt.Errorf("resolving udp.host: %w", err)
	}

	checks := make(map[string]api.HealthChecker)
	var (
		observers []orvibo.Observer
		hub       *api.Hub
	)
	if cfg.API.Enabled {
		hub = api.NewHub(log)
		observers = append(observers, hub)
	}

	// Status history (optional)
	var repo history.Repository
	if cfg.Database.Enabled {
		db, dbErr := openDatabase(ctx, cfg.Database)
		if dbErr != nil {
			return dbErr
		}
		defer func() {
			log.Info("closing database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing database", "error", closeErr)
			}
		}()
		log.Info("database connected", "path", cfg.Database.Path)

		sqliteRepo := history.NewSQLiteRepository(db.DB)
		repo = sqliteRepo
		pruneHistory(ctx, log, sqliteRepo, cfg.Database.RetentionDays)

		observers = append(observers, orvibo.HistoryObserver(repo, log))
		checks["database"] = db
	}

	// MQTT (optional)
	var (
		mqttClient *mqtt.Client
		topics     = mqtt.NewTopics(cfg.MQTT.TopicPrefix, cfg.MQTT.DiscoveryPrefix)
	)
	if cfg.MQTT.Enabled {
		mqttClient, err = mqtt.Connect(cfg.MQTT, topics.Availability(cfg.Bridge.ID))
		if err != nil {
			return fmt.Errorf("connecting to MQTT: %w", err)
		}
		defer func() {
			log.Info("disconnecting from MQTT")
			if closeErr := mqttClient.Close(); closeErr != nil {
				log.Error("error closing MQTT", "error", closeErr)
			}
		}()
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)

		mqttClient.SetLogger(log)
		mqttClient.SetOnConnect(func() {
			log.Info("MQTT reconnected")
		})
		mqttClient.SetOnDisconnect(func(err error) {
			log.Warn("MQTT disconnected", "error", err)
		})

		exposer := orvibo.NewExposer(orvibo.ExposerConfig{
			BridgeID:  cfg.Bridge.ID,
			Kind:      kind,
			Info:      info,
			Topics:    topics,
			QoS:       byte(cfg.MQTT.QoS),
			Client:    mqttClient,
			Accessory: acc,
			Logger:    log,
		})
		if startErr := exposer.Start(); startErr != nil {
			return fmt.Errorf("exposing accessory: %w", startErr)
		}
		observers = append(observers, exposer)
		checks["mqtt"] = mqttClient
	}

	// InfluxDB (optional)
	if cfg.InfluxDB.Enabled {
		influxClient, influxErr := influxdb.Connect(ctx, cfg.InfluxDB)
		if influxErr != nil {
			return fmt.Errorf("connecting to InfluxDB: %w", influxErr)
		}
		defer func() {
			log.Info("closing InfluxDB connection")
			if closeErr := influxClient.Close(); closeErr != nil {
				log.Error("error closing InfluxDB", "error", closeErr)
			}
		}()
		log.Info("InfluxDB connected", "url", cfg.InfluxDB.URL, "bucket", cfg.InfluxDB.Bucket)

		influxClient.SetOnError(func(err error) {
			log.Warn("InfluxDB write error", "error", err)
		})
		observers = append(observers, orvibo.TelemetryObserver(influxClient))
		checks["influxdb"] = influxClient
	}

	// UDP transport
	rx, err := udp.Open(ctx, udp.SocketConfig{
		BindAddress:  cfg.UDP.ListenAddress,
		Port:         cfg.UDP.ListenPort,
		ReuseAddress: cfg.UDP.ReuseAddress,
	})
	if err != nil {
		return fmt.Errorf("opening receive socket: %w", err)
	}
	defer rx.Close() //nolint:errcheck // closed by the watch on shutdown

	tx, err := udp.Open(ctx, udp.SocketConfig{
		Port:      cfg.UDP.TransmitPort,
		Broadcast: cfg.UDP.Broadcast,
	})
	if err != nil {
		return fmt.Errorf("opening transmit socket: %w", err)
	}
	defer tx.Close() //nolint:errcheck // best-effort during shutdown

	log.Info("UDP sockets ready",
		"listen", rx.LocalAddr().String(),
		"device", fmt.Sprintf("%s:%d", host, cfg.UDP.TransmitPort),
	)

	// mDNS advertisement (optional)
	if cfg.Discovery.Enabled {
		advertiser := discovery.NewAdvertiser(discovery.Config{
			Instance: cfg.Bridge.Name,
			Service:  cfg.Discovery.Service,
			Domain:   cfg.Discovery.Domain,
			Port:     rx.Port(),
			Text: map[string]string{
				"id":     cfg.Bridge.ID,
				"kind":   string(kind),
				"status": accessory.StatusUnknown.String(),
			},
		})
		if advErr := advertiser.Advertise(); advErr != nil {
			log.Warn("mDNS advertisement failed", "error", advErr)
		} else {
			defer advertiser.Stop()
			observers = append(observers, advertiserObserver(advertiser, log))
			log.Info("advertising on mDNS", "service", cfg.Discovery.Service, "port", rx.Port())
		}
	}

	bridge, err := orvibo.NewBridge(orvibo.Options{
		ID:             cfg.Bridge.ID,
		Accessory:      acc,
		Receiver:       orvibo.FromWatch(udp.WatchLines(rx, cfg.UDP.DatagramSize)),
		Sender:         tx,
		Host:           host,
		Port:           cfg.UDP.TransmitPort,
		TickInterval:   cfg.TickInterval(),
		ThresholdTicks: cfg.Probe.ThresholdTicks,
		RecoveryDelay:  cfg.RecoveryDelay(),
		Observers:      observers,
		Logger:         log,
	})
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	if mqttClient != nil {
		// One full query cycle without a line means the plug is gone.
		stale := time.Duration(cfg.Probe.ThresholdTicks)*cfg.TickInterval() + cfg.RecoveryDelay()
		health := orvibo.NewHealthReporter(orvibo.HealthReporterConfig{
			BridgeID:   cfg.Bridge.ID,
			Version:    version,
			Topic:      topics.Health(cfg.Bridge.ID),
			Interval:   cfg.HealthInterval(),
			StaleAfter: stale,
			Publisher:  mqttClient,
			Source:     bridge,
			Logger:     log,
		})
		health.Start(ctx)
		defer health.Stop()
	}

	// HTTP API (optional)
	if cfg.API.Enabled {
		srv, apiErr := api.New(api.Deps{
			Config:    cfg.API,
			Logger:    log,
			BridgeID:  cfg.Bridge.ID,
			Bridge:    bridge,
			Accessory: acc,
			History:   repo,
			Checks:    checks,
			Version:   version,
			Hub:       hub,
		})
		if apiErr != nil {
			return fmt.Errorf("creating API server: %w", apiErr)
		}
		if startErr := srv.Start(ctx); startErr != nil {
			return fmt.Errorf("starting API server: %w", startErr)
		}
		defer func() {
			log.Info("stopping API server")
			if closeErr := srv.Close(); closeErr != nil {
				log.Error("error stopping API server", "error", closeErr)
			}
		}()
		log.Info("API server listening", "address", srv.Addr())
	}

	log.Info("orvibo bridge started", "bridge_id", cfg.Bridge.ID)

	exited := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			log.Info("Caught signal -- stopping!")
			bridge.Stop()
		case <-exited:
		}
	}()

	runErr := bridge.Run(ctx)
	close(exited)
	if runErr != nil {
		return fmt.Errorf("running bridge: %w", runErr)
	}
	return nil
}

// getConfigPath returns the configuration file path.
// ORVIBO_BRIDGE_CONFIG wins; otherwise the default path is used when the
// file exists, and built-in defaults apply when it does not.
func getConfigPath() string {
	if path := os.Getenv(configEnv); path != "" {
		return path
	}
	if _, err := os.Stat(defaultConfigPath); err == nil {
		return defaultConfigPath
	}
	return ""
}

// resolveHost turns the configured device host into a numeric address.
// Names are looked up once at startup.
func resolveHost(ctx context.Context, host string) (string, error) {
	if addr, err := netip.ParseAddr(host); err == nil {
		return addr.String(), nil
	}

	ctx, cancel := context.WithTimeout(ctx, resolveTimeout)
	defer cancel()

	addrs, err := net.DefaultResolver.LookupNetIP(ctx, "ip", host)
	if err != nil {
		return "", err
	}
	for _, addr := range addrs {
		if addr.Unmap().Is4() {
			return addr.Unmap().String(), nil
		}
	}
	if len(addrs) == 0 {
		return "", fmt.Errorf("no addresses for %q", host)
	}
	return addrs[0].String(), nil
}

func openDatabase(ctx context.Context, cfg config.DatabaseConfig) (*database.DB, error) {
	db, err := database.Open(ctx, database.Config{
		Path:        cfg.Path,
		WALMode:     cfg.WALMode,
		BusyTimeout: cfg.BusyTimeout,
	})
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Migrate(ctx, migrations.Files); err != nil {
		db.Close() //nolint:errcheck // already failing
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return db, nil
}

// pruneHistory drops entries older than the retention period. A failure
// is logged and startup continues.
func pruneHistory(ctx context.Context, log *logging.Logger, repo history.Repository, days int) {
	if days <= 0 {
		return
	}
	n, err := repo.Prune(ctx, time.Duration(days)*24*time.Hour)
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Warn("pruning status history failed", "error", err)
		return
	}
	if n > 0 {
		log.Info("pruned status history", "entries", n, "retention_days", days)
	}
}

// advertiserObserver keeps the TXT status record in step with the device.
func advertiserObserver(a *discovery.Advertiser, log *logging.Logger) orvibo.Observer {
	return orvibo.ObserverFunc(func(_ context.Context, ev orvibo.Event) {
		if ev.Kind != orvibo.EventStatus {
			return
		}
		if err := a.SetText("status", ev.Status.String()); err != nil {
			log.Debug("updating mDNS status failed", "error", err)
		}
	})
}
