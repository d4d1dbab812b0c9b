// Hearo Core - audio companion device daemons
//
// hearod runs the full daemon fleet in one process: the central
// orchestrator plus the button, NFC, Wi-Fi, player, power and LED
// daemons, each on its own unix-datagram endpoint and goroutine. The
// processes cooperate purely over the local event bus, so individual
// daemons can also be split out and supervised separately without
// code changes.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/hearo-audio/hearo-core/internal/bridge"
	"github.com/hearo-audio/hearo-core/internal/buttons"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/database"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/influxdb"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/mqtt"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/led"
	"github.com/hearo-audio/hearo-core/internal/nfc"
	"github.com/hearo-audio/hearo-core/internal/orchestrator"
	"github.com/hearo-audio/hearo-core/internal/peer"
	"github.com/hearo-audio/hearo-core/internal/player"
	"github.com/hearo-audio/hearo-core/internal/power"
	"github.com/hearo-audio/hearo-core/internal/wifi"
)

// Version information - set at build time via ldflags
// Example: go build -ldflags "-X main.version=1.0.0 -X main.commit=abc123"
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

const defaultConfigPath = "/etc/hearo/config.yaml"

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// daemon is what every fleet member exposes beyond the peer loop:
// lifecycle events on the bus.
type daemon interface {
	peer.Handler
	Start(now time.Time)
	Stop(reason string)
}

// unit is one running daemon and what shutdown needs from it.
type unit struct {
	name string
	d    daemon
	ep   *ipc.Endpoint
}

func run(ctx context.Context) error {
	log := logging.Default()
	log.Info("starting hearo core",
		"version", version,
		"commit", commit,
		"build_date", date,
	)

	configPath := getConfigPath()
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	log = logging.New(cfg.Logging, version)
	log.Info("configuration loaded", "path", configPath, "dev_stubs", cfg.DevStubs)

	eventsPath := cfg.IPC.EndpointPath(cfg.IPC.Endpoints.Events)

	var wg sync.WaitGroup
	var units []unit

	// start binds the daemon's endpoint, announces it on the bus and
	// runs its loop until ctx is cancelled. tick bounds the receive
	// wait, which is also the daemon's FSM tick period.
	start := func(name, socket string, tick time.Duration, d daemon) error {
		ep, err := ipc.Bind(cfg.IPC.EndpointPath(socket),
			ipc.WithReceiveWait(tick),
			ipc.WithLogger(log.With("daemon", name)))
		if err != nil {
			return fmt.Errorf("binding %s endpoint: %w", name, err)
		}
		d.Start(time.Now())
		units = append(units, unit{name: name, d: d, ep: ep})

		loop := peer.NewLoop(name, ep, d, log.With("daemon", name))
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = loop.Run(ctx)
		}()
		log.Info("daemon started", "daemon", name, "socket", ep.Path())
		return nil
	}

	// Orchestrator first: it owns the events endpoint, and every other
	// daemon announces itself there on startup.
	hcsm := orchestrator.New(orchestrator.Options{
		PlayerSocket: cfg.IPC.EndpointPath(cfg.IPC.Endpoints.Player),
		WiFiSocket:   cfg.IPC.EndpointPath(cfg.IPC.Endpoints.WiFi),
		Mirrors:      mirrorTargets(cfg),
		SeekDeltaMS:  cfg.Player.SeekDeltaMS,
	}, ipc.NewPublisher(ipc.OriginOrchestrator, eventsPath, log), log.With("daemon", "hcsm"))
	if err := start("hcsm", cfg.IPC.Endpoints.Events, cfg.IPC.ReceiveWait(), hcsm); err != nil {
		return err
	}

	// Bridge next, so it sees the daemon startup events the
	// orchestrator mirrors to it.
	if cfg.Bridge.Enabled {
		sink, tel, closeBackends, err := connectBridgeBackends(cfg.Bridge, log)
		if err != nil {
			return err
		}
		defer closeBackends()
		br := bridge.New(sink, tel, log.With("daemon", "bridge"))
		if err := start("bridge", cfg.IPC.Endpoints.Bridge, cfg.Bridge.TickInterval(), br); err != nil {
			return err
		}
	} else {
		log.Info("bridge disabled")
	}

	if cfg.LED.Enabled {
		d := led.New(cfg.LED, buildRenderer(cfg, log),
			ipc.NewPublisher(ipc.OriginLED, eventsPath, log), log.With("daemon", "ledd"))
		if err := start("ledd", cfg.IPC.Endpoints.LED, cfg.LED.TickInterval(), d); err != nil {
			return err
		}
	}

	if cfg.Power.Enabled {
		d := power.New(cfg.Power, buildPowerSource(cfg, log),
			ipc.NewPublisher(ipc.OriginPower, eventsPath, log), log.With("daemon", "powd"))
		if err := start("powd", cfg.IPC.Endpoints.Power, cfg.Power.TickInterval(), d); err != nil {
			return err
		}
	}

	if cfg.WiFi.Enabled {
		d := wifi.New(cfg.WiFi, buildNetworkController(cfg, log),
			ipc.NewPublisher(ipc.OriginWiFi, eventsPath, log), log.With("daemon", "wsm"))
		if err := start("wsm", cfg.IPC.Endpoints.WiFi, cfg.WiFi.TickInterval(), d); err != nil {
			return err
		}
	}

	if cfg.NFC.Enabled {
		d := nfc.New(cfg.NFC, buildNFCReader(cfg, log),
			ipc.NewPublisher(ipc.OriginNFC, eventsPath, log), log.With("daemon", "nfcd"))
		if err := start("nfcd", cfg.IPC.Endpoints.NFC, cfg.NFC.ReadInterval(), d); err != nil {
			return err
		}
	}

	if cfg.Buttons.Enabled {
		d := buttons.New(cfg.Buttons, buildLineReader(cfg, log),
			ipc.NewPublisher(ipc.OriginButtons, eventsPath, log), log.With("daemon", "bd"))
		if err := start("bd", cfg.IPC.Endpoints.Buttons, cfg.Buttons.PollInterval(), d); err != nil {
			return err
		}
	}

	if cfg.Player.Enabled {
		db, err := database.Open(cfg.Player.DatabasePath)
		if err != nil {
			return fmt.Errorf("opening tag database: %w", err)
		}
		defer func() {
			log.Info("closing tag database")
			if closeErr := db.Close(); closeErr != nil {
				log.Error("error closing tag database", "error", closeErr)
			}
		}()
		store, err := player.NewTagStore(db)
		if err != nil {
			return fmt.Errorf("initialising tag store: %w", err)
		}
		log.Info("tag database ready", "path", db.Path())

		d := player.New(cfg.Player, store, buildBackend(cfg, log),
			ipc.NewPublisher(ipc.OriginPlayer, eventsPath, log), log.With("daemon", "plsm"))
		if err := start("plsm", cfg.IPC.Endpoints.Player, cfg.Player.TickInterval(), d); err != nil {
			return err
		}

		if cfg.Player.Librespot.Managed && !cfg.DevStubs {
			supervisor := player.NewLibrespot(cfg.Player.Librespot, cfg.Player.DeviceName,
				log.With("component", "librespot"))
			wg.Add(1)
			go func() {
				defer wg.Done()
				supervisor.Run(ctx)
			}()
		}
	}

	log.Info("initialisation complete, waiting for shutdown signal")
	<-ctx.Done()
	log.Info("shutdown signal received")

	// Loops first, so Stop never races a handler on the loop
	// goroutine. Then reverse startup order: hardware daemons leave
	// the bus first, the orchestrator goes down last.
	wg.Wait()
	for i := len(units) - 1; i >= 0; i-- {
		units[i].d.Stop("shutdown")
	}
	for i := len(units) - 1; i >= 0; i-- {
		if closeErr := units[i].ep.Close(); closeErr != nil {
			log.Warn("endpoint close failed", "daemon", units[i].name, "error", closeErr)
		}
	}

	log.Info("hearo core stopped")
	return nil
}

// mirrorTargets lists the endpoints the orchestrator copies every
// received envelope to. Only enabled daemons are listed; mirroring to
// a socket nothing binds would just fail every send.
func mirrorTargets(cfg *config.Config) []string {
	var targets []string
	if cfg.LED.Enabled {
		targets = append(targets, cfg.IPC.EndpointPath(cfg.IPC.Endpoints.LED))
	}
	if cfg.Bridge.Enabled {
		targets = append(targets, cfg.IPC.EndpointPath(cfg.IPC.Endpoints.Bridge))
	}
	return targets
}

// connectBridgeBackends dials whichever off-device integrations are
// enabled. Either may be absent; the bridge daemon tolerates nil.
func connectBridgeBackends(cfg config.BridgeConfig, log *logging.Logger) (bridge.EventSink, bridge.TelemetryWriter, func(), error) {
	var sink bridge.EventSink
	var tel bridge.TelemetryWriter
	var closers []func()

	if cfg.MQTT.Enabled {
		mc, err := mqtt.Connect(cfg.MQTT)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to MQTT: %w", err)
		}
		log.Info("MQTT connected",
			"broker", fmt.Sprintf("%s:%d", cfg.MQTT.Broker.Host, cfg.MQTT.Broker.Port),
			"client_id", cfg.MQTT.Broker.ClientID,
		)
		sink = mc
		closers = append(closers, mc.Close)
	}

	if cfg.InfluxDB.Enabled {
		ic, err := influxdb.Connect(cfg.InfluxDB, log)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("connecting to InfluxDB: %w", err)
		}
		log.Info("InfluxDB connected",
			"url", cfg.InfluxDB.URL,
			"org", cfg.InfluxDB.Org,
			"bucket", cfg.InfluxDB.Bucket,
		)
		tel = ic
		closers = append(closers, ic.Close)
	}

	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	return sink, tel, closeAll, nil
}

// getConfigPath returns the configuration file path.
// Uses HEARO_CONFIG environment variable if set, otherwise default.
func getConfigPath() string {
	if path := os.Getenv("HEARO_CONFIG"); path != "" {
		return path
	}
	return defaultConfigPath
}
