package wifi

import (
	"os"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// Station is a snapshot of the station link.
type Station struct {
	Connected bool
	SSID      string
	IP        string
	RSSI      int
}

// NetworkController abstracts the OS network stack.
type NetworkController interface {
	// StackAvailable reports whether the Wi-Fi tooling is usable at all.
	StackAvailable() bool
	// StationStatus reads the current station link state.
	StationStatus() (Station, error)
	// ProbeInternet checks reachability of the given host.
	ProbeInternet(host string) bool
	// Reconnect asks the supplicant to retry joining the configured
	// network.
	Reconnect() error
	// StartAP brings up the provisioning access point.
	StartAP(ssid string, channel int, security string) error
	// StopAP tears the access point down.
	StopAP() error
}

// State is the wsm state machine state.
type State int

const (
	StateInit State = iota
	StateAPMode
	StateConnected
	StateError
)

// String returns the wire name used in status snapshots.
func (s State) String() string {
	switch s {
	case StateAPMode:
		return "WSM_APMODE"
	case StateConnected:
		return "WSM_CONNECTED"
	case StateError:
		return "WSM_ERROR"
	default:
		return "WSM_INIT"
	}
}

// Daemon is the Wi-Fi state manager. It implements peer.Handler and
// is driven by a peer.Loop.
type Daemon struct {
	cfg  config.WiFiConfig
	ctrl NetworkController
	pub  *ipc.Publisher
	log  *logging.Logger

	state   State
	started time.Time

	apActive          bool
	station           Station
	internetReachable bool
	failStreak        int
	lastErrorCode     string

	backoff               *peer.Backoff
	nextStationCheck      time.Time
	nextConnectivityCheck time.Time
}

// New assembles the daemon from its configuration.
func New(cfg config.WiFiConfig, ctrl NetworkController, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	return &Daemon{
		cfg:     cfg,
		ctrl:    ctrl,
		pub:     pub,
		log:     log,
		backoff: peer.NewBackoff(cfg.RetryInitialDelay(), cfg.RetryMaxDelay()),
	}
}

// State returns the current machine state. Exposed for the status
// snapshot and tests.
func (d *Daemon) State() State {
	return d.state
}

// Start announces the daemon on the bus.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.pub.Emit(ipc.EventWiFiStarted, ipc.Payload{"version": 1, "pid": os.Getpid()})
	d.log.Info("wifi state manager started", "interface", d.cfg.Interface)
}

// Stop tears down the AP if one is running and announces the daemon
// leaving the bus.
func (d *Daemon) Stop(reason string) {
	if d.apActive {
		d.stopAP("daemon_stopping")
	}
	d.pub.Emit(ipc.EventWiFiStopped, ipc.Payload{"reason": reason, "pid": os.Getpid()})
	d.log.Info("wifi state manager stopped", "reason", reason)
}

// HandleMessage answers the wsm command set. WSM_COMMAND_STATUS must
// be answerable from any state without side effects.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	if env.Schema != ipc.SchemaCmd {
		return
	}
	switch {
	case env.Cmd == ipc.CmdWiFiStatus:
		peer.Accept(ipc.OriginWiFi, env)
		peer.Finish(ipc.OriginWiFi, env, d.snapshot(now))
	case peer.HandleCommon(ipc.OriginWiFi, env, d.log):
	default:
		peer.Reject(ipc.OriginWiFi, env, ipc.CodeUnknownCmd, "unknown command "+env.Cmd)
	}
}

// snapshot builds the status result payload.
func (d *Daemon) snapshot(now time.Time) ipc.Payload {
	return ipc.Payload{
		"state": d.state.String(),
		"ap": ipc.Payload{
			"active": d.apActive,
			"ssid":   d.cfg.APSSID,
		},
		"station": ipc.Payload{
			"connected": d.station.Connected,
			"ssid":      d.station.SSID,
			"ip":        d.station.IP,
			"rssi":      d.station.RSSI,
		},
		"internet": ipc.Payload{
			"spotify_reachable": d.internetReachable,
			"fail_streak":       d.failStreak,
		},
		"uptime_ms":       now.Sub(d.started).Milliseconds(),
		"last_error_code": d.lastErrorCode,
	}
}

// Tick advances the state machine one step.
func (d *Daemon) Tick(now time.Time) {
	switch d.state {
	case StateInit:
		d.tickInit(now)
	case StateAPMode:
		d.tickAPMode(now)
	case StateConnected:
		d.tickConnected(now)
	case StateError:
		d.tickError(now)
	}
}

func (d *Daemon) tickInit(now time.Time) {
	if !d.ctrl.StackAvailable() {
		d.lastErrorCode = "ERR_NO_WIFI_STACK"
		d.transition(StateError)
		d.nextStationCheck = now.Add(d.backoff.Next())
		return
	}
	d.transition(StateAPMode)
}

// tickAPMode runs the provisioning access point and probes for a
// usable station link on a backoff schedule. The AP stays up until
// both the station link and internet reachability are confirmed.
func (d *Daemon) tickAPMode(now time.Time) {
	if !d.apActive {
		d.startAP()
	}

	if now.Before(d.nextStationCheck) {
		return
	}

	d.refreshStation()
	if !d.station.Connected {
		if d.cfg.ReconnectOnStationDisjoint {
			if err := d.ctrl.Reconnect(); err != nil {
				d.log.Warn("reconnect attempt failed", "error", err)
			}
		}
		d.nextStationCheck = now.Add(d.backoff.Next())
		return
	}

	d.internetReachable = d.ctrl.ProbeInternet(d.cfg.ProbeHost)
	if !d.internetReachable {
		d.failStreak++
		d.nextStationCheck = now.Add(d.backoff.Next())
		return
	}

	d.failStreak = 0
	d.backoff.Reset()
	d.pub.Emit(ipc.EventWiFiConnected, ipc.Payload{
		"ssid": d.station.SSID,
		"ip":   d.station.IP,
		"rssi": d.station.RSSI,
	})
	d.stopAP("station_connected")
	d.transition(StateConnected)
	d.nextStationCheck = now.Add(d.cfg.StationRefresh())
	d.nextConnectivityCheck = now.Add(d.cfg.ConnectivityCheck())
}

// tickConnected monitors the link and demotes to AP mode the moment
// connectivity degrades, with a reason the orchestrator can log.
func (d *Daemon) tickConnected(now time.Time) {
	if !now.Before(d.nextStationCheck) {
		d.refreshStation()
		d.nextStationCheck = now.Add(d.cfg.StationRefresh())
	}
	if !now.Before(d.nextConnectivityCheck) {
		d.internetReachable = d.ctrl.ProbeInternet(d.cfg.ProbeHost)
		if d.internetReachable {
			d.failStreak = 0
		} else {
			d.failStreak++
		}
		d.nextConnectivityCheck = now.Add(d.cfg.ConnectivityCheck())
	}

	var reason string
	switch {
	case !d.station.Connected:
		reason = "link_down"
	case d.station.IP == "":
		reason = "no_ip"
	case !d.internetReachable:
		reason = "no_internet"
	default:
		return
	}

	d.pub.Emit(ipc.EventWiFiLost, ipc.Payload{
		"reason":      reason,
		"ssid":        d.station.SSID,
		"ip":          d.station.IP,
		"fail_streak": d.failStreak,
	})
	d.log.Warn("wifi lost", "reason", reason)
	d.transition(StateAPMode)
	d.nextStationCheck = now
}

func (d *Daemon) tickError(now time.Time) {
	if now.Before(d.nextStationCheck) {
		return
	}
	if d.ctrl.StackAvailable() {
		d.backoff.Reset()
		d.transition(StateAPMode)
		return
	}
	d.nextStationCheck = now.Add(d.backoff.Next())
}

func (d *Daemon) refreshStation() {
	st, err := d.ctrl.StationStatus()
	if err != nil {
		// A status read failure reads as "link down"; the next check
		// retries.
		d.log.Warn("station status failed", "error", err)
		d.station = Station{}
		return
	}
	d.station = st
}

func (d *Daemon) startAP() {
	if err := d.ctrl.StartAP(d.cfg.APSSID, d.cfg.APChannel, d.cfg.APSecurity); err != nil {
		d.lastErrorCode = "ERR_AP_START"
		d.log.Error("access point start failed", "error", err)
		return
	}
	d.apActive = true
	d.pub.Emit(ipc.EventAPStarted, ipc.Payload{
		"ssid":     d.cfg.APSSID,
		"channel":  d.cfg.APChannel,
		"security": d.cfg.APSecurity,
	})
	d.log.Info("access point started", "ssid", d.cfg.APSSID)
}

func (d *Daemon) stopAP(reason string) {
	if err := d.ctrl.StopAP(); err != nil {
		d.lastErrorCode = "ERR_AP_STOP"
		d.log.Error("access point stop failed", "error", err)
	}
	d.apActive = false
	d.pub.Emit(ipc.EventAPStopped, ipc.Payload{"reason": reason})
	d.log.Info("access point stopped", "reason", reason)
}

func (d *Daemon) transition(next State) {
	if next == d.state {
		return
	}
	d.log.Info("state transition", "from", d.state.String(), "to", next.String())
	d.state = next
}
