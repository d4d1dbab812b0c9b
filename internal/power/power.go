package power

import (
	"os"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// Battery bands reported on the heartbeat.
const (
	BandNormal   = "BAT_NORM"
	BandLow      = "BAT_LOW"
	BandCritical = "BAT_CRIT"
	BandCharging = "BAT_CHG"
)

// Temperature bands reported on the heartbeat.
const (
	TempOK   = "TEMP_OK"
	TempWarn = "TEMP_WARN"
	TempCrit = "TEMP_CRIT"
)

// BatteryState is one reading from the power hardware.
type BatteryState struct {
	SoC      int
	Band     string
	ExtPower bool
	TempBand string
}

// Source reads battery state from hardware. Tests and stub wiring
// substitute fixed readings.
type Source interface {
	Read() (BatteryState, error)
}

// Daemon is the power daemon. It implements peer.Handler and is
// driven by a peer.Loop.
type Daemon struct {
	cfg config.PowerConfig
	src Source
	pub *ipc.Publisher
	log *logging.Logger

	started         time.Time
	lastHeartbeat   time.Time
	last            BatteryState
	criticalEpisode bool
	readFailing     bool
}

// New assembles the daemon from its configuration.
func New(cfg config.PowerConfig, src Source, pub *ipc.Publisher, log *logging.Logger) *Daemon {
	return &Daemon{cfg: cfg, src: src, pub: pub, log: log}
}

// Start announces the daemon on the bus.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.pub.Emit(ipc.EventPowerStarted, ipc.Payload{"version": 1, "pid": os.Getpid()})
	d.log.Info("power daemon started", "critical_soc", d.cfg.CriticalSoC)
}

// Stop announces the daemon leaving the bus.
func (d *Daemon) Stop(reason string) {
	d.pub.Emit(ipc.EventPowerStopped, ipc.Payload{"reason": reason, "pid": os.Getpid()})
	d.log.Info("power daemon stopped", "reason", reason)
}

// HandleMessage answers POWD_CMD_PING and SET_DEBUG; powd has no other
// commands.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	if env.Schema != ipc.SchemaCmd {
		return
	}
	if peer.HandleCommon(ipc.OriginPower, env, d.log) {
		return
	}
	peer.Reject(ipc.OriginPower, env, ipc.CodeUnknownCmd, "unknown command "+env.Cmd)
}

// Tick reads the battery and publishes the heartbeat on its period.
// The critical edge fires once per episode: it rearms only after the
// battery leaves the critical band (external power or recharge).
func (d *Daemon) Tick(now time.Time) {
	st, err := d.src.Read()
	if err != nil {
		if !d.readFailing {
			d.readFailing = true
			d.log.Error("battery read failed", "error", err)
		}
		return
	}
	d.readFailing = false
	d.last = st

	critical := d.isCritical(st)
	if critical && !d.criticalEpisode {
		d.criticalEpisode = true
		d.pub.Emit(ipc.EventBatteryCritical, ipc.Payload{
			"soc":  st.SoC,
			"band": st.Band,
		})
		d.log.Warn("battery critical", "soc", st.SoC)
	} else if !critical {
		d.criticalEpisode = false
	}

	if now.Sub(d.lastHeartbeat) >= d.cfg.Heartbeat() {
		d.lastHeartbeat = now
		d.pub.Emit(ipc.EventBatteryState, ipc.Payload{
			"soc":       st.SoC,
			"band":      st.Band,
			"ext_power": st.ExtPower,
			"temp_band": st.TempBand,
		})
	}
}

// isCritical treats either the hardware band or the configured SoC
// floor as the critical condition, whichever trips first. External
// power suppresses it: a charging device must not shut down.
func (d *Daemon) isCritical(st BatteryState) bool {
	if st.ExtPower {
		return false
	}
	return st.Band == BandCritical || st.SoC <= d.cfg.CriticalSoC
}
