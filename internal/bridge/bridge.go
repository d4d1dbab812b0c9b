package bridge

import (
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/ipc"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// EventSink receives every bus event for off-device delivery. The MQTT
// client implements it; tests substitute a recorder.
type EventSink interface {
	PublishEvent(name string, raw []byte) error
}

// TelemetryWriter queues measurements for time-series storage. Writes
// must not block; the InfluxDB client batches internally.
type TelemetryWriter interface {
	WritePoint(measurement string, tags map[string]string, fields map[string]interface{}, at time.Time)
}

// Daemon is the integrations bridge. It sits on the orchestrator's
// mirror list, so its endpoint sees a copy of every envelope that
// crosses the bus. Events are republished to MQTT one topic per event
// name, and a selected few become telemetry points. Either backend may
// be nil when disabled in config.
type Daemon struct {
	sink EventSink
	tel  TelemetryWriter
	log  *logging.Logger

	// publishBroken suppresses repeat logging while the broker is
	// unreachable; paho reconnects on its own.
	publishBroken bool
	published     int64
	dropped       int64
	started       time.Time
}

// New creates the bridge daemon. sink and tel may each be nil.
func New(sink EventSink, tel TelemetryWriter, log *logging.Logger) *Daemon {
	return &Daemon{sink: sink, tel: tel, log: log}
}

// Start records the bridge coming up. The bridge publishes nothing on
// the bus itself; required-daemon tracking does not include it.
func (d *Daemon) Start(now time.Time) {
	d.started = now
	d.log.Info("bridge started",
		"mqtt", d.sink != nil,
		"influxdb", d.tel != nil)
}

// Stop logs the delivery counters for the session.
func (d *Daemon) Stop(reason string) {
	d.log.Info("bridge stopped",
		"reason", reason,
		"published", d.published,
		"dropped", d.dropped)
}

// HandleMessage forwards mirrored events. Acks and results are not
// forwarded; they are request-scoped and meaningless off-device.
func (d *Daemon) HandleMessage(env *ipc.Envelope, now time.Time) {
	switch env.Schema {
	case ipc.SchemaCmd:
		if peer.HandleCommon(ipc.OriginBridge, env, d.log) {
			return
		}
		peer.Reject(ipc.OriginBridge, env, ipc.CodeUnknownCmd, "unknown command: "+env.Cmd)
	case ipc.SchemaEvent:
		d.forward(env)
		d.record(env, now)
	}
}

// Tick is a no-op. Reconnection and batching are handled inside the
// MQTT and InfluxDB clients.
func (d *Daemon) Tick(now time.Time) {}

// forward republishes the raw envelope to the event topic tree.
func (d *Daemon) forward(env *ipc.Envelope) {
	if d.sink == nil {
		return
	}
	raw, err := env.Encode()
	if err != nil {
		d.dropped++
		d.log.Error("event encode failed", "event", env.Event, "error", err)
		return
	}
	if err := d.sink.PublishEvent(env.Event, raw); err != nil {
		d.dropped++
		if !d.publishBroken {
			d.publishBroken = true
			d.log.Warn("event publish failing", "event", env.Event, "error", err)
		}
		return
	}
	d.published++
	if d.publishBroken {
		d.publishBroken = false
		d.log.Info("event publish recovered", "event", env.Event)
	}
}

// record maps the telemetry-bearing events onto measurements.
func (d *Daemon) record(env *ipc.Envelope, now time.Time) {
	if d.tel == nil {
		return
	}
	p := env.Payload
	switch env.Event {
	case ipc.EventBatteryState:
		soc, _ := p.Int("soc")
		d.tel.WritePoint("battery",
			map[string]string{"band": p.String("band")},
			map[string]interface{}{
				"soc":       soc,
				"ext_power": p.Bool("ext_power"),
			}, now)

	case ipc.EventBatteryCritical:
		soc, _ := p.Int("soc")
		d.tel.WritePoint("battery_critical",
			nil,
			map[string]interface{}{"soc": soc}, now)

	case ipc.EventStateChanged:
		d.tel.WritePoint("system_state",
			map[string]string{"state": p.String("new")},
			map[string]interface{}{
				"old": p.String("old"),
				"new": p.String("new"),
			}, now)

	case ipc.EventPlayStarted:
		d.tel.WritePoint("playback",
			map[string]string{"action": "started"},
			map[string]interface{}{
				"uid": p.String("uid"),
				"uri": p.String("uri"),
			}, now)

	case ipc.EventPlayStopped:
		d.tel.WritePoint("playback",
			map[string]string{"action": "stopped"},
			map[string]interface{}{
				"uid": p.String("uid"),
			}, now)
	}
}
