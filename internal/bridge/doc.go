// Package bridge forwards the device's event stream off-box. It
// receives a mirrored copy of every bus envelope from the
// orchestrator, republishes events to MQTT and writes battery,
// playback and system-state telemetry to InfluxDB. The bridge is
// strictly an observer: it never sends commands and the fleet runs
// unchanged when it is disabled.
package bridge
