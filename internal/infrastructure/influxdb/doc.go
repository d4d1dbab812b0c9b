// Package influxdb ships device telemetry (battery state, playback and
// system-state transitions) to an InfluxDB 2.x bucket using the
// non-blocking batched write API.
package influxdb
