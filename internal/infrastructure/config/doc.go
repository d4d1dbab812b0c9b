// Package config loads and validates Hearo's YAML configuration.
//
// Configuration precedence is defaults, then file values, then HEARO_*
// environment variable overrides. Every daemon reads its own section;
// the ipc section describes the shared datagram bus (socket directory
// and per-daemon endpoint names).
package config
