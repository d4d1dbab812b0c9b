// Package power implements powd, the power daemon.
//
// It reads battery state from a Source (fuel gauge, charger IC) and
// publishes a periodic POWD_EVENT_BATTERY_STATE heartbeat. When the
// battery band degrades to critical it emits POWD_EVENT_BATTERY_CRITICAL
// once per episode, which the orchestrator turns into an orderly
// shutdown.
package power
