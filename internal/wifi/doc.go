// Package wifi implements wsm, the Wi-Fi state manager daemon.
//
// It keeps the host either joined to a station network with working
// internet, or running a setup access point so the user can provision
// one. The OS network stack (wpa_cli, hostapd and friends) lives
// behind the NetworkController interface; the daemon owns only the
// state machine, its timers and its backoff policy.
package wifi
