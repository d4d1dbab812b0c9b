package ipc

// Event names published on the bus. Each daemon prefixes its events
// with its short name so origins are obvious in logs and captures.
const (
	// Button daemon.
	EventButtonsStarted = "BD_EVENT_DAEMON_STARTED"
	EventButtonsStopped = "BD_EVENT_DAEMON_STOPPED"
	EventButton         = "BD_EVENT_BUTTON"
	EventButtonsError   = "BD_EVENT_ERROR"

	// NFC daemon.
	EventNFCStarted  = "NFC_EVENT_DAEMON_STARTED"
	EventNFCStopped  = "NFC_EVENT_DAEMON_STOPPED"
	EventNFCReady    = "NFC_EVENT_READY"
	EventTagAdded    = "NFC_EVENT_TAG_ADDED"
	EventTagPresent  = "NFC_EVENT_TAG_PRESENT"
	EventTagRemoved  = "NFC_EVENT_TAG_REMOVED"
	EventNFCError    = "NFC_EVENT_ERROR"

	// Wi-Fi state manager.
	EventWiFiStarted   = "WSM_EVENT_DAEMON_STARTED"
	EventWiFiStopped   = "WSM_EVENT_DAEMON_STOPPED"
	EventWiFiConnected = "WSM_EVENT_WIFI_CONNECTED"
	EventWiFiLost      = "WSM_EVENT_WIFI_LOST"
	EventAPStarted     = "WSM_EVENT_WIFI_AP_STARTED"
	EventAPStopped     = "WSM_EVENT_WIFI_AP_STOPPED"

	// Player state manager.
	EventPlayerStarted  = "PLSM_EVENT_DAEMON_STARTED"
	EventPlayerStopped  = "PLSM_EVENT_DAEMON_STOPPED"
	EventAuthenticated  = "PLSM_EVENT_AUTHENTICATED"
	EventAuthFailed     = "PLSM_EVENT_AUTH_FAILED"
	EventAuthLost       = "PLSM_EVENT_AUTH_LOST"
	EventDisconnected   = "PLSM_EVENT_DISCONNECTED"
	EventTagResolved    = "PLSM_EVENT_TAG_RESOLVED"
	EventTagUnknown     = "PLSM_EVENT_TAG_UNKNOWN"
	EventPlayStarted    = "PLSM_EVENT_PLAY_STARTED"
	EventPlayStopped    = "PLSM_EVENT_PLAY_STOPPED"
	EventPlayerState    = "PLSM_EVENT_STATE_CHANGED"
	EventPlaybackError  = "PLSM_EVENT_PLAYBACK_ERROR"

	// Power daemon.
	EventPowerStarted    = "POWD_EVENT_DAEMON_STARTED"
	EventPowerStopped    = "POWD_EVENT_DAEMON_STOPPED"
	EventBatteryState    = "POWD_EVENT_BATTERY_STATE"
	EventBatteryCritical = "POWD_EVENT_BATTERY_CRITICAL"

	// LED daemon.
	EventLEDStarted = "LEDD_EVENT_DAEMON_STARTED"
	EventLEDStopped = "LEDD_EVENT_DAEMON_STOPPED"

	// Orchestrator.
	EventInitiated    = "HCSM_EVENT_INITIATED"
	EventStateChanged = "HCSM_EVENT_STATE_CHANGED"
	EventShutdown     = "HCSM_EVENT_SHUTDOWN"
)

// Command names consumed by the daemons. Every daemon answers its own
// *_PING and *_SET_DEBUG; the rest are daemon-specific.
const (
	CmdButtonsPing     = "BD_CMD_PING"
	CmdButtonsSetDebug = "BD_CMD_SET_DEBUG"

	CmdNFCPing     = "NFC_CMD_PING"
	CmdNFCSetDebug = "NFC_CMD_SET_DEBUG"
	CmdNFCRestart  = "NFC_CMD_RESTART"

	CmdWiFiStatus = "WSM_COMMAND_STATUS"

	CmdPlayTag        = "PLSM_COMMAND_PLAY_TAG"
	CmdPlay           = "PLSM_COMMAND_PLAY"
	CmdStop           = "PLSM_COMMAND_STOP"
	CmdNext           = "PLSM_COMMAND_NEXT"
	CmdPrevious       = "PLSM_COMMAND_PREVIOUS"
	CmdSeek           = "PLSM_COMMAND_SEEK"
	CmdPlayerShutdown = "PLSM_COMMAND_SHUTDOWN"

	CmdLEDSetState    = "LED_SET_STATE"
	CmdLEDSetFeedback = "LED_SET_FEEDBACK"
	CmdLEDSetError    = "LED_SET_ERROR"
	CmdLEDOff         = "LED_OFF"
	CmdLEDPing        = "LED_PING"
)

// Suffixes shared by the per-daemon common commands.
const (
	SuffixPing     = "_PING"
	SuffixSetDebug = "_SET_DEBUG"
)

// Error codes carried in failed acks and results.
const (
	CodeBadPayload       = "BAD_PAYLOAD"
	CodeUnknownCmd       = "UNKNOWN_CMD"
	CodeTagUnmapped      = "TAG_UNMAPPED"
	CodeAuthRequired     = "AUTH_REQUIRED"
	CodeNoActivePlayback = "NO_ACTIVE_PLAYBACK"
	CodeInternal         = "INTERNAL"
)

// Tag removal reasons carried by NFC_EVENT_TAG_REMOVED.
const (
	RemovedTimeout  = "timeout"
	RemovedReplaced = "replaced"
)

// Daemon origin names, used as envelope origins and in logs.
const (
	OriginButtons      = "bd"
	OriginNFC          = "nfcd"
	OriginWiFi         = "wsm"
	OriginPlayer       = "plsm"
	OriginPower        = "powd"
	OriginLED          = "ledd"
	OriginBridge       = "bridge"
	OriginOrchestrator = "hcsm"
)
