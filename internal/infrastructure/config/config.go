package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Hearo core daemons.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	IPC     IPCConfig     `yaml:"ipc"`
	Buttons ButtonsConfig `yaml:"buttons"`
	NFC     NFCConfig     `yaml:"nfc"`
	WiFi    WiFiConfig    `yaml:"wifi"`
	Player  PlayerConfig  `yaml:"player"`
	Power   PowerConfig   `yaml:"power"`
	LED     LEDConfig     `yaml:"led"`
	Bridge  BridgeConfig  `yaml:"bridge"`
	Logging LoggingConfig `yaml:"logging"`

	// DevStubs swaps the hardware collaborators (GPIO lines, NFC
	// reader, battery gauge, pixel strip, playback backend) for
	// in-process fakes so the fleet runs on a development host.
	DevStubs bool `yaml:"dev_stubs"`
}

// IPCConfig describes the local datagram bus: where the sockets live
// and how each daemon's endpoint is named.
type IPCConfig struct {
	// SocketDir is the directory holding all endpoint socket files.
	SocketDir string `yaml:"socket_dir"`

	// ReceiveWaitMS bounds a single receive poll. Daemons interleave
	// receive polls with FSM ticks, so this must stay small.
	ReceiveWaitMS int `yaml:"receive_wait_ms"`

	// Endpoints maps a daemon identity to its socket file name.
	// The events endpoint is owned by the orchestrator.
	Endpoints EndpointNames `yaml:"endpoints"`
}

// EndpointNames are the socket file names for each endpoint, relative
// to SocketDir.
type EndpointNames struct {
	Events  string `yaml:"events"`
	Buttons string `yaml:"buttons"`
	NFC     string `yaml:"nfc"`
	WiFi    string `yaml:"wifi"`
	Player  string `yaml:"player"`
	Power   string `yaml:"power"`
	LED     string `yaml:"led"`
	Bridge  string `yaml:"bridge"`
}

// ButtonsConfig contains the button daemon settings.
type ButtonsConfig struct {
	Enabled bool `yaml:"enabled"`

	// PollIntervalMS is the FSM tick period.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	DebounceMS         int `yaml:"debounce_ms"`
	ShortMinMS         int `yaml:"short_min_ms"`
	LongThresholdMS    int `yaml:"long_threshold_ms"`
	HoldTickIntervalMS int `yaml:"hold_tick_interval_ms"`

	// Inputs is the logical button list. A per-button long-threshold
	// override supports inputs like RESET that need a much longer hold.
	Inputs []ButtonInput `yaml:"inputs"`
}

// ButtonInput describes one physical button.
type ButtonInput struct {
	Name string `yaml:"name"`
	GPIO int    `yaml:"gpio"`

	// LongThresholdMS overrides the daemon-wide long threshold when > 0.
	LongThresholdMS int `yaml:"long_threshold_ms,omitempty"`
}

// NFCConfig contains the NFC daemon settings.
type NFCConfig struct {
	Enabled bool `yaml:"enabled"`

	ReadIntervalMS       int `yaml:"read_interval_ms"`
	DebounceMS           int `yaml:"debounce_ms"`
	MissReleaseMS        int `yaml:"miss_release_ms"`
	TagHeartbeatPeriodMS int `yaml:"tag_heartbeat_period_ms"`
}

// WiFiConfig contains the Wi-Fi state machine daemon settings.
type WiFiConfig struct {
	Enabled bool `yaml:"enabled"`

	TickIntervalMS             int    `yaml:"tick_interval_ms"`
	StationRefreshSeconds      int    `yaml:"station_refresh_seconds"`
	ConnectivityCheckSeconds   int    `yaml:"connectivity_check_seconds"`
	RetryInitialDelaySeconds   int    `yaml:"retry_initial_delay_seconds"`
	RetryMaxDelaySeconds       int    `yaml:"retry_max_delay_seconds"`
	Interface                  string `yaml:"interface"`
	ProbeHost                  string `yaml:"probe_host"`
	APSSID                     string `yaml:"ap_ssid"`
	APChannel                  int    `yaml:"ap_channel"`
	APSecurity                 string `yaml:"ap_security"`
	CommandTimeoutSeconds      int    `yaml:"command_timeout_seconds"`
	ReconnectOnStationDisjoint bool   `yaml:"reconnect_on_station_disjoint"`
}

// PlayerConfig contains the player state machine daemon settings.
type PlayerConfig struct {
	Enabled bool `yaml:"enabled"`

	TickIntervalMS         int    `yaml:"tick_interval_ms"`
	DatabasePath           string `yaml:"database_path"`
	TokenFile              string `yaml:"token_file"`
	DeviceName             string `yaml:"device_name"`
	ProgressSaveIntervalMS int    `yaml:"progress_save_interval_ms"`
	SeekDeltaMS            int    `yaml:"seek_delta_ms"`

	// Librespot manages the local Spotify Connect player process.
	Librespot LibrespotConfig `yaml:"librespot"`
}

// LibrespotConfig contains settings for supervising the librespot process.
type LibrespotConfig struct {
	// Managed indicates whether Hearo should manage the librespot
	// lifecycle. If false, librespot is expected to run externally
	// (e.g. as a systemd service).
	Managed bool `yaml:"managed"`

	// Binary is the path to the librespot executable.
	Binary string `yaml:"binary"`

	// Args are extra command-line arguments (device name is appended).
	Args []string `yaml:"args"`

	// RestartDelaySeconds is the initial delay before a restart attempt.
	RestartDelaySeconds int `yaml:"restart_delay_seconds"`

	// MaxRestartDelaySeconds caps the restart backoff.
	MaxRestartDelaySeconds int `yaml:"max_restart_delay_seconds"`
}

// PowerConfig contains the power daemon settings.
type PowerConfig struct {
	Enabled bool `yaml:"enabled"`

	TickIntervalMS   int `yaml:"tick_interval_ms"`
	HeartbeatSeconds int `yaml:"heartbeat_seconds"`

	// CriticalSoC is the state-of-charge percentage at or below which
	// POWD_EVENT_BATTERY_CRITICAL is emitted.
	CriticalSoC int `yaml:"critical_soc"`
}

// LEDConfig contains the LED daemon settings.
type LEDConfig struct {
	Enabled bool `yaml:"enabled"`

	TickIntervalMS int `yaml:"tick_interval_ms"`
}

// BridgeConfig contains settings for the optional integrations bridge,
// which mirrors bus events to MQTT and writes telemetry to InfluxDB.
type BridgeConfig struct {
	Enabled bool `yaml:"enabled"`

	TickIntervalMS int `yaml:"tick_interval_ms"`

	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
}

// MQTTConfig contains MQTT broker connection settings for the bridge.
type MQTTConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Broker    MQTTBrokerConfig `yaml:"broker"`
	Auth      MQTTAuthConfig   `yaml:"auth"`
	QoS       int              `yaml:"qos"`
	Reconnect MQTTReconnect    `yaml:"reconnect"`
	TopicRoot string           `yaml:"topic_root"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MQTTReconnect contains MQTT reconnection settings.
type MQTTReconnect struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings for telemetry.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: HEARO_SECTION_KEY
// For example: HEARO_IPC_SOCKET_DIR, HEARO_PLAYER_DATABASE_PATH
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
// Timing defaults match the original daemon specifications.
func defaultConfig() *Config {
	return &Config{
		IPC: IPCConfig{
			SocketDir:     "/tmp/hearo",
			ReceiveWaitMS: 50,
			Endpoints: EndpointNames{
				Events:  "events.sock",
				Buttons: "bd.sock",
				NFC:     "nfcd.sock",
				WiFi:    "wsm.sock",
				Player:  "plsm.sock",
				Power:   "powd.sock",
				LED:     "ledd.sock",
				Bridge:  "bridge.sock",
			},
		},
		Buttons: ButtonsConfig{
			Enabled:            true,
			PollIntervalMS:     10,
			DebounceMS:         30,
			ShortMinMS:         50,
			LongThresholdMS:    800,
			HoldTickIntervalMS: 250,
			Inputs: []ButtonInput{
				{Name: "NEXT", GPIO: 17},
				{Name: "PREV", GPIO: 22},
				{Name: "VOL_UP", GPIO: 23},
				{Name: "VOL_DOWN", GPIO: 27},
				{Name: "RESET", GPIO: 24, LongThresholdMS: 5000},
			},
		},
		NFC: NFCConfig{
			Enabled:              true,
			ReadIntervalMS:       50,
			DebounceMS:           300,
			MissReleaseMS:        600,
			TagHeartbeatPeriodMS: 1000,
		},
		WiFi: WiFiConfig{
			Enabled:                  true,
			TickIntervalMS:           500,
			StationRefreshSeconds:    5,
			ConnectivityCheckSeconds: 10,
			RetryInitialDelaySeconds: 5,
			RetryMaxDelaySeconds:     60,
			Interface:                "wlan0",
			ProbeHost:                "api.spotify.com",
			APSSID:                   "Hearo-Setup",
			APChannel:                6,
			APSecurity:               "WPA2-PSK",
			CommandTimeoutSeconds:    5,
		},
		Player: PlayerConfig{
			Enabled:                true,
			TickIntervalMS:         200,
			DatabasePath:           "/var/lib/hearo/hearo.db",
			TokenFile:              "/var/lib/hearo/spotify_token.json",
			DeviceName:             "Hearo",
			ProgressSaveIntervalMS: 2000,
			SeekDeltaMS:            15000,
			Librespot: LibrespotConfig{
				Binary:                 "/usr/bin/librespot",
				RestartDelaySeconds:    5,
				MaxRestartDelaySeconds: 60,
			},
		},
		Power: PowerConfig{
			Enabled:          true,
			TickIntervalMS:   200,
			HeartbeatSeconds: 30,
			CriticalSoC:      5,
		},
		LED: LEDConfig{
			Enabled:        true,
			TickIntervalMS: 50,
		},
		Bridge: BridgeConfig{
			TickIntervalMS: 100,
			MQTT: MQTTConfig{
				Broker: MQTTBrokerConfig{
					Host:     "localhost",
					Port:     1883,
					ClientID: "hearo-bridge",
				},
				QoS:       0,
				TopicRoot: "hearo",
				Reconnect: MQTTReconnect{
					InitialDelay: 1,
					MaxDelay:     60,
				},
			},
			InfluxDB: InfluxDBConfig{
				BatchSize:     100,
				FlushInterval: 10,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: HEARO_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("HEARO_IPC_SOCKET_DIR"); v != "" {
		cfg.IPC.SocketDir = v
	}
	if v := os.Getenv("HEARO_PLAYER_DATABASE_PATH"); v != "" {
		cfg.Player.DatabasePath = v
	}
	if v := os.Getenv("HEARO_PLAYER_TOKEN_FILE"); v != "" {
		cfg.Player.TokenFile = v
	}
	if v := os.Getenv("HEARO_MQTT_HOST"); v != "" {
		cfg.Bridge.MQTT.Broker.Host = v
	}
	if v := os.Getenv("HEARO_MQTT_USERNAME"); v != "" {
		cfg.Bridge.MQTT.Auth.Username = v
	}
	if v := os.Getenv("HEARO_MQTT_PASSWORD"); v != "" {
		cfg.Bridge.MQTT.Auth.Password = v
	}
	if v := os.Getenv("HEARO_INFLUXDB_TOKEN"); v != "" {
		cfg.Bridge.InfluxDB.Token = v
	}
	if v := os.Getenv("HEARO_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("HEARO_DEV_STUBS"); v != "" {
		cfg.DevStubs = strings.EqualFold(v, "true") || v == "1"
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.IPC.SocketDir == "" {
		errs = append(errs, "ipc.socket_dir is required")
	}
	if c.IPC.ReceiveWaitMS <= 0 || c.IPC.ReceiveWaitMS > 500 {
		errs = append(errs, "ipc.receive_wait_ms must be in (0, 500]")
	}
	if c.IPC.Endpoints.Events == "" {
		errs = append(errs, "ipc.endpoints.events is required")
	}

	if c.Buttons.Enabled {
		if len(c.Buttons.Inputs) == 0 {
			errs = append(errs, "buttons.inputs must not be empty when buttons are enabled")
		}
		seen := map[string]bool{}
		for _, in := range c.Buttons.Inputs {
			if in.Name == "" {
				errs = append(errs, "buttons.inputs[].name is required")
				continue
			}
			if seen[in.Name] {
				errs = append(errs, fmt.Sprintf("duplicate button name %q", in.Name))
			}
			seen[in.Name] = true
		}
		if c.Buttons.DebounceMS <= 0 {
			errs = append(errs, "buttons.debounce_ms must be positive")
		}
		if c.Buttons.LongThresholdMS <= c.Buttons.ShortMinMS {
			errs = append(errs, "buttons.long_threshold_ms must exceed buttons.short_min_ms")
		}
	}

	if c.NFC.Enabled {
		if c.NFC.DebounceMS <= 0 {
			errs = append(errs, "nfc.debounce_ms must be positive")
		}
		if c.NFC.MissReleaseMS <= 0 {
			errs = append(errs, "nfc.miss_release_ms must be positive")
		}
	}

	if c.WiFi.Enabled {
		if c.WiFi.RetryInitialDelaySeconds <= 0 {
			errs = append(errs, "wifi.retry_initial_delay_seconds must be positive")
		}
		if c.WiFi.RetryMaxDelaySeconds < c.WiFi.RetryInitialDelaySeconds {
			errs = append(errs, "wifi.retry_max_delay_seconds must be >= wifi.retry_initial_delay_seconds")
		}
	}

	if c.Player.Enabled {
		if c.Player.DatabasePath == "" {
			errs = append(errs, "player.database_path is required")
		}
		if c.Player.SeekDeltaMS <= 0 {
			errs = append(errs, "player.seek_delta_ms must be positive")
		}
	}

	if c.Power.Enabled {
		if c.Power.CriticalSoC < 0 || c.Power.CriticalSoC > 100 {
			errs = append(errs, "power.critical_soc must be in [0, 100]")
		}
	}

	if c.Bridge.Enabled && !c.Bridge.MQTT.Enabled && !c.Bridge.InfluxDB.Enabled {
		errs = append(errs, "bridge.enabled requires at least one of bridge.mqtt or bridge.influxdb")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// EndpointPath returns the absolute socket path for a named endpoint file.
func (c *IPCConfig) EndpointPath(name string) string {
	return filepath.Join(c.SocketDir, name)
}

// ReceiveWait returns the bounded receive poll duration.
func (c *IPCConfig) ReceiveWait() time.Duration {
	return time.Duration(c.ReceiveWaitMS) * time.Millisecond
}

func ms(v int) time.Duration      { return time.Duration(v) * time.Millisecond }
func seconds(v int) time.Duration { return time.Duration(v) * time.Second }

// Duration accessors. Configuration stores integer milliseconds and
// seconds the way the daemons document them; code works in
// time.Duration.

func (c ButtonsConfig) PollInterval() time.Duration     { return ms(c.PollIntervalMS) }
func (c ButtonsConfig) Debounce() time.Duration         { return ms(c.DebounceMS) }
func (c ButtonsConfig) ShortMin() time.Duration         { return ms(c.ShortMinMS) }
func (c ButtonsConfig) LongThreshold() time.Duration    { return ms(c.LongThresholdMS) }
func (c ButtonsConfig) HoldTickInterval() time.Duration { return ms(c.HoldTickIntervalMS) }

func (c NFCConfig) ReadInterval() time.Duration       { return ms(c.ReadIntervalMS) }
func (c NFCConfig) Debounce() time.Duration           { return ms(c.DebounceMS) }
func (c NFCConfig) MissRelease() time.Duration        { return ms(c.MissReleaseMS) }
func (c NFCConfig) TagHeartbeatPeriod() time.Duration { return ms(c.TagHeartbeatPeriodMS) }

func (c WiFiConfig) TickInterval() time.Duration      { return ms(c.TickIntervalMS) }
func (c WiFiConfig) StationRefresh() time.Duration    { return seconds(c.StationRefreshSeconds) }
func (c WiFiConfig) ConnectivityCheck() time.Duration { return seconds(c.ConnectivityCheckSeconds) }
func (c WiFiConfig) RetryInitialDelay() time.Duration { return seconds(c.RetryInitialDelaySeconds) }
func (c WiFiConfig) RetryMaxDelay() time.Duration     { return seconds(c.RetryMaxDelaySeconds) }
func (c WiFiConfig) CommandTimeout() time.Duration    { return seconds(c.CommandTimeoutSeconds) }

func (c PlayerConfig) TickInterval() time.Duration         { return ms(c.TickIntervalMS) }
func (c PlayerConfig) ProgressSaveInterval() time.Duration { return ms(c.ProgressSaveIntervalMS) }
func (c PlayerConfig) SeekDelta() time.Duration            { return ms(c.SeekDeltaMS) }

func (c LibrespotConfig) RestartDelay() time.Duration    { return seconds(c.RestartDelaySeconds) }
func (c LibrespotConfig) MaxRestartDelay() time.Duration { return seconds(c.MaxRestartDelaySeconds) }

func (c PowerConfig) TickInterval() time.Duration { return ms(c.TickIntervalMS) }
func (c PowerConfig) Heartbeat() time.Duration    { return seconds(c.HeartbeatSeconds) }

func (c LEDConfig) TickInterval() time.Duration { return ms(c.TickIntervalMS) }

func (c BridgeConfig) TickInterval() time.Duration { return ms(c.TickIntervalMS) }
