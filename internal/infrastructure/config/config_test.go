package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_ValidConfig(t *testing.T) {
	content := `
ipc:
  socket_dir: "/tmp/hearo-test"
  receive_wait_ms: 50
buttons:
  enabled: true
  inputs:
    - name: "NEXT"
      gpio: 17
    - name: "RESET"
      gpio: 24
      long_threshold_ms: 5000
player:
  enabled: true
  database_path: "/tmp/hearo-test.db"
logging:
  level: "debug"
`
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IPC.SocketDir != "/tmp/hearo-test" {
		t.Errorf("IPC.SocketDir = %q, want %q", cfg.IPC.SocketDir, "/tmp/hearo-test")
	}
	if cfg.Player.DatabasePath != "/tmp/hearo-test.db" {
		t.Errorf("Player.DatabasePath = %q, want %q", cfg.Player.DatabasePath, "/tmp/hearo-test.db")
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "debug")
	}
	if got := len(cfg.Buttons.Inputs); got != 2 {
		t.Errorf("len(Buttons.Inputs) = %d, want 2", got)
	}
	if cfg.Buttons.Inputs[1].LongThresholdMS != 5000 {
		t.Errorf("RESET long threshold = %d, want 5000", cfg.Buttons.Inputs[1].LongThresholdMS)
	}
}

func TestLoad_Defaults(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.IPC.SocketDir != "/tmp/hearo" {
		t.Errorf("default SocketDir = %q, want /tmp/hearo", cfg.IPC.SocketDir)
	}
	if cfg.Buttons.LongThresholdMS != 800 {
		t.Errorf("default LongThresholdMS = %d, want 800", cfg.Buttons.LongThresholdMS)
	}
	if cfg.NFC.MissReleaseMS != 600 {
		t.Errorf("default MissReleaseMS = %d, want 600", cfg.NFC.MissReleaseMS)
	}
	if cfg.Player.SeekDeltaMS != 15000 {
		t.Errorf("default SeekDeltaMS = %d, want 15000", cfg.Player.SeekDeltaMS)
	}
	if got := cfg.IPC.EndpointPath(cfg.IPC.Endpoints.Events); got != "/tmp/hearo/events.sock" {
		t.Errorf("EndpointPath(events) = %q, want /tmp/hearo/events.sock", got)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("invalid: [yaml: content"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_EnvOverride(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte("{}\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	t.Setenv("HEARO_IPC_SOCKET_DIR", "/run/hearo")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.IPC.SocketDir != "/run/hearo" {
		t.Errorf("SocketDir = %q, want env override /run/hearo", cfg.IPC.SocketDir)
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "defaults are valid",
			mutate:  func(*Config) {},
			wantErr: false,
		},
		{
			name:    "empty socket dir",
			mutate:  func(c *Config) { c.IPC.SocketDir = "" },
			wantErr: true,
		},
		{
			name:    "receive wait too large",
			mutate:  func(c *Config) { c.IPC.ReceiveWaitMS = 2000 },
			wantErr: true,
		},
		{
			name: "duplicate button names",
			mutate: func(c *Config) {
				c.Buttons.Inputs = []ButtonInput{
					{Name: "NEXT", GPIO: 17},
					{Name: "NEXT", GPIO: 22},
				}
			},
			wantErr: true,
		},
		{
			name: "long threshold below short min",
			mutate: func(c *Config) {
				c.Buttons.LongThresholdMS = 40
				c.Buttons.ShortMinMS = 50
			},
			wantErr: true,
		},
		{
			name: "bridge enabled without sinks",
			mutate: func(c *Config) {
				c.Bridge.Enabled = true
			},
			wantErr: true,
		},
		{
			name: "critical soc out of range",
			mutate: func(c *Config) {
				c.Power.CriticalSoC = 120
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
