package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/player"
	"github.com/hearo-audio/hearo-core/internal/power"
)

func testLogger() *logging.Logger {
	return logging.New(config.LoggingConfig{Level: "none"}, "test")
}

func TestGetConfigPath(t *testing.T) {
	t.Setenv("HEARO_CONFIG", "")
	if got := getConfigPath(); got != defaultConfigPath {
		t.Errorf("getConfigPath() = %q, want %q", got, defaultConfigPath)
	}

	t.Setenv("HEARO_CONFIG", "/tmp/custom.yaml")
	if got := getConfigPath(); got != "/tmp/custom.yaml" {
		t.Errorf("getConfigPath() = %q, want env override", got)
	}
}

func TestMirrorTargets(t *testing.T) {
	cfg := &config.Config{
		IPC: config.IPCConfig{
			SocketDir: "/tmp/hearo",
			Endpoints: config.EndpointNames{
				LED:    "ledd.sock",
				Bridge: "bridge.sock",
			},
		},
	}

	if got := mirrorTargets(cfg); len(got) != 0 {
		t.Errorf("mirrorTargets() = %v, want none with ledd and bridge disabled", got)
	}

	cfg.LED.Enabled = true
	got := mirrorTargets(cfg)
	if len(got) != 1 || got[0] != "/tmp/hearo/ledd.sock" {
		t.Errorf("mirrorTargets() = %v, want only the LED socket", got)
	}

	cfg.Bridge.Enabled = true
	got = mirrorTargets(cfg)
	if len(got) != 2 || got[1] != "/tmp/hearo/bridge.sock" {
		t.Errorf("mirrorTargets() = %v, want LED then bridge", got)
	}
}

func TestCollaboratorSelection(t *testing.T) {
	log := testLogger()
	stubbed := &config.Config{DevStubs: true}
	platform := &config.Config{
		WiFi:   config.WiFiConfig{Interface: "wlan0", CommandTimeoutSeconds: 5},
		Player: config.PlayerConfig{TokenFile: "/tmp/token.json", DeviceName: "Hearo"},
	}

	if _, ok := buildNetworkController(stubbed, log).(stubNetwork); !ok {
		t.Error("dev_stubs should select the stub network controller")
	}
	if _, ok := buildNetworkController(platform, log).(*wpaController); !ok {
		t.Error("platform build should select the wpa_cli controller")
	}

	if _, ok := buildBackend(stubbed, log).(*stubBackend); !ok {
		t.Error("dev_stubs should select the stub backend")
	}
	if _, ok := buildBackend(platform, log).(*player.SpotifyBackend); !ok {
		t.Error("platform build should select the Spotify backend")
	}

	if _, ok := buildPowerSource(stubbed, log).(stubPower); !ok {
		t.Error("dev_stubs should select the stub power source")
	}
	if _, ok := buildPowerSource(platform, log).(*sysfsPower); !ok {
		t.Error("platform build should select the sysfs power source")
	}
}

func TestStubNFCReadsTagFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tag")
	reader := stubNFC{path: path}

	if uid, _ := reader.ReadUID(); uid != "" {
		t.Errorf("ReadUID() = %q, want empty with no tag file", uid)
	}

	if err := os.WriteFile(path, []byte("04AABBCC\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if uid, _ := reader.ReadUID(); uid != "04AABBCC" {
		t.Errorf("ReadUID() = %q, want trimmed uid", uid)
	}
}

func TestStubBackendTracksPlayback(t *testing.T) {
	b := &stubBackend{}

	if err := b.Play("spotify:playlist:pl1", 30000); err != nil {
		t.Fatalf("Play() error = %v", err)
	}
	st, err := b.Status()
	if err != nil || !st.Playing || st.URI != "spotify:playlist:pl1" {
		t.Fatalf("Status() = %+v, err = %v", st, err)
	}
	if st.PositionMS < 30000 {
		t.Errorf("PositionMS = %d, want >= start position", st.PositionMS)
	}

	if err := b.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	st, _ = b.Status()
	if st.Playing {
		t.Error("Status() still playing after Stop")
	}
}

func TestSysfsPowerRead(t *testing.T) {
	root := t.TempDir()
	writeSupply := func(name string, attrs map[string]string) {
		dir := filepath.Join(root, name)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			t.Fatal(err)
		}
		for k, v := range attrs {
			if err := os.WriteFile(filepath.Join(dir, k), []byte(v+"\n"), 0o600); err != nil {
				t.Fatal(err)
			}
		}
	}

	writeSupply("bat0", map[string]string{"type": "Battery", "capacity": "42"})
	writeSupply("usb", map[string]string{"type": "USB", "online": "0"})

	src := &sysfsPower{root: root}
	st, err := src.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if st.SoC != 42 || st.ExtPower || st.Band != power.BandNormal {
		t.Errorf("state = %+v, want 42%% on battery", st)
	}

	// Charger online flips the band regardless of the gauge.
	writeSupply("usb", map[string]string{"type": "USB", "online": "1"})
	st, err = src.Read()
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if !st.ExtPower || st.Band != power.BandCharging {
		t.Errorf("state = %+v, want charging on external power", st)
	}

	// Low gauge without a charger lands in the low band.
	writeSupply("bat0", map[string]string{"type": "Battery", "capacity": "15"})
	writeSupply("usb", map[string]string{"type": "USB", "online": "0"})
	st, _ = src.Read()
	if st.Band != power.BandLow {
		t.Errorf("band = %q, want %q at 15%%", st.Band, power.BandLow)
	}
}
