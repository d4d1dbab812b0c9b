package main

import (
	"os"
	"strings"
	"time"

	"github.com/hearo-audio/hearo-core/internal/led"
	"github.com/hearo-audio/hearo-core/internal/player"
	"github.com/hearo-audio/hearo-core/internal/power"
	"github.com/hearo-audio/hearo-core/internal/wifi"
)

// Dev stubs stand in for the device hardware so the full fleet runs on
// a development host. They are deliberately boring: buttons stay
// released, the network is up, the battery is full, and playback
// succeeds instantly.

// devTagFile lets a developer simulate NFC taps: write a uid into the
// file to present a tag, truncate or remove it to lift the tag.
const devTagFile = "/tmp/hearo/tag"

type stubLines struct{}

func (stubLines) ReadLevel(string) (bool, error) { return false, nil }

type stubNFC struct {
	path string
}

func (stubNFC) Init() error { return nil }

func (s stubNFC) ReadUID() (string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return "", nil
	}
	return strings.TrimSpace(string(data)), nil
}

type stubNetwork struct{}

func (stubNetwork) StackAvailable() bool { return true }

func (stubNetwork) StationStatus() (wifi.Station, error) {
	return wifi.Station{Connected: true, SSID: "Hearo-Dev", IP: "127.0.0.1", RSSI: -40}, nil
}

func (stubNetwork) ProbeInternet(string) bool         { return true }
func (stubNetwork) Reconnect() error                  { return nil }
func (stubNetwork) StartAP(string, int, string) error { return nil }
func (stubNetwork) StopAP() error                     { return nil }

type stubPower struct{}

func (stubPower) Read() (power.BatteryState, error) {
	return power.BatteryState{SoC: 100, Band: power.BandCharging, ExtPower: true, TempBand: power.TempOK}, nil
}

type stubRenderer struct{}

func (stubRenderer) Render(led.RGB) error { return nil }
func (stubRenderer) Off() error           { return nil }

// stubBackend simulates the playback backend: every operation succeeds
// and the position advances in real time while playing.
type stubBackend struct {
	playing  bool
	uri      string
	basePos  int
	playedAt time.Time
}

func (b *stubBackend) EnsureReady() error { return nil }

func (b *stubBackend) Play(uri string, positionMS int) error {
	b.playing = true
	b.uri = uri
	b.basePos = positionMS
	b.playedAt = time.Now()
	return nil
}

func (b *stubBackend) Stop() error {
	if b.playing {
		b.basePos = b.positionNow()
		b.playing = false
	}
	return nil
}

func (b *stubBackend) Next() error     { return nil }
func (b *stubBackend) Previous() error { return nil }

func (b *stubBackend) SeekAbs(positionMS int) error {
	b.basePos = positionMS
	b.playedAt = time.Now()
	return nil
}

func (b *stubBackend) Status() (player.Status, error) {
	return player.Status{Playing: b.playing, URI: b.uri, PositionMS: b.positionNow()}, nil
}

func (b *stubBackend) positionNow() int {
	if !b.playing {
		return b.basePos
	}
	return b.basePos + int(time.Since(b.playedAt).Milliseconds())
}
