package main

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/power"
	"github.com/hearo-audio/hearo-core/internal/wifi"
)

// Platform adapters for the embedded image. They shell out to the
// same OS tooling the device ships with (wpa_cli, iw, systemd units)
// and read the kernel's sysfs interfaces directly.

// wpaController drives Wi-Fi through wpa_supplicant. The provisioning
// AP is a separate systemd unit so that hostapd configuration stays
// out of this process.
type wpaController struct {
	iface   string
	timeout time.Duration
	log     *logging.Logger
}

func newWPAController(cfg config.WiFiConfig, log *logging.Logger) *wpaController {
	return &wpaController{iface: cfg.Interface, timeout: cfg.CommandTimeout(), log: log}
}

// run executes one tool invocation with the configured timeout.
func (c *wpaController) run(name string, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), c.timeout)
	defer cancel()
	out, err := exec.CommandContext(ctx, name, args...).Output()
	return string(out), err
}

func (c *wpaController) StackAvailable() bool {
	_, err := exec.LookPath("wpa_cli")
	return err == nil
}

// StationStatus assembles the link snapshot from wpa_cli, hostname -I
// and iw, tolerating any individual tool being absent.
func (c *wpaController) StationStatus() (wifi.Station, error) {
	var st wifi.Station

	out, err := c.run("wpa_cli", "-i", c.iface, "status")
	if err != nil {
		return st, fmt.Errorf("wpa_cli status: %w", err)
	}
	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(line, "ssid="); ok {
			st.SSID = strings.TrimSpace(v)
		}
	}

	if out, err := c.run("hostname", "-I"); err == nil {
		if fields := strings.Fields(out); len(fields) > 0 {
			st.IP = fields[0]
		}
	}

	if out, err := c.run("iw", "dev", c.iface, "link"); err == nil {
		for _, line := range strings.Split(out, "\n") {
			line = strings.TrimSpace(line)
			if v, ok := strings.CutPrefix(line, "signal:"); ok {
				if fields := strings.Fields(v); len(fields) > 0 {
					if rssi, convErr := strconv.Atoi(fields[0]); convErr == nil {
						st.RSSI = rssi
					}
				}
			}
		}
	}

	st.Connected = st.SSID != "" && st.IP != ""
	return st, nil
}

// ProbeInternet checks TCP reachability of the backend host. A plain
// connect is cheaper and more reliable than ICMP on the device image.
func (c *wpaController) ProbeInternet(host string) bool {
	conn, err := net.DialTimeout("tcp", net.JoinHostPort(host, "443"), c.timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

func (c *wpaController) Reconnect() error {
	_, err := c.run("wpa_cli", "-i", c.iface, "reconnect")
	return err
}

func (c *wpaController) StartAP(ssid string, channel int, security string) error {
	_, err := c.run("systemctl", "start", "hearo-ap.service")
	return err
}

func (c *wpaController) StopAP() error {
	_, err := c.run("systemctl", "stop", "hearo-ap.service")
	return err
}

// gpioLines reads button levels from the sysfs GPIO value files the
// image exports at boot. Inputs are wired active-low with pull-ups.
type gpioLines struct {
	pins map[string]int
}

func newGPIOLines(cfg config.ButtonsConfig) *gpioLines {
	pins := make(map[string]int, len(cfg.Inputs))
	for _, in := range cfg.Inputs {
		pins[in.Name] = in.GPIO
	}
	return &gpioLines{pins: pins}
}

func (g *gpioLines) ReadLevel(name string) (bool, error) {
	pin, ok := g.pins[name]
	if !ok {
		return false, fmt.Errorf("unknown button %q", name)
	}
	data, err := os.ReadFile(fmt.Sprintf("/sys/class/gpio/gpio%d/value", pin))
	if err != nil {
		return false, fmt.Errorf("reading gpio %d: %w", pin, err)
	}
	return strings.TrimSpace(string(data)) == "0", nil
}

// sysfsPower reads the battery gauge and charger state from
// /sys/class/power_supply.
type sysfsPower struct {
	root string
}

func newSysfsPower() *sysfsPower {
	return &sysfsPower{root: "/sys/class/power_supply"}
}

func (s *sysfsPower) Read() (power.BatteryState, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return power.BatteryState{}, fmt.Errorf("reading %s: %w", s.root, err)
	}

	st := power.BatteryState{SoC: -1, TempBand: power.TempOK}
	for _, e := range entries {
		dir := s.root + "/" + e.Name()
		switch s.readAttr(dir, "type") {
		case "Battery":
			if soc, err := strconv.Atoi(s.readAttr(dir, "capacity")); err == nil {
				st.SoC = soc
			}
		case "Mains", "USB":
			if s.readAttr(dir, "online") == "1" {
				st.ExtPower = true
			}
		}
	}
	if st.SoC < 0 {
		return power.BatteryState{}, fmt.Errorf("no battery gauge under %s", s.root)
	}

	switch {
	case st.ExtPower:
		st.Band = power.BandCharging
	case st.SoC <= 5:
		st.Band = power.BandCritical
	case st.SoC <= 20:
		st.Band = power.BandLow
	default:
		st.Band = power.BandNormal
	}

	if raw := s.readAttr("/sys/class/thermal/thermal_zone0", "temp"); raw != "" {
		if milli, err := strconv.Atoi(raw); err == nil {
			switch {
			case milli >= 75000:
				st.TempBand = power.TempCrit
			case milli >= 60000:
				st.TempBand = power.TempWarn
			}
		}
	}
	return st, nil
}

func (s *sysfsPower) readAttr(dir, name string) string {
	data, err := os.ReadFile(dir + "/" + name)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
