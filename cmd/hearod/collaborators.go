package main

import (
	"github.com/hearo-audio/hearo-core/internal/buttons"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/led"
	"github.com/hearo-audio/hearo-core/internal/nfc"
	"github.com/hearo-audio/hearo-core/internal/player"
	"github.com/hearo-audio/hearo-core/internal/power"
	"github.com/hearo-audio/hearo-core/internal/wifi"
)

// Collaborator selection: dev_stubs swaps every hardware dependency
// for an in-process fake. The PN532 reader and WS281x strip drivers
// are linked in by the device image build, not this tree, so those two
// fall back to stubs with a warning when running unstubbed.

func buildLineReader(cfg *config.Config, log *logging.Logger) buttons.LineReader {
	if cfg.DevStubs {
		return stubLines{}
	}
	return newGPIOLines(cfg.Buttons)
}

func buildNFCReader(cfg *config.Config, log *logging.Logger) nfc.Reader {
	if !cfg.DevStubs {
		log.Warn("no PN532 driver in this build; nfcd running with the stub reader")
	}
	return stubNFC{path: devTagFile}
}

func buildNetworkController(cfg *config.Config, log *logging.Logger) wifi.NetworkController {
	if cfg.DevStubs {
		return stubNetwork{}
	}
	return newWPAController(cfg.WiFi, log)
}

func buildPowerSource(cfg *config.Config, log *logging.Logger) power.Source {
	if cfg.DevStubs {
		return stubPower{}
	}
	return newSysfsPower()
}

func buildRenderer(cfg *config.Config, log *logging.Logger) led.Renderer {
	if !cfg.DevStubs {
		log.Warn("no WS281x driver in this build; ledd running with the stub renderer")
	}
	return stubRenderer{}
}

func buildBackend(cfg *config.Config, log *logging.Logger) player.Backend {
	if cfg.DevStubs {
		return &stubBackend{}
	}
	return player.NewSpotifyBackend(cfg.Player.TokenFile, cfg.Player.DeviceName,
		log.With("component", "spotify"))
}
