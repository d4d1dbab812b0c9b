package player

import (
	"context"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/hearo-audio/hearo-core/internal/infrastructure/config"
	"github.com/hearo-audio/hearo-core/internal/infrastructure/logging"
	"github.com/hearo-audio/hearo-core/internal/peer"
)

// gracefulTimeout is how long librespot gets to exit on SIGTERM before
// it is killed.
const gracefulTimeout = 5 * time.Second

// steadyRunTime is how long librespot must stay up before a crash
// resets the restart backoff.
const steadyRunTime = time.Minute

// Librespot supervises the local Spotify Connect player process. With
// Managed false it does nothing: librespot runs externally, typically
// under systemd.
type Librespot struct {
	cfg    config.LibrespotConfig
	device string
	log    *logging.Logger

	mu  sync.Mutex
	cmd *exec.Cmd
}

// NewLibrespot builds a supervisor announcing the given Connect device
// name.
func NewLibrespot(cfg config.LibrespotConfig, device string, log *logging.Logger) *Librespot {
	return &Librespot{cfg: cfg, device: device, log: log}
}

// Run starts librespot and restarts it with backoff on unexpected
// exits until ctx is cancelled. Blocks; run it in its own goroutine.
func (l *Librespot) Run(ctx context.Context) {
	if !l.cfg.Managed {
		l.log.Info("librespot unmanaged, expecting external process")
		return
	}

	backoff := peer.NewBackoff(l.cfg.RestartDelay(), l.cfg.MaxRestartDelay())
	for {
		startedAt := time.Now()
		err := l.runOnce(ctx)
		if ctx.Err() != nil {
			return
		}
		if time.Since(startedAt) >= steadyRunTime {
			backoff.Reset()
		}
		delay := backoff.Next()
		l.log.Warn("librespot exited", "error", err, "restart_in", delay)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
	}
}

// runOnce runs a single librespot process to completion or
// cancellation.
func (l *Librespot) runOnce(ctx context.Context) error {
	args := append([]string{"--name", l.device}, l.cfg.Args...)
	cmd := exec.Command(l.cfg.Binary, args...)

	if err := cmd.Start(); err != nil {
		return err
	}
	l.mu.Lock()
	l.cmd = cmd
	l.mu.Unlock()
	l.log.Info("librespot started", "pid", cmd.Process.Pid, "device", l.device)

	done := make(chan error, 1)
	go func() { done <- cmd.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		_ = cmd.Process.Signal(syscall.SIGTERM)
		select {
		case <-done:
		case <-time.After(gracefulTimeout):
			_ = cmd.Process.Kill()
			<-done
		}
		return ctx.Err()
	}
}
