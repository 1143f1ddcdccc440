// Package daemon runs the long-lived sentra process: single-instance
// locking, the Discord bot when enabled, and the local HTTP API.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"github.com/gofrs/flock"

	"sentra/internal/config"
	"sentra/internal/discord"
	"sentra/internal/logging"
	"sentra/internal/matchlog"
	"sentra/internal/notifications"
	"sentra/internal/screening"
)

// Daemon coordinates the background services and enforces
// single-instance execution.
type Daemon struct {
	cfg      *config.Config
	logger   *slog.Logger
	screener *screening.Service
	history  *matchlog.Store
	notifier notifications.Service
	bot      *discord.Bot
	api      *apiServer

	lockPath string
	lock     *flock.Flock

	running atomic.Bool
	cancel  context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running          bool
	PID              int
	FingerprintCount int
	Tolerance        int
	SnapshotPath     string
	LockFilePath     string
	DiscordEnabled   bool
}

// New constructs a daemon with initialized dependencies. History may
// be nil when the detection log is unavailable.
func New(cfg *config.Config, screener *screening.Service, history *matchlog.Store, notifier notifications.Service, logger *slog.Logger) (*Daemon, error) {
	if cfg == nil || screener == nil || notifier == nil || logger == nil {
		return nil, errors.New("daemon requires config, screener, notifier, and logger")
	}

	lockPath := cfg.LockPath()
	d := &Daemon{
		cfg:      cfg,
		logger:   logging.NewComponentLogger(logger, "daemon"),
		screener: screener,
		history:  history,
		notifier: notifier,
		lockPath: lockPath,
		lock:     flock.New(lockPath),
	}
	d.api = newAPIServer(cfg, d, logger)
	return d, nil
}

// Start acquires the single-instance lock and launches the configured
// services.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another sentra instance holds %s", d.lockPath)
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if d.api != nil {
		if err := d.api.start(runCtx); err != nil {
			d.releaseLock()
			cancel()
			return err
		}
	}

	if d.cfg.Discord.Enabled {
		bot, err := discord.New(discord.Options{
			Config:   d.cfg,
			Screener: d.screener,
			History:  d.history,
			Notifier: d.notifier,
			Logger:   d.logger,
		})
		if err != nil {
			d.stopServices()
			cancel()
			return err
		}
		if err := bot.Start(runCtx); err != nil {
			d.stopServices()
			cancel()
			return err
		}
		d.bot = bot
	} else {
		d.logger.Info("discord integration disabled")
	}

	d.running.Store(true)
	d.logger.Info("daemon started",
		logging.Int("fingerprint_count", d.screener.Count()),
		logging.Int("tolerance", d.screener.Tolerance()))
	return nil
}

// Run starts the daemon and blocks until ctx is cancelled or a
// termination signal arrives.
func (d *Daemon) Run(ctx context.Context) error {
	signalCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := d.Start(signalCtx); err != nil {
		return err
	}
	<-signalCtx.Done()
	d.logger.Info("shutdown requested")
	return d.Stop()
}

// Stop shuts the services down and releases the lock.
func (d *Daemon) Stop() error {
	if !d.running.Load() {
		return nil
	}
	if d.cancel != nil {
		d.cancel()
	}
	d.stopServices()
	d.releaseLock()
	d.running.Store(false)
	d.logger.Info("daemon stopped")
	return nil
}

// Status reports runtime information for the CLI and the HTTP API.
func (d *Daemon) Status() Status {
	return Status{
		Running:          d.running.Load(),
		PID:              os.Getpid(),
		FingerprintCount: d.screener.Count(),
		Tolerance:        d.screener.Tolerance(),
		SnapshotPath:     d.cfg.SnapshotPath(),
		LockFilePath:     d.lockPath,
		DiscordEnabled:   d.cfg.Discord.Enabled,
	}
}

func (d *Daemon) stopServices() {
	if d.bot != nil {
		if err := d.bot.Stop(); err != nil {
			d.logger.Warn("discord shutdown failed", logging.Error(err))
		}
		d.bot = nil
	}
	if d.api != nil {
		d.api.stop()
	}
}

func (d *Daemon) releaseLock() {
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release lock", logging.Error(err))
	}
}
