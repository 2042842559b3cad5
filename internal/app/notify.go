package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "scorebot/pkg/logx"
)

// notifyReady reports readiness to systemd (Type=notify units). Outside of
// systemd the notify socket is unset and this does nothing.
func (a *App) notifyReady() {
	ack, err := daemon.SdNotify(false, daemon.SdNotifyReady)
	if err != nil {
		a.log.Debug("sd_notify failed", logx.Err(err))
		return
	}
	if ack {
		a.log.Debug("readiness reported to systemd")
	}
}

func (a *App) notifyStopping() {
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)
}

// startWatchdog feeds the systemd watchdog at half the unit's WatchdogSec.
func (a *App) startWatchdog() {
	interval, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		a.log.Warn("watchdog detection failed", logx.Err(err))
		return
	}
	if interval == 0 {
		return
	}
	a.sup.Go0("systemd.watchdog", func(ctx context.Context) {
		t := time.NewTicker(interval / 2)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				_, _ = daemon.SdNotify(false, daemon.SdNotifyWatchdog)
			}
		}
	})
	a.log.Info("systemd watchdog enabled", logx.Duration("interval", interval))
}
