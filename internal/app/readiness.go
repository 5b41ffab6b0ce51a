package app

import (
	"context"
	"errors"

	"dockbridge/internal/resolver"
	logx "dockbridge/pkg/logx"

	"github.com/coreos/go-systemd/v22/daemon"
)

// sdNotifier sends a state string to the service manager. It reports false
// when not running under systemd.
type sdNotifier func(state string) (bool, error)

func systemdNotify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func (a *App) sdNotify(state string) {
	if a.notifySD == nil {
		return
	}
	sent, err := a.notifySD(state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify", logx.String("state", state))
	}
}

// awaitResolution reports readiness once the dock siblings are bound. A
// failed resolution still signals READY so the unit does not hang in
// activating; the status line says what is missing.
func (a *App) awaitResolution(ctx context.Context, r *resolver.Resolver) {
	select {
	case <-ctx.Done():
		return
	case <-r.Done():
	}
	switch r.State() {
	case resolver.Resolved:
		a.sdNotify(daemon.SdNotifyReady + "\nSTATUS=dock capabilities resolved")
	case resolver.Failed:
		status := "STATUS=degraded: missing dock capabilities"
		if err := r.Err(); err != nil && !errors.Is(err, resolver.ErrTimeout) {
			status += ": " + err.Error()
		}
		a.log.Warn("dock running degraded", logx.Strings("missing", r.Binding().Missing()))
		a.sdNotify(daemon.SdNotifyReady + "\n" + status)
	}
}
