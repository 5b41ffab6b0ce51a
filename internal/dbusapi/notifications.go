package dbusapi

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"dockbridge/internal/notification"
	"dockbridge/internal/notifier"
	"dockbridge/internal/storage"

	"github.com/godbus/dbus/v5"
)

const callTimeout = 5 * time.Second

// notificationMethods returns the org.freedesktop.Notifications method table.
func notificationMethods(n NotifyBackend, info ServerInfo) map[string]any {
	return map[string]any{
		"Notify": func(appName string, replacesID uint32, appIcon, summary, body string, actions []string, hints map[string]dbus.Variant, expireTimeout int32) (uint32, *dbus.Error) {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			id, err := n.Notify(ctx, appName, replacesID, appIcon, summary, body, actions, flattenHints(hints), expireTimeout)
			if err != nil {
				return 0, dbus.MakeFailedError(err)
			}
			return id, nil
		},
		"CloseNotification": func(id uint32) *dbus.Error {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			// Closing an unknown or already closed bubble is not an error.
			if err := n.Close(ctx, id); err != nil && !errors.Is(err, notifier.ErrNotFound) {
				return dbus.MakeFailedError(err)
			}
			return nil
		},
		"GetCapabilities": func() ([]string, *dbus.Error) {
			return append([]string(nil), capabilities...), nil
		},
		"GetServerInformation": func() (string, string, string, string, *dbus.Error) {
			return info.Name, info.Vendor, info.Version, info.ProtocolVersion, nil
		},
	}
}

// recordMethods returns the org.deepin.dde.Notification1 method table: the
// stored history and user actions on live bubbles.
func recordMethods(n NotifyBackend) map[string]any {
	return map[string]any{
		"InvokeAction": func(id uint32, actionKey string) *dbus.Error {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			if err := n.InvokeAction(ctx, id, actionKey); err != nil {
				return dbus.MakeFailedError(err)
			}
			return nil
		},
		"GetRecords": func(appName string, limit int32) ([]string, *dbus.Error) {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			rows, err := n.List(ctx, storage.ListFilter{AppName: appName, Limit: int(limit)})
			if err != nil {
				return nil, dbus.MakeFailedError(err)
			}
			out, err := encodeRecords(rows)
			if err != nil {
				return nil, dbus.MakeFailedError(err)
			}
			return out, nil
		},
		"RemoveRecord": func(id int64) *dbus.Error {
			ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
			defer cancel()
			if err := n.Remove(ctx, id); err != nil {
				return dbus.MakeFailedError(err)
			}
			return nil
		},
	}
}

func encodeRecords(rows []notification.Entity) ([]string, error) {
	out := make([]string, 0, len(rows))
	for _, r := range rows {
		s, err := notification.Encode(r)
		if err != nil {
			return nil, fmt.Errorf("encode record %d: %w", r.ID(), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// flattenHints keeps the scalar hints as strings. Image data and other
// compound values are dropped.
func flattenHints(in map[string]dbus.Variant) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		switch x := v.Value().(type) {
		case string:
			out[k] = x
		case bool:
			out[k] = strconv.FormatBool(x)
		case byte:
			out[k] = strconv.FormatUint(uint64(x), 10)
		case int16, int32, int64, uint16, uint32, uint64, int:
			out[k] = fmt.Sprint(x)
		case float64:
			out[k] = strconv.FormatFloat(x, 'g', -1, 64)
		case dbus.ObjectPath:
			out[k] = string(x)
		}
	}
	return out
}
