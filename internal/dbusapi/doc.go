// Package dbusapi exports the dock bridge and the notification center on the
// session bus (github.com/godbus/dbus/v5).
//
// Bus objects:
//   - org.deepin.dde.Dock1 at /org/deepin/dde/Dock1
//   - org.freedesktop.Notifications at /org/freedesktop/Notifications, plus
//     the org.deepin.dde.Notification1 record interface on the same path
//
// Method tables are plain Go functions so they can be exercised without a
// bus; bus events are turned into D-Bus signals by a single pump goroutine.
package dbusapi
