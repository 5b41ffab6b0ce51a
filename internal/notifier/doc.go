// Package notifier is the desktop notification center.
//
// Notify turns a freedesktop-style Notify call into a notification.Entity,
// shows it as a live bubble and hands it to a small persistence pipeline.
//
// # Bubbles
//
// Live bubbles sit in an expiring cache keyed by bubble id. A bubble expires
// after its timeout (negative means the configured default, zero means never)
// or closes on request. Replacing a live bubble keeps its bubble id and
// updates the stored record in place.
//
// # Persistence
//
// Records are written by a worker pool reading a bounded queue. Writes are
// rate limited and retried with exponential backoff. The store assigns record
// ids; a full queue drops the write, never the bubble.
//
// # History
//
// The center keeps a small in-memory ring of recently shown notifications.
package notifier
