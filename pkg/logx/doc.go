// Package logx configures dockd's structured logging.
//
// A small wrapper (logx.Logger) on top of zerolog keeps:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional notification sink that raises warn+ lines as desktop
//     notifications (min-level + rate limiting)
package logx
