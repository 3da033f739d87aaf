// Package logx configures growthbot's structured logging.
//
// This repo uses a small wrapper (logx.Logger) on top of zerolog to keep:
//   - Console output readable (short timestamp + short caller)
//   - File output JSON-structured
//   - An optional chat sink for warnings (min-level + rate limiting)
package logx
