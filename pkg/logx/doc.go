// Package logx configures remindbot's structured logging.
//
// Logger is a small value type on top of zerolog:
//   - Console output stays readable (short timestamp + file:line caller)
//   - File output is JSON, one event per line
//   - An optional alert sink forwards warnings to an operator chat
//     (min-level + rate limited, never blocks the caller)
package logx
