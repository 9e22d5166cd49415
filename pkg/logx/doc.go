// Package logx configures the bot's structured logging.
//
// Logger is a small wrapper on top of zerolog. Console output is readable
// (short timestamp and caller), file output is JSON, and an optional chat
// sink forwards WARN+ lines to a channel with rate limiting.
package logx
