package model

import (
	"log/slog"
	"sync/atomic"
)

var engineLogger atomic.Pointer[slog.Logger]

// SetLogger sets the logger that receives configuration warnings, such as
// field hooks or meta entries naming no prop. nil restores slog.Default.
func SetLogger(l *slog.Logger) {
	engineLogger.Store(l)
}

func logger() *slog.Logger {
	if l := engineLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}
