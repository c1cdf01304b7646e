package monitoring

import (
	"log"
	"time"

	"tailscale.com/types/logger"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Tests or production code can redirect or mute it.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Limited returns a logger for code that runs every control cycle. Each
// format string may log burst times, then at most once per interval. Output
// still goes through Logf so SetLogger applies.
func Limited(interval time.Duration, burst int) func(format string, v ...interface{}) {
	if burst < 1 {
		burst = 1
	}
	limited := logger.RateLimitedFn(func(format string, v ...any) {
		Logf(format, v...)
	}, interval, burst, 128)
	return func(format string, v ...interface{}) {
		limited(format, v...)
	}
}
