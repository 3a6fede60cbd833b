package tlogger

import (
	"io"
	"os"
	"sync"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
)

var (
	mu   sync.RWMutex
	hlog log.Logger
)

func init() {
	Setup(os.Stdout, "info")
}

// Setup replaces the output and the minimum level of the package logger.
// Accepted levels are debug, info, warn, error and all; anything else means info.
func Setup(w io.Writer, lvl string) {
	l := log.NewLogfmtLogger(log.NewSyncWriter(w))
	l = log.With(l, "ts", log.DefaultTimestampUTC, "caller", log.Caller(6))

	var opt level.Option
	switch lvl {
	case "debug":
		opt = level.AllowDebug()
	case "warn":
		opt = level.AllowWarn()
	case "error":
		opt = level.AllowError()
	case "all":
		opt = level.AllowAll()
	default:
		opt = level.AllowInfo()
	}

	mu.Lock()
	hlog = level.NewFilter(l, opt)
	mu.Unlock()
}

// ApplyVerbosity maps a -v counter to a level.
func ApplyVerbosity(v int) {
	switch v {
	case 0:
		Setup(os.Stdout, "info")
	case 1:
		Setup(os.Stdout, "debug")
	default:
		Setup(os.Stdout, "all")
	}
}

func current() log.Logger {
	mu.RLock()
	defer mu.RUnlock()
	return hlog
}

// Debug add a log entry w/ Debug level
func Debug(keyvals ...interface{}) {
	level.Debug(current()).Log(keyvals...)
}

// Info add a log entry w/ Info level
func Info(keyvals ...interface{}) {
	level.Info(current()).Log(keyvals...)
}

// Warn add a log entry w/ Warn level
func Warn(keyvals ...interface{}) {
	level.Warn(current()).Log(keyvals...)
}

// Error add a log entry w/ Error level
func Error(keyvals ...interface{}) {
	level.Error(current()).Log(keyvals...)
}
