// pkg/logger/logger.go

package logger

import (
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var log *zap.Logger

// PlatformLogPaths returns candidate log file paths in order of priority.
func PlatformLogPaths() []string {
	return []string{
		"/var/log/bsdeploy/bsdeploy.log",
		filepath.Join(os.Getenv("HOME"), ".local", "state", "bsdeploy", "bsdeploy.log"),
		filepath.Join(os.TempDir(), "bsdeploy", "bsdeploy.log"),
	}
}

// FindWritableLogPath returns the first path we can actually create and
// append to, or an error when every candidate is unwritable.
func FindWritableLogPath() (string, error) {
	var lastErr error
	for _, path := range PlatformLogPaths() {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			lastErr = err
			continue
		}
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			lastErr = err
			continue
		}
		_ = f.Close()
		return path, nil
	}
	return "", lastErr
}

// ParseLogLevel maps LOG_LEVEL values onto zap levels, defaulting to info.
func ParseLogLevel(level string) zapcore.Level {
	switch level {
	case "debug":
		return zapcore.DebugLevel
	case "warn":
		return zapcore.WarnLevel
	case "error":
		return zapcore.ErrorLevel
	default:
		return zapcore.InfoLevel
	}
}

// L returns the package logger, or the zap global if initialization has
// not run yet.
func L() *zap.Logger {
	if log != nil {
		return log
	}
	return zap.L()
}

// Sync flushes buffered log entries. Errors are ignored: syncing stdout
// fails on some platforms and there is nothing useful to do about it.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
