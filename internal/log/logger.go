package log

import (
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LogLevel defines the severity of a log message.
type LogLevel int8

// Constants for log levels. Values mirror zapcore so conversion is a cast.
const (
	LevelDebug LogLevel = LogLevel(zapcore.DebugLevel)
	LevelInfo  LogLevel = LogLevel(zapcore.InfoLevel)
	LevelWarn  LogLevel = LogLevel(zapcore.WarnLevel)
	LevelError LogLevel = LogLevel(zapcore.ErrorLevel)
	LevelFatal LogLevel = LogLevel(zapcore.FatalLevel)
)

// String returns the string representation of the LogLevel.
func (l LogLevel) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelFatal:
		return "FATAL"
	default:
		return "UNKNOWN"
	}
}

// ParseLevel converts a string (case-insensitive) to a LogLevel.
// Returns LevelInfo and false if the string is not recognized.
func ParseLevel(levelStr string) (LogLevel, bool) {
	switch strings.ToUpper(strings.TrimSpace(levelStr)) {
	case "DEBUG":
		return LevelDebug, true
	case "INFO":
		return LevelInfo, true
	case "WARN", "WARNING":
		return LevelWarn, true
	case "ERROR":
		return LevelError, true
	case "FATAL":
		return LevelFatal, true
	default:
		return LevelInfo, false
	}
}

// --- Global Logger State ---

var (
	level  = zap.NewAtomicLevelAt(zapcore.InfoLevel)
	mu     sync.RWMutex
	sugar  = newSugar(zapcore.Lock(os.Stderr))
	closer func() error
)

func newSugar(ws zapcore.WriteSyncer) *zap.SugaredLogger {
	enc := zap.NewDevelopmentEncoderConfig()
	enc.EncodeTime = zapcore.TimeEncoderOfLayout("2006/01/02 15:04:05.000000")
	enc.EncodeLevel = zapcore.CapitalLevelEncoder
	core := zapcore.NewCore(zapcore.NewConsoleEncoder(enc), ws, level)
	return zap.New(core, zap.AddCaller(), zap.AddCallerSkip(1)).Sugar()
}

func current() *zap.SugaredLogger {
	mu.RLock()
	defer mu.RUnlock()
	return sugar
}

// SetLevel sets the global logging level atomically.
func SetLevel(l LogLevel) {
	level.SetLevel(zapcore.Level(l))
}

// GetLevel gets the current global logging level atomically.
func GetLevel() LogLevel {
	return LogLevel(level.Level())
}

// Enabled reports whether messages at l would currently be written.
func Enabled(l LogLevel) bool {
	return level.Enabled(zapcore.Level(l))
}

// ToFile redirects all subsequent output to path, appending. Used when the
// terminal belongs to the interactive meter.
func ToFile(path string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file %s: %w", path, err)
	}
	mu.Lock()
	prev := closer
	sugar = newSugar(zapcore.AddSync(f))
	closer = f.Close
	mu.Unlock()
	if prev != nil {
		_ = prev()
	}
	return nil
}

// Sync flushes buffered output and closes a file sink if one is open.
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	err := sugar.Sync()
	if err != nil && strings.Contains(err.Error(), "inappropriate ioctl for device") {
		err = nil
	}
	if closer != nil {
		if cerr := closer(); cerr != nil && err == nil {
			err = cerr
		}
		closer = nil
		sugar = newSugar(zapcore.Lock(os.Stderr))
	}
	return err
}

// --- Public Logging Functions ---

// Debugf logs a formatted debug message if the level is appropriate.
func Debugf(format string, v ...interface{}) {
	current().Debugf(format, v...)
}

// Infof logs a formatted info message if the level is appropriate.
func Infof(format string, v ...interface{}) {
	current().Infof(format, v...)
}

// Warnf logs a formatted warning message if the level is appropriate.
func Warnf(format string, v ...interface{}) {
	current().Warnf(format, v...)
}

// Errorf logs a formatted error message if the level is appropriate.
func Errorf(format string, v ...interface{}) {
	current().Errorf(format, v...)
}

// Fatalf logs a formatted fatal message and exits the application.
// Fatal messages are always logged regardless of the current level.
func Fatalf(format string, v ...interface{}) {
	current().Fatalf(format, v...)
}

// --- Structured variants ---

// Debugw logs a debug message with key/value pairs.
func Debugw(msg string, keysAndValues ...interface{}) {
	current().Debugw(msg, keysAndValues...)
}

// Infow logs an info message with key/value pairs.
func Infow(msg string, keysAndValues ...interface{}) {
	current().Infow(msg, keysAndValues...)
}

// Warnw logs a warning with key/value pairs.
func Warnw(msg string, keysAndValues ...interface{}) {
	current().Warnw(msg, keysAndValues...)
}
