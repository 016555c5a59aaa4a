// Package logger wraps zap for structured logging.
package logger

import (
	"fmt"
	"os"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	log     *zap.Logger
	once    sync.Once
	mu      sync.Mutex
	logFile = "kirby.log"
	level   = zap.NewAtomicLevelAt(zap.InfoLevel)
)

// SetLogPath changes the file the next InitLogger writes to. An empty path
// disables file output.
func SetLogPath(path string) {
	mu.Lock()
	defer mu.Unlock()
	logFile = path
}

// SetLevel parses and applies a level such as "debug" or "warn". It can be
// called before or after initialization.
func SetLevel(name string) error {
	var l zapcore.Level
	if err := l.UnmarshalText([]byte(name)); err != nil {
		return fmt.Errorf("invalid log level %q: %w", name, err)
	}
	level.SetLevel(l)
	return nil
}

// InitLogger builds the global logger: console output plus JSON lines in the
// log file.
func InitLogger() {
	once.Do(func() {
		mu.Lock()
		path := logFile
		mu.Unlock()

		consoleEncoder := zapcore.NewConsoleEncoder(zap.NewDevelopmentEncoderConfig())
		cores := []zapcore.Core{zapcore.NewCore(consoleEncoder, zapcore.Lock(os.Stdout), level)}

		if path != "" {
			file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
			if err != nil {
				fmt.Fprintf(os.Stderr, "logger: cannot open %s: %v\n", path, err)
			} else {
				fileEncoder := zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig())
				cores = append(cores, zapcore.NewCore(fileEncoder, zapcore.AddSync(file), level))
			}
		}

		log = zap.New(zapcore.NewTee(cores...), zap.AddCaller())
	})
}

// GetLogger returns the global logger, initializing it on first use.
func GetLogger() *zap.Logger {
	InitLogger()
	return log
}

// ResetLogger discards the global logger so the next call rebuilds it.
func ResetLogger() {
	Sync()
	log = nil
	once = sync.Once{}
}

// Sync flushes buffered entries before the process exits.
func Sync() {
	if log != nil {
		_ = log.Sync()
	}
}
