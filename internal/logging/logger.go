package logging

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"time"
)

// Logger defines a minimal, printf-style logging contract.
//
// Components depend on this interface so tests can swap in a no-op or
// capturing implementation without touching call sites.
type Logger interface {
	Debug(format string, args ...any)
	Info(format string, args ...any)
	Warn(format string, args ...any)
	Error(format string, args ...any)
}

// LogLevel represents the severity of a log message
type LogLevel int

const (
	DEBUG LogLevel = iota
	INFO
	WARN
	ERROR
)

var (
	loggerInstance *fileLogger
	loggerOnce     sync.Once
)

// fileLogger provides structured logging to sahayak-debug.log and stderr
type fileLogger struct {
	file      *os.File
	logger    *log.Logger
	level     LogLevel
	mu        sync.Mutex
	component string
}

// getRoot returns the singleton root logger instance
func getRoot() *fileLogger {
	loggerOnce.Do(func() {
		loggerInstance = newFileLogger("", levelFromEnv())
	})
	return loggerInstance
}

func levelFromEnv() LogLevel {
	switch os.Getenv("SAHAYAK_LOG_LEVEL") {
	case "debug":
		return DEBUG
	case "warn":
		return WARN
	case "error":
		return ERROR
	default:
		return INFO
	}
}

// NewComponentLogger creates a logger for a specific component
func NewComponentLogger(component string) Logger {
	root := getRoot()
	return &fileLogger{
		file:      root.file,
		logger:    root.logger,
		level:     root.level,
		component: component,
	}
}

// newFileLogger creates a new fileLogger instance
func newFileLogger(component string, level LogLevel) *fileLogger {
	l := &fileLogger{
		level:     level,
		component: component,
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return l
	}

	logPath := filepath.Join(home, "sahayak-debug.log")
	file, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return l
	}

	l.file = file
	l.logger = log.New(file, "", 0) // formatted below
	return l
}

// SetLevel sets the minimum log level on the root logger
func SetLevel(level LogLevel) {
	root := getRoot()
	root.mu.Lock()
	defer root.mu.Unlock()
	root.level = level
}

// log is the internal logging function
func (l *fileLogger) log(level LogLevel, format string, args ...any) {
	if level < l.level {
		return
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	_, file, line, ok := runtime.Caller(2)
	if ok {
		file = filepath.Base(file)
	} else {
		file = "???"
		line = 0
	}

	// Format: 2025-09-30 12:34:56 [INFO] [ComponentName] file.go:123 - Message
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	component := l.component
	if component == "" {
		component = "SAHAYAK"
	}

	message := fmt.Sprintf(format, args...)
	logLine := fmt.Sprintf("%s [%s] [%s] %s:%d - %s\n",
		timestamp, levelToString(level), component, file, line, message)

	if l.logger != nil {
		l.logger.Print(logLine)
	}
	fmt.Fprint(os.Stderr, logLine)
}

func (l *fileLogger) Debug(format string, args ...any) { l.log(DEBUG, format, args...) }
func (l *fileLogger) Info(format string, args ...any)  { l.log(INFO, format, args...) }
func (l *fileLogger) Warn(format string, args ...any)  { l.log(WARN, format, args...) }
func (l *fileLogger) Error(format string, args ...any) { l.log(ERROR, format, args...) }

func levelToString(level LogLevel) string {
	switch level {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARN:
		return "WARN"
	case ERROR:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, ...any) {}
func (nopLogger) Info(string, ...any)  {}
func (nopLogger) Warn(string, ...any)  {}
func (nopLogger) Error(string, ...any) {}

// Nop returns a logger that discards all output.
func Nop() Logger {
	return nopLogger{}
}

// OrNop returns logger when non-nil, otherwise a no-op logger.
func OrNop(logger Logger) Logger {
	if logger == nil {
		return Nop()
	}
	return logger
}
