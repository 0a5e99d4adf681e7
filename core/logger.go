package core

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel controls which messages a ProductionLogger emits.
type LogLevel int

const (
	LevelDebug LogLevel = iota
	LevelInfo
	LevelWarn
	LevelError
)

// ParseLogLevel maps a configuration string to a LogLevel.
// Unknown values default to info.
func ParseLogLevel(level string) LogLevel {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return LevelDebug
	case "warn", "warning":
		return LevelWarn
	case "error":
		return LevelError
	default:
		return LevelInfo
	}
}

// ProductionLogger writes structured JSON log lines. It is the default
// concrete Logger for services embedding this library; tests and callers
// that bring their own logging pass any Logger implementation instead.
type ProductionLogger struct {
	mu        sync.Mutex
	out       io.Writer
	level     LogLevel
	component string
}

// NewProductionLogger creates a JSON logger writing to stdout.
func NewProductionLogger(level string, component string) *ProductionLogger {
	return &ProductionLogger{
		out:       os.Stdout,
		level:     ParseLogLevel(level),
		component: component,
	}
}

// NewProductionLoggerWithOutput creates a JSON logger with a custom sink.
func NewProductionLoggerWithOutput(level string, component string, out io.Writer) *ProductionLogger {
	return &ProductionLogger{
		out:       out,
		level:     ParseLogLevel(level),
		component: component,
	}
}

func (l *ProductionLogger) Debug(msg string, fields map[string]interface{}) {
	l.log(LevelDebug, "debug", msg, fields)
}

func (l *ProductionLogger) Info(msg string, fields map[string]interface{}) {
	l.log(LevelInfo, "info", msg, fields)
}

func (l *ProductionLogger) Warn(msg string, fields map[string]interface{}) {
	l.log(LevelWarn, "warn", msg, fields)
}

func (l *ProductionLogger) Error(msg string, fields map[string]interface{}) {
	l.log(LevelError, "error", msg, fields)
}

func (l *ProductionLogger) log(level LogLevel, name, msg string, fields map[string]interface{}) {
	if level < l.level {
		return
	}

	entry := make(map[string]interface{}, len(fields)+4)
	for k, v := range fields {
		entry[k] = v
	}
	entry["time"] = time.Now().UTC().Format(time.RFC3339Nano)
	entry["level"] = name
	entry["message"] = msg
	if l.component != "" {
		entry["component"] = l.component
	}

	line, err := json.Marshal(entry)
	if err != nil {
		// Fields that cannot marshal (channels, funcs) still deserve a line.
		line = []byte(fmt.Sprintf(`{"level":%q,"message":%q,"marshal_error":%q}`, name, msg, err.Error()))
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, _ = l.out.Write(append(line, '\n'))
}
