package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log level
type Level int

const (
	DEBUG Level = iota
	INFO
	WARN
	ERROR
	FATAL
)

var levelNames = map[Level]string{
	DEBUG: "DEBUG",
	INFO:  "INFO",
	WARN:  "WARN",
	ERROR: "ERROR",
	FATAL: "FATAL",
}

var levelColors = map[Level]string{
	DEBUG: "\033[36m", // Cyan
	INFO:  "\033[32m", // Green
	WARN:  "\033[33m", // Yellow
	ERROR: "\033[31m", // Red
	FATAL: "\033[35m", // Magenta
}

const colorReset = "\033[0m"

// Context keys understood by WithContext.
type contextKey string

const (
	RequestIDKey contextKey = "requestID"
	StaffIDKey   contextKey = "staffID"
)

// Config holds logger configuration
type Config struct {
	Level       Level
	Output      io.Writer
	JSONFormat  bool
	EnableColor bool
	ShowCaller  bool
	TimeFormat  string
	ServiceName string
}

// DefaultConfig returns default logger configuration
func DefaultConfig() *Config {
	level := INFO
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		level = ParseLevel(lvl)
	}

	return &Config{
		Level:       level,
		Output:      os.Stdout,
		JSONFormat:  os.Getenv("LOG_FORMAT") == "json",
		EnableColor: os.Getenv("LOG_COLOR") != "false",
		ShowCaller:  true,
		TimeFormat:  "2006-01-02T15:04:05.000Z07:00",
		ServiceName: os.Getenv("SERVICE_NAME"),
	}
}

// Logger is a structured logger. Child loggers share the parent's config
// and copy its fields.
type Logger struct {
	config *Config
	fields map[string]interface{}
	mu     sync.RWMutex
}

// LogEntry represents a structured log entry
type LogEntry struct {
	Timestamp string                 `json:"timestamp"`
	Level     string                 `json:"level"`
	Message   string                 `json:"message"`
	Service   string                 `json:"service,omitempty"`
	Caller    string                 `json:"caller,omitempty"`
	Fields    map[string]interface{} `json:"fields,omitempty"`
}

var (
	defaultLogger *Logger
	once          sync.Once
)

// New creates a new logger with given config
func New(config *Config) *Logger {
	if config == nil {
		config = DefaultConfig()
	}
	return &Logger{
		config: config,
		fields: make(map[string]interface{}),
	}
}

// Default returns the default logger singleton
func Default() *Logger {
	once.Do(func() {
		defaultLogger = New(nil)
	})
	return defaultLogger
}

// Discard returns a logger that writes nothing. Useful in tests.
func Discard() *Logger {
	return New(&Config{Level: FATAL + 1, Output: io.Discard})
}

func (l *Logger) clone(extra int) *Logger {
	child := &Logger{
		config: l.config,
		fields: make(map[string]interface{}, len(l.fields)+extra),
	}
	l.mu.RLock()
	for k, v := range l.fields {
		child.fields[k] = v
	}
	l.mu.RUnlock()
	return child
}

// With creates a child logger with an additional field
func (l *Logger) With(key string, value interface{}) *Logger {
	child := l.clone(1)
	child.fields[key] = value
	return child
}

// WithFields creates a child logger with multiple additional fields
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	child := l.clone(len(fields))
	for k, v := range fields {
		child.fields[k] = v
	}
	return child
}

// WithError adds error field to logger
func (l *Logger) WithError(err error) *Logger {
	if err == nil {
		return l
	}
	return l.With("error", err.Error())
}

// WithContext extracts request-scoped fields from ctx
func (l *Logger) WithContext(ctx context.Context) *Logger {
	child := l.clone(2)
	if ctx == nil {
		return child
	}
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok && requestID != "" {
		child.fields["request_id"] = requestID
	}
	if staffID, ok := ctx.Value(StaffIDKey).(string); ok && staffID != "" {
		child.fields["staff_id"] = staffID
	}
	return child
}

// Log methods. Arguments after the message are key/value pairs.

func (l *Logger) Debug(msg string, kv ...interface{}) {
	l.log(DEBUG, msg, kv...)
}

func (l *Logger) Info(msg string, kv ...interface{}) {
	l.log(INFO, msg, kv...)
}

func (l *Logger) Warn(msg string, kv ...interface{}) {
	l.log(WARN, msg, kv...)
}

func (l *Logger) Error(msg string, kv ...interface{}) {
	l.log(ERROR, msg, kv...)
}

func (l *Logger) Fatal(msg string, kv ...interface{}) {
	l.log(FATAL, msg, kv...)
	os.Exit(1)
}

func (l *Logger) log(level Level, msg string, kv ...interface{}) {
	if level < l.config.Level {
		return
	}

	entry := LogEntry{
		Timestamp: time.Now().Format(l.config.TimeFormat),
		Level:     levelNames[level],
		Message:   msg,
		Service:   l.config.ServiceName,
	}

	if l.config.ShowCaller {
		if _, file, line, ok := runtime.Caller(2); ok {
			entry.Caller = fmt.Sprintf("%s:%d", shortenPath(file), line)
		}
	}

	l.mu.RLock()
	if len(l.fields) > 0 || len(kv) > 0 {
		entry.Fields = make(map[string]interface{}, len(l.fields)+len(kv)/2)
		for k, v := range l.fields {
			entry.Fields[k] = v
		}
	}
	l.mu.RUnlock()

	for i := 0; i < len(kv); i += 2 {
		key := fmt.Sprint(kv[i])
		if i+1 >= len(kv) {
			entry.Fields["!BADKEY"] = key
			break
		}
		if err, ok := kv[i+1].(error); ok {
			entry.Fields[key] = err.Error()
			continue
		}
		entry.Fields[key] = kv[i+1]
	}

	if l.config.JSONFormat {
		l.outputJSON(entry)
	} else {
		l.outputText(level, entry)
	}
}

func (l *Logger) outputJSON(entry LogEntry) {
	data, err := json.Marshal(entry)
	if err != nil {
		fmt.Fprintf(l.config.Output, `{"level":"ERROR","message":"log marshal failed: %s"}`+"\n", err)
		return
	}
	fmt.Fprintln(l.config.Output, string(data))
}

func (l *Logger) outputText(level Level, entry LogEntry) {
	var sb strings.Builder

	if l.config.EnableColor {
		sb.WriteString(levelColors[level])
	}
	sb.WriteString(entry.Timestamp)
	sb.WriteString(" ")
	sb.WriteString(fmt.Sprintf("[%-5s]", entry.Level))
	sb.WriteString(" ")
	if l.config.EnableColor {
		sb.WriteString(colorReset)
	}

	if entry.Caller != "" {
		sb.WriteString(fmt.Sprintf("[%s] ", entry.Caller))
	}
	sb.WriteString(entry.Message)

	if len(entry.Fields) > 0 {
		keys := make([]string, 0, len(entry.Fields))
		for k := range entry.Fields {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			sb.WriteString(fmt.Sprintf(" %s=%v", k, entry.Fields[k]))
		}
	}

	fmt.Fprintln(l.config.Output, sb.String())
}

// ============================================================
// HTTP Request Logger
// ============================================================

// RequestLog represents an HTTP request log
type RequestLog struct {
	Method    string
	Path      string
	Status    int
	Duration  time.Duration
	ClientIP  string
	UserAgent string
	RequestID string
}

// LogRequest logs an HTTP request
func (l *Logger) LogRequest(req RequestLog) {
	level := INFO
	if req.Status >= 500 {
		level = ERROR
	} else if req.Status >= 400 {
		level = WARN
	}

	msg := fmt.Sprintf("%s %s -> %d (%s)", req.Method, req.Path, req.Status, req.Duration)

	l.WithFields(map[string]interface{}{
		"method":      req.Method,
		"path":        req.Path,
		"status":      req.Status,
		"duration_ms": req.Duration.Milliseconds(),
		"client_ip":   req.ClientIP,
		"user_agent":  req.UserAgent,
		"request_id":  req.RequestID,
	}).log(level, msg)
}

// ============================================================
// Business Event Logger
// ============================================================

// EventLog represents a business event log
type EventLog struct {
	Event    string
	Actor    string
	EntityID string
	Entity   string
	Action   string
	Success  bool
	Metadata map[string]interface{}
	Error    string
}

// LogEvent logs a business event
func (l *Logger) LogEvent(evt EventLog) {
	level := INFO
	if !evt.Success {
		level = ERROR
	}

	msg := fmt.Sprintf("[%s] %s %s (ID: %s)", evt.Event, evt.Action, evt.Entity, evt.EntityID)

	fields := map[string]interface{}{
		"event":     evt.Event,
		"action":    evt.Action,
		"entity":    evt.Entity,
		"entity_id": evt.EntityID,
		"success":   evt.Success,
	}
	if evt.Actor != "" {
		fields["actor"] = evt.Actor
	}
	for k, v := range evt.Metadata {
		fields[k] = v
	}
	if evt.Error != "" {
		fields["error"] = evt.Error
	}

	l.WithFields(fields).log(level, msg)
}

// ============================================================
// Helper functions
// ============================================================

// ParseLevel maps a level name to a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(s) {
	case "DEBUG":
		return DEBUG
	case "INFO":
		return INFO
	case "WARN", "WARNING":
		return WARN
	case "ERROR":
		return ERROR
	case "FATAL":
		return FATAL
	default:
		return INFO
	}
}

func shortenPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) > 2 {
		return strings.Join(parts[len(parts)-2:], "/")
	}
	return path
}
