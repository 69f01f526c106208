package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"
	"strings"
	"sync"
	"time"
)

// ----- Public wire types -----

// ErrorObject is emitted only for error logs.
type ErrorObject struct {
	Msg   string `json:"msg"`
	Stack string `json:"stack"`
}

// LogEntry is the single-line JSON format written to the logger output.
type LogEntry struct {
	Timestamp string       `json:"timestamp"`            // ISO 8601 format timestamp
	Level     string       `json:"level"`                // DEBUG | INFO | ERROR
	Service   string       `json:"service"`              // component name (e.g., route-resolver)
	Action    string       `json:"action"`               // event name (e.g., route_cache_hit)
	Message   string       `json:"message"`              // human-readable description
	Hostname  string       `json:"hostname"`             // device hostname
	RequestID string       `json:"request_id,omitempty"` // correlation ID for tracing
	RideID    string       `json:"ride_id,omitempty"`    // ride session identifier (when applicable)
	RiderID   string       `json:"rider_id,omitempty"`   // local participant (when applicable)
	Details   any          `json:"details,omitempty"`    // optional: extra fields (map or struct)
	Error     *ErrorObject `json:"error,omitempty"`      // optional: error details
}

// ----- Logger -----

type Logger struct {
	service  string
	hostname string
	debug    bool

	mu  *sync.Mutex
	out io.Writer
}

// New creates a structured logger for the given service writing to stdout.
func New(service string) *Logger {
	return NewWithWriter(service, os.Stdout)
}

// NewWithWriter creates a structured logger writing JSON lines to w.
func NewWithWriter(service string, w io.Writer) *Logger {
	hn, err := os.Hostname()
	if err != nil || strings.TrimSpace(hn) == "" {
		hn = "unknown-hostname"
	}

	if strings.TrimSpace(service) == "" {
		service = "unknown-service"
	}
	if w == nil {
		w = io.Discard
	}

	return &Logger{service: service, hostname: hn, debug: true, mu: &sync.Mutex{}, out: w}
}

// Discard returns a logger that drops everything. Handy in tests.
func Discard() *Logger {
	return NewWithWriter("discard", io.Discard)
}

// Named returns a logger for another service sharing this logger's output.
func (l *Logger) Named(service string) *Logger {
	if strings.TrimSpace(service) == "" {
		service = l.service
	}
	return &Logger{service: service, hostname: l.hostname, debug: l.debug, mu: l.mu, out: l.out}
}

// SetDebug toggles DEBUG lines.
func (l *Logger) SetDebug(enabled bool) {
	l.mu.Lock()
	l.debug = enabled
	l.mu.Unlock()
}

// emit marshals and writes a single JSON line.
func (l *Logger) emit(e LogEntry) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if e.Level == "DEBUG" && !l.debug {
		return
	}

	b, err := json.Marshal(e)
	if err == nil {
		fmt.Fprintln(l.out, string(b))
		return
	}

	// retry once without Details (common source of marshal errors)
	e.Details = nil
	if b, err := json.Marshal(e); err == nil {
		fmt.Fprintln(l.out, string(b))
		return
	}

	// final structured fallback to keep logs JSON-shaped
	fallback := map[string]any{
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"level":     "ERROR",
		"service":   l.service,
		"action":    "logger_marshal_failed",
		"message":   "failed to encode log entry",
		"hostname":  l.hostname,
		"error": ErrorObject{
			Msg:   strings.TrimSpace(err.Error()),
			Stack: string(debug.Stack()),
		},
	}

	if fb, err := json.Marshal(fallback); err == nil {
		fmt.Fprintln(l.out, string(fb))
	} else {
		fmt.Fprintf(os.Stderr, "log marshal failed: %v\n", err)
	}
}

func (l *Logger) entry(ctx context.Context, level, action, msg string, details any) LogEntry {
	return LogEntry{
		Timestamp: nowISO(),
		Level:     level,
		Service:   l.service,
		Action:    safeAction(action),
		Message:   strings.TrimSpace(msg),
		Hostname:  l.hostname,
		RequestID: fromCtx(ctx, ctxKeyRequestID),
		RideID:    fromCtx(ctx, ctxKeyRideID),
		RiderID:   fromCtx(ctx, ctxKeyRiderID),
		Details:   details,
	}
}

// Debug writes a DEBUG line with optional details.
func (l *Logger) Debug(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "DEBUG", action, msg, details))
}

// Info writes an INFO line with optional details.
func (l *Logger) Info(ctx context.Context, action, msg string, details any) {
	l.emit(l.entry(ctx, "INFO", action, msg, details))
}

// Error writes an ERROR line and attaches an error stack trace.
func (l *Logger) Error(ctx context.Context, action, msg string, err error, details any) {
	if err == nil {
		err = fmt.Errorf("unknown error")
	}

	e := l.entry(ctx, "ERROR", action, msg, details)
	e.Error = &ErrorObject{
		Msg:   strings.TrimSpace(err.Error()),
		Stack: string(debug.Stack()),
	}
	l.emit(e)
}

// ------------ Context helpers -------------

type ctxKey string

const (
	ctxKeyRequestID ctxKey = "convoy_request_id"
	ctxKeyRideID    ctxKey = "convoy_ride_id"
	ctxKeyRiderID   ctxKey = "convoy_rider_id"
)

// WithRequestID returns a new context carrying request_id.
func (l *Logger) WithRequestID(ctx context.Context, reqID string) context.Context {
	return withValue(ctx, ctxKeyRequestID, reqID)
}

// WithRideID returns a new context carrying ride_id.
func (l *Logger) WithRideID(ctx context.Context, rideID string) context.Context {
	return withValue(ctx, ctxKeyRideID, rideID)
}

// WithRiderID returns a new context carrying rider_id.
func (l *Logger) WithRiderID(ctx context.Context, riderID string) context.Context {
	return withValue(ctx, ctxKeyRiderID, riderID)
}

func withValue(ctx context.Context, key ctxKey, value string) context.Context {
	if strings.TrimSpace(value) == "" {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, key, value)
}

// fromCtx extracts a string value from ctx (if any).
func fromCtx(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if s, ok := ctx.Value(key).(string); ok {
		return s
	}
	return ""
}

// ----- Small utilities -----

func nowISO() string {
	return time.Now().UTC().Format(time.RFC3339)
}

func safeAction(a string) string {
	a = strings.TrimSpace(a)
	if a == "" {
		return "unspecified"
	}
	return a
}
