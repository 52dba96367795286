package logger

import (
	"context"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
)

// Logger wraps slog.Logger with helpers for the events this service cares about.
type Logger struct {
	*slog.Logger
}

// New creates a logger writing to stdout.  LOG_LEVEL selects the level and
// APP_ENV=dev switches to the human readable text handler.
func New() *Logger {
	return NewWithWriter(os.Stdout, os.Getenv("LOG_LEVEL"), os.Getenv("APP_ENV"))
}

// NewWithWriter creates a logger writing to w.
func NewWithWriter(w io.Writer, level, env string) *Logger {
	lvl := getLogLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl == slog.LevelDebug,
	}

	var handler slog.Handler
	if strings.EqualFold(env, "dev") {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}
	return &Logger{Logger: slog.New(handler)}
}

// Discard returns a logger that drops everything.  Handy in tests.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))}
}

// getLogLevel converts string to slog.Level
func getLogLevel(levelStr string) slog.Level {
	switch strings.ToLower(levelStr) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// With returns a child logger carrying the given attributes.
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...)}
}

// WithShowing adds the showing ID to logger context
func (l *Logger) WithShowing(showingID string) *Logger {
	return l.With(slog.String("showing_id", showingID))
}

// WithError adds error to logger context
func (l *Logger) WithError(err error) *Logger {
	return l.With(slog.String("error", err.Error()))
}

// HTTP logging methods

// LogHTTPRequest logs a finished HTTP request.
func (l *Logger) LogHTTPRequest(c echo.Context, duration time.Duration) {
	req := c.Request()
	l.Logger.InfoContext(req.Context(),
		"HTTP Request",
		slog.String("method", req.Method),
		slog.String("path", req.URL.Path),
		slog.String("route", c.Path()),
		slog.Int("status", c.Response().Status),
		slog.Duration("duration", duration),
		slog.String("ip", c.RealIP()),
		slog.Int64("size", c.Response().Size),
	)
}

// Middleware returns an echo middleware that logs each request through l.
func (l *Logger) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			l.LogHTTPRequest(c, time.Since(start))
			return nil
		}
	}
}

// Seat lifecycle logging methods

// LogSeatTransition logs a successful seat state change.
func (l *Logger) LogSeatTransition(ctx context.Context, showingID, seat, from, to, holder string) {
	l.Logger.InfoContext(ctx,
		"Seat Transition",
		slog.String("showing_id", showingID),
		slog.String("seat", seat),
		slog.String("from", from),
		slog.String("to", to),
		slog.String("holder", holder),
	)
}

// LogSweep logs the outcome of one expiry sweep.  Empty sweeps are logged at debug.
func (l *Logger) LogSweep(ctx context.Context, expired int, duration time.Duration) {
	lvl := slog.LevelDebug
	if expired > 0 {
		lvl = slog.LevelInfo
	}
	l.Logger.Log(ctx, lvl,
		"Lease Sweep",
		slog.Int("expired", expired),
		slog.Duration("duration", duration),
	)
}

// LogPriceChange logs a demand price adjustment.
func (l *Logger) LogPriceChange(ctx context.Context, showingID string, oldCents, newCents int64) {
	l.Logger.InfoContext(ctx,
		"Price Changed",
		slog.String("showing_id", showingID),
		slog.Int64("old_cents", oldCents),
		slog.Int64("new_cents", newCents),
	)
}

// ErrorWithContext logs an error message with context
func (l *Logger) ErrorWithContext(ctx context.Context, msg string, err error, fields map[string]interface{}) {
	args := make([]interface{}, 0, len(fields)*2+2)
	args = append(args, slog.String("error", err.Error()))
	for k, v := range fields {
		args = append(args, slog.Any(k, v))
	}
	l.Logger.ErrorContext(ctx, msg, args...)
}
