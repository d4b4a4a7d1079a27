package app

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// sincroHandler is a custom slog.Handler that formats log records as:
//
//	<timestamp>\t<level>\t<message>\t<key=value ...>
//
// Every record goes to w. Records at or above echoLevel are also written to echo.
type sincroHandler struct {
	mu        *sync.Mutex
	w         io.Writer
	echo      io.Writer
	echoLevel slog.Level
	attrs     []slog.Attr
}

func (h *sincroHandler) Enabled(_ context.Context, _ slog.Level) bool { return true }

func (h *sincroHandler) Handle(_ context.Context, r slog.Record) error {
	var buf bytes.Buffer
	ts := r.Time.UTC().Format("2006-01-02T15:04:05Z")
	fmt.Fprintf(&buf, "%s\t%s\t%s", ts, r.Level.String(), r.Message)

	// Write pre-set attrs.
	for _, a := range h.attrs {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
	}

	// Write per-record attrs.
	r.Attrs(func(a slog.Attr) bool {
		fmt.Fprintf(&buf, "\t%s=%v", a.Key, a.Value)
		return true
	})
	buf.WriteByte('\n')

	h.mu.Lock()
	defer h.mu.Unlock()
	if _, err := h.w.Write(buf.Bytes()); err != nil {
		return err
	}
	if h.echo != nil && r.Level >= h.echoLevel {
		if _, err := h.echo.Write(buf.Bytes()); err != nil {
			return err
		}
	}
	return nil
}

func (h *sincroHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &sincroHandler{
		mu:        h.mu,
		w:         h.w,
		echo:      h.echo,
		echoLevel: h.echoLevel,
		attrs:     append(append([]slog.Attr{}, h.attrs...), attrs...),
	}
}

func (h *sincroHandler) WithGroup(string) slog.Handler { return h }

// parseLevel maps a config log level to a slog.Level. Empty means warn.
func parseLevel(s string) (slog.Level, error) {
	if strings.TrimSpace(s) == "" {
		return slog.LevelWarn, nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("invalid log level %q: %w", s, err)
	}
	return level, nil
}

// newLogger creates a structured logger that writes to logDir/sincro.log and
// echoes records at or above echoLevel to stderr.
// It returns the slog.Logger, the open log file (for cleanup), and any error.
func newLogger(logDir string, echoLevel slog.Level) (*slog.Logger, *os.File, error) {
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return nil, nil, fmt.Errorf("creating log directory: %w", err)
	}

	logPath := filepath.Join(logDir, "sincro.log")
	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, nil, fmt.Errorf("opening log file: %w", err)
	}

	handler := &sincroHandler{mu: &sync.Mutex{}, w: f, echo: os.Stderr, echoLevel: echoLevel}
	return slog.New(handler), f, nil
}

// slogAdapter wraps *slog.Logger to satisfy the sincro.Logger interface.
type slogAdapter struct {
	l *slog.Logger
}

func (a *slogAdapter) Debug(msg string, args ...any) { a.l.Debug(msg, args...) }
func (a *slogAdapter) Info(msg string, args ...any)  { a.l.Info(msg, args...) }
func (a *slogAdapter) Warn(msg string, args ...any)  { a.l.Warn(msg, args...) }
func (a *slogAdapter) Error(msg string, args ...any) { a.l.Error(msg, args...) }
