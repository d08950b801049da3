// Package tlog is the client's internal logging seam: a small
// log/slog-backed wrapper embedding packages call into, mirroring the
// teacher's loginterface/sflog split between a logging interface and its
// default slog implementation, but collapsed to what this client
// actually needs (no per-driver pluggable backend, just an
// embedding-app-overridable slog.Logger).
package tlog

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
)

var current atomic.Pointer[slog.Logger]

func init() {
	SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn})))
}

// SetLogger installs the logger every subsequent call in this process
// uses. Safe to call concurrently with logging calls.
func SetLogger(l *slog.Logger) {
	current.Store(l)
}

// Logger returns the currently installed logger.
func Logger() *slog.Logger {
	return current.Load()
}

// maskedKeys are attribute keys whose values are redacted before
// reaching the handler, so a caller who logs a Config or a request's
// headers by accident does not leak a bearer token or password into
// diagnostic output.
var maskedKeys = map[string]bool{
	"token":        true,
	"password":     true,
	"authorization": true,
	"secret":       true,
}

// mask replaces the value of any sensitive attribute with a fixed
// placeholder, recursing into slog.Group values.
func mask(attrs []slog.Attr) []slog.Attr {
	out := make([]slog.Attr, len(attrs))
	for i, a := range attrs {
		if maskedKeys[strings.ToLower(a.Key)] {
			out[i] = slog.String(a.Key, "***")
			continue
		}
		if a.Value.Kind() == slog.KindGroup {
			out[i] = slog.Attr{Key: a.Key, Value: slog.GroupValue(mask(a.Value.Group())...)}
			continue
		}
		out[i] = a
	}
	return out
}

// maskingHandler wraps an slog.Handler to redact sensitive attributes
// before they reach the underlying handler.
type maskingHandler struct {
	next slog.Handler
}

// NewMaskingHandler wraps next so sensitive fields never reach it.
func NewMaskingHandler(next slog.Handler) slog.Handler {
	return &maskingHandler{next: next}
}

func (h *maskingHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

func (h *maskingHandler) Handle(ctx context.Context, record slog.Record) error {
	var attrs []slog.Attr
	record.Attrs(func(a slog.Attr) bool {
		attrs = append(attrs, a)
		return true
	})
	masked := mask(attrs)
	clone := slog.NewRecord(record.Time, record.Level, record.Message, record.PC)
	clone.AddAttrs(masked...)
	return h.next.Handle(ctx, clone)
}

func (h *maskingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &maskingHandler{next: h.next.WithAttrs(mask(attrs))}
}

func (h *maskingHandler) WithGroup(name string) slog.Handler {
	return &maskingHandler{next: h.next.WithGroup(name)}
}

var once sync.Once

// EnableMasking wraps the currently installed logger's handler with
// NewMaskingHandler exactly once per process. Nothing in this module
// calls it; masking is in effect only after an embedding application
// does.
func EnableMasking() {
	once.Do(func() {
		l := Logger()
		SetLogger(slog.New(NewMaskingHandler(l.Handler())))
	})
}
