// Package errreport forwards error-level log records to an error tracker.
package errreport

import (
	"context"
	"errors"
	"log/slog"

	"github.com/rollbar/rollbar-go"
)

// Reporter receives one error-level record.
type Reporter interface {
	Report(msg string, err error, extras map[string]any)
}

// Handler wraps another slog.Handler and also reports records at Error or above.
type Handler struct {
	next     slog.Handler
	reporter Reporter
	attrs    []slog.Attr
	group    string
}

// NewHandler returns a handler that logs through next and reports through r.
func NewHandler(next slog.Handler, r Reporter) *Handler {
	return &Handler{next: next, reporter: r}
}

// Enabled defers to the wrapped handler.
func (h *Handler) Enabled(ctx context.Context, level slog.Level) bool {
	return h.next.Enabled(ctx, level)
}

// Handle logs the record and reports it when it is an error.
func (h *Handler) Handle(ctx context.Context, rec slog.Record) error {
	if rec.Level >= slog.LevelError {
		extras := make(map[string]any, len(h.attrs)+rec.NumAttrs())
		var reported error
		add := func(a slog.Attr) bool {
			key := a.Key
			if h.group != "" {
				key = h.group + "." + key
			}
			if e, ok := a.Value.Any().(error); ok && reported == nil {
				reported = e
			}
			extras[key] = a.Value.String()
			return true
		}
		for _, a := range h.attrs {
			add(a)
		}
		rec.Attrs(add)
		if reported == nil {
			reported = errors.New(rec.Message)
		}
		h.reporter.Report(rec.Message, reported, extras)
	}
	return h.next.Handle(ctx, rec)
}

// WithAttrs returns a handler carrying extra attributes.
func (h *Handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &Handler{
		next:     h.next.WithAttrs(attrs),
		reporter: h.reporter,
		attrs:    append(append([]slog.Attr(nil), h.attrs...), attrs...),
		group:    h.group,
	}
}

// WithGroup returns a handler that qualifies later attributes with name.
func (h *Handler) WithGroup(name string) slog.Handler {
	g := name
	if h.group != "" {
		g = h.group + "." + name
	}
	return &Handler{next: h.next.WithGroup(name), reporter: h.reporter, attrs: h.attrs, group: g}
}

// RollbarReporter sends errors to Rollbar.
type RollbarReporter struct {
	client *rollbar.Client
}

// NewRollbarReporter configures a Rollbar client.
func NewRollbarReporter(token, environment, codeVersion, host string) *RollbarReporter {
	c := rollbar.New(token, environment, codeVersion, host, "")
	return &RollbarReporter{client: c}
}

// Report sends one item to Rollbar.
func (r *RollbarReporter) Report(msg string, err error, extras map[string]any) {
	extras["message"] = msg
	r.client.ErrorWithExtras(rollbar.ERR, err, extras)
}

// Close flushes queued items.
func (r *RollbarReporter) Close() error {
	return r.client.Close()
}
