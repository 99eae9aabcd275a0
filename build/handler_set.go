package build

import (
	"context"
	"log/slog"
	"sync/atomic"

	btclogv1 "github.com/btcsuite/btclog"
	"github.com/btcsuite/btclog/v2"
)

// HandlerSet is an implementation of btclog.Handler that fans every record
// out to a set of handlers, so that the console and the log file share one
// logger per subsystem.
//
// Handlers derived through WithPrefix, WithAttrs and WithGroup share the level
// of their parent; SubSystem starts a new level at the parent's current one.
type HandlerSet struct {
	level *atomic.Uint32
	set   []btclog.Handler
}

// A compile-time check to ensure that HandlerSet implements btclog.Handler.
var _ btclog.Handler = (*HandlerSet)(nil)

// NewHandlerSet constructs a new HandlerSet at the given level.
func NewHandlerSet(level btclogv1.Level, set ...btclog.Handler) *HandlerSet {
	h := &HandlerSet{
		set:   set,
		level: new(atomic.Uint32),
	}
	h.SetLevel(level)

	return h
}

// Enabled reports whether any handler in the set handles records at the
// given level.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range h.set {
		if handler.Enabled(ctx, level) {
			return true
		}
	}

	return false
}

// Handle passes the record to every handler in the set.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range h.set {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}

		if err := handler.Handle(ctx, record.Clone()); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a HandlerSet whose handlers all carry attrs.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithAttrs(attrs []slog.Attr) slog.Handler {
	newSet := &HandlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithAttrs(attrs).(btclog.Handler)
	}

	return newSet
}

// WithGroup returns a HandlerSet whose handlers all open the named group.
//
// NOTE: this is part of the slog.Handler interface.
func (h *HandlerSet) WithGroup(name string) slog.Handler {
	newSet := &HandlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithGroup(name).(btclog.Handler)
	}

	return newSet
}

// SubSystem returns a HandlerSet tagged with the given subsystem.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclog.Handler {
	newSet := &HandlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: new(atomic.Uint32),
	}
	newSet.level.Store(h.level.Load())
	for i, handler := range h.set {
		newSet.set[i] = handler.SubSystem(tag)
	}

	return newSet
}

// SetLevel changes the level of every handler in the set.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclogv1.Level) {
	h.level.Store(uint32(level))
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
}

// Level returns the current level of the set.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclogv1.Level {
	return btclogv1.Level(h.level.Load())
}

// WithPrefix returns a HandlerSet whose handlers prefix every message.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclog.Handler {
	newSet := &HandlerSet{
		set:   make([]btclog.Handler, len(h.set)),
		level: h.level,
	}
	for i, handler := range h.set {
		newSet.set[i] = handler.WithPrefix(prefix)
	}

	return newSet
}
