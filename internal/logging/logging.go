// Package logging holds the structured-logging plumbing shared across
// Sankshepa's components.
//
// Loggers are always passed in, never pulled from a global: each
// component receives a *slog.Logger at construction and scopes it with
// a "component" attribute. main is the only place allowed to decide
// output format, destination, and level; nothing below it calls
// slog.SetDefault.
//
// Log points mark lifecycle events (listener up, chunk sealed,
// shutdown draining) rather than per-record work — the parse/tokenize/
// compress hot paths stay silent.
package logging

import (
	"context"
	"log/slog"
	"maps"
	"sync/atomic"
)

// discardHandler drops every record it's handed.
type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (d discardHandler) WithAttrs([]slog.Attr) slog.Handler      { return d }
func (d discardHandler) WithGroup(string) slog.Handler           { return d }

// Discard returns a logger with nowhere for its output to go. It's the
// fallback for components constructed without an explicit logger.
func Discard() *slog.Logger {
	return slog.New(discardHandler{})
}

// Default returns logger unchanged if it's non-nil, otherwise a
// discard logger. Components take a *slog.Logger constructor
// parameter and call this once, up front, so the rest of the type
// never has to check for nil.
func Default(logger *slog.Logger) *slog.Logger {
	if logger != nil {
		return logger
	}
	return Discard()
}

// ComponentFilterHandler wraps another slog.Handler and gates records
// by a per-component minimum level, keyed off each record's
// "component" attribute. It's how SANKSHEPA_LOG's
// "info,framing=debug" overrides get enforced at runtime without any
// component needing to know its own configured level.
//
// Handle reads the level map through a lock-free atomic load; SetLevel
// writes it with copy-on-write, so readers never block on a writer and
// vice versa.
type ComponentFilterHandler struct {
	next         slog.Handler
	defaultLevel slog.Level

	// preAttrs holds attributes bound via WithAttrs, ahead of any group.
	// Handle checks these for "component" before it checks the record itself,
	// since logger.With("component", ...) is the usual way a caller sets it.
	preAttrs []slog.Attr

	// levelSnapshot holds the current component->level map. It's a
	// pointer so that handlers derived via WithAttrs/WithGroup keep
	// sharing one atomic — SetLevel on any of them is visible to all.
	levelSnapshot *atomic.Pointer[map[string]slog.Level]
}

// NewComponentFilterHandler wraps next, filtering by defaultLevel
// unless a component has its own level set via SetLevel.
func NewComponentFilterHandler(next slog.Handler, defaultLevel slog.Level) *ComponentFilterHandler {
	snapshot := &atomic.Pointer[map[string]slog.Level]{}
	empty := make(map[string]slog.Level)
	snapshot.Store(&empty)

	return &ComponentFilterHandler{
		next:          next,
		defaultLevel:  defaultLevel,
		levelSnapshot: snapshot,
	}
}

// Enabled always reports true: the "component" attribute that decides
// the real answer isn't available until Handle sees the full record.
func (h *ComponentFilterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return true
}

// Handle drops r if its level is below the configured minimum for its
// component, otherwise forwards it to the wrapped handler.
func (h *ComponentFilterHandler) Handle(ctx context.Context, r slog.Record) error {
	levels := *h.levelSnapshot.Load()
	component := h.findComponent(r)

	minLevel := h.defaultLevel
	if component != "" {
		if level, ok := levels[component]; ok {
			minLevel = level
		}
	}

	if r.Level < minLevel {
		return nil
	}
	if !h.next.Enabled(ctx, r.Level) {
		return nil
	}
	return h.next.Handle(ctx, r)
}

// findComponent returns the "component" attribute's string value,
// checking preAttrs before the record's own attributes, or "" if
// neither carries one.
func (h *ComponentFilterHandler) findComponent(r slog.Record) string {
	for _, attr := range h.preAttrs {
		if attr.Key == "component" {
			if s, ok := attr.Value.Resolve().Any().(string); ok {
				return s
			}
		}
	}

	var component string
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "component" {
			if s, ok := a.Value.Resolve().Any().(string); ok {
				component = s
				return false
			}
		}
		return true
	})
	return component
}

// WithAttrs returns a derived handler carrying attrs; a "component"
// attribute among them is remembered for later filtering.
func (h *ComponentFilterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if len(attrs) == 0 {
		return h
	}

	newPreAttrs := make([]slog.Attr, len(h.preAttrs), len(h.preAttrs)+len(attrs))
	copy(newPreAttrs, h.preAttrs)
	newPreAttrs = append(newPreAttrs, attrs...)

	return &ComponentFilterHandler{
		next:          h.next.WithAttrs(attrs),
		defaultLevel:  h.defaultLevel,
		preAttrs:      newPreAttrs,
		levelSnapshot: h.levelSnapshot,
	}
}

// WithGroup returns a derived handler scoped under the named group.
// Required to satisfy slog.Handler; Sankshepa doesn't itself nest
// attributes under groups, but a handler it wraps might.
func (h *ComponentFilterHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	return &ComponentFilterHandler{
		next:          h.next.WithGroup(name),
		defaultLevel:  h.defaultLevel,
		preAttrs:      h.preAttrs,
		levelSnapshot: h.levelSnapshot,
	}
}

// SetLevel changes the minimum level enforced for component, taking
// effect on the next Handle call from any goroutine.
func (h *ComponentFilterHandler) SetLevel(component string, level slog.Level) {
	oldLevels := *h.levelSnapshot.Load()
	newLevels := make(map[string]slog.Level, len(oldLevels)+1)
	maps.Copy(newLevels, oldLevels)
	newLevels[component] = level
	h.levelSnapshot.Store(&newLevels)
}
