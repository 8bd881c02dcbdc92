// Package registry maps command tokens to plugin handlers. The registry
// is an injected dependency built at startup, shared across the worker
// pool: written during plugin load, read on every inbound message.
package registry

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/axt-team/axtgate/pkg/event"
	"github.com/axt-team/axtgate/pkg/logger"
)

// Handler processes one classified event. Handlers reply by calling back
// into the delivery layer through whatever reply helper their plugin
// captured at registration time.
type Handler func(ctx context.Context, ev *event.Event) error

type entry struct {
	source  string
	handler Handler
	kinds   map[event.Kind]bool // nil accepts every message kind
}

func (e *entry) accepts(kind event.Kind) bool {
	return e.kinds == nil || e.kinds[kind]
}

// Registry is the process-wide command table.
type Registry struct {
	mu        sync.RWMutex
	commands  map[string]*entry
	lifecycle *entry
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{commands: make(map[string]*entry)}
}

// Register binds one handler to each name. Names are case-insensitive.
// Re-registering a name from the same source overwrites silently; a
// different source overwrites with a warning. Registration never fails:
// a conflicting plugin must not abort startup.
func (r *Registry) Register(source string, names []string, kinds []event.Kind, h Handler) {
	var kindSet map[event.Kind]bool
	if len(kinds) > 0 {
		kindSet = make(map[event.Kind]bool, len(kinds))
		for _, k := range kinds {
			kindSet[k] = true
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, name := range names {
		token := strings.ToLower(name)
		if prev, ok := r.commands[token]; ok && prev.source != source {
			logger.WarnCF("registry", "command conflict, overwriting", map[string]interface{}{
				"command":  token,
				"previous": prev.source,
				"source":   source,
			})
		} else if ok {
			logger.DebugCF("registry", "command updated", map[string]interface{}{
				"command": token,
				"source":  source,
			})
		} else {
			logger.DebugCF("registry", "command registered", map[string]interface{}{
				"command": token,
				"source":  source,
			})
		}
		r.commands[token] = &entry{source: source, handler: h, kinds: kindSet}
	}
}

// Resolve returns the handler for a token if one is registered and it
// accepts the event kind. A kind mismatch resolves to nil, exactly like
// an unknown command.
func (r *Registry) Resolve(token string, kind event.Kind) Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.commands[strings.ToLower(token)]
	if !ok || !e.accepts(kind) {
		return nil
	}
	return e.handler
}

// RegisterLifecycle installs the single guild-lifecycle handler, with the
// same overwrite semantics as commands.
func (r *Registry) RegisterLifecycle(source string, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.lifecycle != nil && r.lifecycle.source != source {
		logger.WarnCF("registry", "lifecycle handler conflict, overwriting", map[string]interface{}{
			"previous": r.lifecycle.source,
			"source":   source,
		})
	}
	r.lifecycle = &entry{source: source, handler: h}
}

// ResolveLifecycle returns the guild-lifecycle handler, or nil.
func (r *Registry) ResolveLifecycle() Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.lifecycle == nil {
		return nil
	}
	return r.lifecycle.handler
}

// RemoveSource drops every command a source registered. Used when a
// plugin is unloaded.
func (r *Registry) RemoveSource(source string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for token, e := range r.commands {
		if e.source == source {
			delete(r.commands, token)
			removed++
		}
	}
	if r.lifecycle != nil && r.lifecycle.source == source {
		r.lifecycle = nil
	}
	return removed
}

// Commands returns the sorted registered tokens.
func (r *Registry) Commands() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.commands))
	for token := range r.commands {
		out = append(out, token)
	}
	sort.Strings(out)
	return out
}
