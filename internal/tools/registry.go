// ABOUTME: Tool registry: stores tools by name and lists their model-facing definitions
// ABOUTME: Safe for concurrent use; unknown names get fuzzy "did you mean" suggestions

package tools

import (
	"fmt"
	"slices"
	"sync"

	"github.com/sahilm/fuzzy"

	"github.com/mauromedda/pi-loop-go/pkg/ai"
)

// Registry manages the collection of tools available to a loop.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates a Registry holding the given tools.
func NewRegistry(tools ...*Tool) *Registry {
	r := &Registry{tools: make(map[string]*Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any existing tool with the same name.
func (r *Registry) Register(tool *Tool) {
	r.mu.Lock()
	r.tools[tool.Name] = tool
	r.mu.Unlock()
}

// Get returns a tool by name, or nil if not found.
func (r *Registry) Get(name string) *Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// Remove deletes a tool by name.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.tools, name)
	r.mu.Unlock()
}

// Len returns the number of registered tools.
func (r *Registry) Len() int {
	if r == nil {
		return 0
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.tools)
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	r.mu.RUnlock()
	slices.Sort(names)
	return names
}

// Definitions returns the model-facing tool definitions sorted by name.
func (r *Registry) Definitions() []ai.Tool {
	if r == nil {
		return nil
	}
	r.mu.RLock()
	defs := make([]ai.Tool, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.Definition())
	}
	r.mu.RUnlock()
	slices.SortFunc(defs, func(a, b ai.Tool) int {
		switch {
		case a.Name < b.Name:
			return -1
		case a.Name > b.Name:
			return 1
		}
		return 0
	})
	return defs
}

// Suggest returns the registered name closest to name, or "" if nothing matches.
func (r *Registry) Suggest(name string) string {
	names := r.Names()
	if len(names) == 0 || name == "" {
		return ""
	}
	if matches := fuzzy.Find(name, names); len(matches) > 0 {
		return matches[0].Str
	}
	return ""
}

// unknownToolMessage formats the error reported for a call to an unregistered tool.
func (r *Registry) unknownToolMessage(name string) string {
	if s := r.Suggest(name); s != "" {
		return fmt.Sprintf("unknown tool: %s (did you mean %q?)", name, s)
	}
	return "unknown tool: " + name
}
