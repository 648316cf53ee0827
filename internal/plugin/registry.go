package plugin

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"qbank/internal/logger"
)

// ErrUnknownPlugin is returned by Get for ids that were never registered.
var ErrUnknownPlugin = errors.New("unknown plugin")

// Summary is the listing view of a plugin.
type Summary struct {
	ID          string
	Name        string
	Version     string
	Years       []int
	Questions   int
	ManualSetup bool
}

// Registry maps plugin ids to plugins. It is built before a run and only
// read while plugins execute.
type Registry struct {
	log     *logger.Logger
	plugins map[string]Plugin
	mu      sync.RWMutex
}

// NewRegistry creates an empty registry.
func NewRegistry(log *logger.Logger) *Registry {
	if log == nil {
		log = logger.Discard()
	}

	return &Registry{
		log:     log,
		plugins: make(map[string]Plugin),
	}
}

// Register adds p. Registering an id twice replaces the earlier plugin and logs a warning.
func (r *Registry) Register(p Plugin) {
	id := p.Info().ID

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.plugins[id]; ok {
		r.log.Warn("plugin already registered, overwriting", "plugin", id)
	}

	r.plugins[id] = p
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.plugins[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownPlugin, id)
	}

	return p, nil
}

// Has reports whether id is registered.
func (r *Registry) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.plugins[id]

	return ok
}

// List returns all plugins sorted by id.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Plugin, 0, len(r.plugins))
	for _, p := range r.plugins {
		out = append(out, p)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Info().ID < out[j].Info().ID
	})

	return out
}

// Resolve returns the plugins for ids in the given order, or every plugin when
// ids is empty. Repeated ids resolve once, at their first position.
func (r *Registry) Resolve(ids []string) ([]Plugin, error) {
	if len(ids) == 0 {
		return r.List(), nil
	}

	out := make([]Plugin, 0, len(ids))
	seen := make(map[string]bool, len(ids))

	for _, id := range ids {
		if seen[id] {
			r.log.Warn("plugin requested twice, running once", "plugin", id)

			continue
		}

		seen[id] = true

		p, err := r.Get(id)
		if err != nil {
			return nil, err
		}

		out = append(out, p)
	}

	return out, nil
}

// TotalEstimatedQuestions sums the estimates of all plugins.
func (r *Registry) TotalEstimatedQuestions() int {
	total := 0
	for _, p := range r.List() {
		total += p.EstimatedQuestionCount()
	}

	return total
}

// Summary describes every plugin, sorted by id.
func (r *Registry) Summary() []Summary {
	plugins := r.List()
	out := make([]Summary, len(plugins))

	for i, p := range plugins {
		info := p.Info()
		out[i] = Summary{
			ID:          info.ID,
			Name:        info.Name,
			Version:     info.Version,
			Years:       p.SupportedYears(),
			Questions:   p.EstimatedQuestionCount(),
			ManualSetup: p.RequiresManualSetup(),
		}
	}

	return out
}
