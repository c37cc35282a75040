package plugin

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sirupsen/logrus"
	"go-sniper/models"
	"golang.org/x/sync/errgroup"
)

// Manager defines the Plugin Manager containing all the plugins.
type Manager struct {
	mu      sync.RWMutex
	plugins []Plugin
}

// NewManager initializes a new *Manager with the given plugins.
func NewManager(plugins ...Plugin) *Manager {
	m := &Manager{
		plugins: make([]Plugin, 0, len(plugins)),
	}
	for _, p := range plugins {
		m.Add(p)
	}
	return m
}

// Add plugs in a new Plugin. A plugin with the same name is replaced.
func (m *Manager) Add(p Plugin) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.plugins {
		if existing.Name() == p.Name() {
			m.plugins[i] = p
			return
		}
	}
	m.plugins = append(m.plugins, p)
}

// Remove unplugs a Plugin.
func (m *Manager) Remove(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.plugins {
		if p.Name() == name {
			m.plugins = append(m.plugins[:i], m.plugins[i+1:]...)
			return true
		}
	}
	return false
}

// Count returns the number of active plugins.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.plugins)
}

// Names returns the sorted names of the active plugins.
func (m *Manager) Names() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	names := make([]string, 0, len(m.plugins))
	for _, p := range m.plugins {
		names = append(names, p.Name())
	}
	sort.Strings(names)
	return names
}

// Get retrieves the Plugin, or nil.
func (m *Manager) Get(name string) Plugin {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, p := range m.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// Launch hands the command to the named plugin.
func (m *Manager) Launch(ctx context.Context, name, resultID string, d models.InvocationDescriptor) error {
	p := m.Get(name)
	if p == nil {
		return fmt.Errorf("%w: %s", ErrUnknownPlugin, name)
	}

	logrus.Infof("Launching result %s through %s: %s", resultID, name, d)
	if err := p.Launch(ctx, resultID, d); err != nil {
		return fmt.Errorf("plugin %s: %w", name, err)
	}
	return nil
}

// LaunchAll hands the command to every plugin concurrently and returns
// the first error.
func (m *Manager) LaunchAll(ctx context.Context, resultID string, d models.InvocationDescriptor) error {
	m.mu.RLock()
	plugins := append([]Plugin(nil), m.plugins...)
	m.mu.RUnlock()

	g, ctx := errgroup.WithContext(ctx)
	for _, p := range plugins {
		g.Go(func() error {
			if err := p.Launch(ctx, resultID, d); err != nil {
				return fmt.Errorf("plugin %s: %w", p.Name(), err)
			}
			return nil
		})
	}
	return g.Wait()
}
