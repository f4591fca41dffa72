package plugin

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/grvsrs/hostbot/pkg/logger"
)

// ErrDuplicatePlugin is returned when two plugins register the same
// name. Registration happens at startup, so this is a wiring defect.
var ErrDuplicatePlugin = errors.New("plugin: name already registered")

// Manager tracks registered plugins and which of them are enabled.
// Enable and disable are idempotent; enabling an enabled plugin or
// disabling a disabled one is a no-op.
type Manager struct {
	host Host

	mu      sync.Mutex
	plugins map[string]Plugin
	enabled map[string]bool
}

// NewManager creates a manager bound to the given host.
func NewManager(host Host) *Manager {
	return &Manager{
		host:    host,
		plugins: make(map[string]Plugin),
		enabled: make(map[string]bool),
	}
}

// Register adds a plugin to the known set without enabling it. Names
// are compared case-insensitively; registering a duplicate name is a
// startup defect and returns an error.
func (m *Manager) Register(plugins ...Plugin) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range plugins {
		key := strings.ToLower(p.Name())
		if _, exists := m.plugins[key]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicatePlugin, key)
		}
		m.plugins[key] = p
	}
	return nil
}

// IsValidPluginName reports whether a plugin with this name is
// registered.
func (m *Manager) IsValidPluginName(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.plugins[strings.ToLower(name)]
	return ok
}

// PluginByName returns the registered plugin for a name.
func (m *Manager) PluginByName(name string) (Plugin, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.plugins[strings.ToLower(name)]
	return p, ok
}

// registeredNames returns every registered plugin name, sorted.
func (m *Manager) registeredNames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Enable opens the named plugins; with no names, every registered
// plugin. Unknown names return an error after all valid names in the
// batch were processed; already-enabled names are skipped. A plugin
// whose Open fails stays disabled.
func (m *Manager) Enable(names ...string) error {
	if len(names) == 0 {
		names = m.registeredNames()
	}

	var unknown []string

	for _, name := range names {
		key := strings.ToLower(name)

		m.mu.Lock()
		p, ok := m.plugins[key]
		if !ok {
			m.mu.Unlock()
			unknown = append(unknown, name)
			continue
		}
		if m.enabled[key] {
			m.mu.Unlock()
			continue
		}
		m.mu.Unlock()

		// Open runs outside the lock; plugins may call back into the
		// host during Open.
		if err := p.Open(m.host); err != nil {
			logger.ErrorCF("plugin", "plugin open failed", map[string]interface{}{
				"plugin": key, "error": err.Error(),
			})
			return fmt.Errorf("open plugin %q: %w", key, err)
		}

		m.mu.Lock()
		m.enabled[key] = true
		m.mu.Unlock()
		logger.InfoCF("plugin", "plugin enabled", map[string]interface{}{
			"plugin": key, "version": p.Version(),
		})
	}

	if len(unknown) > 0 {
		return fmt.Errorf("unknown plugins: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// Disable closes the named plugins; with no names, every registered
// plugin. Unknown names return an error after all valid names in the
// batch were processed; already-disabled names are skipped.
func (m *Manager) Disable(names ...string) error {
	if len(names) == 0 {
		names = m.registeredNames()
	}

	var unknown []string

	for _, name := range names {
		key := strings.ToLower(name)

		m.mu.Lock()
		p, ok := m.plugins[key]
		if !ok {
			m.mu.Unlock()
			unknown = append(unknown, name)
			continue
		}
		if !m.enabled[key] {
			m.mu.Unlock()
			continue
		}
		m.enabled[key] = false
		m.mu.Unlock()

		p.Close()
		logger.InfoCF("plugin", "plugin disabled", map[string]interface{}{"plugin": key})
	}

	if len(unknown) > 0 {
		return fmt.Errorf("unknown plugins: %s", strings.Join(unknown, ", "))
	}
	return nil
}

// IsEnabled reports whether the named plugin is currently enabled.
func (m *Manager) IsEnabled(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.enabled[strings.ToLower(name)]
}

// EnabledPlugins returns the enabled plugins sorted by name.
func (m *Manager) EnabledPlugins() []Plugin {
	return m.selectPlugins(true)
}

// DisabledPlugins returns the registered-but-disabled plugins sorted by
// name.
func (m *Manager) DisabledPlugins() []Plugin {
	return m.selectPlugins(false)
}

func (m *Manager) selectPlugins(enabled bool) []Plugin {
	m.mu.Lock()
	defer m.mu.Unlock()

	names := make([]string, 0, len(m.plugins))
	for name := range m.plugins {
		if m.enabled[name] == enabled {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	out := make([]Plugin, 0, len(names))
	for _, name := range names {
		out = append(out, m.plugins[name])
	}
	return out
}

// Stop disables every enabled plugin. Used at shutdown.
func (m *Manager) Stop() {
	for _, p := range m.EnabledPlugins() {
		if err := m.Disable(p.Name()); err != nil {
			logger.WarnCF("plugin", "disable at shutdown failed", map[string]interface{}{
				"plugin": p.Name(), "error": err.Error(),
			})
		}
	}
}
