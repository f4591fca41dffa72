// Package config implements the bot's persisted configuration store: a
// versioned YAML file with stepwise migrations, a debounced background
// save, a write-cooldown predicate, and a per-plugin opaque data
// namespace.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/grvsrs/hostbot/pkg/logger"
)

// CurrentVersion is the config schema version written by this build.
const CurrentVersion = "1.3"

// DefaultWriteDelaySeconds is the cooldown between accepted config writes.
const DefaultWriteDelaySeconds = 60

// saveInterval is how often the background saver checks for a requested
// flush. Saves are debounced: many Save calls inside one interval produce
// a single write.
const saveInterval = time.Minute

// BotConfig is the full persisted configuration record. The core treats
// it as a key-value store; only the Manager mutates the file itself.
type BotConfig struct {
	Version string `yaml:"version"`

	// Transport credentials. Any transport with an empty token is not
	// started.
	DiscordToken    string `yaml:"discord_bot_api_token"`
	DiscordServerID string `yaml:"discord_server_id"`
	SlackAppToken   string `yaml:"slack_app_token"`
	SlackBotToken   string `yaml:"slack_bot_token"`
	TelegramToken   string `yaml:"telegram_bot_api_token"`

	// Stream monitor settings.
	TwitchClientID          string   `yaml:"twitch_client_id"`
	TwitchClientSecret      string   `yaml:"twitch_client_secret"`
	StreamersToMonitor      []string `yaml:"streamers_to_monitor"`
	HostStreamer            string   `yaml:"host_streamer"`
	SilentWhenHostStreaming bool     `yaml:"silent_when_host_streaming"`
	PollPeriodSeconds       int      `yaml:"poll_period_seconds"`
	StreamStartMessages     []string `yaml:"stream_start_messages"`

	// Announcements channel and optional message sent once on startup.
	AnnounceChannel string `yaml:"announce_channel_name"`
	StartupMessage  string `yaml:"startup_message"`

	// Privileged user IDs, as transport-scoped identity strings.
	AdminUsers []string `yaml:"admin_users"`

	// Plugin state.
	EnabledPlugins []string               `yaml:"enabled_plugins"`
	PluginData     map[string]interface{} `yaml:"plugin_data"`

	// Command log and config-write rate limiting.
	CommandLogFile          string `yaml:"command_log_file"`
	ConfigWriteDelaySeconds int    `yaml:"config_write_delay_seconds"`

	// Per-user IANA timezone names, keyed by user ID.
	Timezones map[string]string `yaml:"timezones"`

	// Quotes plugin database path.
	QuotesDBFile string `yaml:"quotes_db_file"`

	// WebSocket ops event-stream listen address, empty to disable.
	OpsListenAddr string `yaml:"ops_listen_addr"`
}

// NewBotConfig returns a config populated with defaults for a fresh
// installation.
func NewBotConfig() *BotConfig {
	return &BotConfig{
		Version:           CurrentVersion,
		PollPeriodSeconds: 600,
		StreamStartMessages: []string{
			"{streamer_name} just started streaming! Check them out here: {stream_url}",
		},
		PluginData:              map[string]interface{}{},
		ConfigWriteDelaySeconds: DefaultWriteDelaySeconds,
		Timezones:               map[string]string{},
		QuotesDBFile:            "hostbot_quotes.db",
	}
}

// Manager owns the config file: loading with migration, debounced saving,
// and the write-cooldown predicate used by config-mutating commands.
type Manager struct {
	filename string

	mu            sync.Mutex
	cfg           *BotConfig
	saveRequested bool
	lastWrite     time.Time

	stopCh chan struct{}
	doneCh chan struct{}
}

// NewManager creates a manager for the given file path. The background
// saver starts immediately; call Stop to flush and shut it down.
func NewManager(filename string) *Manager {
	m := &Manager{
		filename: filename,
		cfg:      NewBotConfig(),
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
	go m.saveLoop()
	return m
}

// Config returns a snapshot copy of the current config record, safe to
// read without further locking. All mutations go through Update (or the
// dedicated setters), so readers on other goroutines never race the
// background saver or a command handler's write.
func (m *Manager) Config() BotConfig {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.clone()
}

// clone returns a value copy sharing no slice or map storage with the
// original.
func (c *BotConfig) clone() BotConfig {
	out := *c
	out.StreamersToMonitor = append([]string(nil), c.StreamersToMonitor...)
	out.StreamStartMessages = append([]string(nil), c.StreamStartMessages...)
	out.AdminUsers = append([]string(nil), c.AdminUsers...)
	out.EnabledPlugins = append([]string(nil), c.EnabledPlugins...)
	out.PluginData = make(map[string]interface{}, len(c.PluginData))
	for k, v := range c.PluginData {
		out.PluginData[k] = v
	}
	out.Timezones = make(map[string]string, len(c.Timezones))
	for k, v := range c.Timezones {
		out.Timezones[k] = v
	}
	return out
}

// Load reads and migrates the config file. It returns the version the
// file was migrated from, or "" when no migration was needed.
func (m *Manager) Load() (string, error) {
	data, err := os.ReadFile(m.filename)
	if err != nil {
		return "", fmt.Errorf("read config %s: %w", m.filename, err)
	}

	var raw map[string]interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", fmt.Errorf("parse config %s: %w", m.filename, err)
	}

	migratedFrom, err := migrate(raw)
	if err != nil {
		return "", fmt.Errorf("migrate config %s: %w", m.filename, err)
	}

	// Round-trip the migrated map into the typed record.
	buf, err := yaml.Marshal(raw)
	if err != nil {
		return "", fmt.Errorf("remarshal config: %w", err)
	}

	cfg := NewBotConfig()
	if err := yaml.Unmarshal(buf, cfg); err != nil {
		return "", fmt.Errorf("decode config: %w", err)
	}
	cfg.Version = CurrentVersion
	if cfg.PluginData == nil {
		cfg.PluginData = map[string]interface{}{}
	}
	if cfg.Timezones == nil {
		cfg.Timezones = map[string]string{}
	}

	m.mu.Lock()
	m.cfg = cfg
	m.mu.Unlock()

	if migratedFrom != "" {
		logger.InfoCF("config", "migrated config file", map[string]interface{}{
			"from": migratedFrom, "to": CurrentVersion,
		})
	}
	return migratedFrom, nil
}

// Update runs fn on the config record under the manager's lock and
// requests a save. Command handlers use this for all config mutations so
// writes never race the background saver's marshal.
func (m *Manager) Update(fn func(*BotConfig)) {
	m.mu.Lock()
	fn(m.cfg)
	m.saveRequested = true
	m.lastWrite = time.Now()
	m.mu.Unlock()
}

// SetTimezone stores a user's IANA timezone name and requests a save.
func (m *Manager) SetTimezone(userID, tz string) {
	m.Update(func(c *BotConfig) {
		c.Timezones[userID] = tz
	})
}

// Save requests a flush to disk. The actual write is performed by the
// background saver, so bursts of mutations coalesce into one write.
func (m *Manager) Save() {
	m.mu.Lock()
	m.saveRequested = true
	m.lastWrite = time.Now()
	m.mu.Unlock()
	logger.DebugC("config", "flush to config file requested")
}

// WriteAllowed reports whether enough time has passed since the last
// accepted write for another config mutation to proceed. Commands that
// mutate persisted configuration must check this before mutating.
func (m *Manager) WriteAllowed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	delay := m.cfg.ConfigWriteDelaySeconds
	if delay <= 0 {
		return true
	}
	return time.Since(m.lastWrite) >= time.Duration(delay)*time.Second
}

// WriteDelaySeconds returns the configured write cooldown, for use in
// user-facing refusal messages.
func (m *Manager) WriteDelaySeconds() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cfg.ConfigWriteDelaySeconds
}

// flushLocked writes the config file if a save was requested.
// Caller must hold m.mu.
func (m *Manager) flushLocked() {
	if !m.saveRequested {
		return
	}

	data, err := yaml.Marshal(m.cfg)
	if err != nil {
		logger.ErrorCF("config", "marshal config failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := os.WriteFile(m.filename, data, 0644); err != nil {
		logger.ErrorCF("config", "write config failed", map[string]interface{}{
			"file": m.filename, "error": err.Error(),
		})
		return
	}

	m.saveRequested = false
	logger.DebugCF("config", "flushed config", map[string]interface{}{"file": m.filename})
}

// FlushNow performs any pending write synchronously.
func (m *Manager) FlushNow() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.flushLocked()
}

func (m *Manager) saveLoop() {
	defer close(m.doneCh)

	ticker := time.NewTicker(saveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.FlushNow()
		case <-m.stopCh:
			m.FlushNow()
			return
		}
	}
}

// Stop shuts down the background saver, flushing any pending write.
func (m *Manager) Stop() {
	close(m.stopCh)
	<-m.doneCh
}

// SetPluginData stores an opaque record under the plugin's namespace key
// and requests a save.
func (m *Manager) SetPluginData(plugin string, v interface{}) error {
	// Round-trip through YAML so the stored form is plain maps/lists,
	// independent of the caller's types.
	buf, err := yaml.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal plugin data for %s: %w", plugin, err)
	}
	var plain interface{}
	if err := yaml.Unmarshal(buf, &plain); err != nil {
		return fmt.Errorf("unmarshal plugin data for %s: %w", plugin, err)
	}

	m.mu.Lock()
	m.cfg.PluginData[plugin] = plain
	m.saveRequested = true
	m.mu.Unlock()
	return nil
}

// GetPluginData decodes the plugin's stored record into out. It returns
// false when the plugin has no stored data.
func (m *Manager) GetPluginData(plugin string, out interface{}) (bool, error) {
	m.mu.Lock()
	raw, ok := m.cfg.PluginData[plugin]
	m.mu.Unlock()
	if !ok || raw == nil {
		return false, nil
	}

	buf, err := yaml.Marshal(raw)
	if err != nil {
		return false, fmt.Errorf("marshal stored data for %s: %w", plugin, err)
	}
	if err := yaml.Unmarshal(buf, out); err != nil {
		return false, fmt.Errorf("decode stored data for %s: %w", plugin, err)
	}
	return true, nil
}

// IsAdmin reports whether the given user ID is in the admin set.
func (m *Manager) IsAdmin(userID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, id := range m.cfg.AdminUsers {
		if id == userID {
			return true
		}
	}
	return false
}

// TimezoneByUser returns the stored timezone for a user, or nil when the
// user has none stored (callers fall back to UTC).
func (m *Manager) TimezoneByUser(userID string) *time.Location {
	m.mu.Lock()
	name, ok := m.cfg.Timezones[userID]
	m.mu.Unlock()
	if !ok {
		return nil
	}

	loc, err := time.LoadLocation(name)
	if err != nil {
		logger.WarnCF("config", "stored timezone is invalid", map[string]interface{}{
			"user": userID, "tz": name,
		})
		return nil
	}
	return loc
}

// Env holds process bootstrap settings read from the environment. These
// cover everything needed before the config file itself is available.
type Env struct {
	ConfigFile string `env:"HOSTBOT_CONFIG" envDefault:"hostbot_config.yaml"`
	LogLevel   string `env:"HOSTBOT_LOG_LEVEL" envDefault:"info"`
}

// LoadEnv parses bootstrap settings from process environment variables.
func LoadEnv() (Env, error) {
	var e Env
	if err := env.Parse(&e); err != nil {
		return Env{}, fmt.Errorf("parse environment: %w", err)
	}
	return e, nil
}
