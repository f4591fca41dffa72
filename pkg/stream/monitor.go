package stream

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/grvsrs/hostbot/pkg/events"
	"github.com/grvsrs/hostbot/pkg/logger"
)

// Monitor polls a Provider on a fixed period and emits bus events on
// live-status transitions. The host streamer, when configured, is
// tracked separately from the monitored list and gets its own event
// pair.
type Monitor struct {
	provider Provider
	bus      *events.Bus
	period   time.Duration

	mu sync.Mutex
	// usernames is the monitored set, keys lowercased.
	usernames map[string]bool
	host      string
	// lastLive records the previous poll's live state so transitions can
	// be detected. Names absent from the map have never been polled and
	// produce no event on the first observation unless live.
	lastLive map[string]bool

	cancel context.CancelFunc
	doneCh chan struct{}
}

// NewMonitor creates a monitor over the given usernames. hostStreamer
// may be empty. pollPeriod at or below zero falls back to one minute.
func NewMonitor(provider Provider, bus *events.Bus, usernames []string, hostStreamer string, pollPeriod time.Duration) *Monitor {
	if pollPeriod <= 0 {
		pollPeriod = time.Minute
	}
	m := &Monitor{
		provider:  provider,
		bus:       bus,
		period:    pollPeriod,
		usernames: make(map[string]bool),
		host:      strings.ToLower(strings.TrimSpace(hostStreamer)),
		lastLive:  make(map[string]bool),
	}
	for _, name := range usernames {
		m.usernames[strings.ToLower(strings.TrimSpace(name))] = true
	}
	delete(m.usernames, "")
	return m
}

// Start launches the poll loop. Stop ends it.
func (m *Monitor) Start() {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.doneCh = make(chan struct{})
	go m.run(ctx)
	logger.InfoCF("stream", "monitor started", map[string]interface{}{
		"period": m.period.String(), "usernames": len(m.usernames),
	})
}

// Stop ends the poll loop and waits for it to exit.
func (m *Monitor) Stop() {
	if m.cancel == nil {
		return
	}
	m.cancel()
	<-m.doneCh
	logger.InfoC("stream", "monitor stopped")
}

// AddUsernames adds names to the monitored set. Names already present
// are ignored.
func (m *Monitor) AddUsernames(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		if name != "" {
			m.usernames[name] = true
		}
	}
}

// RemoveUsernames removes names from the monitored set. Absent names
// are ignored.
func (m *Monitor) RemoveUsernames(names []string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, name := range names {
		name = strings.ToLower(strings.TrimSpace(name))
		delete(m.usernames, name)
		delete(m.lastLive, name)
	}
}

// ClearUsernames empties the monitored set.
func (m *Monitor) ClearUsernames() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.usernames = make(map[string]bool)
	m.lastLive = make(map[string]bool)
}

// UsernameAdded reports whether a name is in the monitored set.
func (m *Monitor) UsernameAdded(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.usernames[strings.ToLower(strings.TrimSpace(name))]
}

// Usernames returns the monitored set, sorted.
func (m *Monitor) Usernames() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	names := make([]string, 0, len(m.usernames))
	for name := range m.usernames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetHostStreamer changes the host streamer tracked for the host event
// pair. An empty name disables host tracking.
func (m *Monitor) SetHostStreamer(name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.host != "" {
		delete(m.lastLive, m.host)
	}
	m.host = strings.ToLower(strings.TrimSpace(name))
}

// HostIsLive reports the host streamer's state as of the last poll.
func (m *Monitor) HostIsLive() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.host != "" && m.lastLive[m.host]
}

// Reconnect forces the provider to re-authenticate on the next poll.
func (m *Monitor) Reconnect() {
	m.provider.Reconnect()
}

// ---------------------------------------------------------------------------
// Poll loop
// ---------------------------------------------------------------------------

func (m *Monitor) run(ctx context.Context) {
	defer close(m.doneCh)

	// Immediate first poll establishes the baseline without waiting one
	// full period.
	m.poll(ctx)

	ticker := time.NewTicker(m.period)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.poll(ctx)
		}
	}
}

func (m *Monitor) poll(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.usernames)+1)
	for name := range m.usernames {
		names = append(names, name)
	}
	host := m.host
	if host != "" && !m.usernames[host] {
		names = append(names, host)
	}
	m.mu.Unlock()

	if len(names) == 0 {
		return
	}

	statuses, err := m.provider.StreamStatuses(ctx, names)
	if err != nil {
		logger.WarnCF("stream", "status poll failed", map[string]interface{}{"error": err.Error()})
		return
	}

	m.mu.Lock()
	type transition struct {
		status Status
		live   bool
		isHost bool
	}
	var transitions []transition
	for name, status := range statuses {
		prev, seen := m.lastLive[name]
		m.lastLive[name] = status.Live
		if status.Live == prev && seen {
			continue
		}
		if !status.Live && !seen {
			// Never-seen offline streamers generate no event.
			continue
		}
		transitions = append(transitions, transition{status: status, live: status.Live, isHost: name == host})
	}
	m.mu.Unlock()

	for _, t := range transitions {
		m.emit(t.status, t.live, t.isHost)
	}
}

func (m *Monitor) emit(status Status, live bool, isHost bool) {
	logger.InfoCF("stream", "live transition", map[string]interface{}{
		"username": status.Username, "live": live, "host": isHost,
	})

	if live {
		m.bus.Emit(events.StreamStarted, status)
		if isHost {
			m.bus.Emit(events.HostStreamStarted, status)
		}
		return
	}
	m.bus.Emit(events.StreamEnded, status)
	if isHost {
		m.bus.Emit(events.HostStreamEnded, status)
	}
}
