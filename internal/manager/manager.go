// Package manager owns the cached server directory, the refresh loop that
// keeps it current, and the history aggregation behind the comparison chart.
package manager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"bdsgp/internal/history"
	"bdsgp/internal/integrations/discord"
	"bdsgp/internal/motd"
	"bdsgp/internal/store"
	"bdsgp/internal/upstream"
	"bdsgp/internal/utils"
)

// Directory is the upstream surface the manager depends on.
type Directory interface {
	ListServers(ctx context.Context) ([]upstream.Server, error)
	GetServer(ctx context.Context, uuid string) (*upstream.Server, error)
	GetHistory(ctx context.Context, uuid string) ([]upstream.StatusRecord, error)
	GetMOTD(ctx context.Context, address string) (*upstream.MOTDInfo, error)
}

// Broadcaster receives realtime events, typically the websocket hub.
type Broadcaster interface {
	Broadcast(message []byte)
}

// Stats summarises the directory for the landing page counters.
type Stats struct {
	TotalServers  int       `json:"total_servers"`
	OnlineServers int       `json:"online_servers"`
	TotalPlayers  int       `json:"total_players"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Event is the websocket message sent after each refresh.
type Event struct {
	Type  string `json:"type"`
	Stats Stats  `json:"stats"`
}

type Manager struct {
	Config Config

	client      Directory
	store       *store.DB
	logger      *utils.Logger
	broadcaster Broadcaster
	loc         *time.Location
	now         func() time.Time

	mu        sync.RWMutex
	servers   []upstream.Server
	index     map[string]int
	online    map[string]bool
	updatedAt time.Time
	lastErr   error
}

// New wires a manager. db may be nil, in which case nothing is recorded locally.
func New(cfg Config, client Directory, db *store.DB, logger *utils.Logger) *Manager {
	return &Manager{
		Config:  cfg,
		client:  client,
		store:   db,
		logger:  logger,
		loc:     cfg.Upstream.Location(),
		now:     time.Now,
		servers: []upstream.Server{},
		index:   map[string]int{},
		online:  map[string]bool{},
	}
}

// SetBroadcaster installs the realtime event sink.
func (m *Manager) SetBroadcaster(b Broadcaster) {
	m.mu.Lock()
	m.broadcaster = b
	m.mu.Unlock()
}

// Run refreshes immediately and then on every interval until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	m.tick(ctx)
	ticker := time.NewTicker(m.Config.RefreshInterval())
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

func (m *Manager) tick(ctx context.Context) {
	if err := m.Refresh(ctx); err != nil && ctx.Err() == nil {
		m.logger.Printf("Directory refresh failed: %v", err)
	}
	if m.store != nil {
		removed, err := m.store.Prune(ctx, m.now().Add(-m.Config.Retention()))
		if err != nil && ctx.Err() == nil {
			m.logger.Printf("Pruning samples failed: %v", err)
		} else if removed > 0 {
			m.logger.Printf("Pruned %d expired samples", removed)
		}
	}
}

type transition struct {
	server upstream.Server
	online bool
}

// Refresh reloads the server list, records a sample per server and
// announces online/offline transitions.
func (m *Manager) Refresh(ctx context.Context) error {
	servers, err := m.client.ListServers(ctx)
	if err != nil {
		m.mu.Lock()
		m.lastErr = err
		m.mu.Unlock()
		return fmt.Errorf("list servers: %w", err)
	}
	now := m.now()

	index := make(map[string]int, len(servers))
	for i, s := range servers {
		index[s.UUID] = i
	}

	var changes []transition
	m.mu.Lock()
	for _, s := range servers {
		if prev, seen := m.online[s.UUID]; seen && prev != s.Online {
			changes = append(changes, transition{server: s, online: s.Online})
		}
	}
	online := make(map[string]bool, len(servers))
	for _, s := range servers {
		online[s.UUID] = s.Online
	}
	m.servers = servers
	m.index = index
	m.online = online
	m.updatedAt = now
	m.lastErr = nil
	broadcaster := m.broadcaster
	m.mu.Unlock()

	if m.store != nil {
		for _, s := range servers {
			if s.UUID == "" {
				continue
			}
			sample := []history.Sample{{Timestamp: now, Value: float64(s.PlayerCount)}}
			if err := m.store.SaveSamples(ctx, s.UUID, sample); err != nil {
				m.logger.Printf("Recording sample for %s failed: %v", s.UUID, err)
			}
		}
	}

	for _, c := range changes {
		m.notify(ctx, c)
	}

	stats := m.Stats()
	m.logger.Printf("Refreshed directory: %d servers, %d online, %d players", stats.TotalServers, stats.OnlineServers, stats.TotalPlayers)
	if broadcaster != nil {
		if msg, err := json.Marshal(Event{Type: "servers_updated", Stats: stats}); err == nil {
			broadcaster.Broadcast(msg)
		}
	}
	return nil
}

func (m *Manager) notify(ctx context.Context, c transition) {
	name := motd.Strip(c.server.Name)
	state := "offline"
	if c.online {
		state = "online"
	}
	m.logger.Printf("Server %s (%s) is now %s", name, c.server.UUID, state)
	if m.Config.DiscordWebhook == "" {
		return
	}
	embed := discord.StatusChangeEmbed(name, c.server.Address(), c.online, int(c.server.PlayerCount))
	if _, err := discord.Post(ctx, m.Config.DiscordWebhook, discord.WebhookPayload{Embeds: []discord.Embed{embed}}); err != nil {
		m.logger.Printf("Discord notification failed: %v", err)
	}
}

// Servers returns a copy of the cached directory.
func (m *Manager) Servers() []upstream.Server {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]upstream.Server{}, m.servers...)
}

// LastError is the error of the most recent failed refresh, nil after a success.
func (m *Manager) LastError() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr
}

// Ready reports whether at least one refresh has succeeded.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !m.updatedAt.IsZero()
}

func (m *Manager) cached(uuid string) (upstream.Server, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	i, ok := m.index[uuid]
	if !ok {
		return upstream.Server{}, false
	}
	return m.servers[i], true
}

// Server returns a directory entry from the cache, asking upstream on a miss.
func (m *Manager) Server(ctx context.Context, uuid string) (*upstream.Server, error) {
	if s, ok := m.cached(uuid); ok {
		return &s, nil
	}
	return m.client.GetServer(ctx, uuid)
}

// Search filters the cached directory by a case-insensitive substring of the
// name, introduction, MOTD or address. Format codes are ignored.
func (m *Manager) Search(term string) []upstream.Server {
	all := m.Servers()
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return all
	}
	out := []upstream.Server{}
	for _, s := range all {
		fields := []string{
			motd.Strip(s.Name),
			motd.Strip(s.Introduce),
			motd.Strip(s.Motd),
			s.Address(),
		}
		for _, f := range fields {
			if strings.Contains(strings.ToLower(f), term) {
				out = append(out, s)
				break
			}
		}
	}
	return out
}

// Stats counts servers, online servers and players across the cache.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	st := Stats{TotalServers: len(m.servers), UpdatedAt: m.updatedAt}
	for _, s := range m.servers {
		if s.Online {
			st.OnlineServers++
		}
		if s.PlayerCount > 0 {
			st.TotalPlayers += int(s.PlayerCount)
		}
	}
	return st
}

// ErrNoAddress is returned when a server has no host to query.
var ErrNoAddress = errors.New("server has no address")

// MOTD looks up a server and queries its live status.
func (m *Manager) MOTD(ctx context.Context, uuid string) (*upstream.Server, *upstream.MOTDInfo, error) {
	srv, err := m.Server(ctx, uuid)
	if err != nil {
		return nil, nil, err
	}
	if strings.TrimSpace(srv.Host) == "" {
		return srv, nil, ErrNoAddress
	}
	info, err := m.client.GetMOTD(ctx, srv.Address())
	if err != nil {
		return srv, nil, err
	}
	return srv, info, nil
}
