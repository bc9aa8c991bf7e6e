package internal

import (
	"strings"
	"sync"
	"time"
)

// PresenceEntry describes one live, joined connection. Entries are keyed by
// connection id, not user id: the same device reconnecting gets a fresh
// entry, and a connection that never sends user-join never appears at all.
type PresenceEntry struct {
	UserID       string    `json:"userId"`
	ConnectionID string    `json:"connectionId"`
	DeviceInfo   string    `json:"deviceInfo"`
	ClientIP     string    `json:"clientIp"`
	JoinedAt     time.Time `json:"joinedAt"`
}

// PresenceRegistry owns the set of currently-connected clients. It is
// created at process start and handed to the connection layer; there is no
// ambient global state.
type PresenceRegistry struct {
	mu      sync.Mutex
	entries map[string]PresenceEntry
}

func NewPresenceRegistry() *PresenceRegistry {
	return &PresenceRegistry{entries: make(map[string]PresenceEntry)}
}

// Join inserts or replaces the entry for connectionID.
func (p *PresenceRegistry) Join(connectionID, userID, deviceInfo, clientIP string) PresenceEntry {
	entry := PresenceEntry{
		UserID:       userID,
		ConnectionID: connectionID,
		DeviceInfo:   deviceInfo,
		ClientIP:     normalizeIP(clientIP),
		JoinedAt:     time.Now().UTC(),
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.entries[connectionID] = entry
	return entry
}

// Leave removes the entry if present. Calling it for a connection that
// never joined, or twice, is fine.
func (p *PresenceRegistry) Leave(connectionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.entries, connectionID)
}

// Snapshot returns a defensive copy of all current entries so callers can
// iterate while connects and disconnects keep happening.
func (p *PresenceRegistry) Snapshot() []PresenceEntry {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]PresenceEntry, 0, len(p.entries))
	for _, entry := range p.entries {
		out = append(out, entry)
	}
	return out
}

func (p *PresenceRegistry) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// normalizeIP reduces an IPv4-mapped IPv6 address to its IPv4 form.
func normalizeIP(ip string) string {
	return strings.TrimPrefix(ip, "::ffff:")
}
