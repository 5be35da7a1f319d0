package chat

import (
	"strings"
	"sync"
)

// Groups is the in-memory broadcast registry: room name (case-insensitive) to
// the set of live connection ids subscribed to it. Membership in the database
// is durable; Groups only tracks which sockets receive a room's events right
// now.
type Groups struct {
	mu    sync.RWMutex
	rooms map[string]map[string]struct{}
}

// NewGroups creates an empty registry.
func NewGroups() *Groups {
	return &Groups{rooms: make(map[string]map[string]struct{})}
}

func groupKey(room string) string { return strings.ToLower(room) }

// Add subscribes a connection to a room's broadcasts.
func (g *Groups) Add(room, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := groupKey(room)
	conns, ok := g.rooms[key]
	if !ok {
		conns = make(map[string]struct{})
		g.rooms[key] = conns
	}
	conns[connectionID] = struct{}{}
}

// Remove unsubscribes a connection from a room.
func (g *Groups) Remove(room, connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := groupKey(room)
	if conns, ok := g.rooms[key]; ok {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(g.rooms, key)
		}
	}
}

// RemoveConnection unsubscribes a connection from every room. Called when the
// socket goes away.
func (g *Groups) RemoveConnection(connectionID string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	for key, conns := range g.rooms {
		delete(conns, connectionID)
		if len(conns) == 0 {
			delete(g.rooms, key)
		}
	}
}

// Connections snapshots the subscriber set of a room.
func (g *Groups) Connections(room string) []string {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conns := g.rooms[groupKey(room)]
	out := make([]string, 0, len(conns))
	for id := range conns {
		out = append(out, id)
	}
	return out
}

// InGroup reports whether a connection is subscribed to a room.
func (g *Groups) InGroup(room, connectionID string) bool {
	g.mu.RLock()
	defer g.mu.RUnlock()

	conns, ok := g.rooms[groupKey(room)]
	if !ok {
		return false
	}
	_, in := conns[connectionID]
	return in
}
