package rooms

import (
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/enisar25/SocialApp/pkg/transport"
)

// Manager tracks which connections have joined which transport-level rooms.
// Joining is explicit: a connection only receives a room's broadcasts after a
// successful join, and each of a user's connections joins independently.
type Manager struct {
	mu     sync.RWMutex
	rooms  map[string]map[uuid.UUID]transport.Conn
	joined map[uuid.UUID]map[string]struct{}

	logger *slog.Logger
}

func NewManager(logger *slog.Logger) *Manager {
	return &Manager{
		rooms:  make(map[string]map[uuid.UUID]transport.Conn),
		joined: make(map[uuid.UUID]map[string]struct{}),
		logger: logger.With(slog.String("component", "rooms")),
	}
}

// Join adds a connection to a room, creating the room if it doesn't exist.
// Joining a room twice is a no-op.
func (m *Manager) Join(roomID string, conn transport.Conn) {
	m.mu.Lock()
	defer m.mu.Unlock()

	room, ok := m.rooms[roomID]
	if !ok {
		room = make(map[uuid.UUID]transport.Conn)
		m.rooms[roomID] = room
	}
	room[conn.ID()] = conn

	set, ok := m.joined[conn.ID()]
	if !ok {
		set = make(map[string]struct{})
		m.joined[conn.ID()] = set
	}
	set[roomID] = struct{}{}

	m.logger.Debug("connection joined room",
		slog.String("roomID", roomID),
		slog.String("connID", conn.ID().String()),
	)
}

// Leave removes a connection from a room. Empty rooms are removed.
func (m *Manager) Leave(roomID string, connID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.leaveLocked(roomID, connID)
}

// LeaveAll removes a connection from every room it joined. Called from the
// connection's close hook.
func (m *Manager) LeaveAll(connID uuid.UUID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for roomID := range m.joined[connID] {
		m.leaveLocked(roomID, connID)
	}
}

func (m *Manager) leaveLocked(roomID string, connID uuid.UUID) {
	room, ok := m.rooms[roomID]
	if ok {
		delete(room, connID)
		if len(room) == 0 {
			delete(m.rooms, roomID)
		}
	}
	set, ok := m.joined[connID]
	if ok {
		delete(set, roomID)
		if len(set) == 0 {
			delete(m.joined, connID)
		}
	}
}

// Connections returns a snapshot of the room's joined connections.
func (m *Manager) Connections(roomID string) []transport.Conn {
	m.mu.RLock()
	defer m.mu.RUnlock()

	room, ok := m.rooms[roomID]
	if !ok {
		return nil
	}
	conns := make([]transport.Conn, 0, len(room))
	for _, c := range room {
		conns = append(conns, c)
	}
	return conns
}

// Joined reports whether the connection is currently in the room.
func (m *Manager) Joined(roomID string, connID uuid.UUID) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	_, ok := m.joined[connID][roomID]
	return ok
}
