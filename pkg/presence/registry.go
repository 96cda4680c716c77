package presence

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/enisar25/SocialApp/pkg/transport"
)

// Registry maps a user identity to the set of its currently live connections.
// It is the only mutable state shared between connections.
//
// Locking contract: operations on the same user are mutually exclusive,
// operations on different users never block each other, and no lock is ever
// held across I/O. Callers fan messages out after Live returns.
type Registry struct {
	users  sync.Map // userID -> *entry
	logger *slog.Logger
}

type entry struct {
	mu sync.Mutex
	// removed marks an entry that was deleted from the map while someone else
	// raced LoadOrStore on it; those racers retry against a fresh entry.
	removed bool
	conns   map[uuid.UUID]liveConn
}

type liveConn struct {
	conn         transport.Conn
	registeredAt time.Time
}

func NewRegistry(logger *slog.Logger) *Registry {
	return &Registry{
		logger: logger.With(slog.String("component", "presence_registry")),
	}
}

// Register adds a connection to the user's live set, creating the entry if
// the user had none.
func (r *Registry) Register(userID string, conn transport.Conn) {
	for {
		v, _ := r.users.LoadOrStore(userID, &entry{conns: make(map[uuid.UUID]liveConn)})
		e := v.(*entry)
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			continue
		}
		e.conns[conn.ID()] = liveConn{conn: conn, registeredAt: time.Now()}
		e.mu.Unlock()
		r.logger.Debug("connection registered",
			slog.String("userID", userID),
			slog.String("connID", conn.ID().String()),
		)
		return
	}
}

// Unregister removes a connection from the user's live set. The entry is
// deleted entirely once its last connection is gone; no empty sets persist.
func (r *Registry) Unregister(userID string, connID uuid.UUID) {
	v, ok := r.users.Load(userID)
	if !ok {
		return
	}
	e := v.(*entry)
	e.mu.Lock()
	delete(e.conns, connID)
	if len(e.conns) == 0 {
		e.removed = true
		r.users.Delete(userID)
	}
	e.mu.Unlock()
	r.logger.Debug("connection unregistered",
		slog.String("userID", userID),
		slog.String("connID", connID.String()),
	)
}

// Live returns a snapshot of the user's live connections. It never blocks on
// network I/O; delivery happens after it returns.
func (r *Registry) Live(userID string) []transport.Conn {
	v, ok := r.users.Load(userID)
	if !ok {
		return nil
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	conns := make([]transport.Conn, 0, len(e.conns))
	for _, lc := range e.conns {
		conns = append(conns, lc.conn)
	}
	return conns
}

// Count reports how many live connections the user currently has.
func (r *Registry) Count(userID string) int {
	v, ok := r.users.Load(userID)
	if !ok {
		return 0
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.conns)
}

// Oldest returns the user's longest-lived connection, if any. Used by the
// connection limiter's cycle mode.
func (r *Registry) Oldest(userID string) (transport.Conn, bool) {
	v, ok := r.users.Load(userID)
	if !ok {
		return nil, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()

	var oldest transport.Conn
	var oldestAt time.Time
	for _, lc := range e.conns {
		if oldest == nil || lc.registeredAt.Before(oldestAt) {
			oldest = lc.conn
			oldestAt = lc.registeredAt
		}
	}
	return oldest, oldest != nil
}

// All snapshots every live connection across all users. Used during shutdown.
func (r *Registry) All() []transport.Conn {
	var conns []transport.Conn
	r.users.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		for _, lc := range e.conns {
			conns = append(conns, lc.conn)
		}
		e.mu.Unlock()
		return true
	})
	return conns
}
