package rooms_test

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/enisar25/SocialApp/pkg/rooms"
	"github.com/enisar25/SocialApp/pkg/transport"
)

func newTestLogger() *slog.Logger {
	handler := slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1})
	return slog.New(handler)
}

func newConn() *transport.Connection {
	var wg sync.WaitGroup
	return transport.NewConnection(context.Background(), &wg, nil, transport.Config{}, newTestLogger())
}

func TestJoinAndConnections(t *testing.T) {
	req := require.New(t)
	m := rooms.NewManager(newTestLogger())
	conn1 := newConn()
	conn2 := newConn()

	m.Join("room-1", conn1)
	m.Join("room-1", conn2)
	m.Join("room-2", conn1)

	req.Len(m.Connections("room-1"), 2)
	req.Len(m.Connections("room-2"), 1)
	req.True(m.Joined("room-1", conn1.ID()))
	req.False(m.Joined("room-2", conn2.ID()))
}

func TestJoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	m := rooms.NewManager(newTestLogger())
	conn := newConn()

	m.Join("room-1", conn)
	m.Join("room-1", conn)

	req.Len(m.Connections("room-1"), 1)
}

func TestLeaveRemovesEmptyRoom(t *testing.T) {
	req := require.New(t)
	m := rooms.NewManager(newTestLogger())
	conn := newConn()

	m.Join("room-1", conn)
	m.Leave("room-1", conn.ID())

	req.Nil(m.Connections("room-1"))
	req.False(m.Joined("room-1", conn.ID()))
}

func TestLeaveAll(t *testing.T) {
	req := require.New(t)
	m := rooms.NewManager(newTestLogger())
	conn := newConn()
	other := newConn()

	m.Join("room-1", conn)
	m.Join("room-2", conn)
	m.Join("room-1", other)

	m.LeaveAll(conn.ID())

	req.Len(m.Connections("room-1"), 1)
	req.Nil(m.Connections("room-2"))
	req.False(m.Joined("room-1", conn.ID()))
	req.True(m.Joined("room-1", other.ID()))
}
