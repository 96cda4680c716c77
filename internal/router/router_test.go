package router_test

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/directory"
	"github.com/enisar25/SocialApp/internal/router"
	"github.com/enisar25/SocialApp/internal/store"
	"github.com/enisar25/SocialApp/pkg/presence"
	"github.com/enisar25/SocialApp/pkg/rooms"
)

// fakeConn records outbound frames instead of writing to a websocket.
type fakeConn struct {
	id     uuid.UUID
	mu     sync.Mutex
	frames []string
	closed bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{id: uuid.New()}
}

func (c *fakeConn) ID() uuid.UUID { return c.id }

func (c *fakeConn) Send(message []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames = append(c.frames, string(message))
}

func (c *fakeConn) Close(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
}

func (c *fakeConn) Frames() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.frames...)
}

func (c *fakeConn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// framesOf filters captured frames by outbound event name.
func framesOf(c *fakeConn, event string) []string {
	var matched []string
	for _, f := range c.Frames() {
		if gjson.Get(f, "event").String() == event {
			matched = append(matched, f)
		}
	}
	return matched
}

type fixture struct {
	router   *router.Router
	store    *store.MemoryStore
	dir      *directory.MemoryDirectory
	presence *presence.Registry
	rooms    *rooms.Manager
	resolver *chat.Resolver
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError + 1}))

	st := store.NewMemoryStore()
	dir := directory.NewMemoryDirectory()
	dir.Add(chat.User{ID: "alice", Username: "alice", Verified: true})
	dir.Add(chat.User{ID: "bob", Username: "bob", Verified: true})
	dir.Add(chat.User{ID: "carol", Username: "carol", Verified: true})

	reg := presence.NewRegistry(logger)
	rm := rooms.NewManager(logger)
	resolver := chat.NewResolver(st, dir, logger)

	return &fixture{
		router:   router.New(resolver, st, dir, reg, rm, logger),
		store:    st,
		dir:      dir,
		presence: reg,
		rooms:    rm,
		resolver: resolver,
	}
}

func (f *fixture) connect(userID string) (*router.Session, *fakeConn) {
	conn := newFakeConn()
	f.presence.Register(userID, conn)
	return &router.Session{Conn: conn, UserID: userID}, conn
}

func event(name, payload string) []byte {
	return []byte(fmt.Sprintf(`{"event":%q,"payload":%s}`, name, payload))
}

func TestDirectMessageDelivery(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceSess, aliceConn := f.connect("alice")
	_, bobConn := f.connect("bob")

	f.router.HandleMessage(ctx, aliceSess, event("sendMessage", `{"content":"hi","sendTo":"bob"}`))

	// Sender gets exactly one confirmation carrying the echoed content.
	success := framesOf(aliceConn, "successMessage")
	req.Len(success, 1)
	req.Equal("hi", gjson.Get(success[0], "payload").String())

	// Recipient gets exactly one newMessage.
	delivered := framesOf(bobConn, "newMessage")
	req.Len(delivered, 1)
	req.Equal("hi", gjson.Get(delivered[0], "payload.content").String())
	req.Equal("alice", gjson.Get(delivered[0], "payload.from").String())
	req.False(gjson.Get(delivered[0], "payload.groupId").Exists())

	// The direct conversation now holds one message authored by alice.
	conv, err := f.store.FindDirect(ctx, "alice", "bob")
	req.NoError(err)
	messages, err := f.store.Messages(ctx, conv.ID)
	req.NoError(err)
	req.Len(messages, 1)
	req.Equal("alice", messages[0].Author)
	req.Equal("hi", messages[0].Content)
}

func TestDirectMessageReachesEveryDevice(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceSess, _ := f.connect("alice")
	_, bobPhone := f.connect("bob")
	_, bobLaptop := f.connect("bob")

	f.router.HandleMessage(ctx, aliceSess, event("sendMessage", `{"content":"ping","sendTo":"bob"}`))

	// Exactly one delivery per live connection.
	req.Len(framesOf(bobPhone, "newMessage"), 1)
	req.Len(framesOf(bobLaptop, "newMessage"), 1)
}

func TestDirectMessageSenderOtherDevicesGetNothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceSess, aliceConn := f.connect("alice")
	_, aliceTablet := f.connect("alice")
	_, bobConn := f.connect("bob")

	f.router.HandleMessage(ctx, aliceSess, event("sendMessage", `{"content":"hi","sendTo":"bob"}`))

	// Only the originating connection is confirmed to; the sender's other
	// devices see nothing for direct sends.
	req.Len(aliceConn.Frames(), 1)
	req.Empty(aliceTablet.Frames())
	req.Len(framesOf(bobConn, "newMessage"), 1)
}

func TestSelfAddressedMessageSkipsOriginatingConnection(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceSess, aliceConn := f.connect("alice")
	_, aliceTablet := f.connect("alice")

	f.router.HandleMessage(ctx, aliceSess, event("sendMessage", `{"content":"note to self","sendTo":"alice"}`))

	// Origin: the echo only, never its own delivery.
	req.Len(framesOf(aliceConn, "successMessage"), 1)
	req.Empty(framesOf(aliceConn, "newMessage"))

	// The user's other devices receive the delivery.
	delivered := framesOf(aliceTablet, "newMessage")
	req.Len(delivered, 1)
	req.Equal("note to self", gjson.Get(delivered[0], "payload.content").String())
	req.Equal("alice", gjson.Get(delivered[0], "payload.from").String())
}

func TestDirectMessageUnknownRecipient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	aliceSess, aliceConn := f.connect("alice")

	f.router.HandleMessage(ctx, aliceSess, event("sendMessage", `{"content":"hi","sendTo":"nobody"}`))

	errs := framesOf(aliceConn, "error")
	req.Len(errs, 1)
	req.Equal("sendMessage", gjson.Get(errs[0], "payload.type").String())
	req.Equal("user not found", gjson.Get(errs[0], "payload.message").String())
	req.False(aliceConn.Closed())

	// The failed send created no conversation.
	_, err := f.store.FindDirect(ctx, "alice", "nobody")
	req.ErrorIs(err, chat.ErrNotFound)
}

func TestGroupMessageBroadcast(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.resolver.CreateGroup(ctx, "trio", []string{"alice", "bob", "carol"}, "alice")
	req.NoError(err)

	aliceSess, aliceConn := f.connect("alice")
	bobSess, bobConn := f.connect("bob")
	carolSess, carolConn := f.connect("carol")

	joinPayload := fmt.Sprintf(`{"roomId":%q}`, conv.RoomID)
	f.router.HandleMessage(ctx, aliceSess, event("join_room", joinPayload))
	f.router.HandleMessage(ctx, bobSess, event("join_room", joinPayload))
	f.router.HandleMessage(ctx, carolSess, event("join_room", joinPayload))

	f.router.HandleMessage(ctx, aliceSess, event("sendGroupMessage", fmt.Sprintf(`{"content":"hello all","groupId":%q}`, conv.ID)))

	// Sender: confirmation only, no echo of its own broadcast.
	req.Len(framesOf(aliceConn, "successMessage"), 1)
	req.Empty(framesOf(aliceConn, "newMessage"))

	for _, conn := range []*fakeConn{bobConn, carolConn} {
		delivered := framesOf(conn, "newMessage")
		req.Len(delivered, 1)
		req.Equal("hello all", gjson.Get(delivered[0], "payload.content").String())
		req.Equal("alice", gjson.Get(delivered[0], "payload.from").String())
		req.Equal(conv.ID, gjson.Get(delivered[0], "payload.groupId").String())
	}

	messages, err := f.store.Messages(ctx, conv.ID)
	req.NoError(err)
	req.Len(messages, 1)
}

func TestGroupMessageSkipsUnjoinedConnections(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.resolver.CreateGroup(ctx, "duo", []string{"alice", "bob"}, "alice")
	req.NoError(err)

	aliceSess, _ := f.connect("alice")
	_, bobConn := f.connect("bob") // participant, but never joined the room

	f.router.HandleMessage(ctx, aliceSess, event("join_room", fmt.Sprintf(`{"roomId":%q}`, conv.RoomID)))
	f.router.HandleMessage(ctx, aliceSess, event("sendGroupMessage", fmt.Sprintf(`{"content":"hi","groupId":%q}`, conv.ID)))

	// Room broadcasts reach joined connections only.
	req.Empty(framesOf(bobConn, "newMessage"))
}

func TestJoinRoomRejectsNonParticipant(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.resolver.CreateGroup(ctx, "duo", []string{"alice", "bob"}, "alice")
	req.NoError(err)

	carolSess, carolConn := f.connect("carol")
	f.router.HandleMessage(ctx, carolSess, event("join_room", fmt.Sprintf(`{"roomId":%q}`, conv.RoomID)))

	errs := framesOf(carolConn, "error")
	req.Len(errs, 1)
	req.Equal("join_room", gjson.Get(errs[0], "payload.type").String())
	req.False(carolConn.Closed())
	req.False(f.rooms.Joined(conv.RoomID, carolConn.ID()))
}

func TestJoinRoomUnknownRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceSess, aliceConn := f.connect("alice")
	f.router.HandleMessage(context.Background(), aliceSess, event("join_room", `{"roomId":"no-such-room"}`))

	errs := framesOf(aliceConn, "error")
	req.Len(errs, 1)
	req.Equal("group not found", gjson.Get(errs[0], "payload.message").String())
	req.False(aliceConn.Closed())
}

func TestConnectionSurvivesOperationFailure(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	ctx := context.Background()

	conv, err := f.resolver.CreateGroup(ctx, "private", []string{"alice", "bob"}, "alice")
	req.NoError(err)

	carolSess, carolConn := f.connect("carol")
	_, bobConn := f.connect("bob")

	// Forbidden group send: error event, connection stays open.
	f.router.HandleMessage(ctx, carolSess, event("sendGroupMessage", fmt.Sprintf(`{"content":"let me in","groupId":%q}`, conv.ID)))
	req.Len(framesOf(carolConn, "error"), 1)
	req.False(carolConn.Closed())

	// And the same connection still processes subsequent events.
	f.router.HandleMessage(ctx, carolSess, event("sendMessage", `{"content":"hey bob","sendTo":"bob"}`))
	req.Len(framesOf(carolConn, "successMessage"), 1)
	req.Len(framesOf(bobConn, "newMessage"), 1)

	// The rejected message was never appended.
	messages, err := f.store.Messages(ctx, conv.ID)
	req.NoError(err)
	req.Empty(messages)
}

func TestMalformedFrameIsFatal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceSess, aliceConn := f.connect("alice")
	f.router.HandleMessage(context.Background(), aliceSess, []byte(`{"event": "sendMessage",`))

	req.True(aliceConn.Closed())
	req.Empty(aliceConn.Frames())
}

func TestUnknownEventIsFatal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceSess, aliceConn := f.connect("alice")
	f.router.HandleMessage(context.Background(), aliceSess, event("selfDestruct", `{}`))

	req.True(aliceConn.Closed())
}

func TestMalformedPayloadIsFatal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	aliceSess, aliceConn := f.connect("alice")
	f.router.HandleMessage(context.Background(), aliceSess, event("sendMessage", `"just-a-string"`))

	req.True(aliceConn.Closed())
}
