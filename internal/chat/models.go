package chat

import (
	"context"
	"time"
)

// User is the directory's view of an account. The gateway only ever reads it.
type User struct {
	ID       string
	Username string
	Verified bool
}

// Message is immutable once appended. Conversation order is append order.
type Message struct {
	Author    string
	Content   string
	CreatedAt time.Time
}

// Conversation is either direct (exactly two participants, unnamed) or a
// group (named, with a room identifier used for transport-level broadcast).
type Conversation struct {
	ID           string
	Participants []string
	GroupName    string
	RoomID       string
	CreatedAt    time.Time
}

// IsGroup reports whether the conversation is a group. The room identifier is
// present iff the conversation is a group.
func (c *Conversation) IsGroup() bool {
	return c.RoomID != ""
}

func (c *Conversation) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// Store persists conversations and their ordered message lists. Message
// append is atomic at the store boundary; direct-conversation creation is
// idempotent per unordered participant pair.
type Store interface {
	FindDirect(ctx context.Context, a, b string) (*Conversation, error)
	CreateDirect(ctx context.Context, a, b string) (*Conversation, error)
	FindGroup(ctx context.Context, id string) (*Conversation, error)
	FindGroupByRoom(ctx context.Context, roomID string) (*Conversation, error)
	CreateGroup(ctx context.Context, name string, participants []string) (*Conversation, error)
	AppendMessage(ctx context.Context, conversationID string, msg Message) error
	Messages(ctx context.Context, conversationID string) ([]Message, error)
}

// Directory resolves user identities. Owned by the surrounding application;
// the gateway performs reads only.
type Directory interface {
	FindByID(ctx context.Context, id string) (*User, error)
	// Missing returns, in input order, the ids that do not exist.
	Missing(ctx context.Context, ids []string) ([]string, error)
	AreFriends(ctx context.Context, a, b string) (bool, error)
}
