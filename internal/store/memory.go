package store

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/enisar25/SocialApp/internal/chat"
)

// MemoryStore is the in-process chat.Store used in development and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	convs  map[string]*record
	direct map[string]string // sorted pair key -> conversation id
	byRoom map[string]string // room id -> conversation id
}

type record struct {
	conv     chat.Conversation
	messages []chat.Message
}

var _ chat.Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		convs:  make(map[string]*record),
		direct: make(map[string]string),
		byRoom: make(map[string]string),
	}
}

// directKey builds the uniqueness key for an unordered participant pair.
func directKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + "\x00" + b
}

func (s *MemoryStore) FindDirect(ctx context.Context, a, b string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.direct[directKey(a, b)]
	if !ok {
		return nil, fmt.Errorf("direct conversation %s/%s: %w", a, b, chat.ErrNotFound)
	}
	return s.snapshotLocked(id)
}

// CreateDirect is idempotent on the unordered pair: a concurrent or repeated
// create returns the already existing conversation.
func (s *MemoryStore) CreateDirect(ctx context.Context, a, b string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := directKey(a, b)
	if id, ok := s.direct[key]; ok {
		return s.snapshotLocked(id)
	}

	conv := chat.Conversation{
		ID:           uuid.NewString(),
		Participants: []string{a, b},
		CreatedAt:    time.Now().UTC(),
	}
	s.convs[conv.ID] = &record{conv: conv}
	s.direct[key] = conv.ID
	return s.snapshotLocked(conv.ID)
}

func (s *MemoryStore) FindGroup(ctx context.Context, id string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.convs[id]
	if !ok || !rec.conv.IsGroup() {
		return nil, fmt.Errorf("group conversation %s: %w", id, chat.ErrNotFound)
	}
	return s.snapshotLocked(id)
}

func (s *MemoryStore) FindGroupByRoom(ctx context.Context, roomID string) (*chat.Conversation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	id, ok := s.byRoom[roomID]
	if !ok {
		return nil, fmt.Errorf("room %s: %w", roomID, chat.ErrNotFound)
	}
	return s.snapshotLocked(id)
}

func (s *MemoryStore) CreateGroup(ctx context.Context, name string, participants []string) (*chat.Conversation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv := chat.Conversation{
		ID:           uuid.NewString(),
		Participants: append([]string{}, participants...),
		GroupName:    name,
		RoomID:       ulid.Make().String(),
		CreatedAt:    time.Now().UTC(),
	}
	s.convs[conv.ID] = &record{conv: conv}
	s.byRoom[conv.RoomID] = conv.ID
	return s.snapshotLocked(conv.ID)
}

func (s *MemoryStore) AppendMessage(ctx context.Context, conversationID string, msg chat.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.convs[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s: %w", conversationID, chat.ErrNotFound)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	rec.messages = append(rec.messages, msg)
	return nil
}

func (s *MemoryStore) Messages(ctx context.Context, conversationID string) ([]chat.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.convs[conversationID]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", conversationID, chat.ErrNotFound)
	}
	return append([]chat.Message{}, rec.messages...), nil
}

// snapshotLocked copies the record so callers never hold a mutable reference
// into the store.
func (s *MemoryStore) snapshotLocked(id string) (*chat.Conversation, error) {
	rec, ok := s.convs[id]
	if !ok {
		return nil, fmt.Errorf("conversation %s: %w", id, chat.ErrNotFound)
	}
	conv := rec.conv
	conv.Participants = append([]string{}, rec.conv.Participants...)
	return &conv, nil
}
