package chat

import (
	"context"
	"fmt"
	"log/slog"
)

// Resolver finds or lazily creates the conversation behind a message, with
// participant-membership authorization on every group access.
type Resolver struct {
	store     Store
	directory Directory
	logger    *slog.Logger
}

func NewResolver(store Store, directory Directory, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:     store,
		directory: directory,
		logger:    logger.With(slog.String("component", "conversation_resolver")),
	}
}

// ResolveDirect returns the unique direct conversation between the unordered
// pair, creating it with an empty message list on first contact. The store's
// create is idempotent on the pair, so a race between two first messages
// still converges on one conversation.
func (r *Resolver) ResolveDirect(ctx context.Context, a, b string) (*Conversation, error) {
	conv, err := r.store.FindDirect(ctx, a, b)
	if err == nil {
		return conv, nil
	}
	if !IsNotFound(err) {
		return nil, fmt.Errorf("find direct conversation: %w", err)
	}

	conv, err = r.store.CreateDirect(ctx, a, b)
	if err != nil {
		return nil, fmt.Errorf("create direct conversation: %w", err)
	}
	r.logger.Debug("created direct conversation",
		slog.String("conversationID", conv.ID),
		slog.String("a", a),
		slog.String("b", b),
	)
	return conv, nil
}

// ResolveGroup fetches a group conversation by identifier and authorizes the
// requesting user against its participant set.
func (r *Resolver) ResolveGroup(ctx context.Context, conversationID, requester string) (*Conversation, error) {
	conv, err := r.store.FindGroup(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	return r.authorizeGroup(conv, requester)
}

// ResolveGroupByRoom is ResolveGroup keyed by the transport-level room
// identifier. Used by the join-room flow.
func (r *Resolver) ResolveGroupByRoom(ctx context.Context, roomID, requester string) (*Conversation, error) {
	conv, err := r.store.FindGroupByRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return r.authorizeGroup(conv, requester)
}

func (r *Resolver) authorizeGroup(conv *Conversation, requester string) (*Conversation, error) {
	if !conv.IsGroup() {
		return nil, fmt.Errorf("conversation %s is not a group: %w", conv.ID, ErrNotFound)
	}
	if !conv.HasParticipant(requester) {
		return nil, fmt.Errorf("user %s is not a participant of %s: %w", requester, conv.ID, ErrForbidden)
	}
	return conv, nil
}

// CreateGroup validates every requested participant against the directory,
// ensures the creator is included, and creates the group with a fresh room
// identifier assigned by the store.
func (r *Resolver) CreateGroup(ctx context.Context, name string, participants []string, creator string) (*Conversation, error) {
	missing, err := r.directory.Missing(ctx, participants)
	if err != nil {
		return nil, fmt.Errorf("validate participants: %w", err)
	}
	if len(missing) > 0 {
		return nil, &InvalidParticipantError{UserID: missing[0]}
	}

	members := participants
	found := false
	for _, p := range members {
		if p == creator {
			found = true
			break
		}
	}
	if !found {
		members = append(append([]string{}, participants...), creator)
	}

	conv, err := r.store.CreateGroup(ctx, name, members)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	r.logger.Info("group created",
		slog.String("conversationID", conv.ID),
		slog.String("roomID", conv.RoomID),
		slog.Int("participants", len(conv.Participants)),
	)
	return conv, nil
}
