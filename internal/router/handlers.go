package router

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/metrics"
)

// handleSendMessage routes a direct message: resolve the recipient, find or
// create the pair's conversation, append, echo a confirmation to the sending
// connection and deliver to every live connection of the recipient except the
// originating one. The exclusion only matters for self-addressed messages,
// where the origin gets the single echo and the user's other devices get the
// delivery.
func (r *Router) handleSendMessage(ctx context.Context, sess *Session, payload json.RawMessage) error {
	var p SendMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("sendMessage payload: %w", errMalformed)
	}

	recipient, err := r.directory.FindByID(ctx, p.SendTo)
	if err != nil {
		return fmt.Errorf("resolve recipient: %w", err)
	}

	conv, err := r.resolver.ResolveDirect(ctx, sess.UserID, recipient.ID)
	if err != nil {
		return err
	}
	if err := r.store.AppendMessage(ctx, conv.ID, chat.Message{Author: sess.UserID, Content: p.Content}); err != nil {
		return err
	}

	// Persisted; everything from here is fan-out over snapshots.
	r.send(sess.Conn, EventSuccessMessage, p.Content)
	for _, conn := range r.presence.Live(recipient.ID) {
		if conn.ID() == sess.Conn.ID() {
			continue
		}
		r.send(conn, EventNewMessage, NewMessagePayload{Content: p.Content, From: sess.UserID})
	}
	metrics.MessagesRouted.WithLabelValues("direct").Inc()
	return nil
}

// handleJoinRoom verifies the caller participates in the group behind the
// room identifier, then subscribes this connection to the room's broadcasts.
func (r *Router) handleJoinRoom(ctx context.Context, sess *Session, payload json.RawMessage) error {
	var p JoinRoomPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("join_room payload: %w", errMalformed)
	}

	conv, err := r.resolver.ResolveGroupByRoom(ctx, p.RoomID, sess.UserID)
	if err != nil {
		return err
	}
	r.rooms.Join(conv.RoomID, sess.Conn)
	return nil
}

// handleSendGroupMessage appends to an authorized group conversation and
// broadcasts to every connection joined to its room except the sender's own.
func (r *Router) handleSendGroupMessage(ctx context.Context, sess *Session, payload json.RawMessage) error {
	var p SendGroupMessagePayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("sendGroupMessage payload: %w", errMalformed)
	}

	conv, err := r.resolver.ResolveGroup(ctx, p.GroupID, sess.UserID)
	if err != nil {
		return err
	}
	if err := r.store.AppendMessage(ctx, conv.ID, chat.Message{Author: sess.UserID, Content: p.Content}); err != nil {
		return err
	}

	r.send(sess.Conn, EventSuccessMessage, p.Content)
	outbound := NewMessagePayload{Content: p.Content, From: sess.UserID, GroupID: conv.ID}
	for _, conn := range r.rooms.Connections(conv.RoomID) {
		if conn.ID() == sess.Conn.ID() {
			continue
		}
		r.send(conn, EventNewMessage, outbound)
	}
	metrics.MessagesRouted.WithLabelValues("group").Inc()
	return nil
}
