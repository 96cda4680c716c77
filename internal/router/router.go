package router

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tidwall/gjson"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/metrics"
	"github.com/enisar25/SocialApp/pkg/presence"
	"github.com/enisar25/SocialApp/pkg/rooms"
	"github.com/enisar25/SocialApp/pkg/transport"
)

// errMalformed marks protocol violations. Unlike operation failures these are
// fatal: the connection is closed instead of receiving an error event.
var errMalformed = errors.New("malformed event")

// Session is an authenticated connection as the router sees it. The gateway
// server constructs one after the handshake; no event reaches the router on a
// connection without an attached identity.
type Session struct {
	Conn   transport.Conn
	UserID string
}

// Router consumes inbound events, drives the conversation resolver and store,
// and fans outbound events to live connections through the presence registry
// and room sets.
type Router struct {
	resolver  *chat.Resolver
	store     chat.Store
	directory chat.Directory
	presence  *presence.Registry
	rooms     *rooms.Manager
	logger    *slog.Logger
}

func New(resolver *chat.Resolver, store chat.Store, directory chat.Directory, reg *presence.Registry, rm *rooms.Manager, logger *slog.Logger) *Router {
	return &Router{
		resolver:  resolver,
		store:     store,
		directory: directory,
		presence:  reg,
		rooms:     rm,
		logger:    logger.With(slog.String("component", "message_router")),
	}
}

// HandleMessage processes one inbound frame. The transport calls it from the
// connection's read pump, so events from one connection are handled strictly
// in receipt order; events from different connections run concurrently.
//
// Operation failures (not found, forbidden, store errors) are converted to an
// error event and the connection stays open. Only protocol violations close
// the connection.
func (r *Router) HandleMessage(ctx context.Context, sess *Session, msg []byte) {
	if !gjson.ValidBytes(msg) {
		r.logger.Warn("invalid frame, closing connection", slog.String("userID", sess.UserID))
		sess.Conn.Close(fmt.Errorf("invalid frame: %w", errMalformed))
		return
	}

	var evt ClientEvent
	if err := json.Unmarshal(msg, &evt); err != nil {
		sess.Conn.Close(fmt.Errorf("bad envelope: %w", errMalformed))
		return
	}
	metrics.EventsTotal.WithLabelValues(evt.Event).Inc()

	var err error
	switch evt.Event {
	case EventSendMessage:
		err = r.handleSendMessage(ctx, sess, evt.Payload)
	case EventJoinRoom:
		err = r.handleJoinRoom(ctx, sess, evt.Payload)
	case EventSendGroupMessage:
		err = r.handleSendGroupMessage(ctx, sess, evt.Payload)
	default:
		r.logger.Warn("unknown event, closing connection",
			slog.String("event", evt.Event),
			slog.String("userID", sess.UserID),
		)
		sess.Conn.Close(fmt.Errorf("unknown event %q: %w", evt.Event, errMalformed))
		return
	}

	if err == nil {
		return
	}
	if errors.Is(err, errMalformed) {
		sess.Conn.Close(err)
		return
	}
	r.reportError(sess, evt.Event, err)
}

// reportError converts an operation failure into an error event on the
// connection. Internal failures are logged in full but surfaced generically.
func (r *Router) reportError(sess *Session, event string, err error) {
	msg := "internal error"
	switch {
	case chat.IsNotFound(err) || chat.IsForbidden(err):
		msg = clientMessage(event, err)
		r.logger.Debug("operation rejected",
			slog.String("event", event),
			slog.String("userID", sess.UserID),
			slog.Any("error", err),
		)
	default:
		r.logger.Error("operation failed",
			slog.String("event", event),
			slog.String("userID", sess.UserID),
			slog.Any("error", err),
		)
	}
	metrics.ErrorEvents.WithLabelValues(event).Inc()
	r.send(sess.Conn, EventError, ErrorPayload{Type: event, Message: msg})
}

func clientMessage(event string, err error) string {
	if chat.IsForbidden(err) {
		return "not a participant of this group"
	}
	if event == EventSendMessage {
		return "user not found"
	}
	return "group not found"
}

func (r *Router) send(conn transport.Conn, event string, payload any) {
	frame, err := json.Marshal(ServerEvent{Event: event, Payload: payload})
	if err != nil {
		r.logger.Error("failed to marshal outbound event", slog.String("event", event), slog.Any("error", err))
		return
	}
	conn.Send(frame)
}
