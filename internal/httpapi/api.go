// Package httpapi exposes the chat HTTP endpoints that sit next to the
// websocket gateway: fetching the direct conversation with another user,
// creating a group and fetching a group conversation. Everything else of the
// surrounding application's HTTP surface (accounts, posts, uploads) lives
// elsewhere.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/enisar25/SocialApp/internal/chat"
	"github.com/enisar25/SocialApp/internal/server/middleware"
)

type Handler struct {
	resolver  *chat.Resolver
	store     chat.Store
	directory chat.Directory
	logger    *slog.Logger
}

func New(resolver *chat.Resolver, store chat.Store, directory chat.Directory, logger *slog.Logger) *Handler {
	return &Handler{
		resolver:  resolver,
		store:     store,
		directory: directory,
		logger:    logger.With(slog.String("component", "chat_api")),
	}
}

// Register mounts the chat routes. The caller is expected to have installed
// the metadata and auth middleware on the router already.
func (h *Handler) Register(r chi.Router) {
	r.Get("/direct/{userID}", h.getDirectChat)
	r.Post("/group", h.createGroup)
	r.Get("/group/{groupID}", h.getGroupChat)
}

type conversationResponse struct {
	ID           string        `json:"id"`
	Participants []string      `json:"participants"`
	Group        string        `json:"group,omitempty"`
	RoomID       string        `json:"roomId,omitempty"`
	CreatedAt    time.Time     `json:"createdAt"`
	Messages     []messageItem `json:"messages,omitempty"`
}

type messageItem struct {
	Content   string    `json:"content"`
	CreatedBy string    `json:"createdBy"`
	CreatedAt time.Time `json:"createdAt"`
}

func conversationDTO(conv *chat.Conversation, messages []chat.Message) conversationResponse {
	resp := conversationResponse{
		ID:           conv.ID,
		Participants: conv.Participants,
		Group:        conv.GroupName,
		RoomID:       conv.RoomID,
		CreatedAt:    conv.CreatedAt,
	}
	for _, m := range messages {
		resp.Messages = append(resp.Messages, messageItem{
			Content:   m.Content,
			CreatedBy: m.Author,
			CreatedAt: m.CreatedAt,
		})
	}
	return resp
}

// getDirectChat finds or creates the caller's direct conversation with the
// user in the path and returns it with its ordered messages.
func (h *Handler) getDirectChat(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	friendID := chi.URLParam(r, "userID")
	friend, err := h.directory.FindByID(r.Context(), friendID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}

	conv, err := h.resolver.ResolveDirect(r.Context(), user.ID, friend.ID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	messages, err := h.store.Messages(r.Context(), conv.ID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeData(w, http.StatusOK, conversationDTO(conv, messages))
}

type createGroupRequest struct {
	GroupName    string   `json:"groupName"`
	Participants []string `json:"participants"`
}

func (h *Handler) createGroup(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	var req createGroupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GroupName == "" {
		h.writeError(w, http.StatusBadRequest, "groupName is required")
		return
	}

	conv, err := h.resolver.CreateGroup(r.Context(), req.GroupName, req.Participants, user.ID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeData(w, http.StatusCreated, conversationDTO(conv, nil))
}

func (h *Handler) getGroupChat(w http.ResponseWriter, r *http.Request) {
	user, ok := authedUser(r)
	if !ok {
		h.writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	conv, err := h.resolver.ResolveGroup(r.Context(), chi.URLParam(r, "groupID"), user.ID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	messages, err := h.store.Messages(r.Context(), conv.ID)
	if err != nil {
		h.writeFailure(w, err)
		return
	}
	h.writeData(w, http.StatusOK, conversationDTO(conv, messages))
}

func authedUser(r *http.Request) (*chat.User, bool) {
	reqMeta, ok := middleware.ReqMetadataFrom(r.Context())
	if !ok || reqMeta.User == nil {
		return nil, false
	}
	return reqMeta.User, true
}

// writeFailure maps domain errors onto HTTP statuses.
func (h *Handler) writeFailure(w http.ResponseWriter, err error) {
	var invalid *chat.InvalidParticipantError
	switch {
	case errors.As(err, &invalid):
		h.writeError(w, http.StatusBadRequest, invalid.Error())
	case chat.IsNotFound(err):
		h.writeError(w, http.StatusNotFound, "not found")
	case chat.IsForbidden(err):
		h.writeError(w, http.StatusForbidden, "forbidden")
	default:
		h.logger.Error("request failed", slog.Any("error", err))
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeData(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"message": "Done", "data": data}); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]any{"message": msg}); err != nil {
		h.logger.Error("failed to encode response", slog.Any("error", err))
	}
}
