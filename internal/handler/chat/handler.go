package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ilyasfares/sakina/backend/internal/middleware"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	chatservice "github.com/ilyasfares/sakina/backend/internal/service/chat"
	"github.com/ilyasfares/sakina/backend/pkg/utils"
)

// Handler serves conversation lifecycle routes.
type Handler struct {
	chatSvc *chatservice.Service
}

// New creates the conversation handler.
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes mounts conversation routes on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/conversations", h.handleGetOrCreate)
	r.Delete("/conversations", h.handleReset)
	r.Get("/conversations/{conversationID}/messages", h.handleTranscript)
	r.Post("/conversations/{conversationID}/messages", h.handleAppend)
	r.Get("/conversations/{conversationID}/state", h.handleState)
}

func (h *Handler) handleGetOrCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, "invalid request body")
		return
	}

	conv, err := h.chatSvc.GetOrCreate(r.Context(), middleware.UserID(r.Context()), payload.Language)
	if err != nil {
		if errors.Is(err, chatservice.ErrUserRequired) {
			utils.RespondError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "a user identity is required")
			return
		}
		utils.RespondError(w, http.StatusInternalServerError, utils.CodeInternal, "failed to open conversation")
		return
	}

	utils.RespondJSON(w, http.StatusOK, conv)
}

func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	h.chatSvc.Reset(r.Context(), middleware.UserID(r.Context()))
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// resolveOwned loads the conversation and checks it belongs to the caller.
func (h *Handler) resolveOwned(w http.ResponseWriter, r *http.Request) (chat.Conversation, bool) {
	conv, err := h.chatSvc.Get(r.Context(), chi.URLParam(r, "conversationID"))
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, utils.CodeNotFound, "conversation not found")
		return chat.Conversation{}, false
	}
	if conv.UserID != middleware.UserID(r.Context()) {
		utils.RespondError(w, http.StatusNotFound, utils.CodeNotFound, "conversation not found")
		return chat.Conversation{}, false
	}
	return conv, true
}

func (h *Handler) handleTranscript(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.resolveOwned(w, r)
	if !ok {
		return
	}

	messages, err := h.chatSvc.Transcript(r.Context(), conv.ID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, utils.CodeNotFound, "conversation not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]interface{}{
		"conversationId": conv.ID,
		"messages":       messages,
	})
}

func (h *Handler) handleAppend(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.resolveOwned(w, r)
	if !ok {
		return
	}

	var payload struct {
		Role    string `json:"role"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, "invalid request body")
		return
	}
	if payload.Role != chat.RoleUser && payload.Role != chat.RoleAssistant {
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, "role must be user or assistant")
		return
	}
	if payload.Content == "" {
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, "content is required")
		return
	}

	msg, err := h.chatSvc.AppendMessage(r.Context(), chat.Message{
		ConversationID: conv.ID,
		Role:           payload.Role,
		Content:        payload.Content,
	})
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, utils.CodeInternal, "failed to save message")
		return
	}

	utils.RespondJSON(w, http.StatusCreated, msg)
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	conv, ok := h.resolveOwned(w, r)
	if !ok {
		return
	}

	st, err := h.chatSvc.State(r.Context(), conv.ID)
	if err != nil {
		utils.RespondError(w, http.StatusNotFound, utils.CodeNotFound, "conversation not found")
		return
	}

	utils.RespondJSON(w, http.StatusOK, st)
}
