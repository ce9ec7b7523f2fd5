package ws

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/ilyasfares/sakina/backend/internal/middleware"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	chatservice "github.com/ilyasfares/sakina/backend/internal/service/chat"
	suggestservice "github.com/ilyasfares/sakina/backend/internal/service/suggest"
)

const readTimeout = 60 * time.Second

// Handler runs interactive chat sessions over a websocket connection.
type Handler struct {
	chatSvc    *chatservice.Service
	suggestSvc *suggestservice.Service
	upgrader   websocket.Upgrader
}

// New creates the websocket chat handler.
func New(chatSvc *chatservice.Service, suggestSvc *suggestservice.Service) *Handler {
	return &Handler{
		chatSvc:    chatSvc,
		suggestSvc: suggestSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes mounts the websocket route. The route sits outside the auth
// middleware: identity defaults to the conversation owner, though a caller
// presenting an explicit identity must match it.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/chat/{conversationID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type           string          `json:"type"`
	ConversationID string          `json:"conversationId"`
	Data           json.RawMessage `json:"data"`
}

type textMessage struct {
	Text string `json:"text"`
}

type configMessage struct {
	Language string `json:"language"`
	Mood     string `json:"mood"`
}

type outgoingMessage struct {
	Type           string      `json:"type"`
	ConversationID string      `json:"conversationId,omitempty"`
	Data           interface{} `json:"data,omitempty"`
	Timestamp      int64       `json:"timestamp"`
}

type sessionState struct {
	conversation chat.Conversation
	language     string
	mood         string
}

func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")
	if conversationID == "" {
		http.Error(w, "conversationID is required", http.StatusBadRequest)
		return
	}

	conv, err := h.chatSvc.Get(r.Context(), conversationID)
	if err != nil {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	// Possession of the conversation id is the baseline capability, but an
	// explicit identity on the upgrade request must match the owner.
	if claimed := middleware.Identity(r); claimed != "" && claimed != conv.UserID {
		http.Error(w, "conversation not found", http.StatusNotFound)
		return
	}

	if h.suggestSvc == nil {
		http.Error(w, "generation unavailable", http.StatusServiceUnavailable)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[ws] new connection for conversation=%s", conversationID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	go h.pingLoop(ctx, conn)

	session := &sessionState{conversation: conv, language: conv.Language}

	h.sendInfo(conn, conversationID, map[string]any{
		"type":     "connected",
		"language": session.language,
	})
	h.sendState(ctx, conn, conversationID)

	for {
		select {
		case <-ctx.Done():
			return
		default:
			var msg inboundMessage
			if err := conn.ReadJSON(&msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
					log.Printf("[ws] read error: %v", err)
				}
				return
			}

			conn.SetReadDeadline(time.Now().Add(readTimeout))

			if msg.ConversationID != "" && msg.ConversationID != conversationID {
				h.sendError(conn, "conversation mismatch")
				continue
			}

			h.handleMessage(ctx, conn, session, &msg)
		}
	}
}

func (h *Handler) handleMessage(ctx context.Context, conn *websocket.Conn, session *sessionState, msg *inboundMessage) {
	switch msg.Type {
	case "text":
		h.handleTextMessage(ctx, conn, session, msg.Data)
	case "config":
		h.handleConfigMessage(conn, session, msg.Data)
	default:
		h.sendError(conn, "unsupported message type: "+msg.Type)
	}
}

func (h *Handler) handleConfigMessage(conn *websocket.Conn, session *sessionState, raw json.RawMessage) {
	var cfg configMessage
	if err := json.Unmarshal(raw, &cfg); err != nil {
		h.sendError(conn, "invalid config payload")
		return
	}

	if cfg.Language != "" {
		session.language = cfg.Language
	}
	session.mood = cfg.Mood

	h.sendInfo(conn, session.conversation.ID, map[string]any{
		"type":     "config",
		"language": session.language,
		"mood":     session.mood,
	})
}

func (h *Handler) handleTextMessage(ctx context.Context, conn *websocket.Conn, session *sessionState, raw json.RawMessage) {
	var text textMessage
	if err := json.Unmarshal(raw, &text); err != nil {
		h.sendError(conn, "invalid text payload")
		return
	}
	if text.Text == "" {
		return
	}

	convID := session.conversation.ID
	if err := h.chatSvc.BeginGeneration(convID); err != nil {
		h.sendError(conn, "a reply is already being generated")
		return
	}
	defer h.chatSvc.EndGeneration(convID)

	if err := h.processUserText(ctx, conn, session, text.Text); err != nil {
		h.sendError(conn, err.Error())
	}
}

func (h *Handler) processUserText(ctx context.Context, conn *websocket.Conn, session *sessionState, userText string) error {
	convID := session.conversation.ID

	history, err := h.chatSvc.Transcript(ctx, convID)
	if err != nil {
		return errors.New("conversation not found")
	}

	if _, err := h.chatSvc.AppendMessage(ctx, chat.Message{
		ConversationID: convID,
		Role:           chat.RoleUser,
		Content:        userText,
	}); err != nil {
		return errors.New("failed to save message")
	}

	h.sendInfo(conn, convID, map[string]any{
		"type": "user",
		"text": userText,
	})
	h.sendState(ctx, conn, convID)

	stream, meta, err := h.suggestSvc.GenerateChatStream(ctx, suggestservice.Request{
		UserID:   session.conversation.UserID,
		Language: session.language,
		Mood:     session.mood,
		Content:  userText,
		History:  turnsFrom(history),
	})
	if err != nil {
		h.handleGenerationRefusal(conn, convID, err)
		return nil
	}
	defer stream.Close()

	if meta.ShowEmergency {
		h.sendEmergency(conn, convID, meta.CrisisLevel)
	}

	responseText, err := h.relayStream(conn, session, stream)
	if err != nil {
		return err
	}

	// Outbound screening of the assembled reply. An unsafe reply is
	// replaced, never shown: the final frame goes out only after the
	// verdict, so the client sees exactly one final text.
	if verdict := h.suggestSvc.ScreenOutput(responseText); verdict.Unsafe {
		log.Printf("[ws] assistant reply screened out conversation=%s: %s", convID, verdict.Reason)
		responseText = supportiveReplacement(session.language)
	}

	h.sendInfo(conn, convID, map[string]any{
		"type":    "ai",
		"text":    responseText,
		"isFinal": true,
	})

	if _, err := h.chatSvc.AppendMessage(ctx, chat.Message{
		ConversationID: convID,
		Role:           chat.RoleAssistant,
		Content:        responseText,
	}); err != nil {
		log.Printf("[ws] save assistant message failed: %v", err)
	}
	h.sendState(ctx, conn, convID)

	return nil
}

// handleGenerationRefusal maps preflight rejections onto session events.
// Refusals are part of the conversation flow, not connection errors.
func (h *Handler) handleGenerationRefusal(conn *websocket.Conn, convID string, err error) {
	var unsafeErr *suggestservice.UnsafeContentError
	var rateErr *suggestservice.RateLimitError

	switch {
	case errors.Is(err, suggestservice.ErrContentTooLong):
		h.sendInfo(conn, convID, map[string]any{
			"type":   "rejected",
			"reason": "content_too_long",
			"text":   "That message is too long to process. Try splitting it into smaller parts.",
		})
	case errors.As(err, &unsafeErr):
		if unsafeErr.CrisisLevel > 0 {
			h.sendEmergency(conn, convID, unsafeErr.CrisisLevel)
		}
		h.sendInfo(conn, convID, map[string]any{
			"type":   "rejected",
			"reason": unsafeErr.Reason,
			"text":   "This message can't be processed. If you're going through a hard moment, you don't have to face it alone.",
		})
	case errors.As(err, &rateErr):
		h.sendInfo(conn, convID, map[string]any{
			"type":              "rejected",
			"reason":            "rate_limited",
			"retryAfterSeconds": rateErr.Decision.RetryAfterSec,
		})
	default:
		log.Printf("[ws] generation failed conversation=%s: %v", convID, err)
		h.sendError(conn, "reply generation failed")
	}
}

func (h *Handler) relayStream(conn *websocket.Conn, session *sessionState, stream *schema.StreamReader[string]) (string, error) {
	var assembled strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			return "", errors.New("reply stream interrupted")
		}
		if chunk == "" {
			continue
		}
		assembled.WriteString(chunk)
		h.sendInfo(conn, session.conversation.ID, map[string]any{
			"type": "ai_delta",
			"text": chunk,
		})
	}

	return assembled.String(), nil
}

func (h *Handler) sendState(ctx context.Context, conn *websocket.Conn, convID string) {
	st, err := h.chatSvc.State(ctx, convID)
	if err != nil {
		return
	}
	h.sendInfo(conn, convID, map[string]any{
		"type":            "state",
		"stage":           st.Stage,
		"showSuggestions": st.ShowSuggestions,
		"messageCount":    len(st.Messages),
	})
}

func (h *Handler) sendEmergency(conn *websocket.Conn, convID string, level int) {
	h.sendInfo(conn, convID, map[string]any{
		"type":        "emergency",
		"crisisLevel": level,
	})
}

func supportiveReplacement(language string) string {
	switch language {
	case "fr":
		return "Je ne peux pas partager cette réponse. Prenons un moment pour respirer ensemble."
	case "ar":
		return "لا يمكنني مشاركة هذا الرد. لنأخذ لحظة لنتنفس معاً."
	default:
		return "I can't share that reply. Let's take a moment to breathe together."
	}
}

func turnsFrom(messages []chat.Message) []chat.Turn {
	turns := make([]chat.Turn, 0, len(messages))
	for _, msg := range messages {
		turns = append(turns, chat.Turn{Role: msg.Role, Content: msg.Content})
	}
	return turns
}

func (h *Handler) sendInfo(conn *websocket.Conn, convID string, data map[string]any) {
	msg := outgoingMessage{
		Type:           "result",
		ConversationID: convID,
		Data:           data,
		Timestamp:      time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write info failed: %v", err)
	}
}

func (h *Handler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[ws] write error failed: %v", err)
	}
}

func (h *Handler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
