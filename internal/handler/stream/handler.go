package stream

import (
	"errors"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	suggesthandler "github.com/ilyasfares/sakina/backend/internal/handler/suggest"
	"github.com/ilyasfares/sakina/backend/internal/middleware"
	suggestservice "github.com/ilyasfares/sakina/backend/internal/service/suggest"
	"github.com/ilyasfares/sakina/backend/pkg/utils"
)

// Handler streams suggestion generation over Server-Sent Events.
type Handler struct {
	svc *suggestservice.Service
}

// New creates the streaming handler.
func New(svc *suggestservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the SSE route on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/suggestions/stream", h.handleStream)
}

type streamEvent struct {
	Provider      string `json:"provider,omitempty"`
	CrisisLevel   int    `json:"crisisLevel,omitempty"`
	ShowEmergency bool   `json:"showEmergency,omitempty"`
	Content       string `json:"content,omitempty"`
	Error         string `json:"error,omitempty"`
	Finished      bool   `json:"finished,omitempty"`
}

func (h *Handler) handleStream(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "a user identity is required")
		return
	}

	query := r.URL.Query()
	content := query.Get("message")
	if content == "" {
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, "message query parameter is required")
		return
	}

	// Preflight errors surface as plain JSON: no SSE stream has been
	// established yet at this point.
	stream, meta, err := h.svc.GenerateStream(r.Context(), suggestservice.Request{
		UserID:   userID,
		Language: query.Get("language"),
		Mood:     query.Get("mood"),
		Content:  content,
	})
	if err != nil {
		suggesthandler.RespondServiceError(w, err)
		return
	}
	defer stream.Close()

	sse, err := utils.NewSSEWriter(w)
	if err != nil {
		utils.RespondError(w, http.StatusInternalServerError, utils.CodeInternal, "streaming unsupported")
		return
	}

	sendEvent(sse, "start", streamEvent{
		Provider:      meta.Provider,
		CrisisLevel:   meta.CrisisLevel,
		ShowEmergency: meta.ShowEmergency,
	})

	var assembled strings.Builder
	for {
		chunk, recvErr := stream.Recv()
		if errors.Is(recvErr, io.EOF) {
			break
		}
		if recvErr != nil {
			sendEvent(sse, "error", streamEvent{Error: "stream interrupted"})
			log.Printf("[stream] recv failed for user=%s: %v", userID, recvErr)
			return
		}
		if chunk == "" {
			continue
		}
		assembled.WriteString(chunk)
		sendEvent(sse, "delta", streamEvent{Content: chunk})
	}

	// The assembled message gets the same outbound screening a batch
	// response would.
	full := assembled.String()
	if verdict := h.svc.ScreenOutput(full); verdict.Unsafe {
		log.Printf("[stream] assembled output screened out for user=%s: %s", userID, verdict.Reason)
		sendEvent(sse, "error", streamEvent{Error: "response withheld"})
		sendEvent(sse, "end", streamEvent{Finished: true})
		return
	}

	sendEvent(sse, "message", streamEvent{Content: full, Provider: meta.Provider})
	sendEvent(sse, "end", streamEvent{Finished: true})
}

func sendEvent(sse *utils.SSEWriter, name string, ev streamEvent) {
	if err := sse.Send(name, ev); err != nil {
		log.Printf("[stream] failed to send %s event: %v", name, err)
	}
}
