package suggest

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ilyasfares/sakina/backend/internal/middleware"
	"github.com/ilyasfares/sakina/backend/internal/model/chat"
	suggestservice "github.com/ilyasfares/sakina/backend/internal/service/suggest"
	"github.com/ilyasfares/sakina/backend/pkg/utils"
)

// Handler serves journaling suggestion generation.
type Handler struct {
	svc *suggestservice.Service
}

// New creates the suggestion handler.
func New(svc *suggestservice.Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts suggestion routes on an authenticated router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/suggestions", h.handleGenerate)
}

type generateRequest struct {
	Language string      `json:"language"`
	Mood     string      `json:"mood"`
	Content  string      `json:"content"`
	History  []chat.Turn `json:"history"`
}

func (h *Handler) handleGenerate(w http.ResponseWriter, r *http.Request) {
	userID := middleware.UserID(r.Context())
	if userID == "" {
		utils.RespondError(w, http.StatusUnauthorized, utils.CodeUnauthorized, "a user identity is required")
		return
	}

	var payload generateRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, "invalid request body")
		return
	}

	resp, err := h.svc.Generate(r.Context(), suggestservice.Request{
		UserID:   userID,
		Language: payload.Language,
		Mood:     payload.Mood,
		Content:  payload.Content,
		History:  payload.History,
	})
	if err != nil {
		RespondServiceError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, resp)
}

// RespondServiceError maps orchestrator errors onto coded HTTP responses.
// Shared with the streaming handler, which hits the same preflight.
func RespondServiceError(w http.ResponseWriter, err error) {
	var unsafeErr *suggestservice.UnsafeContentError
	var rateErr *suggestservice.RateLimitError

	switch {
	case errors.Is(err, suggestservice.ErrContentTooLong):
		utils.RespondError(w, http.StatusBadRequest, utils.CodeBadRequest, err.Error())
	case errors.As(err, &unsafeErr):
		utils.RespondErrorPayload(w, http.StatusUnprocessableEntity, utils.ErrorPayload{
			Error:         "This entry can't be sent to suggestions. If you're going through a hard moment, you don't have to face it alone.",
			Code:          utils.CodeUnsafeContent,
			Reason:        unsafeErr.Reason,
			CrisisLevel:   unsafeErr.CrisisLevel,
			ShowEmergency: unsafeErr.CrisisLevel > 0,
		})
	case errors.As(err, &rateErr):
		w.Header().Set("Retry-After", strconv.Itoa(rateErr.Decision.RetryAfterSec))
		utils.RespondErrorPayload(w, http.StatusTooManyRequests, utils.ErrorPayload{
			Error:         "suggestion limit reached for this window",
			Code:          utils.CodeRateLimited,
			RetryAfterSec: rateErr.Decision.RetryAfterSec,
		})
	default:
		log.Printf("[suggest] generation failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, utils.CodeInternal, "suggestion generation failed")
	}
}
