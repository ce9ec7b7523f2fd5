package profile

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ilyasfares/sakina/backend/internal/profile"
	"github.com/ilyasfares/sakina/backend/pkg/utils"
)

// Handler serves the companion profiles.
type Handler struct {
	store profile.Store
}

// New creates the profile handler.
func New(store profile.Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts profile routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profiles", h.handleList)
	r.Get("/profiles/{language}", h.handleFindByLanguage)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.store.List())
}

func (h *Handler) handleFindByLanguage(w http.ResponseWriter, r *http.Request) {
	prof, ok := h.store.FindByLanguage(chi.URLParam(r, "language"))
	if !ok {
		utils.RespondError(w, http.StatusNotFound, utils.CodeNotFound, "profile not found")
		return
	}
	utils.RespondJSON(w, http.StatusOK, prof)
}
