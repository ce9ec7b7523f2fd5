package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	chathandler "github.com/ilyasfares/sakina/backend/internal/handler/chat"
	profilehandler "github.com/ilyasfares/sakina/backend/internal/handler/profile"
	streamhandler "github.com/ilyasfares/sakina/backend/internal/handler/stream"
	suggesthandler "github.com/ilyasfares/sakina/backend/internal/handler/suggest"
	wshandler "github.com/ilyasfares/sakina/backend/internal/handler/ws"
	"github.com/ilyasfares/sakina/backend/internal/middleware"
	"github.com/ilyasfares/sakina/backend/internal/profile"
	chatservice "github.com/ilyasfares/sakina/backend/internal/service/chat"
	suggestservice "github.com/ilyasfares/sakina/backend/internal/service/suggest"
	"github.com/ilyasfares/sakina/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services. A nil suggestSvc means the
// server came up without any generation path; the affected routes answer
// with a configuration error instead of disappearing.
func NewRouter(profiles profile.Store, chatSvc *chatservice.Service, suggestSvc *suggestservice.Service) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS)

	profileHandler := profilehandler.New(profiles)
	chatHandler := chathandler.New(chatSvc)

	r.Route("/api", func(api chi.Router) {
		api.Get("/health", handleHealth)

		profileHandler.RegisterRoutes(api)

		api.Group(func(authed chi.Router) {
			authed.Use(middleware.Auth)

			chatHandler.RegisterRoutes(authed)

			if suggestSvc == nil {
				authed.Post("/suggestions", respondMisconfigured)
				authed.Get("/suggestions/stream", respondMisconfigured)
				return
			}
			suggesthandler.New(suggestSvc).RegisterRoutes(authed)
			streamhandler.New(suggestSvc).RegisterRoutes(authed)
		})
	})

	wshandler.New(chatSvc, suggestSvc).RegisterRoutes(r)

	return r
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func respondMisconfigured(w http.ResponseWriter, _ *http.Request) {
	utils.RespondError(w, http.StatusServiceUnavailable, utils.CodeMisconfigured, "suggestion generation is not configured")
}
