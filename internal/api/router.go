// Package api is the thin HTTP/WebSocket surface over the page manager:
// a typed REST mapping plus a best-effort broadcaster.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"simplepage/internal/config"
	"simplepage/internal/pagemanager"
	"simplepage/internal/replay"
	"simplepage/shield"
)

// Server wires the manager, replay driver, and broadcaster into a chi
// router.
type Server struct {
	cfg     *config.Config
	mgr     *pagemanager.Manager
	replay  *replay.Driver
	hub     *Hub
	router  *chi.Mux
}

// New builds the router and subscribes the hub to the manager's events.
func New(cfg *config.Config, mgr *pagemanager.Manager, replayDriver *replay.Driver) *Server {
	hub := NewHub()
	mgr.SetBroadcast(hub.Publish)

	s := &Server{cfg: cfg, mgr: mgr, replay: replayDriver, hub: hub}
	s.router = s.buildRouter()
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) buildRouter() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	for _, mw := range shield.DefaultStack() {
		r.Use(mw)
	}
	r.Use(s.cors)

	r.Get("/health", s.handleHealth)
	r.Get("/ws", s.handleWebSocket)

	r.Route("/api/pages", func(r chi.Router) {
		r.Get("/", s.handleListPages)
		r.Post("/", s.handleCreatePage)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetPage)
			r.Delete("/", s.handleClosePage)
			r.Post("/navigate", s.handleNavigate)
			r.Post("/navigate-back", s.handleNavigateBack)
			r.Post("/navigate-forward", s.handleNavigateForward)
			r.Post("/reload", s.handleReload)
			r.Get("/structure", s.handleStructure)
			r.Post("/act-xpath", s.handleActXPath)
			r.Post("/act-id", s.handleActID)
			r.Post("/wait", s.handleWait)
			r.Post("/condition", s.handleCondition)
			r.Get("/screenshot", s.handleScreenshot)
			r.Get("/xpath/{encodedId}", s.handleXPathFor)
			r.Post("/get-list-html", s.handleGetListHTML)
			r.Post("/get-list-html-by-parent", s.handleGetListHTMLByParent)
			r.Post("/get-element-html", s.handleGetElementHTML)
			r.Delete("/actions/{idx}", s.handleDeleteAction)
			r.Delete("/records", s.handleDeleteAllRecords)
		})
	})

	r.Route("/api/recordings", func(r chi.Router) {
		r.Get("/", s.handleListRecordings)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetRecording)
			r.Get("/files/{filename}", s.handleRecordingFile)
			r.Get("/data/{filename}", s.handleRecordingData)
		})
	})

	r.Post("/api/replay", s.handleReplay)

	return r
}

func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := s.cfg.CORSOrigin
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":           "ok",
		"pages":            len(s.mgr.List()),
		"browserConnected": s.mgr.BrowserConnected(),
	})
}
