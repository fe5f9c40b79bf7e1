package router

import (
	"net/http"
	"path/filepath"

	"rebase/config"
	"rebase/internal/browser"
	docHandler "rebase/internal/document"
	"rebase/internal/document/model"
	"rebase/internal/document/repository"
	"rebase/internal/document/service"
	"rebase/internal/gateway"
	"rebase/internal/journal"
	"rebase/middleware"
	"rebase/pkg/respond"
	"rebase/socket"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prefix is where the extension routes are mounted.
const Prefix = "/rebase"

// Setup builds the HTTP handler. The diff and remap stores live under
// cfg.DataDir and are created if missing.
func Setup(cfg *config.Config, hub *socket.Hub, gw *gateway.Gateway, j journal.Journal) (http.Handler, error) {
	mux := http.NewServeMux()
	clock := clockwork.NewRealClock()

	// WebSocket
	mux.HandleFunc("GET /ws", func(w http.ResponseWriter, r *http.Request) {
		socket.ServeWs(hub, w, r)
	})

	// Folder browser
	b := browser.New(cfg.DataDir, Prefix+"/data/view")
	browser.NewHandler(b).Register(mux, Prefix+"/data")

	// Named documents
	for _, kind := range []model.Kind{model.Diff, model.Remaps} {
		repo, err := repository.NewDocumentRepository(filepath.Join(cfg.DataDir, kind.Dir), kind, clock)
		if err != nil {
			return nil, err
		}
		docHandler.NewDocumentHandler(service.NewDocumentService(repo)).Register(mux, Prefix+"/"+kind.Name)
	}

	// Event forwarding
	gwHandler := gateway.NewHandler(gw)
	mux.HandleFunc("POST "+Prefix+"/forward", gwHandler.Forward)
	mux.HandleFunc("POST "+Prefix+"/reset", gwHandler.Reset)
	mux.HandleFunc("GET "+Prefix+"/events", journal.NewHandler(j).Recent)

	// Operations
	mux.Handle("GET /metrics", promhttp.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		respond.OK(w, map[string]any{"status": "ok", "websocket_clients": hub.ClientCount()})
	})

	return middleware.LoggingMiddleware(middleware.CORSMiddleware(cfg.AllowedOrigin)(mux)), nil
}
