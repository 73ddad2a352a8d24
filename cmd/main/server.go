package main

import (
	"log/slog"
	"net/http"

	"github.com/quillforge/quillforge/pkg/pipeline"
)

// Server wires the API handlers onto a mux. The render pipeline itself is
// request-local; only the config manager and the template cache are shared.
type Server struct {
	cm        *ConfigManager
	logger    *slog.Logger
	cache     *pipeline.Cache
	renderAPI *RenderAPI
	serverAPI *ServerAPI
	apiMux    *http.ServeMux
}

// NewServer creates the server object and registers all routes.
func NewServer(cm *ConfigManager, logger *slog.Logger, actionChan chan string) *Server {
	cfg := cm.Get()
	cache := pipeline.NewCache(cfg.Server.CacheSize)
	msgs := NewMessages(cfg.Server.Locale)

	renderAPI := NewRenderAPI(cm, cache, msgs, logger)
	serverAPI := NewServerAPI(cm, actionChan, logger)

	server := &Server{
		cm:        cm,
		logger:    logger,
		cache:     cache,
		renderAPI: renderAPI,
		serverAPI: serverAPI,
		apiMux:    http.NewServeMux(),
	}

	server.renderAPI.RegisterRoutes(server.apiMux)
	server.serverAPI.RegisterRoutes(server.apiMux)

	return server
}
