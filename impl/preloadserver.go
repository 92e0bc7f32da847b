// Package impl implements the preload API server. This file is lean: it wires routes
// to the handlers in 'handlers.go' and 'cmd_handlers.go'.
package impl

import (
	"github.com/aceeric/imgpreload/impl/preload"

	"github.com/labstack/echo/v4"
)

type PreloadServer struct {
	preloader  *preload.Preloader
	shutdownCh chan bool
}

// NewPreloadServer creates a PreloadServer serving the catalog and loads of the passed
// Preloader. A GET on /cmd/stop sends true on 'shutdownCh'.
func NewPreloadServer(p *preload.Preloader, shutdownCh chan bool) *PreloadServer {
	return &PreloadServer{
		preloader:  p,
		shutdownCh: shutdownCh,
	}
}

// RegisterHandlers adds the server's routes to the passed Echo router
func (s *PreloadServer) RegisterHandlers(e *echo.Echo) {
	e.GET("/health", s.Health)
	e.GET("/catalog", s.GetCatalog)
	e.POST("/catalog", s.PostCatalog)
	e.GET("/loads", s.GetLoads)
	e.POST("/loads", s.PostLoads)
	e.GET("/loads/:id", s.GetLoad)
	e.GET("/cmd/stop", s.CmdStop)
}
