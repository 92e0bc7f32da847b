package impl

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GET /cmd/stop
func (s *PreloadServer) CmdStop(ctx echo.Context) error {
	s.shutdownCh <- true
	return ctx.String(http.StatusOK, "stopping\n")
}
