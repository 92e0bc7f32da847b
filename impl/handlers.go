package impl

import (
	"net/http"
	"strconv"

	"github.com/aceeric/imgpreload/impl/catalog"
	"github.com/aceeric/imgpreload/impl/preload"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"
)

// addRequest is the body of POST /catalog. The scene and weight are the tag for
// all the items.
type addRequest struct {
	Scene  *string       `json:"scene,omitempty"`
	Weight *float64      `json:"weight,omitempty"`
	Items  catalog.Items `json:"items"`
}

type addResponse struct {
	Added     int      `json:"added"`
	Discarded []string `json:"discarded,omitempty"`
}

type loadResponse struct {
	ID    uint64 `json:"id"`
	Total int    `json:"total"`
}

// GET /health
func (s *PreloadServer) Health(ctx echo.Context) error {
	return ctx.NoContent(http.StatusOK)
}

// GET /catalog
func (s *PreloadServer) GetCatalog(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.preloader.Resources())
}

// POST /catalog
func (s *PreloadServer) PostCatalog(ctx echo.Context) error {
	var req addRequest
	if err := ctx.Bind(&req); err != nil {
		return ctx.String(http.StatusBadRequest, "invalid request body\n")
	}
	tag := catalog.Tag{Scene: req.Scene, Weight: req.Weight}
	added, discarded := s.preloader.AddItems(req.Items, tag)
	resp := addResponse{Added: added}
	for _, d := range discarded {
		resp.Discarded = append(resp.Discarded, "item "+strconv.Itoa(d.Index)+": "+d.Err.Error())
	}
	return ctx.JSON(http.StatusOK, resp)
}

// GET /loads
func (s *PreloadServer) GetLoads(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, s.preloader.Active())
}

// POST /loads?scene=... or /loads?weight=...
func (s *PreloadServer) PostLoads(ctx echo.Context) error {
	sel, err := catalog.ParseSelector(ctx.QueryParam("scene"), ctx.QueryParam("weight"))
	if err != nil {
		return ctx.String(http.StatusBadRequest, err.Error()+"\n")
	}
	l := s.preloader.Load(sel, preload.WithProgress(func(completed, total int) {
		log.Debugf("load progress: %d/%d (%s)", completed, total, sel)
	}))
	return ctx.JSON(http.StatusAccepted, loadResponse{ID: l.ID(), Total: l.Total()})
}

// GET /loads/:id
func (s *PreloadServer) GetLoad(ctx echo.Context) error {
	id, err := strconv.ParseUint(ctx.Param("id"), 10, 64)
	if err != nil {
		return ctx.String(http.StatusBadRequest, "invalid load id\n")
	}
	l, ok := s.preloader.Get(id)
	if !ok {
		return ctx.String(http.StatusNotFound, "no such load\n")
	}
	return ctx.JSON(http.StatusOK, l.Status())
}
