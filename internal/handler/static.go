package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"ark-proxy-go/internal/static"
)

// StaticHandler serves files from the static root.
type StaticHandler struct {
	resolver *static.Resolver
	logger   *slog.Logger
}

// NewStaticHandler creates a StaticHandler.
func NewStaticHandler(r *static.Resolver, logger *slog.Logger) *StaticHandler {
	return &StaticHandler{
		resolver: r,
		logger:   logger.With("component", "static_handler"),
	}
}

// Serve answers GET requests for any path not claimed by another route.
// Error bodies never include filesystem paths.
func (h *StaticHandler) Serve(c echo.Context) error {
	f, err := h.resolver.Resolve(c.Request().URL.Path)
	switch {
	case err == nil:
		return c.Blob(http.StatusOK, f.ContentType, f.Data)
	case errors.Is(err, static.ErrNotFound):
		return c.String(http.StatusNotFound, "Not Found")
	case errors.Is(err, static.ErrForbidden):
		return c.String(http.StatusForbidden, "Forbidden")
	default:
		h.logger.Error("static file error", "err", err)
		return c.String(http.StatusInternalServerError, "Internal Server Error")
	}
}
