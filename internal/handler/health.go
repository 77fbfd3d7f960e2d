package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"ark-proxy-go/internal/config"
)

// Version is a string type for dependency injection of the build version.
type Version string

// HealthHandler serves health and status endpoints.
type HealthHandler struct {
	cfg     *config.Config
	version Version
}

// statusResponse describes the running proxy. It never carries the credential.
type statusResponse struct {
	Status               string `json:"status"`
	Version              string `json:"version"`
	TextURL              string `json:"text_url"`
	TextModel            string `json:"text_model"`
	ImageURL             string `json:"image_url"`
	ImageModel           string `json:"image_model"`
	CredentialConfigured bool   `json:"credential_configured"`
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(cfg *config.Config, v Version) *HealthHandler {
	return &HealthHandler{cfg: cfg, version: v}
}

// Healthz returns a simple OK response for liveness checks.
func (h *HealthHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status": "ok",
	})
}

// Status returns proxy status information.
func (h *HealthHandler) Status(c echo.Context) error {
	return c.JSON(http.StatusOK, statusResponse{
		Status:               "ok",
		Version:              string(h.version),
		TextURL:              h.cfg.Ark.TextURL,
		TextModel:            h.cfg.Ark.TextModel,
		ImageURL:             h.cfg.Ark.ImageURL,
		ImageModel:           h.cfg.Ark.ImageModel,
		CredentialConfigured: h.cfg.Ark.ProxyEnabled(),
	})
}
