package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"regexp"

	"github.com/labstack/echo/v4"

	"ark-proxy-go/internal/config"
	"ark-proxy-go/internal/metrics"
	"ark-proxy-go/internal/model"
	"ark-proxy-go/internal/reqbody"
	"ark-proxy-go/internal/service"
)

const jsonContentType = "application/json; charset=utf-8"

// Caller-facing messages for failures detected before forwarding.
const (
	msgMissingAPIKey = "服务端未配置 ARK_API_KEY"
	msgTooLarge      = "请求体过大"
	msgMalformed     = "请求体不是合法 JSON"
)

// bearerPattern matches bearer credentials embedded in error messages.
var bearerPattern = regexp.MustCompile(`(?i)(bearer\s+)[^\s"',;]+`)

// errorResponse is the JSON envelope for every proxy failure.
type errorResponse struct {
	Error  string          `json:"error"`
	Detail json.RawMessage `json:"detail,omitempty"`
}

// ProxyHandler serves the text and image proxy endpoints.
type ProxyHandler struct {
	service   *service.ProxyService
	bodyLimit int64
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewProxyHandler creates a ProxyHandler. The metrics parameter may be nil.
func NewProxyHandler(svc *service.ProxyService, cfg *config.Config, m *metrics.Metrics, logger *slog.Logger) *ProxyHandler {
	return &ProxyHandler{
		service:   svc,
		bodyLimit: cfg.Server.BodyMaxBytes,
		metrics:   m,
		logger:    logger.With("component", "proxy_handler"),
	}
}

// Text handles POST /api/text.
func (h *ProxyHandler) Text(c echo.Context) error {
	return h.handle(c, h.service.Text)
}

// Image handles POST /api/image.
func (h *ProxyHandler) Image(c echo.Context) error {
	return h.handle(c, h.service.Image)
}

// Preflight answers CORS preflight requests for the proxy paths.
func (h *ProxyHandler) Preflight(c echo.Context) error {
	return c.NoContent(http.StatusNoContent)
}

func (h *ProxyHandler) handle(c echo.Context, f service.Forwarder) error {
	// A missing credential is reported before the body is read so every
	// payload sees the same answer.
	if err := f.CheckCredential(); err != nil {
		return h.mapError(c, f, err)
	}

	req := c.Request()
	body, err := reqbody.Read(c.Response().Writer, req, h.bodyLimit)
	if err != nil {
		return h.mapError(c, f, err)
	}

	resp, err := f.Forward(req.Context(), body)
	if err != nil {
		return h.mapError(c, f, err)
	}

	payload := model.JSONPayload(resp.Body)
	if payload == nil {
		payload = json.RawMessage("null")
	}
	return c.Blob(http.StatusOK, jsonContentType, payload)
}

func (h *ProxyHandler) mapError(c echo.Context, f service.Forwarder, err error) error {
	h.logger.Error("proxy error",
		"endpoint", f.Name(),
		"err", sanitizeError(err),
		"request_id", c.Response().Header().Get(echo.HeaderXRequestID),
	)

	if errors.Is(err, service.ErrMissingAPIKey) {
		h.metrics.Reject(f.Name(), "credential")
		return writeJSON(c, http.StatusInternalServerError, errorResponse{Error: msgMissingAPIKey})
	}

	if errors.Is(err, reqbody.ErrTooLarge) {
		h.metrics.Reject(f.Name(), "too_large")
		return writeJSON(c, http.StatusRequestEntityTooLarge, errorResponse{Error: msgTooLarge})
	}

	if errors.Is(err, reqbody.ErrMalformed) {
		h.metrics.Reject(f.Name(), "malformed")
		return writeJSON(c, http.StatusBadRequest, errorResponse{Error: msgMalformed})
	}

	var ve *service.ValidationError
	if errors.As(err, &ve) {
		h.metrics.Reject(f.Name(), "validation")
		return writeJSON(c, http.StatusBadRequest, errorResponse{Error: ve.Message})
	}

	var pe *service.ProviderError
	if errors.As(err, &pe) {
		h.metrics.Reject(f.Name(), "provider")
		detail := pe.Detail
		if detail == nil {
			detail = jsonString(fmt.Sprintf("upstream returned status %d", pe.StatusCode))
		}
		return writeJSON(c, pe.StatusCode, errorResponse{Error: f.FailureMessage(), Detail: detail})
	}

	// Transport failures and body read errors carry no provider status.
	reason := "read"
	var te *service.TransportError
	if errors.As(err, &te) {
		reason = "transport"
		err = te.Err
	}
	h.metrics.Reject(f.Name(), reason)
	return writeJSON(c, http.StatusInternalServerError, errorResponse{
		Error:  f.FailureMessage(),
		Detail: jsonString(sanitizeError(err)),
	})
}

func writeJSON(c echo.Context, status int, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.Blob(status, jsonContentType, data)
}

func jsonString(s string) json.RawMessage {
	data, _ := json.Marshal(s)
	return data
}

// sanitizeError redacts bearer credentials from error messages.
func sanitizeError(err error) string {
	return bearerPattern.ReplaceAllString(err.Error(), "${1}[REDACTED]")
}
