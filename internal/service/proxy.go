// Package service implements the credential gate, validation and upstream
// forwarding for the text and image proxy endpoints.
package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"ark-proxy-go/internal/client"
	"ark-proxy-go/internal/config"
	"ark-proxy-go/internal/model"
)

// ErrMissingAPIKey is returned when the server holds no upstream credential.
var ErrMissingAPIKey = errors.New("ARK_API_KEY is not configured on the server")

// ValidationError reports a request field that failed validation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ProviderError is an upstream reply with a non-2xx status. Detail holds the
// provider payload as JSON.
type ProviderError struct {
	Endpoint   string
	StatusCode int
	Detail     json.RawMessage
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s upstream returned status %d", e.Endpoint, e.StatusCode)
}

// TransportError is an upstream call that produced no reply at all.
type TransportError struct {
	Endpoint string
	Err      error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s upstream call failed: %v", e.Endpoint, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Poster sends a JSON payload upstream. *client.ArkClient satisfies it.
type Poster interface {
	PostJSON(ctx context.Context, endpoint, url, apiKey string, payload any) (*model.UpstreamResponse, error)
}

// Forwarder is one proxy endpoint.
type Forwarder interface {
	// Name is the endpoint label used in logs and metrics.
	Name() string
	// FailureMessage is the error text returned to callers when forwarding fails.
	FailureMessage() string
	// CheckCredential fails with ErrMissingAPIKey when no credential is held.
	CheckCredential() error
	// Forward validates body, sends it upstream and returns the 2xx reply.
	// Non-2xx replies come back as *ProviderError and calls that never got a
	// reply as *TransportError.
	Forward(ctx context.Context, body model.Body) (*model.UpstreamResponse, error)
}

// ProxyService groups the two forwarders.
type ProxyService struct {
	Text  Forwarder
	Image Forwarder
}

// NewProxyService builds the text and image forwarders from cfg.
func NewProxyService(cfg *config.Config, c *client.ArkClient, logger *slog.Logger) *ProxyService {
	return newProxyService(cfg, c, logger)
}

func newProxyService(cfg *config.Config, p Poster, logger *slog.Logger) *ProxyService {
	logger = logger.With("component", "proxy_service")
	return &ProxyService{
		Text:  NewTextForwarder(cfg.Ark, p, logger),
		Image: NewImageForwarder(cfg.Ark, p, logger),
	}
}

// endpoint is the shared forwarding shape. P is the upstream payload type and
// build turns a decoded request body into it.
type endpoint[P any] struct {
	name    string
	url     string
	model   string
	apiKey  string
	failure string
	build   func(modelID string, body model.Body) (P, error)
	poster  Poster
	logger  *slog.Logger
}

func (e *endpoint[P]) Name() string           { return e.name }
func (e *endpoint[P]) FailureMessage() string { return e.failure }

func (e *endpoint[P]) CheckCredential() error {
	if e.apiKey == "" {
		return ErrMissingAPIKey
	}
	return nil
}

func (e *endpoint[P]) Forward(ctx context.Context, body model.Body) (*model.UpstreamResponse, error) {
	if err := e.CheckCredential(); err != nil {
		return nil, err
	}

	payload, err := e.build(e.model, body)
	if err != nil {
		return nil, err
	}

	resp, err := e.poster.PostJSON(ctx, e.name, e.url, e.apiKey, payload)
	if err != nil {
		return nil, &TransportError{Endpoint: e.name, Err: err}
	}
	if !resp.OK() {
		e.logger.Debug("upstream rejected request",
			"endpoint", e.name,
			"status", resp.StatusCode,
		)
		return nil, &ProviderError{
			Endpoint:   e.name,
			StatusCode: resp.StatusCode,
			Detail:     model.JSONPayload(resp.Body),
		}
	}

	return resp, nil
}
