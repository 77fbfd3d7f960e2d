// Package client provides the upstream HTTP client for the Volcengine Ark API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"ark-proxy-go/internal/config"
	"ark-proxy-go/internal/metrics"
	"ark-proxy-go/internal/model"
)

const userAgent = "ark-proxy-go/1.0"

// ArkClient sends JSON requests to the upstream Ark API.
type ArkClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *metrics.Metrics
}

// NewArkClient creates an ArkClient with connection pooling.
// The metrics parameter is optional; pass nil to disable upstream metrics recording.
func NewArkClient(cfg *config.Config, logger *slog.Logger, m *metrics.Metrics) *ArkClient {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        cfg.Upstream.IdleConnections,
		MaxIdleConnsPerHost: cfg.Upstream.IdleConnections,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
	}

	return &ArkClient{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   time.Duration(cfg.Upstream.TimeoutSeconds) * time.Second,
		},
		logger:  logger.With("component", "ark_client"),
		metrics: m,
	}
}

// PostJSON marshals payload, sends it to url with the bearer credential and
// reads the whole reply. Any status code is a response; only transport
// failures are returned as errors. The context bounds the upstream call.
func (c *ArkClient) PostJSON(ctx context.Context, endpoint, url, apiKey string, payload any) (*model.UpstreamResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode upstream payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build upstream request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	c.logger.Debug("upstream request",
		"endpoint", endpoint,
		"host", req.URL.Host,
		"bytes", len(body),
	)

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.observe(endpoint, start, "error")
		return nil, fmt.Errorf("upstream request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		c.observe(endpoint, start, "error")
		return nil, fmt.Errorf("read upstream response: %w", err)
	}
	c.observe(endpoint, start, strconv.Itoa(resp.StatusCode))

	return &model.UpstreamResponse{
		StatusCode: resp.StatusCode,
		Body:       data,
	}, nil
}

func (c *ArkClient) observe(endpoint string, start time.Time, status string) {
	if c.metrics == nil {
		return
	}
	c.metrics.UpstreamDuration.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	c.metrics.UpstreamResponses.WithLabelValues(endpoint, status).Inc()
}
