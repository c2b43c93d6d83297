// File: internal/infra/adapters/origami/client.go
package origami

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/config"
	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/infra/metrics"
)

var _ adapter.CreditProvider = (*Client)(nil)

const (
	ProductionBaseURL = "https://api.origamipay.com.br"
	HomologBaseURL    = "https://api-homolog.origamipay.com.br"

	maxErrorBody = 4 << 10
)

// Client implements adapter.CreditProvider against the Origami REST API.
type Client struct {
	baseURL string
	retries int
	client  *http.Client
	log     *zerolog.Logger
}

// BaseURLFor maps an environment name to the provider's base URL.
// Anything other than "production" talks to homologation.
func BaseURLFor(env string) string {
	if strings.EqualFold(strings.TrimSpace(env), "production") {
		return ProductionBaseURL
	}
	return HomologBaseURL
}

func NewClient(cfg config.OrigamiConfig, transport http.RoundTripper, logger *zerolog.Logger) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = BaseURLFor(cfg.Environment)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &Client{
		baseURL: strings.TrimRight(base, "/"),
		retries: cfg.Retries,
		client:  &http.Client{Timeout: timeout, Transport: transport},
		log:     logger,
	}
}

func (c *Client) Name() string { return "origami" }

// Login calls POST /auth/login.
func (c *Client) Login(ctx context.Context, key, token string) (*model.ProviderLogin, error) {
	payload := map[string]string{"origamiKey": key, "origamiToken": token}
	var out model.ProviderLogin
	if err := c.post(ctx, "login", "/auth/login", "", payload, &out); err != nil {
		return nil, err
	}
	if out.AccessToken == "" {
		return nil, &domain.DependencyError{Op: "origami login", Err: errors.New("empty access token")}
	}
	return &out, nil
}

// MarginCheck calls POST /integrations/margin/check with a bearer token.
func (c *Client) MarginCheck(ctx context.Context, accessToken string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error) {
	var out model.MarginCheckResponse
	if err := c.post(ctx, "margin_check", "/integrations/margin/check", accessToken, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// post sends a JSON request, retrying transport errors and 5xx answers up to
// c.retries extra times. Any other non-2xx answer fails at once with the raw
// body kept as the error detail.
func (c *Client) post(ctx context.Context, op, path, bearer string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode %s: %w", op, err)
	}

	var lastErr error
	for attempt := 0; attempt <= c.retries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return domain.Dependency("origami "+op, ctx.Err())
			case <-time.After(time.Duration(attempt) * 200 * time.Millisecond):
			}
		}
		retry, err := c.do(ctx, op, path, bearer, body, out)
		if err == nil {
			return nil
		}
		lastErr = err
		if !retry {
			break
		}
		c.log.Warn().Err(err).Str("op", op).Int("attempt", attempt+1).Msg("origami call failed")
	}
	return lastErr
}

func (c *Client) do(ctx context.Context, op, path, bearer string, body []byte, out any) (retry bool, err error) {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return false, fmt.Errorf("build %s request: %w", op, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		metrics.ObserveProviderCall(op, "transport_error", time.Since(start))
		return ctx.Err() == nil, &domain.DependencyError{Op: "origami " + op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		metrics.ObserveProviderCall(op, "http_error", time.Since(start))
		return resp.StatusCode >= 500, &domain.DependencyError{
			Op:         "origami " + op,
			StatusCode: resp.StatusCode,
			Detail:     strings.TrimSpace(string(raw)),
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		metrics.ObserveProviderCall(op, "decode_error", time.Since(start))
		return false, &domain.DependencyError{Op: "origami " + op, Err: fmt.Errorf("decode response: %w", err)}
	}
	metrics.ObserveProviderCall(op, "ok", time.Since(start))
	return false, nil
}
