// File: internal/infra/adapters/callback/http_dispatcher.go
package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/domain/ports/adapter"
	"origami-connector/internal/infra/metrics"
)

var _ adapter.CallbackDispatcher = (*HTTPDispatcher)(nil)

// HTTPDispatcher POSTs final authorization results to the gateway's callback URL.
type HTTPDispatcher struct {
	client *http.Client
	log    *zerolog.Logger
}

func NewHTTPDispatcher(timeout time.Duration, transport http.RoundTripper, logger *zerolog.Logger) *HTTPDispatcher {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if transport == nil {
		transport = http.DefaultTransport
	}
	return &HTTPDispatcher{
		client: &http.Client{Timeout: timeout, Transport: transport},
		log:    logger,
	}
}

func (d *HTTPDispatcher) Dispatch(ctx context.Context, callbackURL string, resp model.AuthorizationResponse) error {
	if callbackURL == "" {
		metrics.IncCallbackDelivery("skipped")
		return nil
	}
	body, err := json.Marshal(resp)
	if err != nil {
		metrics.IncCallbackDelivery("error")
		return fmt.Errorf("encode callback: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		metrics.IncCallbackDelivery("error")
		return fmt.Errorf("build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := d.client.Do(req)
	if err != nil {
		metrics.IncCallbackDelivery("error")
		return fmt.Errorf("post callback: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 1<<14))

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		metrics.IncCallbackDelivery("error")
		return fmt.Errorf("callback answered http %d", res.StatusCode)
	}
	metrics.IncCallbackDelivery("sent")
	d.log.Debug().Str("payment_id", resp.PaymentID).Str("status", string(resp.Status)).Msg("callback delivered")
	return nil
}
