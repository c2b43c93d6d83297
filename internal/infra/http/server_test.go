//go:build !integration

package http_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	httpserver "origami-connector/internal/infra/http"
	"origami-connector/internal/infra/kvstore"
	"origami-connector/internal/usecase"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

type fakeProvider struct {
	marginErr error
	margin    *model.MarginCheckResponse
}

func (f *fakeProvider) Name() string { return "fake" }

func (f *fakeProvider) Login(ctx context.Context, key, token string) (*model.ProviderLogin, error) {
	return &model.ProviderLogin{AccessToken: "jwt", ExpiresAt: time.Now().Add(time.Hour)}, nil
}

func (f *fakeProvider) MarginCheck(ctx context.Context, tok string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error) {
	if f.marginErr != nil {
		return nil, f.marginErr
	}
	return f.margin, nil
}

type noopScheduler struct{}

func (noopScheduler) After(time.Duration, string, func(context.Context) error) string { return "t" }

type noopDispatcher struct{}

func (noopDispatcher) Dispatch(context.Context, string, model.AuthorizationResponse) error { return nil }

type countingLimiter struct {
	mu   sync.Mutex
	hits map[string]int
}

func (l *countingLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hits[key]++
	return l.hits[key] <= limit, nil
}

type rejectingTokens struct{}

func (rejectingTokens) Mint(string) (string, error) { return "t", nil }
func (rejectingTokens) Verify(token, paymentID string) error {
	if token == "good" {
		return nil
	}
	return domain.ErrUnauthorized
}

type testServer struct {
	handler  http.Handler
	provider *fakeProvider
	repo     *kvstore.AuthorizationRepo
}

func newTestServer(t *testing.T, rateLimit int, withTokens bool) *testServer {
	t.Helper()
	log := newTestLogger()
	mem := kvstore.NewMemory()
	repo := kvstore.NewAuthorizationRepo(mem)
	provider := &fakeProvider{margin: &model.MarginCheckResponse{IsEligible: true, MarginAvailable: 1234.56}}

	tokenUC := usecase.NewTokenUseCase(kvstore.NewCredentialRepo(mem), provider, "k", "s", log)
	eligUC := usecase.NewEligibilityUseCase(tokenUC, provider, false, log)
	authUC := usecase.NewAuthorizationUseCase(repo, noopScheduler{}, noopDispatcher{}, nil, usecase.AuthorizationOptions{
		AppName:   "acme.origami-connector",
		TestSuite: true,
	}, false, log)
	confirmUC := usecase.NewConfirmationUseCase(repo, nil, log)
	if withTokens {
		confirmUC.SetConfirmTokens(rejectingTokens{})
	}
	idemUC := usecase.NewIdempotencyUseCase(kvstore.NewIdempotencyRepo(mem), time.Hour, log)

	srv := httpserver.NewServer(authUC, confirmUC, eligUC, idemUC,
		&countingLimiter{hits: map[string]int{}},
		httpserver.Options{RateLimit: rateLimit, RateWindow: time.Minute},
		log)
	return &testServer{handler: srv.Router(), provider: provider, repo: repo}
}

func (ts *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.NewDecoder(bytes.NewReader(rec.Body.Bytes())).Decode(out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t, 0, false)
	rec := ts.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || rec.Body.String() != "OK" {
		t.Fatalf("expected 200 OK, got %d %q", rec.Code, rec.Body.String())
	}
	if rec.Header().Get(httpserver.HeaderTraceID) == "" {
		t.Error("expected a trace id header")
	}
}

func TestAuthorize_DeniedFixtureAndReplay(t *testing.T) {
	ts := newTestServer(t, 0, false)
	body := `{"paymentId":"P1","callbackUrl":"https://gw/cb","card":{"number":"4444333322221112"},"extraField":{"nested":true}}`

	rec := ts.do(http.MethodPost, "/payments", body, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var first model.AuthorizationResponse
	decodeBody(t, rec, &first)
	if first.Status != model.GatewayDenied {
		t.Fatalf("expected denied, got %s", first.Status)
	}

	rec = ts.do(http.MethodPost, "/payments", `{"paymentId":"P1"}`, nil)
	var second model.AuthorizationResponse
	decodeBody(t, rec, &second)
	if second.Status != model.GatewayDenied || second.AuthorizationID != first.AuthorizationID {
		t.Errorf("replay differs: %+v vs %+v", first, second)
	}
}

func TestAuthorize_PendingRendersUndefined(t *testing.T) {
	ts := newTestServer(t, 0, false)
	rec := ts.do(http.MethodPost, "/payments", `{"paymentId":"P2","miniCart":{"buyer":{"document":"123","phone":"5511912345678"}}}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var raw map[string]any
	decodeBody(t, rec, &raw)
	if raw["status"] != "undefined" || raw["code"] != "pending" {
		t.Errorf("unexpected response %v", raw)
	}
	if _, ok := raw["paymentAppData"]; !ok {
		t.Error("expected paymentAppData")
	}

	stored, _ := ts.repo.Get(context.Background(), "P2")
	if stored == nil || stored.Status != model.AuthorizationPending {
		t.Errorf("expected pending record, got %+v", stored)
	}
}

func TestAuthorize_BadRequests(t *testing.T) {
	ts := newTestServer(t, 0, false)
	if rec := ts.do(http.MethodPost, "/payments", `{not json`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("malformed JSON: expected 400, got %d", rec.Code)
	}
	if rec := ts.do(http.MethodPost, "/payments", `{"value":10}`, nil); rec.Code != http.StatusBadRequest {
		t.Errorf("missing paymentId: expected 400, got %d", rec.Code)
	}
}

func TestIdempotencyKey(t *testing.T) {
	ts := newTestServer(t, 0, false)
	hdr := map[string]string{httpserver.HeaderIdempotencyKey: "key-1"}
	path := "/payments/P3/cancellations"
	body := `{"requestId":"r1"}`

	first := ts.do(http.MethodPost, path, body, hdr)
	if first.Code != http.StatusOK || first.Header().Get(httpserver.HeaderReplayed) != "" {
		t.Fatalf("first call: %d replayed=%q", first.Code, first.Header().Get(httpserver.HeaderReplayed))
	}
	second := ts.do(http.MethodPost, path, body, hdr)
	if second.Code != http.StatusOK || second.Header().Get(httpserver.HeaderReplayed) != "true" {
		t.Fatalf("second call should be replayed, got %d replayed=%q", second.Code, second.Header().Get(httpserver.HeaderReplayed))
	}
	if strings.TrimSpace(first.Body.String()) != strings.TrimSpace(second.Body.String()) {
		t.Errorf("replayed body differs:\n%s\n%s", first.Body.String(), second.Body.String())
	}

	conflict := ts.do(http.MethodPost, path, `{"requestId":"r2"}`, hdr)
	if conflict.Code != http.StatusConflict {
		t.Errorf("reused key with another body: expected 409, got %d", conflict.Code)
	}
}

func TestAuthorize_RetryReportsConfirmedStatus(t *testing.T) {
	ts := newTestServer(t, 0, false)
	hdr := map[string]string{httpserver.HeaderIdempotencyKey: "key-px"}
	body := `{"paymentId":"PX"}`

	var resp model.AuthorizationResponse
	decodeBody(t, ts.do(http.MethodPost, "/payments", body, hdr), &resp)
	if resp.Status != model.GatewayUndefined {
		t.Fatalf("expected undefined before confirm, got %q", resp.Status)
	}

	rec := ts.do(http.MethodPost, "/_v/api/origami-vtex-connector/confirm", `{"paymentId":"PX","status":"approved"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("confirm: expected 200, got %d", rec.Code)
	}

	retry := ts.do(http.MethodPost, "/payments", body, hdr)
	if retry.Header().Get(httpserver.HeaderReplayed) != "" {
		t.Error("authorize responses must not be served from the response cache")
	}
	resp = model.AuthorizationResponse{}
	decodeBody(t, retry, &resp)
	if retry.Code != http.StatusOK || resp.Status != model.GatewayApproved || resp.Code != "ok" {
		t.Errorf("retry should report the confirmed status, got %d %+v", retry.Code, resp)
	}
}

func TestCancelRefundSettle(t *testing.T) {
	ts := newTestServer(t, 0, false)

	rec := ts.do(http.MethodPost, "/payments/P5/cancellations", `{"requestId":"r1"}`, nil)
	var cancel model.CancellationResponse
	decodeBody(t, rec, &cancel)
	if rec.Code != http.StatusOK || cancel.CancellationID == nil || *cancel.CancellationID != "CXL-P5" {
		t.Fatalf("unexpected cancellation %d %+v", rec.Code, cancel)
	}
	stored, _ := ts.repo.Get(context.Background(), "P5")
	if stored == nil || stored.Status != model.AuthorizationCanceled {
		t.Errorf("expected canceled record, got %+v", stored)
	}

	rec = ts.do(http.MethodPost, "/payments/P5/refunds", `{"value":10}`, nil)
	var refund model.RefundResponse
	decodeBody(t, rec, &refund)
	if refund.RefundID != nil || refund.PaymentID != "P5" {
		t.Errorf("refund must be denied, got %+v", refund)
	}

	rec = ts.do(http.MethodPost, "/payments/P5/settlements", "", nil)
	var settle model.SettlementResponse
	decodeBody(t, rec, &settle)
	if rec.Code != http.StatusOK || settle.SettleID != nil {
		t.Errorf("settle must be denied, got %d %+v", rec.Code, settle)
	}
}

func TestCallbackEcho(t *testing.T) {
	ts := newTestServer(t, 0, false)
	rec := ts.do(http.MethodPost, "/payments/P6/callback", `{"status":"approved"}`, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var echo struct {
		OK        bool           `json:"ok"`
		PaymentID string         `json:"paymentId"`
		Payload   map[string]any `json:"payload"`
	}
	decodeBody(t, rec, &echo)
	if !echo.OK || echo.PaymentID != "P6" || echo.Payload["status"] != "approved" {
		t.Errorf("unexpected echo %+v", echo)
	}
}

func TestEligibility(t *testing.T) {
	path := "/_v/api/origami-vtex-connector/eligibility"

	t.Run("ok", func(t *testing.T) {
		ts := newTestServer(t, 0, false)
		rec := ts.do(http.MethodPost, path, `{"cpf":"123.456.789-01","phone":"11912345678"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var res model.EligibilityResult
		decodeBody(t, rec, &res)
		if res.AvailableLimit != 123456 || !res.Eligible || res.Currency != "BRL" {
			t.Errorf("unexpected result %+v", res)
		}
	})

	t.Run("missing cpf", func(t *testing.T) {
		ts := newTestServer(t, 0, false)
		rec := ts.do(http.MethodPost, path, `{"phone":"11912345678"}`, nil)
		var body map[string]any
		decodeBody(t, rec, &body)
		if rec.Code != http.StatusBadRequest || body["message"] != "cpf obrigatório" {
			t.Errorf("expected 400 cpf obrigatório, got %d %v", rec.Code, body)
		}
	})

	t.Run("unknown field", func(t *testing.T) {
		ts := newTestServer(t, 0, false)
		rec := ts.do(http.MethodPost, path, `{"cpf":"1","phone":"2","admin":true}`, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("expected 400, got %d", rec.Code)
		}
	})

	t.Run("provider failure", func(t *testing.T) {
		ts := newTestServer(t, 0, false)
		ts.provider.marginErr = &domain.DependencyError{Op: "origami margin_check", StatusCode: 503, Detail: `{"error":"maintenance"}`}
		rec := ts.do(http.MethodPost, path, `{"cpf":"1","phone":"2"}`, nil)
		if rec.Code != http.StatusBadGateway {
			t.Fatalf("expected 502, got %d", rec.Code)
		}
		var body struct {
			Message string         `json:"message"`
			Details map[string]any `json:"details"`
		}
		decodeBody(t, rec, &body)
		if body.Message != "Falha ao consultar margem na Origami" || body.Details["error"] != "maintenance" {
			t.Errorf("unexpected error body %+v", body)
		}
	})

	t.Run("rate limited", func(t *testing.T) {
		ts := newTestServer(t, 2, false)
		for i := 0; i < 2; i++ {
			if rec := ts.do(http.MethodPost, path, `{"cpf":"1","phone":"2"}`, nil); rec.Code != http.StatusOK {
				t.Fatalf("call %d: expected 200, got %d", i+1, rec.Code)
			}
		}
		if rec := ts.do(http.MethodPost, path, `{"cpf":"1","phone":"2"}`, nil); rec.Code != http.StatusTooManyRequests {
			t.Fatalf("expected 429, got %d", rec.Code)
		}
	})
}

func TestConfirm(t *testing.T) {
	path := "/_v/api/origami-vtex-connector/confirm"

	t.Run("create on confirm", func(t *testing.T) {
		ts := newTestServer(t, 0, false)
		rec := ts.do(http.MethodPost, path, `{"paymentId":"P7","status":"approved"}`, nil)
		if rec.Code != http.StatusOK {
			t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
		}
		var ack model.ConfirmAck
		decodeBody(t, rec, &ack)
		if !ack.OK || ack.PaymentID != "P7" || ack.Status != model.AuthorizationApproved {
			t.Errorf("unexpected ack %+v", ack)
		}
	})

	t.Run("invalid status", func(t *testing.T) {
		ts := newTestServer(t, 0, false)
		for _, body := range []string{
			`{"paymentId":"P8","status":"maybe"}`,
			`{"paymentId":"P8","status":"canceled"}`,
			`{"paymentId":"P8"}`,
			`{"paymentId":"P8","status":"approved","extra":1}`,
		} {
			if rec := ts.do(http.MethodPost, path, body, nil); rec.Code != http.StatusBadRequest {
				t.Errorf("%s: expected 400, got %d", body, rec.Code)
			}
		}
	})

	t.Run("confirm token", func(t *testing.T) {
		ts := newTestServer(t, 0, true)
		body := `{"paymentId":"P9","status":"denied"}`
		if rec := ts.do(http.MethodPost, path, body, nil); rec.Code != http.StatusUnauthorized {
			t.Errorf("missing token: expected 401, got %d", rec.Code)
		}
		if rec := ts.do(http.MethodPost, path, body, map[string]string{httpserver.HeaderConfirmToken: "good"}); rec.Code != http.StatusOK {
			t.Errorf("valid token: expected 200, got %d", rec.Code)
		}
		for _, bad := range []string{`{"status":"approved"}`, `{"paymentId":"P9"}`, `{"paymentId":"P9","status":"canceled"}`} {
			if rec := ts.do(http.MethodPost, path, bad, nil); rec.Code != http.StatusBadRequest {
				t.Errorf("%s without token: expected 400 before auth, got %d", bad, rec.Code)
			}
		}
	})
}
