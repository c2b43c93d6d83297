// File: internal/usecase/mocks_test.go
package usecase_test

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"origami-connector/internal/domain/model"
	"origami-connector/internal/infra/kvstore"
)

func newTestLogger() *zerolog.Logger {
	logger := zerolog.New(io.Discard)
	return &logger
}

// fixedClock returns a controllable time source.
type fixedClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFixedClock(t time.Time) *fixedClock { return &fixedClock{t: t} }

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// --- Authorization repo

// countingAuthRepo wraps the in-memory repo and counts writes.
type countingAuthRepo struct {
	*kvstore.AuthorizationRepo
	mu      sync.Mutex
	saves   int
	saveErr error
	getErr  error
}

func newAuthRepo() *countingAuthRepo {
	return &countingAuthRepo{AuthorizationRepo: kvstore.NewAuthorizationRepo(kvstore.NewMemory())}
}

func (r *countingAuthRepo) Get(ctx context.Context, paymentID string) (*model.AuthorizationRecord, error) {
	if r.getErr != nil {
		return nil, r.getErr
	}
	return r.AuthorizationRepo.Get(ctx, paymentID)
}

func (r *countingAuthRepo) Save(ctx context.Context, rec *model.AuthorizationRecord) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	r.saves++
	r.mu.Unlock()
	return r.AuthorizationRepo.Save(ctx, rec)
}

func (r *countingAuthRepo) Saves() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

// --- Credential repo

type memCredRepo struct {
	mu      sync.Mutex
	cred    *model.CachedCredential
	getErr  error
	saveErr error
}

func (m *memCredRepo) Get(ctx context.Context) (*model.CachedCredential, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	if m.cred == nil {
		return nil, nil
	}
	cp := *m.cred
	return &cp, nil
}

func (m *memCredRepo) Save(ctx context.Context, cred *model.CachedCredential) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	cp := *cred
	m.cred = &cp
	return nil
}

// --- Credit provider

type MockCreditProvider struct {
	mu          sync.Mutex
	LoginFunc   func(ctx context.Context, key, token string) (*model.ProviderLogin, error)
	MarginFunc  func(ctx context.Context, accessToken string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error)
	LoginCalls  int
	MarginCalls int
	LastMargin  model.MarginCheckRequest
	LastBearer  string
}

func (m *MockCreditProvider) Name() string { return "mock" }

func (m *MockCreditProvider) Login(ctx context.Context, key, token string) (*model.ProviderLogin, error) {
	m.mu.Lock()
	m.LoginCalls++
	m.mu.Unlock()
	if m.LoginFunc != nil {
		return m.LoginFunc(ctx, key, token)
	}
	return &model.ProviderLogin{AccessToken: "fresh-token", ExpiresAt: time.Now().Add(24 * time.Hour), TokenType: "bearer"}, nil
}

func (m *MockCreditProvider) MarginCheck(ctx context.Context, accessToken string, req model.MarginCheckRequest) (*model.MarginCheckResponse, error) {
	m.mu.Lock()
	m.MarginCalls++
	m.LastMargin = req
	m.LastBearer = accessToken
	m.mu.Unlock()
	if m.MarginFunc != nil {
		return m.MarginFunc(ctx, accessToken, req)
	}
	return &model.MarginCheckResponse{IsEligible: true, MarginAvailable: 100}, nil
}

// --- Token use case

type stubTokens struct {
	token string
	err   error
}

func (s stubTokens) GetAccessToken(ctx context.Context) (string, error) { return s.token, s.err }

// --- Scheduler

type scheduledTask struct {
	delay time.Duration
	name  string
	run   func(ctx context.Context) error
}

// manualScheduler records tasks and runs them only when the test says so.
type manualScheduler struct {
	mu    sync.Mutex
	tasks []scheduledTask
}

func (s *manualScheduler) After(delay time.Duration, name string, task func(ctx context.Context) error) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.tasks = append(s.tasks, scheduledTask{delay: delay, name: name, run: task})
	return name
}

func (s *manualScheduler) RunAll(ctx context.Context) {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, t := range tasks {
		_ = t.run(ctx)
	}
}

func (s *manualScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

// --- Callback dispatcher

type dispatched struct {
	url  string
	resp model.AuthorizationResponse
}

type recordingDispatcher struct {
	mu   sync.Mutex
	sent []dispatched
	err  error
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, url string, resp model.AuthorizationResponse) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.sent = append(d.sent, dispatched{url: url, resp: resp})
	return d.err
}

// --- Events

type recordingEvents struct {
	mu   sync.Mutex
	recs []model.AuthorizationRecord
	err  error
}

func (e *recordingEvents) PublishStatusChange(ctx context.Context, rec model.AuthorizationRecord) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.recs = append(e.recs, rec)
	return e.err
}

func (e *recordingEvents) Close() error { return nil }

func (e *recordingEvents) Statuses() []model.AuthorizationStatus {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]model.AuthorizationStatus, 0, len(e.recs))
	for _, r := range e.recs {
		out = append(out, r.Status)
	}
	return out
}

// --- Confirm tokens

type stubConfirmTokens struct {
	minted    []string
	mintErr   error
	verifyErr error
}

func (s *stubConfirmTokens) Mint(paymentID string) (string, error) {
	if s.mintErr != nil {
		return "", s.mintErr
	}
	s.minted = append(s.minted, paymentID)
	return "tok-" + paymentID, nil
}

func (s *stubConfirmTokens) Verify(token, paymentID string) error { return s.verifyErr }
