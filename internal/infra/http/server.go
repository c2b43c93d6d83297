// File: internal/infra/http/server.go
package http

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"origami-connector/internal/usecase"
)

// RateLimiter is the fixed-window limiter guarding provider-backed routes.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type Options struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	EligibilityPath string
	ConfirmPath     string
	RateLimit       int // per client per window on the eligibility route; 0 disables
	RateWindow      time.Duration
	ServiceName     string
	Dev             bool
}

// Server exposes the gateway protocol and the confirmation app routes.
type Server struct {
	authUC    usecase.AuthorizationUseCase
	confirmUC usecase.ConfirmationUseCase
	eligUC    usecase.EligibilityUseCase
	idemUC    usecase.IdempotencyUseCase
	limiter   RateLimiter
	opts      Options
	now       func() time.Time
	log       *zerolog.Logger
	server    *http.Server
}

func NewServer(
	authUC usecase.AuthorizationUseCase,
	confirmUC usecase.ConfirmationUseCase,
	eligUC usecase.EligibilityUseCase,
	idemUC usecase.IdempotencyUseCase,
	limiter RateLimiter,
	opts Options,
	logger *zerolog.Logger,
) *Server {
	if opts.EligibilityPath == "" {
		opts.EligibilityPath = "/_v/api/origami-vtex-connector/eligibility"
	}
	if opts.ConfirmPath == "" {
		opts.ConfirmPath = "/_v/api/origami-vtex-connector/confirm"
	}
	if opts.RateWindow <= 0 {
		opts.RateWindow = time.Minute
	}
	s := &Server{
		authUC:    authUC,
		confirmUC: confirmUC,
		eligUC:    eligUC,
		idemUC:    idemUC,
		limiter:   limiter,
		opts:      opts,
		now:       time.Now,
		log:       logger,
	}
	name := opts.ServiceName
	if name == "" {
		name = "origami-connector"
	}
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", opts.Port),
		Handler:      otelhttp.NewHandler(s.Router(), name),
		ReadTimeout:  opts.ReadTimeout,
		WriteTimeout: opts.WriteTimeout,
	}
	return s
}

// Router builds the chi routing tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(TraceID())
	r.Use(Recover(s.log))
	r.Use(RequestLog(s.log))

	r.Get("/health", s.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	// Authorize replays from the payment record and always reports its current status.
	r.Post("/payments", s.handleAuthorize)
	r.With(s.idempotent("cancellations")).Post("/payments/{paymentId}/cancellations", s.handleCancel)
	r.Post("/payments/{paymentId}/refunds", s.handleRefund)
	r.Post("/payments/{paymentId}/settlements", s.handleSettle)
	r.Post("/payments/{paymentId}/callback", s.handleCallbackEcho)

	r.With(s.rateLimited("eligibility")).Post(s.opts.EligibilityPath, s.handleEligibility)
	r.Post(s.opts.ConfirmPath, s.handleConfirm)
	return r
}

func (s *Server) Start() error {
	s.log.Info().Int("port", s.opts.Port).Msg("HTTP server listening")
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
