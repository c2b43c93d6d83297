// File: internal/infra/http/handlers.go
package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"origami-connector/internal/domain"
	"origami-connector/internal/domain/model"
	"origami-connector/internal/infra/logging"
)

const HeaderConfirmToken = "X-Confirm-Token"

type errorBody struct {
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

type eligibilityRequest struct {
	CPF   string `json:"cpf"`
	Phone string `json:"phone"`
}

type callbackEcho struct {
	OK         bool            `json:"ok"`
	PaymentID  string          `json:"paymentId"`
	ReceivedAt time.Time       `json:"receivedAt"`
	Payload    json.RawMessage `json:"payload"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	var req model.AuthorizationRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	resp, err := s.authUC.Authorize(r.Context(), req)
	if err != nil {
		s.logFailure(r, err, "authorize failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	var req model.CancellationRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	req.PaymentID = chi.URLParam(r, "paymentId")
	resp, err := s.authUC.Cancel(r.Context(), req)
	if err != nil {
		s.logFailure(r, err, "cancel failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleRefund(w http.ResponseWriter, r *http.Request) {
	var req model.RefundRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	req.PaymentID = chi.URLParam(r, "paymentId")
	resp, err := s.authUC.Refund(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleSettle(w http.ResponseWriter, r *http.Request) {
	var req model.SettlementRequest
	if err := decode(w, r, &req, false); err != nil {
		writeError(w, err)
		return
	}
	req.PaymentID = chi.URLParam(r, "paymentId")
	resp, err := s.authUC.Settle(r.Context(), req)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleCallbackEcho receives gateway-style callbacks and echoes them back.
func (s *Server) handleCallbackEcho(w http.ResponseWriter, r *http.Request) {
	paymentID := chi.URLParam(r, "paymentId")
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Message: "could not read request body"})
		return
	}
	payload := json.RawMessage("null")
	if len(raw) > 0 {
		if !json.Valid(raw) {
			writeJSON(w, http.StatusBadRequest, errorBody{Message: "body must be JSON"})
			return
		}
		payload = raw
	}
	logging.With(logging.WithPaymentID(r.Context(), paymentID), s.log).Info().Int("bytes", len(raw)).Msg("callback received")
	writeJSON(w, http.StatusOK, callbackEcho{OK: true, PaymentID: paymentID, ReceivedAt: s.now().UTC(), Payload: payload})
}

func (s *Server) handleEligibility(w http.ResponseWriter, r *http.Request) {
	var req eligibilityRequest
	if err := decode(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	res, err := s.eligUC.CheckEligibility(r.Context(), req.CPF, req.Phone)
	if err != nil {
		s.logFailure(r, err, "eligibility check failed")
		if isUpstream(err) {
			writeJSON(w, http.StatusBadGateway, errorBody{Message: "Falha ao consultar margem na Origami", Details: details(err)})
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleConfirm(w http.ResponseWriter, r *http.Request) {
	var req model.ConfirmRequest
	if err := decode(w, r, &req, true); err != nil {
		writeError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		writeError(w, err)
		return
	}
	if err := s.confirmUC.Authenticate(req.PaymentID, r.Header.Get(HeaderConfirmToken)); err != nil {
		writeError(w, err)
		return
	}
	ack, err := s.confirmUC.Confirm(r.Context(), req.PaymentID, req.Status, req.Message)
	if err != nil {
		s.logFailure(r, err, "confirm failed")
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ack)
}

func (s *Server) logFailure(r *http.Request, err error, msg string) {
	l := logging.With(r.Context(), s.log)
	if errors.Is(err, domain.ErrInvalidArgument) {
		l.Debug().Err(err).Msg(msg)
		return
	}
	l.Error().Err(err).Msg(msg)
}

// decode reads a JSON body. Strict mode rejects unknown fields and an empty
// body; lenient mode tolerates both.
func decode(w http.ResponseWriter, r *http.Request, out any, strict bool) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(out); err != nil {
		if !strict && errors.Is(err, io.EOF) {
			return nil
		}
		return domain.NewValidationError("", fmt.Sprintf("invalid request body: %v", err))
	}
	return nil
}

func isUpstream(err error) bool {
	return errors.Is(err, domain.ErrDependency) || errors.Is(err, domain.ErrConfiguration)
}

func details(err error) any {
	var de *domain.DependencyError
	if errors.As(err, &de) && de.Detail != "" {
		var parsed any
		if json.Unmarshal([]byte(de.Detail), &parsed) == nil {
			return parsed
		}
		return de.Detail
	}
	return err.Error()
}

func writeError(w http.ResponseWriter, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: ve.Reason})
	case errors.Is(err, domain.ErrInvalidArgument):
		writeJSON(w, http.StatusBadRequest, errorBody{Message: err.Error()})
	case errors.Is(err, domain.ErrUnauthorized):
		writeJSON(w, http.StatusUnauthorized, errorBody{Message: "invalid confirm token"})
	case errors.Is(err, domain.ErrConflict):
		writeJSON(w, http.StatusConflict, errorBody{Message: err.Error()})
	case isUpstream(err):
		writeJSON(w, http.StatusBadGateway, errorBody{Message: "upstream dependency failed", Details: details(err)})
	default:
		writeJSON(w, http.StatusInternalServerError, errorBody{Message: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
