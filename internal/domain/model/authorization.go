package model

import (
	"encoding/json"
	"fmt"
	"time"

	"origami-connector/internal/domain"
)

type AuthorizationStatus string

const (
	AuthorizationPending  AuthorizationStatus = "pending"  // waiting for the out-of-band decision
	AuthorizationApproved AuthorizationStatus = "approved" // terminal
	AuthorizationDenied   AuthorizationStatus = "denied"   // terminal
	AuthorizationCanceled AuthorizationStatus = "canceled" // terminal, reachable from any state
)

// legacyPendingStatus is how the gateway (and older records) spell "pending".
const legacyPendingStatus = "undefined"

func (s AuthorizationStatus) Valid() bool {
	switch s {
	case AuthorizationPending, AuthorizationApproved, AuthorizationDenied, AuthorizationCanceled:
		return true
	}
	return false
}

// Terminal reports whether no automatic transition leaves s.
func (s AuthorizationStatus) Terminal() bool {
	return s == AuthorizationApproved || s == AuthorizationDenied || s == AuthorizationCanceled
}

// IsDecision reports whether s is an outcome the confirmation flow may deliver.
func (s AuthorizationStatus) IsDecision() bool {
	return s == AuthorizationApproved || s == AuthorizationDenied
}

// Gateway renders the status in the payment gateway's vocabulary.
func (s AuthorizationStatus) Gateway() GatewayStatus {
	switch s {
	case AuthorizationApproved:
		return GatewayApproved
	case AuthorizationDenied:
		return GatewayDenied
	case AuthorizationCanceled:
		return GatewayCanceled
	default:
		return GatewayUndefined
	}
}

func (s *AuthorizationStatus) UnmarshalJSON(b []byte) error {
	var raw string
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	if raw == legacyPendingStatus {
		*s = AuthorizationPending
		return nil
	}
	st := AuthorizationStatus(raw)
	if !st.Valid() {
		return fmt.Errorf("unknown authorization status %q", raw)
	}
	*s = st
	return nil
}

// GatewayStatus is the status as the payment gateway expects it on the wire.
type GatewayStatus string

const (
	GatewayApproved  GatewayStatus = "approved"
	GatewayDenied    GatewayStatus = "denied"
	GatewayUndefined GatewayStatus = legacyPendingStatus
	GatewayCanceled  GatewayStatus = "canceled"
)

// AuthorizationRecord is the persisted per-payment state, keyed by PaymentID.
type AuthorizationRecord struct {
	PaymentID       string              `json:"paymentId"`
	Status          AuthorizationStatus `json:"status"`
	CreatedAt       time.Time           `json:"createdAt"`
	UpdatedAt       time.Time           `json:"updatedAt"`
	CallbackURL     string              `json:"callbackUrl,omitempty"`
	AuthorizationID string              `json:"authorizationId,omitempty"`
	TID             string              `json:"tid,omitempty"`
	NSU             string              `json:"nsu,omitempty"`
	Message         string              `json:"message,omitempty"`
}

// Buyer carries the identity fields the gateway may send in several places.
type Buyer struct {
	Document    string `json:"document,omitempty"`
	Phone       string `json:"phone,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
	Email       string `json:"email,omitempty"`
	FirstName   string `json:"firstName,omitempty"`
	LastName    string `json:"lastName,omitempty"`
}

type Card struct {
	Number   string `json:"number,omitempty"`
	Holder   string `json:"holder,omitempty"`
	Document string `json:"document,omitempty"`
}

type MiniCart struct {
	Buyer *Buyer `json:"buyer,omitempty"`
}

// AuthorizationRequest is the gateway's request to authorize a payment.
type AuthorizationRequest struct {
	PaymentID     string    `json:"paymentId"`
	Reference     string    `json:"reference,omitempty"`
	OrderID       string    `json:"orderId,omitempty"`
	TransactionID string    `json:"transactionId,omitempty"`
	PaymentMethod string    `json:"paymentMethod,omitempty"`
	Value         float64   `json:"value,omitempty"`
	Currency      string    `json:"currency,omitempty"`
	CallbackURL   string    `json:"callbackUrl,omitempty"`
	Card          *Card     `json:"card,omitempty"`
	MiniCart      *MiniCart `json:"miniCart,omitempty"`
	Buyer         *Buyer    `json:"buyer,omitempty"`
}

// Document returns the first buyer document found in the request.
func (r AuthorizationRequest) Document() string {
	if r.MiniCart != nil && r.MiniCart.Buyer != nil && r.MiniCart.Buyer.Document != "" {
		return r.MiniCart.Buyer.Document
	}
	if r.Card != nil && r.Card.Document != "" {
		return r.Card.Document
	}
	if r.Buyer != nil {
		return r.Buyer.Document
	}
	return ""
}

// Phone returns the first buyer phone found in the request.
func (r AuthorizationRequest) Phone() string {
	if r.MiniCart != nil && r.MiniCart.Buyer != nil && r.MiniCart.Buyer.Phone != "" {
		return r.MiniCart.Buyer.Phone
	}
	if r.Buyer != nil && r.Buyer.Phone != "" {
		return r.Buyer.Phone
	}
	if r.MiniCart != nil && r.MiniCart.Buyer != nil {
		return r.MiniCart.Buyer.PhoneNumber
	}
	return ""
}

func (r AuthorizationRequest) CardNumber() string {
	if r.Card == nil {
		return ""
	}
	return r.Card.Number
}

// PaymentAppData hands an opaque payload to the confirmation app.
type PaymentAppData struct {
	AppName string `json:"appName"`
	Payload string `json:"payload"`
}

// AppPayload is what the confirmation app finds inside PaymentAppData.Payload.
type AppPayload struct {
	PaymentID       string `json:"paymentId"`
	CPF             string `json:"cpf,omitempty"`
	Phone           string `json:"phone,omitempty"`
	EligibilityPath string `json:"eligibilityPath"`
	ConfirmPath     string `json:"confirmPath"`
	ConfirmToken    string `json:"confirmToken,omitempty"`
}

type AuthorizationResponse struct {
	PaymentID       string          `json:"paymentId"`
	Status          GatewayStatus   `json:"status"`
	AuthorizationID string          `json:"authorizationId,omitempty"`
	TID             string          `json:"tid,omitempty"`
	NSU             string          `json:"nsu,omitempty"`
	Acquirer        string          `json:"acquirer"`
	Code            string          `json:"code"`
	Message         *string         `json:"message"`
	DelayToCancel   int             `json:"delayToCancel"`
	PaymentAppData  *PaymentAppData `json:"paymentAppData,omitempty"`
}

type CancellationRequest struct {
	PaymentID       string `json:"paymentId"`
	RequestID       string `json:"requestId,omitempty"`
	AuthorizationID string `json:"authorizationId,omitempty"`
	TransactionID   string `json:"transactionId,omitempty"`
}

type CancellationResponse struct {
	PaymentID      string  `json:"paymentId"`
	CancellationID *string `json:"cancellationId"`
	Code           string  `json:"code,omitempty"`
	Message        string  `json:"message"`
	RequestID      string  `json:"requestId,omitempty"`
}

type RefundRequest struct {
	PaymentID     string  `json:"paymentId"`
	RequestID     string  `json:"requestId,omitempty"`
	SettleID      string  `json:"settleId,omitempty"`
	TransactionID string  `json:"transactionId,omitempty"`
	Value         float64 `json:"value,omitempty"`
}

type RefundResponse struct {
	PaymentID string  `json:"paymentId"`
	RefundID  *string `json:"refundId"`
	Value     float64 `json:"value"`
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	RequestID string  `json:"requestId,omitempty"`
}

type SettlementRequest struct {
	PaymentID       string  `json:"paymentId"`
	RequestID       string  `json:"requestId,omitempty"`
	AuthorizationID string  `json:"authorizationId,omitempty"`
	TransactionID   string  `json:"transactionId,omitempty"`
	Value           float64 `json:"value,omitempty"`
}

type SettlementResponse struct {
	PaymentID string  `json:"paymentId"`
	SettleID  *string `json:"settleId"`
	Value     float64 `json:"value"`
	Code      string  `json:"code"`
	Message   string  `json:"message"`
	RequestID string  `json:"requestId,omitempty"`
}

// ConfirmRequest is the confirmation app's final decision for a payment.
type ConfirmRequest struct {
	PaymentID string              `json:"paymentId"`
	Status    AuthorizationStatus `json:"status"`
	Message   string              `json:"message,omitempty"`
	// Token is the optional signed confirm token, carried out of band (header).
	Token string `json:"-"`
}

// Validate requires a payment id and a final decision.
func (r ConfirmRequest) Validate() error {
	if r.PaymentID == "" || !r.Status.IsDecision() {
		return domain.NewValidationError("status", "paymentId e status (approved|denied) são obrigatórios")
	}
	return nil
}

type ConfirmAck struct {
	OK        bool                `json:"ok"`
	PaymentID string              `json:"paymentId"`
	Status    AuthorizationStatus `json:"status"`
}
