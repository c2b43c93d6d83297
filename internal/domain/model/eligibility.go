package model

import "math"

// EligibilityCurrency is the only currency this deployment quotes limits in.
const EligibilityCurrency = "BRL"

type MarginCheckRequest struct {
	CPF   string `json:"cpf"`
	Phone string `json:"phone"`
}

// MarginCheckResponse is the subset of the provider's margin check we read.
type MarginCheckResponse struct {
	Name            string   `json:"name"`
	IsEligible      bool     `json:"isEligible"`
	MarginAvailable float64  `json:"marginAvailable"`
	TotalEarnings   *float64 `json:"totalEarnings,omitempty"`
	EmployerName    string   `json:"employerName,omitempty"`
}

type ProviderProfile struct {
	Name            string   `json:"name,omitempty"`
	EmployerName    string   `json:"employerName,omitempty"`
	TotalEarnings   *float64 `json:"totalEarnings,omitempty"`
	MarginAvailable float64  `json:"marginAvailable"`
}

// EligibilityResult is derived from a margin check on every call; never cached.
type EligibilityResult struct {
	CPF            string          `json:"cpf"`
	Phone          string          `json:"phone"`
	Eligible       bool            `json:"eligible"`
	AvailableLimit int64           `json:"availableLimit"` // minor units (centavos)
	Currency       string          `json:"currency"`
	Message        string          `json:"message"`
	Origami        ProviderProfile `json:"origami"`
}

// ToMinorUnits converts a decimal currency amount to integer minor units.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Round(amount * 100))
}
