package dto

import (
	"github.com/shopspring/decimal"

	"priceops/internal/pricing"
)

// PreviewRequest carries the strategy/value/filter inputs shared by the
// preview and job-start endpoints.
type PreviewRequest struct {
	Strategy       string           `json:"strategy" validate:"required"`
	Value          decimal.Decimal  `json:"value"`
	TargetDiscount *decimal.Decimal `json:"target_discount" validate:"omitempty,gte=0,lt=100"`
	FilterType     string           `json:"filter_type"`
	FilterValue    string           `json:"filter_value"`
}

// PreviewResponse is the before/after sample for one matching unit,
// augmented with the titles the operator sees in the form.
type PreviewResponse struct {
	pricing.PreviewResult
	ProductTitle  string          `json:"product_title"`
	VariantTitle  string          `json:"variant_title"`
	SavingsAmount decimal.Decimal `json:"savings_amount"`
}

// StartJobRequest starts a bulk update over the filtered candidate set.
type StartJobRequest struct {
	Strategy       string           `json:"strategy" validate:"required"`
	Value          decimal.Decimal  `json:"value"`
	TargetDiscount *decimal.Decimal `json:"target_discount" validate:"omitempty,gte=0,lt=100"`
	FilterType     string           `json:"filter_type"`
	FilterValue    string           `json:"filter_value"`
	// UnitLimit caps how many priced units the run attempts (0 = no cap).
	UnitLimit int `json:"unit_limit" validate:"omitempty,gte=0"`
}

// StartJobResponse returns immediately; progress is polled by job id.
type StartJobResponse struct {
	JobID     string `json:"job_id"`
	SessionID string `json:"session_id"`
	Status    string `json:"status"`
	Message   string `json:"message"`
}
