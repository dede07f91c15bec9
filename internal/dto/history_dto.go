package dto

import "github.com/shopspring/decimal"

// PriceChangeItem is one audit-trail row as shown on the dashboard.
type PriceChangeItem struct {
	ID              string           `json:"id"`
	ProductID       int64            `json:"product_id"`
	ProductTitle    string           `json:"product_title"`
	VariantID       int64            `json:"variant_id"`
	OldPrice        *decimal.Decimal `json:"old_price"`
	NewPrice        decimal.Decimal  `json:"new_price"`
	OldComparePrice *decimal.Decimal `json:"old_compare_at_price"`
	NewComparePrice *decimal.Decimal `json:"new_compare_at_price"`
	ChangeType      string           `json:"change_type"`
	SessionID       string           `json:"session_id"`
	Notes           string           `json:"notes"`
	CreatedAt       string           `json:"created_at"`
}

// PriceChangeListResponse wraps the recent-changes listing.
type PriceChangeListResponse struct {
	Data  []PriceChangeItem `json:"data"`
	Count int               `json:"count"`
}

// SessionItem is one rollback session in the session listing.
type SessionItem struct {
	ID            string  `json:"id"`
	OperationType string  `json:"operation_type"`
	Description   string  `json:"description"`
	Status        string  `json:"status"`
	TotalChanges  int     `json:"total_changes"`
	StartedAt     string  `json:"started_at"`
	CompletedAt   *string `json:"completed_at"`
}

// SessionListResponse wraps the session listing.
type SessionListResponse struct {
	Data  []SessionItem `json:"data"`
	Count int           `json:"count"`
}
