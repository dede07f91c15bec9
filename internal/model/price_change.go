package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PriceChange records one attempted price update on a Shopify variant.
// Records are immutable — never updated or deleted after insertion.
// Many PriceChange rows reference one RollbackSession.
type PriceChange struct {
	ID              uuid.UUID        `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	ProductID       int64            `gorm:"not null;index"`
	ProductTitle    string           `gorm:"not null"`
	VariantID       int64            `gorm:"not null;index"`
	OldPrice        *decimal.Decimal `gorm:"type:decimal(12,2)"`
	NewPrice        decimal.Decimal  `gorm:"type:decimal(12,2);not null"`
	OldComparePrice *decimal.Decimal `gorm:"type:decimal(12,2)"`
	NewComparePrice *decimal.Decimal `gorm:"type:decimal(12,2)"`
	ChangeType      string           `gorm:"not null"`
	SessionID       uuid.UUID        `gorm:"type:uuid;not null;index"`
	Notes           string           ``
	RollbackData    RollbackData     `gorm:"type:jsonb;not null"`
	CreatedAt       time.Time

	Session RollbackSession `gorm:"foreignKey:SessionID"`
}

// RollbackData is the minimal prior-state snapshot needed to reverse one
// change without recomputation. Stored as jsonb alongside the record.
type RollbackData struct {
	VariantID             int64            `json:"variant_id"`
	RestorePrice          decimal.Decimal  `json:"restore_price"`
	RestoreComparePrice   *decimal.Decimal `json:"restore_compare_at_price"`
	OldDiscountPercentage decimal.Decimal  `json:"old_discount_percentage"`
	NewDiscountPercentage decimal.Decimal  `json:"new_discount_percentage"`
}

func (d RollbackData) Value() (driver.Value, error) {
	return json.Marshal(d)
}

func (d *RollbackData) Scan(src interface{}) error {
	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, d)
	case string:
		return json.Unmarshal([]byte(v), d)
	default:
		return fmt.Errorf("rollback_data: unsupported scan type %T", src)
	}
}
