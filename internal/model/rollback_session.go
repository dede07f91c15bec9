package model

import (
	"time"

	"github.com/google/uuid"
)

// SessionStatus is a rollback session's lifecycle state.
type SessionStatus string

const (
	SessionPending   SessionStatus = "PENDING"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
	SessionCancelled SessionStatus = "CANCELLED"
)

// RollbackSession groups every price change made by one batch run so the
// run can later be audited or reversed as a unit.
// Created before any price is touched; finalized when the run reaches a
// terminal state.
type RollbackSession struct {
	ID            uuid.UUID     `gorm:"type:uuid;primaryKey;default:gen_random_uuid()"`
	OperationType string        `gorm:"not null"` // DISCOUNT_UPDATE | ROLLBACK
	Description   string        `gorm:"not null"`
	StartedAt     time.Time     `gorm:"not null;default:now()"`
	CompletedAt   *time.Time    ``
	Status        SessionStatus `gorm:"not null;default:'PENDING'"`
	TotalChanges  int           `gorm:"not null;default:0"`
}
