package batch

import (
	"time"

	"github.com/google/uuid"
)

// Status is a job's lifecycle state. Initializing → Processing →
// {Completed, Failed, Cancelled}; the last three are terminal.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusProcessing   Status = "processing"
	StatusCompleted    Status = "completed"
	StatusFailed       Status = "failed"
	StatusCancelled    Status = "cancelled"
)

// Terminal reports whether a job in this status will never change again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// UnitError is one recorded per-unit failure. Failures never abort the
// batch; they accumulate here in observation order.
type UnitError struct {
	Product   string `json:"product"`
	VariantID int64  `json:"variant_id"`
	Error     string `json:"error"`
}

// FinalStats summarizes a finished run.
type FinalStats struct {
	TotalProcessed    int `json:"total_processed"`
	SuccessfulUpdates int `json:"successful_updates"`
	ErrorsCount       int `json:"errors_count"`
}

// Progress is the poller-visible snapshot of one job. The runner mutates
// the registry's copy; Snapshot hands out value copies, so pollers never
// observe a torn write.
type Progress struct {
	Status      Status      `json:"status"`
	Current     int         `json:"current"`
	Total       int         `json:"total"`
	Percentage  int         `json:"percentage"`
	CurrentItem string      `json:"current_item,omitempty"`
	Successful  int         `json:"successful"`
	Errors      []UnitError `json:"errors"`
	// Error is the job-level failure message, set only on StatusFailed.
	// Distinct from the per-unit Errors list.
	Error       string      `json:"error,omitempty"`
	SessionID   uuid.UUID   `json:"session_id"`
	Strategy    string      `json:"strategy"`
	StartedAt   time.Time   `json:"started_at"`
	CompletedAt *time.Time  `json:"completed_at,omitempty"`
	FinalStats  *FinalStats `json:"final_stats,omitempty"`
}
