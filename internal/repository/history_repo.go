package repository

import (
	"context"
	"time"

	"priceops/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository is the data access contract for the audit trail.
// Services depend on this interface, not on the concrete GORM
// implementation, enabling clean unit testing via stubs.
type HistoryRepository interface {
	CreateSession(ctx context.Context, operationType, description string) (*model.RollbackSession, error)
	FindSession(ctx context.Context, id uuid.UUID) (*model.RollbackSession, error)
	// FinalizeSession stamps completed_at, the terminal status and the
	// change count. Called exactly once when a batch reaches a terminal
	// state.
	FinalizeSession(ctx context.Context, id uuid.UUID, status model.SessionStatus, totalChanges int) error
	ListSessions(ctx context.Context, limit int) ([]model.RollbackSession, error)

	AppendChange(ctx context.Context, c *model.PriceChange) error
	ListRecentChanges(ctx context.Context, limit int) ([]model.PriceChange, error)
	ListChangesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.PriceChange, error)
}

type historyRepo struct{ db *gorm.DB }

func NewHistoryRepository(db *gorm.DB) HistoryRepository { return &historyRepo{db: db} }

func (r *historyRepo) CreateSession(ctx context.Context, operationType, description string) (*model.RollbackSession, error) {
	s := &model.RollbackSession{
		ID:            uuid.New(),
		OperationType: operationType,
		Description:   description,
		StartedAt:     time.Now(),
		Status:        model.SessionPending,
	}
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		return nil, err
	}
	return s, nil
}

func (r *historyRepo) FindSession(ctx context.Context, id uuid.UUID) (*model.RollbackSession, error) {
	var s model.RollbackSession
	err := r.db.WithContext(ctx).First(&s, "id = ?", id).Error
	return &s, err
}

func (r *historyRepo) FinalizeSession(ctx context.Context, id uuid.UUID, status model.SessionStatus, totalChanges int) error {
	return r.db.WithContext(ctx).Model(&model.RollbackSession{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status":        status,
		"completed_at":  time.Now(),
		"total_changes": totalChanges,
	}).Error
}

func (r *historyRepo) ListSessions(ctx context.Context, limit int) ([]model.RollbackSession, error) {
	if limit < 1 || limit > 200 {
		limit = 50
	}
	var sessions []model.RollbackSession
	err := r.db.WithContext(ctx).Order("started_at DESC").Limit(limit).Find(&sessions).Error
	return sessions, err
}

func (r *historyRepo) AppendChange(ctx context.Context, c *model.PriceChange) error {
	return r.db.WithContext(ctx).Create(c).Error
}

// ListRecentChanges returns the newest records first. Product titles are
// denormalized onto the record at write time, so no join is needed.
func (r *historyRepo) ListRecentChanges(ctx context.Context, limit int) ([]model.PriceChange, error) {
	if limit < 1 || limit > 200 {
		limit = 10
	}
	var changes []model.PriceChange
	err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&changes).Error
	return changes, err
}

// ListChangesBySession returns a session's records in insertion order,
// the order the rollback replay walks them.
func (r *historyRepo) ListChangesBySession(ctx context.Context, sessionID uuid.UUID) ([]model.PriceChange, error) {
	var changes []model.PriceChange
	err := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Order("created_at ASC").Find(&changes).Error
	return changes, err
}
