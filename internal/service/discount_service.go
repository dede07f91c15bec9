package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"priceops/internal/batch"
	"priceops/internal/catalog"
	"priceops/internal/dto"
	"priceops/internal/model"
	"priceops/internal/pricing"
	"priceops/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

var (
	// ErrNoMatchingItems is returned when a preview's filter selects
	// nothing, or the sole match carries no priced unit.
	ErrNoMatchingItems = errors.New("no items match the given filter")
	// ErrNothingToRollback is returned when the source session has no
	// recorded changes.
	ErrNothingToRollback = errors.New("session has no changes to roll back")
)

// Queue is the slice of the worker dispatcher the service needs.
type Queue interface {
	EnqueueDiscountUpdate(ctx context.Context, job batch.DiscountJob) error
	EnqueueRollback(ctx context.Context, job batch.RollbackJob) error
}

// ItemLister is the slice of the catalog the preview path needs.
type ItemLister interface {
	ListItems(ctx context.Context, filter catalog.FilterSpec, limit int) ([]catalog.Item, error)
}

// DiscountService is the business contract behind the HTTP surface:
// previewing a strategy, starting and observing batch runs, and reading
// the audit trail.
type DiscountService interface {
	Preview(ctx context.Context, req dto.PreviewRequest) (*dto.PreviewResponse, error)
	StartUpdate(ctx context.Context, req dto.StartJobRequest) (*dto.StartJobResponse, error)
	StartRollback(ctx context.Context, sourceSessionID uuid.UUID) (*dto.StartJobResponse, error)
	Progress(jobID uuid.UUID) (batch.Progress, error)
	Cancel(jobID uuid.UUID) error
	RecentChanges(ctx context.Context, limit int) (*dto.PriceChangeListResponse, error)
	Sessions(ctx context.Context, limit int) (*dto.SessionListResponse, error)
}

type discountService struct {
	items    ItemLister
	history  repository.HistoryRepository
	registry *batch.Registry
	queue    Queue
}

func NewDiscountService(items ItemLister, history repository.HistoryRepository, registry *batch.Registry, queue Queue) DiscountService {
	return &discountService{items: items, history: history, registry: registry, queue: queue}
}

// Preview fetches exactly one matching item and shows how the strategy
// would change its first priced unit. Nothing is mutated.
func (s *discountService) Preview(ctx context.Context, req dto.PreviewRequest) (*dto.PreviewResponse, error) {
	strategy, err := pricing.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	filter, err := catalog.ParseFilter(req.FilterType, req.FilterValue)
	if err != nil {
		return nil, err
	}

	items, err := s.items.ListItems(ctx, filter, 1)
	if err != nil {
		return nil, fmt.Errorf("fetch sample item: %w", err)
	}
	if len(items) == 0 || len(items[0].Units) == 0 {
		return nil, ErrNoMatchingItems
	}

	item := items[0]
	unit := item.Units[0]

	preview, err := pricing.PreviewChange(
		pricing.Quote{Price: unit.Price, ComparePrice: unit.ComparePrice},
		strategy, req.Value, req.TargetDiscount,
	)
	if err != nil {
		return nil, err
	}

	savings := decimal.Zero
	if preview.NewComparePrice != nil {
		savings = preview.NewComparePrice.Sub(preview.NewPrice)
	}

	variantTitle := unit.Title
	if variantTitle == "" {
		variantTitle = "Default"
	}
	return &dto.PreviewResponse{
		PreviewResult: *preview,
		ProductTitle:  item.Title,
		VariantTitle:  variantTitle,
		SavingsAmount: savings,
	}, nil
}

// StartUpdate validates inputs, creates the rollback session before any
// price is touched, registers the progress entry and enqueues the run.
// Returns immediately with the identifiers needed to poll.
func (s *discountService) StartUpdate(ctx context.Context, req dto.StartJobRequest) (*dto.StartJobResponse, error) {
	strategy, err := pricing.ParseStrategy(req.Strategy)
	if err != nil {
		return nil, err
	}
	if strategy == pricing.SetDiscountPercentage && req.TargetDiscount == nil {
		return nil, pricing.ErrTargetDiscountRequired
	}
	filter, err := catalog.ParseFilter(req.FilterType, req.FilterValue)
	if err != nil {
		return nil, err
	}

	// The target-based strategy ignores the value field, so the audit
	// description records the target instead.
	description := fmt.Sprintf("%s - value: %s%%", strategy.Description(), req.Value)
	if strategy == pricing.SetDiscountPercentage {
		description = fmt.Sprintf("%s - target: %s%%", strategy.Description(), *req.TargetDiscount)
	}
	session, err := s.history.CreateSession(ctx, batch.ChangeTypeDiscountUpdate, description)
	if err != nil {
		return nil, fmt.Errorf("create rollback session: %w", err)
	}

	job := batch.DiscountJob{
		JobID:          uuid.New(),
		SessionID:      session.ID,
		Strategy:       strategy,
		Value:          req.Value,
		TargetDiscount: req.TargetDiscount,
		Filter:         filter,
		UnitLimit:      req.UnitLimit,
	}

	handle := s.registry.Register(job.JobID, batch.Progress{
		Status:    batch.StatusInitializing,
		SessionID: session.ID,
		Strategy:  strategy.String(),
		StartedAt: time.Now(),
	})

	if err := s.queue.EnqueueDiscountUpdate(ctx, job); err != nil {
		handle.Finish(batch.StatusFailed, err)
		if ferr := s.history.FinalizeSession(ctx, session.ID, model.SessionFailed, 0); ferr != nil {
			log.Error().Str("session_id", session.ID.String()).Err(ferr).Msg("failed to finalize session after enqueue error")
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	log.Info().
		Str("job_id", job.JobID.String()).
		Str("session_id", session.ID.String()).
		Str("strategy", strategy.String()).
		Str("filter", filter.String()).
		Msg("discount update started")

	return &dto.StartJobResponse{
		JobID:     job.JobID.String(),
		SessionID: session.ID.String(),
		Status:    "started",
		Message:   "Discount update started: " + strategy.Description(),
	}, nil
}

// StartRollback reverses a previous session's changes as a new batch
// job under its own session.
func (s *discountService) StartRollback(ctx context.Context, sourceSessionID uuid.UUID) (*dto.StartJobResponse, error) {
	source, err := s.history.FindSession(ctx, sourceSessionID)
	if err != nil {
		return nil, fmt.Errorf("find session: %w", err)
	}
	changes, err := s.history.ListChangesBySession(ctx, source.ID)
	if err != nil {
		return nil, fmt.Errorf("load session changes: %w", err)
	}
	if len(changes) == 0 {
		return nil, ErrNothingToRollback
	}

	description := fmt.Sprintf("rollback of session %s (%s)", source.ID, source.Description)
	session, err := s.history.CreateSession(ctx, batch.ChangeTypeRollback, description)
	if err != nil {
		return nil, fmt.Errorf("create rollback session: %w", err)
	}

	job := batch.RollbackJob{
		JobID:           uuid.New(),
		SessionID:       session.ID,
		SourceSessionID: source.ID,
	}

	handle := s.registry.Register(job.JobID, batch.Progress{
		Status:    batch.StatusInitializing,
		SessionID: session.ID,
		Strategy:  batch.ChangeTypeRollback,
		StartedAt: time.Now(),
	})

	if err := s.queue.EnqueueRollback(ctx, job); err != nil {
		handle.Finish(batch.StatusFailed, err)
		if ferr := s.history.FinalizeSession(ctx, session.ID, model.SessionFailed, 0); ferr != nil {
			log.Error().Str("session_id", session.ID.String()).Err(ferr).Msg("failed to finalize session after enqueue error")
		}
		return nil, fmt.Errorf("enqueue job: %w", err)
	}

	log.Info().
		Str("job_id", job.JobID.String()).
		Str("source_session", source.ID.String()).
		Msg("rollback started")

	return &dto.StartJobResponse{
		JobID:     job.JobID.String(),
		SessionID: session.ID.String(),
		Status:    "started",
		Message:   fmt.Sprintf("Rollback of %d change(s) started", len(changes)),
	}, nil
}

func (s *discountService) Progress(jobID uuid.UUID) (batch.Progress, error) {
	return s.registry.Snapshot(jobID)
}

func (s *discountService) Cancel(jobID uuid.UUID) error {
	return s.registry.Cancel(jobID)
}

func (s *discountService) RecentChanges(ctx context.Context, limit int) (*dto.PriceChangeListResponse, error) {
	changes, err := s.history.ListRecentChanges(ctx, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.PriceChangeItem, 0, len(changes))
	for _, c := range changes {
		data = append(data, dto.PriceChangeItem{
			ID:              c.ID.String(),
			ProductID:       c.ProductID,
			ProductTitle:    c.ProductTitle,
			VariantID:       c.VariantID,
			OldPrice:        c.OldPrice,
			NewPrice:        c.NewPrice,
			OldComparePrice: c.OldComparePrice,
			NewComparePrice: c.NewComparePrice,
			ChangeType:      c.ChangeType,
			SessionID:       c.SessionID.String(),
			Notes:           c.Notes,
			CreatedAt:       c.CreatedAt.Format(time.RFC3339),
		})
	}
	return &dto.PriceChangeListResponse{Data: data, Count: len(data)}, nil
}

func (s *discountService) Sessions(ctx context.Context, limit int) (*dto.SessionListResponse, error) {
	sessions, err := s.history.ListSessions(ctx, limit)
	if err != nil {
		return nil, err
	}
	data := make([]dto.SessionItem, 0, len(sessions))
	for _, sess := range sessions {
		item := dto.SessionItem{
			ID:            sess.ID.String(),
			OperationType: sess.OperationType,
			Description:   sess.Description,
			Status:        string(sess.Status),
			TotalChanges:  sess.TotalChanges,
			StartedAt:     sess.StartedAt.Format(time.RFC3339),
		}
		if sess.CompletedAt != nil {
			s := sess.CompletedAt.Format(time.RFC3339)
			item.CompletedAt = &s
		}
		data = append(data, item)
	}
	return &dto.SessionListResponse{Data: data, Count: len(data)}, nil
}
