package batch

import (
	"context"
	"fmt"

	"priceops/internal/catalog"
	"priceops/internal/model"
	"priceops/internal/pricing"
	"priceops/internal/repository"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// ChangeTypeDiscountUpdate and ChangeTypeRollback tag price-change
// records with the operation that produced them.
const (
	ChangeTypeDiscountUpdate = "DISCOUNT_UPDATE"
	ChangeTypeRollback       = "ROLLBACK"
)

// Catalog enumerates candidate items for a run.
type Catalog interface {
	ListItems(ctx context.Context, filter catalog.FilterSpec, limit int) ([]catalog.Item, error)
}

// RemoteUpdater applies one price change on the commerce platform.
// comparePrice non-nil sets the compare-at price. comparePrice nil with
// clearCompare removes it on the remote; nil without clearCompare leaves
// the stored value untouched, so implementations must omit the field
// rather than send an empty value.
type RemoteUpdater interface {
	UpdatePrice(ctx context.Context, variantID int64, price string, comparePrice *string, clearCompare bool) error
}

// DiscountJob is the full description of one bulk discount run.
type DiscountJob struct {
	JobID          uuid.UUID
	SessionID      uuid.UUID
	Strategy       pricing.Strategy
	Value          decimal.Decimal
	TargetDiscount *decimal.Decimal
	Filter         catalog.FilterSpec
	// UnitLimit caps how many priced units the run attempts; 0 means no cap.
	UnitLimit int
}

// RollbackJob replays a previous session's rollback data under a new
// session.
type RollbackJob struct {
	JobID           uuid.UUID
	SessionID       uuid.UUID
	SourceSessionID uuid.UUID
}

// Runner executes batch jobs against the remote catalog, recording every
// attempt in the history store and publishing progress to the registry.
//
// Units are processed strictly sequentially: the Shopify client's
// per-request pacing then bounds the aggregate API rate on its own.
type Runner struct {
	catalog  Catalog
	updater  RemoteUpdater
	history  repository.HistoryRepository
	registry *Registry
}

func NewRunner(cat Catalog, updater RemoteUpdater, history repository.HistoryRepository, registry *Registry) *Runner {
	return &Runner{catalog: cat, updater: updater, history: history, registry: registry}
}

// RunDiscountUpdate executes one discount batch to a terminal state.
// Per-unit failures are recorded and never abort the run; only setup
// errors or a panic escaping the per-unit boundary fail the whole job.
func (r *Runner) RunDiscountUpdate(ctx context.Context, job DiscountJob) {
	handle, err := r.registry.Handle(job.JobID)
	if err != nil {
		log.Error().Str("job_id", job.JobID.String()).Msg("discount job has no registry entry, dropping")
		return
	}
	defer r.recoverJob(ctx, handle, job.SessionID)

	items, err := r.catalog.ListItems(ctx, job.Filter, job.UnitLimit)
	if err != nil {
		r.failJob(ctx, handle, job.SessionID, fmt.Errorf("enumerate items: %w", err))
		return
	}

	total := 0
	for _, item := range items {
		total += len(item.Units)
	}
	if job.UnitLimit > 0 && total > job.UnitLimit {
		total = job.UnitLimit
	}
	handle.StartProcessing(total)

	processed := 0
itemLoop:
	for _, item := range items {
		for _, unit := range item.Units {
			if processed >= total {
				break itemLoop
			}
			if handle.Cancelled() {
				r.endJob(ctx, handle, job.SessionID, StatusCancelled)
				return
			}

			label := unitLabel(item, unit)
			err := r.processUnit(ctx, item, unit, job)
			if err != nil {
				handle.RecordError(item.Title, unit.ID, err.Error())
			}
			handle.Advance(label, err == nil)
			processed++
		}
	}

	r.endJob(ctx, handle, job.SessionID, StatusCompleted)
}

// processUnit applies the strategy to one priced unit: compute, push the
// new prices to the remote API, then append the audit record with full
// rollback data. Any returned error belongs to this unit alone.
func (r *Runner) processUnit(ctx context.Context, item catalog.Item, unit catalog.Unit, job DiscountJob) error {
	newPrice, newCompare, err := pricing.CalculateNewPrices(unit.Price, unit.ComparePrice, job.Strategy, job.Value, job.TargetDiscount)
	if err != nil {
		return fmt.Errorf("calculate prices: %w", err)
	}

	var comparePtr *string
	if newCompare != nil {
		s := newCompare.StringFixed(2)
		comparePtr = &s
	}
	if err := r.updater.UpdatePrice(ctx, unit.ID, newPrice.StringFixed(2), comparePtr, false); err != nil {
		return fmt.Errorf("remote update: %w", err)
	}

	oldDiscount := pricing.DiscountOf(pricing.Quote{Price: unit.Price, ComparePrice: unit.ComparePrice}).Round(2)
	newDiscount := pricing.DiscountOf(pricing.Quote{Price: newPrice, ComparePrice: newCompare}).Round(2)

	oldPrice := unit.Price
	change := &model.PriceChange{
		ProductID:    item.ID,
		ProductTitle: item.Title,
		VariantID:    unit.ID,
		OldPrice:     &oldPrice,
		NewPrice:     newPrice.Round(2),
		ChangeType:   ChangeTypeDiscountUpdate,
		SessionID:    job.SessionID,
		Notes: fmt.Sprintf("strategy: %s, old discount: %s%%, new discount: %s%%",
			job.Strategy, oldDiscount, newDiscount),
		RollbackData: model.RollbackData{
			VariantID:             unit.ID,
			RestorePrice:          unit.Price,
			RestoreComparePrice:   unit.ComparePrice,
			OldDiscountPercentage: oldDiscount,
			NewDiscountPercentage: newDiscount,
		},
	}
	change.OldComparePrice = unit.ComparePrice
	if newCompare != nil {
		rounded := newCompare.Round(2)
		change.NewComparePrice = &rounded
	}

	if err := r.history.AppendChange(ctx, change); err != nil {
		// The remote update already landed; the record is what makes it
		// reversible, so a write failure counts as a unit failure.
		return fmt.Errorf("append change record: %w", err)
	}
	return nil
}

// RunRollback replays a session's stored rollback data in insertion
// order, under the job's own (new) session. Same isolation rules as a
// forward run.
func (r *Runner) RunRollback(ctx context.Context, job RollbackJob) {
	handle, err := r.registry.Handle(job.JobID)
	if err != nil {
		log.Error().Str("job_id", job.JobID.String()).Msg("rollback job has no registry entry, dropping")
		return
	}
	defer r.recoverJob(ctx, handle, job.SessionID)

	changes, err := r.history.ListChangesBySession(ctx, job.SourceSessionID)
	if err != nil {
		r.failJob(ctx, handle, job.SessionID, fmt.Errorf("load session changes: %w", err))
		return
	}
	handle.StartProcessing(len(changes))

	for _, change := range changes {
		if handle.Cancelled() {
			r.endJob(ctx, handle, job.SessionID, StatusCancelled)
			return
		}

		err := r.revertChange(ctx, change, job.SessionID)
		if err != nil {
			handle.RecordError(change.ProductTitle, change.VariantID, err.Error())
		}
		handle.Advance(change.ProductTitle, err == nil)
	}

	r.endJob(ctx, handle, job.SessionID, StatusCompleted)
}

// revertChange pushes one record's prior state back to the remote API
// and appends the inverse record, so a rollback is itself reversible.
func (r *Runner) revertChange(ctx context.Context, change model.PriceChange, sessionID uuid.UUID) error {
	rd := change.RollbackData

	// A nil restore value means the variant had no compare-at price
	// before the change. Most strategies synthesize one on the way
	// forward, so the replay must clear it explicitly: omitting the
	// field would leave the synthesized value on the remote, still
	// displaying a discount after the rollback.
	var comparePtr *string
	if rd.RestoreComparePrice != nil {
		s := rd.RestoreComparePrice.StringFixed(2)
		comparePtr = &s
	}
	clearCompare := rd.RestoreComparePrice == nil
	if err := r.updater.UpdatePrice(ctx, rd.VariantID, rd.RestorePrice.StringFixed(2), comparePtr, clearCompare); err != nil {
		return fmt.Errorf("remote update: %w", err)
	}

	newPrice := change.NewPrice
	revert := &model.PriceChange{
		ProductID:       change.ProductID,
		ProductTitle:    change.ProductTitle,
		VariantID:       change.VariantID,
		OldPrice:        &newPrice,
		NewPrice:        rd.RestorePrice.Round(2),
		OldComparePrice: change.NewComparePrice,
		ChangeType:      ChangeTypeRollback,
		SessionID:       sessionID,
		Notes:           fmt.Sprintf("reverted change %s from session %s", change.ID, change.SessionID),
		RollbackData: model.RollbackData{
			VariantID:             change.VariantID,
			RestorePrice:          change.NewPrice,
			RestoreComparePrice:   change.NewComparePrice,
			OldDiscountPercentage: rd.NewDiscountPercentage,
			NewDiscountPercentage: rd.OldDiscountPercentage,
		},
	}
	if rd.RestoreComparePrice != nil {
		rounded := rd.RestoreComparePrice.Round(2)
		revert.NewComparePrice = &rounded
	}

	if err := r.history.AppendChange(ctx, revert); err != nil {
		return fmt.Errorf("append change record: %w", err)
	}
	return nil
}

// ── terminal transitions ─────────────────────────────────────────────────────

// endJob moves the job to Completed or Cancelled and finalizes its
// session. Session finalization is best effort: a failure there is
// logged, never re-fails the finished job.
func (r *Runner) endJob(ctx context.Context, handle *Handle, sessionID uuid.UUID, status Status) {
	handle.Finish(status, nil)
	r.finalizeSession(ctx, sessionID, sessionStatus(status), handle.snapshot().Successful)
}

func (r *Runner) failJob(ctx context.Context, handle *Handle, sessionID uuid.UUID, jobErr error) {
	log.Error().Str("session_id", sessionID.String()).Err(jobErr).Msg("batch job failed")
	handle.Finish(StatusFailed, jobErr)
	r.finalizeSession(ctx, sessionID, model.SessionFailed, handle.snapshot().Successful)
}

// recoverJob is the isolation boundary of last resort: a panic escaping
// the per-unit handling fails the whole job instead of the process.
func (r *Runner) recoverJob(ctx context.Context, handle *Handle, sessionID uuid.UUID) {
	if rec := recover(); rec != nil {
		r.failJob(ctx, handle, sessionID, fmt.Errorf("unexpected failure: %v", rec))
	}
}

func (r *Runner) finalizeSession(ctx context.Context, sessionID uuid.UUID, status model.SessionStatus, totalChanges int) {
	if err := r.history.FinalizeSession(ctx, sessionID, status, totalChanges); err != nil {
		log.Error().Str("session_id", sessionID.String()).Err(err).Msg("failed to finalize rollback session")
	}
}

func sessionStatus(s Status) model.SessionStatus {
	switch s {
	case StatusCancelled:
		return model.SessionCancelled
	case StatusFailed:
		return model.SessionFailed
	default:
		return model.SessionCompleted
	}
}

func unitLabel(item catalog.Item, unit catalog.Unit) string {
	title := unit.Title
	if title == "" {
		title = "Default"
	}
	return item.Title + " - " + title
}
