package batch

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"priceops/internal/catalog"
	"priceops/internal/model"
	"priceops/internal/pricing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// ── In-memory stubs ───────────────────────────────────────────────────────────

type stubCatalog struct {
	items []catalog.Item
	err   error
}

func (s *stubCatalog) ListItems(_ context.Context, _ catalog.FilterSpec, _ int) ([]catalog.Item, error) {
	return s.items, s.err
}

type updateCall struct {
	variantID    int64
	price        string
	compare      *string
	clearCompare bool
}

type stubUpdater struct {
	mu      sync.Mutex
	calls   []updateCall
	failFor map[int64]error
	panicOn int64
}

func (s *stubUpdater) UpdatePrice(_ context.Context, variantID int64, price string, compare *string, clearCompare bool) error {
	if s.panicOn != 0 && variantID == s.panicOn {
		panic(fmt.Sprintf("variant %d exploded", variantID))
	}
	s.mu.Lock()
	s.calls = append(s.calls, updateCall{variantID: variantID, price: price, compare: compare, clearCompare: clearCompare})
	s.mu.Unlock()
	if err, ok := s.failFor[variantID]; ok {
		return err
	}
	return nil
}

// compareAfter replays the recorded calls with the admin API's field
// semantics (send-to-set, null-to-clear, omit-to-preserve) and returns
// the compare-at price a variant would end up with.
func (s *stubUpdater) compareAfter(variantID int64, initial *string) *string {
	s.mu.Lock()
	defer s.mu.Unlock()
	current := initial
	for _, call := range s.calls {
		if call.variantID != variantID {
			continue
		}
		switch {
		case call.compare != nil:
			current = call.compare
		case call.clearCompare:
			current = nil
		}
	}
	return current
}

type finalizeCall struct {
	status       model.SessionStatus
	totalChanges int
}

type stubHistory struct {
	mu        sync.Mutex
	sessions  map[uuid.UUID]*model.RollbackSession
	finalized map[uuid.UUID]finalizeCall
	changes   []model.PriceChange
	appendErr error
	listErr   error
}

func newStubHistory() *stubHistory {
	return &stubHistory{
		sessions:  make(map[uuid.UUID]*model.RollbackSession),
		finalized: make(map[uuid.UUID]finalizeCall),
	}
}

func (s *stubHistory) CreateSession(_ context.Context, operationType, description string) (*model.RollbackSession, error) {
	sess := &model.RollbackSession{
		ID:            uuid.New(),
		OperationType: operationType,
		Description:   description,
		StartedAt:     time.Now(),
		Status:        model.SessionPending,
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return sess, nil
}

func (s *stubHistory) FindSession(_ context.Context, id uuid.UUID) (*model.RollbackSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	if !ok {
		return nil, errors.New("not found")
	}
	return sess, nil
}

func (s *stubHistory) FinalizeSession(_ context.Context, id uuid.UUID, status model.SessionStatus, totalChanges int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finalized[id] = finalizeCall{status: status, totalChanges: totalChanges}
	return nil
}

func (s *stubHistory) ListSessions(_ context.Context, _ int) ([]model.RollbackSession, error) {
	return nil, nil
}

func (s *stubHistory) AppendChange(_ context.Context, c *model.PriceChange) error {
	if s.appendErr != nil {
		return s.appendErr
	}
	s.mu.Lock()
	s.changes = append(s.changes, *c)
	s.mu.Unlock()
	return nil
}

func (s *stubHistory) ListRecentChanges(_ context.Context, _ int) ([]model.PriceChange, error) {
	return nil, nil
}

func (s *stubHistory) ListChangesBySession(_ context.Context, sessionID uuid.UUID) ([]model.PriceChange, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.PriceChange
	for _, c := range s.changes {
		if c.SessionID == sessionID {
			out = append(out, c)
		}
	}
	return out, nil
}

// ── Helpers ───────────────────────────────────────────────────────────────────

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func twoItemCatalog() *stubCatalog {
	return &stubCatalog{items: []catalog.Item{
		{ID: 1, Title: "Shirt", Units: []catalog.Unit{
			{ID: 11, Title: "S", Price: dec("100"), ComparePrice: decPtr("120")},
			{ID: 12, Title: "M", Price: dec("100")},
		}},
		{ID: 2, Title: "Mug", Units: []catalog.Unit{
			{ID: 21, Price: dec("50")},
		}},
	}}
}

type runnerFixture struct {
	runner   *Runner
	registry *Registry
	updater  *stubUpdater
	history  *stubHistory
}

func newFixture(cat *stubCatalog) *runnerFixture {
	registry := newRegistryNoPurge(time.Hour)
	updater := &stubUpdater{failFor: map[int64]error{}}
	history := newStubHistory()
	return &runnerFixture{
		runner:   NewRunner(cat, updater, history, registry),
		registry: registry,
		updater:  updater,
		history:  history,
	}
}

func (f *runnerFixture) startJob(t *testing.T, job DiscountJob) DiscountJob {
	t.Helper()
	f.registry.Register(job.JobID, Progress{
		Status:    StatusInitializing,
		SessionID: job.SessionID,
		Strategy:  job.Strategy.String(),
	})
	return job
}

func discountJob(strategy pricing.Strategy, value string) DiscountJob {
	return DiscountJob{
		JobID:     uuid.New(),
		SessionID: uuid.New(),
		Strategy:  strategy,
		Value:     dec(value),
		Filter:    catalog.FilterSpec{Type: catalog.FilterAll},
	}
}

// ── Tests: forward runs ───────────────────────────────────────────────────────

func TestRunDiscountUpdate_AllUnitsSucceed(t *testing.T) {
	f := newFixture(twoItemCatalog())
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))

	f.runner.RunDiscountUpdate(context.Background(), job)

	snap, err := f.registry.Snapshot(job.JobID)
	assert.NoError(t, err)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 3, snap.Current)
	assert.Equal(t, 3, snap.Successful)
	assert.Equal(t, 100, snap.Percentage)
	assert.Empty(t, snap.Errors)
	assert.NotNil(t, snap.CompletedAt)
	assert.NotNil(t, snap.FinalStats)
	assert.Equal(t, 3, snap.FinalStats.SuccessfulUpdates)

	assert.Len(t, f.updater.calls, 3)
	assert.Len(t, f.history.changes, 3)
	fin, ok := f.history.finalized[job.SessionID]
	assert.True(t, ok, "session must be finalized")
	assert.Equal(t, model.SessionCompleted, fin.status)
	assert.Equal(t, 3, fin.totalChanges)
}

func TestRunDiscountUpdate_SendsRoundedPrices(t *testing.T) {
	f := newFixture(twoItemCatalog())
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))

	f.runner.RunDiscountUpdate(context.Background(), job)

	first := f.updater.calls[0]
	assert.Equal(t, int64(11), first.variantID)
	assert.Equal(t, "90.00", first.price)
	assert.NotNil(t, first.compare)
	assert.Equal(t, "120.00", *first.compare)
}

func TestRunDiscountUpdate_PartialFailureDoesNotAbort(t *testing.T) {
	f := newFixture(twoItemCatalog())
	f.updater.failFor[12] = errors.New("remote says no")
	job := f.startJob(t, discountJob(pricing.IncreaseCompareOnly, "15"))

	f.runner.RunDiscountUpdate(context.Background(), job)

	snap, _ := f.registry.Snapshot(job.JobID)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.Current)
	assert.Equal(t, 2, snap.Successful)
	assert.Len(t, snap.Errors, 1)
	assert.Equal(t, "Shirt", snap.Errors[0].Product)
	assert.Equal(t, int64(12), snap.Errors[0].VariantID)
	assert.Contains(t, snap.Errors[0].Error, "remote says no")
	assert.Empty(t, snap.Error, "per-unit failures are not a job-level error")

	// Only successful units reach the audit trail
	assert.Len(t, f.history.changes, 2)
	assert.Equal(t, 2, f.history.finalized[job.SessionID].totalChanges)
}

func TestRunDiscountUpdate_SetupFailureFailsJob(t *testing.T) {
	f := newFixture(&stubCatalog{err: errors.New("upstream 500")})
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))

	f.runner.RunDiscountUpdate(context.Background(), job)

	snap, _ := f.registry.Snapshot(job.JobID)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "upstream 500")
	assert.Equal(t, model.SessionFailed, f.history.finalized[job.SessionID].status)
	assert.Empty(t, f.updater.calls)
}

func TestRunDiscountUpdate_HistoryWriteCountsAsUnitFailure(t *testing.T) {
	f := newFixture(twoItemCatalog())
	f.history.appendErr = errors.New("db down")
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))

	f.runner.RunDiscountUpdate(context.Background(), job)

	snap, _ := f.registry.Snapshot(job.JobID)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 0, snap.Successful)
	assert.Len(t, snap.Errors, 3)
}

func TestRunDiscountUpdate_PanicFailsJobNotProcess(t *testing.T) {
	f := newFixture(twoItemCatalog())
	f.updater.panicOn = 11
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))

	assert.NotPanics(t, func() {
		f.runner.RunDiscountUpdate(context.Background(), job)
	})

	snap, _ := f.registry.Snapshot(job.JobID)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Contains(t, snap.Error, "unexpected failure")
	assert.Equal(t, model.SessionFailed, f.history.finalized[job.SessionID].status)
}

func TestRunDiscountUpdate_CancelledBeforeFirstUnit(t *testing.T) {
	f := newFixture(twoItemCatalog())
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))
	assert.NoError(t, f.registry.Cancel(job.JobID))

	f.runner.RunDiscountUpdate(context.Background(), job)

	snap, _ := f.registry.Snapshot(job.JobID)
	assert.Equal(t, StatusCancelled, snap.Status)
	assert.Empty(t, f.updater.calls)
	assert.Equal(t, model.SessionCancelled, f.history.finalized[job.SessionID].status)
}

func TestRunDiscountUpdate_UnitLimitCapsRun(t *testing.T) {
	f := newFixture(twoItemCatalog())
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))
	job.UnitLimit = 2

	f.runner.RunDiscountUpdate(context.Background(), job)

	snap, _ := f.registry.Snapshot(job.JobID)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 2, snap.Total)
	assert.Equal(t, 2, snap.Current)
	assert.Len(t, f.updater.calls, 2)
}

func TestRunDiscountUpdate_RecordsRollbackData(t *testing.T) {
	f := newFixture(twoItemCatalog())
	job := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))

	f.runner.RunDiscountUpdate(context.Background(), job)

	change := f.history.changes[0]
	assert.Equal(t, ChangeTypeDiscountUpdate, change.ChangeType)
	assert.Equal(t, job.SessionID, change.SessionID)
	assert.Equal(t, "Shirt", change.ProductTitle)
	assert.Equal(t, int64(11), change.RollbackData.VariantID)
	assert.True(t, change.RollbackData.RestorePrice.Equal(dec("100")))
	assert.NotNil(t, change.RollbackData.RestoreComparePrice)
	assert.True(t, change.RollbackData.RestoreComparePrice.Equal(dec("120")))
}

func TestRunDiscountUpdate_UnknownJobIsDropped(t *testing.T) {
	f := newFixture(twoItemCatalog())

	// Never registered — the runner must not touch anything.
	f.runner.RunDiscountUpdate(context.Background(), discountJob(pricing.DecreasePriceOnly, "10"))

	assert.Empty(t, f.updater.calls)
	assert.Empty(t, f.history.finalized)
}

// ── Tests: rollback runs ──────────────────────────────────────────────────────

func TestRunRollback_RestoresPriorPrices(t *testing.T) {
	f := newFixture(twoItemCatalog())

	// Forward run first, so the history holds real rollback data.
	forward := f.startJob(t, discountJob(pricing.DecreasePriceOnly, "10"))
	f.runner.RunDiscountUpdate(context.Background(), forward)
	f.updater.calls = nil

	rb := RollbackJob{JobID: uuid.New(), SessionID: uuid.New(), SourceSessionID: forward.SessionID}
	f.registry.Register(rb.JobID, Progress{Status: StatusInitializing, SessionID: rb.SessionID, Strategy: "rollback"})

	f.runner.RunRollback(context.Background(), rb)

	snap, _ := f.registry.Snapshot(rb.JobID)
	assert.Equal(t, StatusCompleted, snap.Status)
	assert.Equal(t, 3, snap.Total)
	assert.Equal(t, 3, snap.Successful)

	// Original prices pushed back, in insertion order.
	assert.Len(t, f.updater.calls, 3)
	assert.Equal(t, "100.00", f.updater.calls[0].price)
	assert.NotNil(t, f.updater.calls[0].compare)
	assert.Equal(t, "120.00", *f.updater.calls[0].compare)
	assert.False(t, f.updater.calls[0].clearCompare)

	// Variant 12 had no compare-at price: the restore must clear the
	// value the forward run synthesized, not leave it on the remote.
	assert.Equal(t, int64(12), f.updater.calls[1].variantID)
	assert.Nil(t, f.updater.calls[1].compare)
	assert.True(t, f.updater.calls[1].clearCompare)

	// The rollback appended inverse records under its own session.
	reverts, err := f.history.ListChangesBySession(context.Background(), rb.SessionID)
	assert.NoError(t, err)
	assert.Len(t, reverts, 3)
	assert.Equal(t, ChangeTypeRollback, reverts[0].ChangeType)
	assert.True(t, reverts[0].RollbackData.RestorePrice.Equal(dec("90")))
	assert.Equal(t, model.SessionCompleted, f.history.finalized[rb.SessionID].status)
}

func TestRunRollback_ClearsSynthesizedComparePrice(t *testing.T) {
	f := newFixture(&stubCatalog{items: []catalog.Item{
		{ID: 3, Title: "Poster", Units: []catalog.Unit{
			{ID: 31, Price: dec("100")},
		}},
	}})

	forward := f.startJob(t, discountJob(pricing.IncreaseCompareOnly, "15"))
	f.runner.RunDiscountUpdate(context.Background(), forward)

	// The forward run synthesized a compare-at price where none existed.
	assert.NotNil(t, f.updater.calls[0].compare)
	assert.Equal(t, "115.00", *f.updater.calls[0].compare)

	rb := RollbackJob{JobID: uuid.New(), SessionID: uuid.New(), SourceSessionID: forward.SessionID}
	f.registry.Register(rb.JobID, Progress{Status: StatusInitializing, SessionID: rb.SessionID, Strategy: "rollback"})
	f.runner.RunRollback(context.Background(), rb)

	assert.Len(t, f.updater.calls, 2)
	assert.Equal(t, "100.00", f.updater.calls[1].price)
	assert.Nil(t, f.updater.compareAfter(31, nil),
		"rollback must remove the synthesized compare-at price from the remote")
}

func TestRunRollback_LoadFailureFailsJob(t *testing.T) {
	f := newFixture(twoItemCatalog())
	f.history.listErr = errors.New("db down")

	rb := RollbackJob{JobID: uuid.New(), SessionID: uuid.New(), SourceSessionID: uuid.New()}
	f.registry.Register(rb.JobID, Progress{Status: StatusInitializing, SessionID: rb.SessionID})

	f.runner.RunRollback(context.Background(), rb)

	snap, _ := f.registry.Snapshot(rb.JobID)
	assert.Equal(t, StatusFailed, snap.Status)
	assert.Equal(t, model.SessionFailed, f.history.finalized[rb.SessionID].status)
}
