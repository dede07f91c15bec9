package batch

import (
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestRegistry_SnapshotUnknownJob(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	_, err := r.Snapshot(uuid.New())
	assert.ErrorIs(t, err, ErrJobNotFound)
}

func TestRegistry_CancelUnknownJob(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	assert.ErrorIs(t, r.Cancel(uuid.New()), ErrJobNotFound)
}

func TestRegistry_RegisterThenSnapshot(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	r.Register(id, Progress{Status: StatusInitializing, Strategy: "decrease_price_only"})

	snap, err := r.Snapshot(id)
	assert.NoError(t, err)
	assert.Equal(t, StatusInitializing, snap.Status)
	assert.Equal(t, "decrease_price_only", snap.Strategy)
	assert.NotNil(t, snap.Errors, "errors list starts empty, not nil")
	assert.False(t, snap.StartedAt.IsZero())
}

func TestRegistry_SnapshotIsACopy(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	h := r.Register(id, Progress{Status: StatusProcessing})
	h.RecordError("Shirt", 11, "boom")

	snap, _ := r.Snapshot(id)
	snap.Errors[0].Error = "mutated"
	snap.Current = 99

	fresh, _ := r.Snapshot(id)
	assert.Equal(t, "boom", fresh.Errors[0].Error)
	assert.Equal(t, 0, fresh.Current)
}

func TestRegistry_AdvanceTracksCounters(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	h := r.Register(id, Progress{Status: StatusInitializing})

	h.StartProcessing(4)
	h.Advance("Shirt - S", true)
	h.Advance("Shirt - M", false)

	snap, _ := r.Snapshot(id)
	assert.Equal(t, StatusProcessing, snap.Status)
	assert.Equal(t, 2, snap.Current)
	assert.Equal(t, 1, snap.Successful)
	assert.Equal(t, 50, snap.Percentage)
	assert.Equal(t, "Shirt - M", snap.CurrentItem)
}

func TestRegistry_CancelTerminalJobIsNoop(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	h := r.Register(id, Progress{Status: StatusProcessing})
	h.Finish(StatusCompleted, nil)

	assert.NoError(t, r.Cancel(id))
	assert.False(t, h.Cancelled())
}

func TestRegistry_CancelActiveJobSetsFlag(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	h := r.Register(id, Progress{Status: StatusProcessing})

	assert.NoError(t, r.Cancel(id))
	assert.True(t, h.Cancelled())
}

func TestRegistry_PurgeEvictsOnlyExpiredTerminalJobs(t *testing.T) {
	r := newRegistryNoPurge(30 * time.Minute)

	active := uuid.New()
	r.Register(active, Progress{Status: StatusProcessing})

	done := uuid.New()
	r.Register(done, Progress{Status: StatusProcessing}).Finish(StatusCompleted, nil)

	// Just finished: nothing is old enough to evict.
	r.purge(time.Now())
	_, err := r.Snapshot(done)
	assert.NoError(t, err)

	// Well past retention: the terminal job goes, the active one stays.
	r.purge(time.Now().Add(time.Hour))
	_, err = r.Snapshot(done)
	assert.ErrorIs(t, err, ErrJobNotFound)
	_, err = r.Snapshot(active)
	assert.NoError(t, err)
}

func TestRegistry_FinishStampsCompletion(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	h := r.Register(id, Progress{Status: StatusProcessing})
	h.StartProcessing(2)
	h.Advance("a", true)
	h.Advance("b", false)
	h.RecordError("b", 2, "boom")
	h.Finish(StatusCompleted, nil)

	snap, _ := r.Snapshot(id)
	assert.NotNil(t, snap.CompletedAt)
	assert.NotNil(t, snap.FinalStats)
	assert.Equal(t, 2, snap.FinalStats.TotalProcessed)
	assert.Equal(t, 1, snap.FinalStats.SuccessfulUpdates)
	assert.Equal(t, 1, snap.FinalStats.ErrorsCount)
}

func TestRegistry_ConcurrentWritersAndReaders(t *testing.T) {
	r := newRegistryNoPurge(time.Hour)
	id := uuid.New()
	h := r.Register(id, Progress{Status: StatusProcessing})
	h.StartProcessing(100)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				h.Advance("item", true)
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 10; j++ {
				_, _ = r.Snapshot(id)
			}
		}()
	}
	wg.Wait()

	snap, _ := r.Snapshot(id)
	assert.Equal(t, 100, snap.Current)
	assert.Equal(t, 100, snap.Successful)
	assert.Equal(t, 100, snap.Percentage)
}
