package worker

import (
	"context"
	"encoding/json"
	"time"

	"priceops/internal/batch"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueDiscountUpdate = "jobs:discount_update"
	QueueRollback       = "jobs:rollback"
)

// Job is the generic envelope for all async batch work.
type Job struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// Dispatcher enqueues batch jobs into Redis lists.
// The worker pool dequeues them via BRPOP. The job id is registered in
// the progress registry before enqueueing, so the caller can poll
// immediately after the enqueue returns.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueDiscountUpdate pushes a bulk discount run onto the queue.
func (d *Dispatcher) EnqueueDiscountUpdate(ctx context.Context, job batch.DiscountJob) error {
	return d.enqueue(ctx, QueueDiscountUpdate, "discount_update", job)
}

// EnqueueRollback pushes a session rollback run onto the queue.
func (d *Dispatcher) EnqueueRollback(ctx context.Context, job batch.RollbackJob) error {
	return d.enqueue(ctx, QueueRollback, "rollback", job)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	encoded, err := json.Marshal(Job{Type: jobType, Payload: data})
	if err != nil {
		return err
	}
	return d.rdb.LPush(ctx, queue, encoded).Err()
}

// StartWorkerPool launches numWorkers goroutines consuming both queues.
// Each goroutine blocks on BRPOP — zero CPU when idle. Every dequeued
// job runs to a terminal state on its worker; concurrency across jobs is
// bounded by the pool size.
func StartWorkerPool(ctx context.Context, rdb *redis.Client, runner *batch.Runner, numWorkers int) {
	for i := 0; i < numWorkers; i++ {
		go runWorker(ctx, rdb, runner, i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

func runWorker(ctx context.Context, rdb *redis.Client, runner *batch.Runner, id int) {
	queues := []string{QueueDiscountUpdate, QueueRollback}
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop — waits up to 5s then loops to check ctx
			result, err := rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue // timeout or context cancelled
			}
			if len(result) < 2 {
				continue
			}
			processJob(ctx, runner, result[0], result[1])
		}
	}
}

func processJob(ctx context.Context, runner *batch.Runner, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		return
	}

	switch queue {
	case QueueDiscountUpdate:
		var dj batch.DiscountJob
		if err := json.Unmarshal(job.Payload, &dj); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal discount job payload")
			return
		}
		log.Info().Str("job_id", dj.JobID.String()).Str("strategy", dj.Strategy.String()).Msg("processing discount update")
		runner.RunDiscountUpdate(ctx, dj)
	case QueueRollback:
		var rj batch.RollbackJob
		if err := json.Unmarshal(job.Payload, &rj); err != nil {
			log.Error().Err(err).Msg("failed to unmarshal rollback job payload")
			return
		}
		log.Info().Str("job_id", rj.JobID.String()).Str("source_session", rj.SourceSessionID.String()).Msg("processing rollback")
		runner.RunRollback(ctx, rj)
	default:
		log.Error().Str("queue", queue).Str("type", job.Type).Msg("job from unknown queue")
	}
}
