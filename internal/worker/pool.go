package worker

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"eventpos/internal/metrics"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const (
	QueueStockAlert    = "jobs:stock_alert"
	QueueClosureReport = "jobs:closure_report"

	// MaxAttempts is how many times a job runs before it is dead-lettered.
	MaxAttempts = 3
)

// Job is the generic envelope for all async tasks.
type Job struct {
	Type     string          `json:"type"`
	Payload  json.RawMessage `json:"payload"`
	Attempts int             `json:"attempts"`
	Replays  int             `json:"replays,omitempty"`
}

// Handler processes one job payload. Returning a Permanent error skips the
// remaining attempts.
type Handler interface {
	Process(ctx context.Context, payload json.RawMessage) error
}

type permanentError struct{ err error }

func (e permanentError) Error() string { return e.err.Error() }
func (e permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying (bad payload, missing record).
func Permanent(err error) error { return permanentError{err: err} }

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p permanentError
	return errors.As(err, &p)
}

// ── Dispatcher ────────────────────────────────────────────────────────────────

// Dispatcher enqueues async jobs into Redis lists.
// The worker pool dequeues them via BRPOP.
type Dispatcher struct {
	rdb *redis.Client
}

func NewDispatcher(rdb *redis.Client) *Dispatcher {
	return &Dispatcher{rdb: rdb}
}

// EnqueueStockAlert pushes a low-stock alert job.
func (d *Dispatcher) EnqueueStockAlert(ctx context.Context, p StockAlertPayload) error {
	return d.enqueue(ctx, QueueStockAlert, "stock_alert", p)
}

// EnqueueClosureReport pushes a Z-report job for a freshly written closure.
func (d *Dispatcher) EnqueueClosureReport(ctx context.Context, p ClosureReportPayload) error {
	return d.enqueue(ctx, QueueClosureReport, "closure_report", p)
}

func (d *Dispatcher) enqueue(ctx context.Context, queue, jobType string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return pushJob(ctx, d.rdb, queue, Job{Type: jobType, Payload: data})
}

func pushJob(ctx context.Context, rdb *redis.Client, queue string, job Job) error {
	encoded, err := json.Marshal(job)
	if err != nil {
		return err
	}
	return rdb.LPush(ctx, queue, encoded).Err()
}

// ── Pool ──────────────────────────────────────────────────────────────────────

// Pool runs handlers for every registered queue.
type Pool struct {
	rdb      *redis.Client
	metrics  *metrics.Metrics
	handlers map[string]Handler
	wg       sync.WaitGroup
}

func NewPool(rdb *redis.Client, m *metrics.Metrics) *Pool {
	return &Pool{rdb: rdb, metrics: m, handlers: make(map[string]Handler)}
}

// Register binds h to queue. Must be called before Start.
func (p *Pool) Register(queue string, h Handler) {
	p.handlers[queue] = h
}

// Start launches numWorkers goroutines consuming every registered queue.
// Each goroutine blocks on BRPOP, so idle workers cost nothing.
func (p *Pool) Start(ctx context.Context, numWorkers int) {
	queues := make([]string, 0, len(p.handlers))
	for q := range p.handlers {
		queues = append(queues, q)
	}
	for i := 0; i < numWorkers; i++ {
		p.wg.Add(1)
		go func(id int) {
			defer p.wg.Done()
			p.runWorker(ctx, id, queues)
		}(i)
	}
	log.Info().Msgf("worker pool started with %d workers", numWorkers)
}

// Wait blocks until every worker returned after ctx cancellation.
func (p *Pool) Wait() { p.wg.Wait() }

func (p *Pool) runWorker(ctx context.Context, id int, queues []string) {
	for {
		select {
		case <-ctx.Done():
			log.Info().Msgf("worker %d shutting down", id)
			return
		default:
			// Blocking pop: waits up to 5s then loops to check ctx
			result, err := p.rdb.BRPop(ctx, 5*time.Second, queues...).Result()
			if err != nil {
				continue
			}
			if len(result) < 2 {
				continue
			}
			p.processJob(ctx, result[0], result[1])
		}
	}
}

type outcome string

const (
	outcomeDone  outcome = "ok"
	outcomeRetry outcome = "retry"
	outcomeDead  outcome = "dead"
)

// nextStep decides what happens to a job after a run that made attempts
// (including this one).
func nextStep(attempts int, err error) outcome {
	switch {
	case err == nil:
		return outcomeDone
	case IsPermanent(err) || attempts >= MaxAttempts:
		return outcomeDead
	default:
		return outcomeRetry
	}
}

func (p *Pool) processJob(ctx context.Context, queue, raw string) {
	var job Job
	if err := json.Unmarshal([]byte(raw), &job); err != nil {
		log.Error().Str("queue", queue).Err(err).Msg("failed to unmarshal job")
		SendToDLQ(ctx, p.rdb, queue, Job{Type: "unknown", Payload: json.RawMessage(`null`)}, err.Error())
		p.metrics.RecordJob(queue, string(outcomeDead))
		return
	}

	h, ok := p.handlers[queue]
	if !ok {
		log.Error().Str("queue", queue).Msg("no handler registered")
		return
	}

	job.Attempts++
	err := h.Process(ctx, job.Payload)
	step := nextStep(job.Attempts, err)
	p.metrics.RecordJob(queue, string(step))

	switch step {
	case outcomeDone:
		log.Debug().Str("type", job.Type).Str("queue", queue).Msg("job processed")
	case outcomeRetry:
		log.Warn().Err(err).Str("queue", queue).Int("attempts", job.Attempts).Msg("job failed, requeueing")
		if perr := pushJob(ctx, p.rdb, queue, job); perr != nil {
			log.Error().Err(perr).Str("queue", queue).Msg("requeue failed")
			SendToDLQ(ctx, p.rdb, queue, job, err.Error())
		}
	case outcomeDead:
		SendToDLQ(ctx, p.rdb, queue, job, err.Error())
	}
}
