package schedule

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"xetl/internal/jobs"
	"xetl/internal/logging"
	"xetl/internal/metrics"
	"xetl/internal/model"
	"xetl/internal/notify"
	"xetl/internal/store/runlog"
)

// ErrAlreadyRunning is returned by Start while another run is in flight.
var ErrAlreadyRunning = errors.New("export run already in flight")

// Task is one invocation of the export.
type Task interface {
	Run(ctx context.Context) (jobs.Result, error)
}

// Ledger receives every finished attempt.
type Ledger interface {
	RecordAttempt(ctx context.Context, a runlog.Attempt) error
}

// Outcome summarizes a run. Err is the last attempt's error when every
// attempt failed.
type Outcome struct {
	RunID    string
	Attempts int
	Result   jobs.Result
	Err      error
}

// Runner executes runs under a Policy. A Runner allows one run at a time.
type Runner struct {
	policy    Policy
	ledger    Ledger
	publisher notify.Publisher

	mu      sync.Mutex
	running bool

	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
	newID func() string
}

type Option func(*Runner)

func WithLedger(l Ledger) Option { return func(r *Runner) { r.ledger = l } }

func WithPublisher(p notify.Publisher) Option {
	return func(r *Runner) {
		if p != nil {
			r.publisher = p
		}
	}
}

func NewRunner(p Policy, opts ...Option) *Runner {
	r := &Runner{
		policy:    p,
		publisher: notify.Nop{},
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepCtx,
		newID:     uuid.NewString,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Runner) Policy() Policy { return r.policy }

// Running reports whether a run is in flight.
func (r *Runner) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// Start launches a run in the background and returns its id. The channel
// yields exactly one Outcome.
func (r *Runner) Start(ctx context.Context, trigger string, task Task) (string, <-chan Outcome, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return "", nil, ErrAlreadyRunning
	}
	r.running = true
	r.mu.Unlock()

	id := r.newID()
	done := make(chan Outcome, 1)
	go func() {
		out := r.run(ctx, id, trigger, task)
		r.mu.Lock()
		r.running = false
		r.mu.Unlock()
		done <- out
		close(done)
	}()
	return id, done, nil
}

// Run is Start followed by waiting for the outcome.
func (r *Runner) Run(ctx context.Context, trigger string, task Task) (Outcome, error) {
	_, done, err := r.Start(ctx, trigger, task)
	if err != nil {
		return Outcome{}, err
	}
	out := <-done
	return out, out.Err
}

func (r *Runner) run(ctx context.Context, runID, trigger string, task Task) Outcome {
	out := Outcome{RunID: runID}
	max := r.policy.MaxAttempts()
	logging.Info("run_started", map[string]any{"run_id": runID, "trigger": trigger, "max_attempts": max})

	for attempt := 1; attempt <= max; attempt++ {
		started := r.now()
		res, err := task.Run(ctx)
		finished := r.now()
		out.Attempts = attempt

		a := runlog.Attempt{RunID: runID, Number: attempt, Trigger: trigger, StartedAt: started, FinishedAt: finished}
		if err == nil {
			a.Status = runlog.StatusSucceeded
			a.Records = res.Records
			r.record(ctx, a)
			out.Result, out.Err = res, nil
			r.publish(ctx, runID, attempt, res, finished)
			logging.Info("run_succeeded", map[string]any{"run_id": runID, "attempt": attempt, "records": res.Records})
			return out
		}

		a.Status = runlog.StatusFailed
		a.ErrorKind = jobs.Kind(err)
		a.Error = err.Error()
		r.record(ctx, a)
		out.Err = err

		next, ok := NextAttempt(finished, attempt, r.policy)
		if !ok {
			break
		}
		logging.Warn("attempt_failed", map[string]any{
			"run_id": runID, "attempt": attempt, "max_attempts": max,
			"kind": a.ErrorKind, "next_attempt": next.Format(time.RFC3339),
		})
		if werr := r.sleep(ctx, r.policy.Delay); werr != nil {
			out.Err = fmt.Errorf("retry wait after attempt %d: %w", attempt, errors.Join(err, werr))
			break
		}
	}

	logging.Error("run_failed", map[string]any{"run_id": runID, "attempts": out.Attempts, "error": out.Err.Error()})
	return out
}

func (r *Runner) record(ctx context.Context, a runlog.Attempt) {
	metrics.IncAttempt(a.Status)
	if r.ledger == nil {
		return
	}
	if err := r.ledger.RecordAttempt(context.WithoutCancel(ctx), a); err != nil {
		logging.Error("ledger_write_failed", map[string]any{"run_id": a.RunID, "attempt": a.Number, "error": err.Error()})
	}
}

// publish failures are logged only; the artifact is already in place.
func (r *Runner) publish(ctx context.Context, runID string, attempts int, res jobs.Result, at time.Time) {
	ev := notify.Completed{
		RunID:         runID,
		URI:           res.URI,
		Records:       res.Records,
		SchemaVersion: res.SchemaVersion,
		Attempts:      attempts,
		FinishedAt:    at,
	}
	if ev.SchemaVersion == 0 {
		ev.SchemaVersion = model.RecordSchema.Version
	}
	if err := r.publisher.Publish(context.WithoutCancel(ctx), ev); err != nil {
		logging.Error("notify_failed", map[string]any{"run_id": runID, "error": err.Error()})
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
