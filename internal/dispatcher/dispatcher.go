// Package dispatcher drives a load run: it hands every object of a run to a
// Sender while keeping at most ConcurrencyLimit sends in flight.
//
// With a limit of zero the sends run one after another on the caller's
// goroutine. Otherwise each send gets its own goroutine and admission goes
// through a weighted semaphore held by the caller for the duration of Run.
//
// Run returns once every object has been started, not finished. Callers that
// need the in-flight sends to complete use Wait or RunAndWait.
package dispatcher

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/segmentio/ksuid"
	"golang.org/x/sync/semaphore"

	"tcp-loadgen/internal/models"
	"tcp-loadgen/internal/payload"
	"tcp-loadgen/internal/sender"
)

// ErrAlreadyRun is returned by Run on a Dispatcher that has already run.
var ErrAlreadyRun = errors.New("dispatcher: run already started")

// State is the lifecycle position of a Dispatcher.
type State int32

const (
	Idle State = iota
	Dispatching
	Draining
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Dispatching:
		return "dispatching"
	case Draining:
		return "draining"
	case Done:
		return "done"
	default:
		return "unknown"
	}
}

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithResults publishes a SendResult for every finished send. The channel
// must be drained until Wait returns.
func WithResults(ch chan<- models.SendResult) Option {
	return func(d *Dispatcher) { d.results = ch }
}

// WithRunID overrides the generated run identifier.
func WithRunID(id string) Option {
	return func(d *Dispatcher) { d.runID = id }
}

// Dispatcher runs a single load run. Its counters are private to the
// instance, so several dispatchers can run side by side in one process.
type Dispatcher struct {
	sender  sender.Sender
	logger  *slog.Logger
	results chan<- models.SendResult
	runID   string

	state     atomic.Int32
	active    atomic.Int64
	peak      atomic.Int64
	started   atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
	remaining atomic.Int64
	begunAt   atomic.Int64
	endedAt   atomic.Int64

	wg   sync.WaitGroup
	done chan struct{}
}

// New creates a Dispatcher that transmits through s.
func New(s sender.Sender, logger *slog.Logger, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		sender: s,
		logger: logger,
		runID:  ksuid.New().String(),
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// RunID returns the identifier attached to logs and results of this run.
func (d *Dispatcher) RunID() string { return d.runID }

// State returns the current lifecycle state.
func (d *Dispatcher) State() State { return State(d.state.Load()) }

// Active returns the number of sends currently in progress.
func (d *Dispatcher) Active() int64 { return d.active.Load() }

// Run dispatches params.ObjectCount sends and returns once all of them have
// been started. If ctx is cancelled before that, dispatching stops, the
// number of unstarted objects is reported in RunStats.Remaining and ctx's
// error is returned.
func (d *Dispatcher) Run(ctx context.Context, params models.RunParameters) (models.RunStats, error) {
	if err := params.Validate(); err != nil {
		return models.RunStats{RunID: d.runID}, err
	}
	if !d.state.CompareAndSwap(int32(Idle), int32(Dispatching)) {
		return d.Stats(), ErrAlreadyRun
	}
	d.begunAt.Store(time.Now().UnixNano())

	log := d.logger.With(slog.String("component", "dispatcher"), slog.String("run_id", d.runID))
	log.Info("Run started.",
		"target", params.Target.Addr(),
		"concurrency", params.ConcurrencyLimit,
		"payload_size", params.PayloadSize,
		"objects", params.ObjectCount,
	)

	body := payload.Generate(params.PayloadSize)

	var err error
	if params.Sequential() {
		err = d.runSequential(ctx, params, body, log)
		d.state.Store(int32(Draining))
		d.finish(log)
	} else {
		err = d.runBounded(ctx, params, body, log)
		d.state.Store(int32(Draining))
		log.Debug("All objects dispatched.", "in_flight", d.active.Load())
		go func() {
			d.wg.Wait()
			d.finish(log)
		}()
	}
	return d.Stats(), err
}

// Wait blocks until every started send has finished and returns the final
// stats. It returns immediately if Run was never called.
func (d *Dispatcher) Wait() models.RunStats {
	if d.State() == Idle {
		return d.Stats()
	}
	<-d.done
	return d.Stats()
}

// RunAndWait is Run followed by Wait.
func (d *Dispatcher) RunAndWait(ctx context.Context, params models.RunParameters) (models.RunStats, error) {
	stats, err := d.Run(ctx, params)
	if errors.Is(err, ErrAlreadyRun) || d.State() == Idle {
		return stats, err
	}
	return d.Wait(), err
}

// Stats returns a snapshot of the run counters.
func (d *Dispatcher) Stats() models.RunStats {
	s := models.RunStats{
		RunID:      d.runID,
		Started:    d.started.Load(),
		Succeeded:  d.succeeded.Load(),
		Failed:     d.failed.Load(),
		Remaining:  d.remaining.Load(),
		PeakActive: d.peak.Load(),
	}
	s.Attempted = s.Succeeded + s.Failed
	if begun := d.begunAt.Load(); begun != 0 {
		end := d.endedAt.Load()
		if end == 0 {
			end = time.Now().UnixNano()
		}
		s.Duration = time.Duration(end - begun)
	}
	return s
}

func (d *Dispatcher) runSequential(ctx context.Context, params models.RunParameters, body []byte, log *slog.Logger) error {
	log.Debug("Sending sequentially on the calling goroutine.")
	for seq := 1; seq <= params.ObjectCount; seq++ {
		if err := ctx.Err(); err != nil {
			d.interrupted(params, log, err)
			return err
		}
		d.started.Add(1)
		d.enter()
		d.send(ctx, params.Target, models.SendJob{Seq: seq, PayloadSize: params.PayloadSize}, body, log)
		d.leave()
	}
	return nil
}

func (d *Dispatcher) runBounded(ctx context.Context, params models.RunParameters, body []byte, log *slog.Logger) error {
	sem := semaphore.NewWeighted(int64(params.ConcurrencyLimit))
	for seq := 1; seq <= params.ObjectCount; seq++ {
		if err := ctx.Err(); err != nil {
			d.interrupted(params, log, err)
			return err
		}
		if err := sem.Acquire(ctx, 1); err != nil {
			d.interrupted(params, log, err)
			return err
		}
		// Acquire may win a race against a cancellation that already happened.
		if err := ctx.Err(); err != nil {
			sem.Release(1)
			d.interrupted(params, log, err)
			return err
		}
		d.started.Add(1)
		d.enter()
		d.wg.Add(1)
		go func(job models.SendJob) {
			defer d.wg.Done()
			defer sem.Release(1)
			defer d.leave()
			d.send(ctx, params.Target, job, body, log)
		}(models.SendJob{Seq: seq, PayloadSize: params.PayloadSize})
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, target models.Target, job models.SendJob, body []byte, log *slog.Logger) {
	jobLog := log.With(slog.Int("seq", job.Seq))
	jobLog.Debug("Sending object.", "bytes", job.PayloadSize)

	startTime := time.Now()
	err := d.sender.Send(ctx, target, body)
	result := models.SendResult{
		RunID:     d.runID,
		Seq:       job.Seq,
		Timestamp: startTime,
		Target:    target,
		Bytes:     job.PayloadSize,
		Status:    models.StatusOK,
		Latency:   time.Since(startTime),
	}
	if err != nil {
		d.failed.Add(1)
		result.Status = models.StatusError
		result.Error = err
		var connErr *sender.ConnectionError
		if errors.As(err, &connErr) {
			result.Bytes = connErr.Written
		}
		jobLog.Warn("Send failed.", "error", err)
	} else {
		d.succeeded.Add(1)
		jobLog.Debug("Object sent.", "latency_ms", result.Latency.Seconds()*1000)
	}

	if d.results != nil {
		d.results <- result
	}
}

func (d *Dispatcher) interrupted(params models.RunParameters, log *slog.Logger, err error) {
	left := int64(params.ObjectCount) - d.started.Load()
	d.remaining.Store(left)
	log.Warn("Dispatch interrupted.", "remaining", left, "error", err)
}

func (d *Dispatcher) enter() {
	n := d.active.Add(1)
	for {
		p := d.peak.Load()
		if n <= p || d.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

func (d *Dispatcher) leave() {
	d.active.Add(-1)
}

func (d *Dispatcher) finish(log *slog.Logger) {
	d.endedAt.Store(time.Now().UnixNano())
	d.state.Store(int32(Done))
	close(d.done)
	s := d.Stats()
	log.Info("Run finished.",
		"attempted", s.Attempted,
		"succeeded", s.Succeeded,
		"failed", s.Failed,
		"remaining", s.Remaining,
		"peak_active", s.PeakActive,
		"duration", s.Duration,
	)
}
