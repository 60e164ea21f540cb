package gojob

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-approvals/core"
	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/goliatone/go-job/queue/worker"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultRetryDelay = 5 * time.Second

// Handler executes one job message.
type Handler func(ctx context.Context, msg *job.ExecutionMessage) error

type WorkerOption func(*Worker)

func WithRetryPolicy(policy RetryPolicy) WorkerOption {
	return func(w *Worker) {
		w.policy = policy
	}
}

func WithRetryDelay(delay time.Duration) WorkerOption {
	return func(w *Worker) {
		if delay >= 0 {
			w.retryDelay = delay
		}
	}
}

func WithHook(hook worker.Hook) WorkerOption {
	return func(w *Worker) {
		if hook != nil {
			w.hook = hook
		}
	}
}

func WithWorkerClock(nowFn func() time.Time) WorkerOption {
	return func(w *Worker) {
		if nowFn != nil {
			w.now = nowFn
		}
	}
}

// Worker pulls deliveries and routes them to handlers by job id.
type Worker struct {
	dequeuer   queue.Dequeuer
	policy     RetryPolicy
	retryDelay time.Duration
	hook       worker.Hook
	now        func() time.Time

	mu       sync.RWMutex
	handlers map[string]Handler
}

func NewWorker(dequeuer queue.Dequeuer, opts ...WorkerOption) (*Worker, error) {
	if dequeuer == nil {
		return nil, fmt.Errorf("gojob: dequeuer is required")
	}
	w := &Worker{
		dequeuer:   dequeuer,
		policy:     RetryPolicy{MaxAttempts: 3, MaxDelay: time.Minute, DeadLetterOnMax: true},
		retryDelay: defaultRetryDelay,
		hook:       NewLoggingHook(nil, nil),
		now:        time.Now,
		handlers:   map[string]Handler{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(w)
		}
	}
	return w, nil
}

func (w *Worker) Handle(jobID string, handler Handler) error {
	jobID = strings.TrimSpace(jobID)
	if jobID == "" {
		return fmt.Errorf("gojob: job id is required")
	}
	if handler == nil {
		return fmt.Errorf("gojob: handler for %q is required", jobID)
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handlers[jobID] = handler
	return nil
}

// Run processes deliveries until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	for {
		err := w.ProcessNext(ctx)
		if err == nil {
			continue
		}
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
}

// ProcessNext handles a single delivery. Handler failures are settled on the
// delivery and do not surface as an error.
func (w *Worker) ProcessNext(ctx context.Context) error {
	delivery, err := w.dequeuer.Dequeue(ctx)
	if err != nil {
		return err
	}
	msg := delivery.Message()
	event := worker.Event{
		Message:   msg,
		Delivery:  delivery,
		Attempt:   deliveryAttempt(delivery),
		StartedAt: w.now(),
	}
	w.hook.OnStart(ctx, event)

	handler, ok := w.handler(msg)
	if !ok {
		event.Err = fmt.Errorf("gojob: no handler for job %q", jobIDOf(msg))
		w.hook.OnFailure(ctx, event)
		return delivery.Nack(ctx, queue.NackOptions{Disposition: queue.NackDispositionDeadLetter, Reason: event.Err.Error()})
	}

	runErr := handler(ctx, msg)
	event.Duration = w.now().Sub(event.StartedAt)
	if runErr == nil {
		w.hook.OnSuccess(ctx, event)
		return delivery.Ack(ctx)
	}

	event.Err = runErr
	disposition := queue.NackDispositionRetry
	if errors.Is(runErr, context.Canceled) {
		disposition = queue.NackDispositionCanceled
	}
	opts := w.policy.NormalizeAttempt(queue.NackOptions{
		Disposition: disposition,
		Delay:       w.retryDelay,
		Reason:      runErr.Error(),
	}, event.Attempt)
	if opts.Disposition == queue.NackDispositionRetry {
		event.Delay = opts.Delay
		w.hook.OnRetry(ctx, event)
	} else {
		w.hook.OnFailure(ctx, event)
	}
	return delivery.Nack(ctx, opts)
}

func (w *Worker) handler(msg *job.ExecutionMessage) (Handler, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	handler, ok := w.handlers[jobIDOf(msg)]
	return handler, ok
}

// RunSchedule enqueues build(now) immediately and then on every tick until
// ctx is done. Enqueue failures are logged and the schedule continues.
func RunSchedule(
	ctx context.Context,
	enqueuer queue.Enqueuer,
	interval time.Duration,
	build func(time.Time) *job.ExecutionMessage,
	logger glog.Logger,
) error {
	if enqueuer == nil || build == nil {
		return fmt.Errorf("gojob: enqueuer and message builder are required")
	}
	if interval <= 0 {
		return fmt.Errorf("gojob: schedule interval must be positive")
	}
	if logger == nil {
		logger = glog.Nop()
	}
	enqueue := func(at time.Time) {
		msg := build(at)
		receipt, err := enqueuer.Enqueue(ctx, msg)
		if err != nil {
			if ctx.Err() == nil {
				logger.Warn("scheduled job enqueue failed", "job_id", jobIDOf(msg), "error", err)
			}
			return
		}
		logger.Debug("scheduled job enqueued", "job_id", jobIDOf(msg), "dispatch_id", receipt.DispatchID)
	}

	enqueue(time.Now())
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case at := <-ticker.C:
			enqueue(at)
		}
	}
}

// LoggingHook reports worker lifecycle events to a logger and metrics recorder.
type LoggingHook struct {
	logger  glog.Logger
	metrics core.MetricsRecorder
}

func NewLoggingHook(logger glog.Logger, metrics core.MetricsRecorder) *LoggingHook {
	if logger == nil {
		logger = glog.Nop()
	}
	if metrics == nil {
		metrics = core.NopMetricsRecorder{}
	}
	return &LoggingHook{logger: logger, metrics: metrics}
}

func (h *LoggingHook) OnStart(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Debug("job started", "job_id", jobIDOf(event.Message), "attempt", event.Attempt)
}

func (h *LoggingHook) OnSuccess(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Info("job succeeded", "job_id", jobIDOf(event.Message), "duration_ms", event.Duration.Milliseconds())
	h.count(ctx, event, "success")
}

func (h *LoggingHook) OnFailure(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Error("job failed", "job_id", jobIDOf(event.Message), "attempt", event.Attempt, "error", event.Err)
	h.count(ctx, event, "failure")
}

func (h *LoggingHook) OnRetry(ctx context.Context, event worker.Event) {
	h.logger.WithContext(ctx).Warn("job retry scheduled", "job_id", jobIDOf(event.Message), "attempt", event.Attempt, "delay", event.Delay, "error", event.Err)
	h.count(ctx, event, "retry")
}

func (h *LoggingHook) count(ctx context.Context, event worker.Event, outcome string) {
	h.metrics.IncCounter(ctx, "approvals.jobs.total", 1, map[string]string{
		"job_id":  jobIDOf(event.Message),
		"outcome": outcome,
	})
}

func deliveryAttempt(delivery queue.Delivery) int {
	if counted, ok := delivery.(interface{ Attempt() int }); ok && counted.Attempt() > 0 {
		return counted.Attempt()
	}
	return 1
}

func jobIDOf(msg *job.ExecutionMessage) string {
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.JobID)
}

var _ worker.Hook = (*LoggingHook)(nil)
