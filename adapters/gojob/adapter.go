package gojob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	job "github.com/goliatone/go-job"
	"github.com/goliatone/go-job/queue"
	"github.com/google/uuid"
)

const (
	JobIDActivityPrune = "approvals.activity.prune"

	defaultQueueCapacity = 64
)

// RetryPolicy defines queue retry bounds to avoid unbounded retry loops.
type RetryPolicy struct {
	MaxAttempts     int
	MaxDelay        time.Duration
	DeadLetterOnMax bool
}

// NormalizeAttempt enforces bounded retry behavior for a nack operation.
func (p RetryPolicy) NormalizeAttempt(opts queue.NackOptions, attempt int) queue.NackOptions {
	out := opts
	out.Reason = strings.TrimSpace(out.Reason)
	if out.Delay < 0 {
		out.Delay = 0
	}
	if p.MaxDelay > 0 && out.Delay > p.MaxDelay {
		out.Delay = p.MaxDelay
	}
	if out.Disposition == "" {
		out.Disposition = queue.NackDispositionRetry
	}
	if out.Disposition == queue.NackDispositionRetry && p.MaxAttempts > 0 && attempt >= p.MaxAttempts {
		out.Disposition = queue.NackDispositionFailed
		if p.DeadLetterOnMax {
			out.Disposition = queue.NackDispositionDeadLetter
		}
	}
	if out.Disposition != queue.NackDispositionRetry {
		out.Delay = 0
	}
	return out
}

type queuedMessage struct {
	msg     *job.ExecutionMessage
	attempt int
	receipt queue.EnqueueReceipt
}

// MemoryQueue is an in-process queue for maintenance jobs. Messages sharing
// an idempotency key are collapsed while one is still queued or in flight.
type MemoryQueue struct {
	mu          sync.Mutex
	items       chan queuedMessage
	inFlight    map[string]queue.EnqueueReceipt
	deadLetters []*job.ExecutionMessage
}

func NewMemoryQueue(capacity int) *MemoryQueue {
	if capacity <= 0 {
		capacity = defaultQueueCapacity
	}
	return &MemoryQueue{
		items:    make(chan queuedMessage, capacity),
		inFlight: map[string]queue.EnqueueReceipt{},
	}
}

// Enqueue accepts msg. A message whose idempotency key is already queued or
// in flight is collapsed into the existing dispatch and returns its receipt.
func (q *MemoryQueue) Enqueue(ctx context.Context, msg *job.ExecutionMessage) (queue.EnqueueReceipt, error) {
	if q == nil {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: queue is not configured")
	}
	if msg == nil || strings.TrimSpace(msg.JobID) == "" {
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: execution message with job id is required")
	}
	if err := ctx.Err(); err != nil {
		return queue.EnqueueReceipt{}, err
	}

	key := strings.TrimSpace(msg.IdempotencyKey)
	q.mu.Lock()
	defer q.mu.Unlock()
	if key != "" {
		if receipt, exists := q.inFlight[key]; exists {
			return receipt, nil
		}
	}
	receipt := queue.EnqueueReceipt{DispatchID: uuid.NewString(), EnqueuedAt: time.Now().UTC()}
	select {
	case q.items <- queuedMessage{msg: cloneMessage(msg), attempt: 1, receipt: receipt}:
	default:
		return queue.EnqueueReceipt{}, fmt.Errorf("gojob: queue is full")
	}
	if key != "" {
		q.inFlight[key] = receipt
	}
	return receipt, nil
}

func (q *MemoryQueue) Dequeue(ctx context.Context) (queue.Delivery, error) {
	if q == nil {
		return nil, fmt.Errorf("gojob: queue is not configured")
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case item := <-q.items:
		return &memoryDelivery{queue: q, item: item}, nil
	}
}

// Len reports the number of queued messages.
func (q *MemoryQueue) Len() int {
	if q == nil {
		return 0
	}
	return len(q.items)
}

func (q *MemoryQueue) DeadLetters() []*job.ExecutionMessage {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*job.ExecutionMessage, 0, len(q.deadLetters))
	for _, msg := range q.deadLetters {
		out = append(out, cloneMessage(msg))
	}
	return out
}

func (q *MemoryQueue) release(msg *job.ExecutionMessage) {
	key := strings.TrimSpace(msg.IdempotencyKey)
	if key == "" {
		return
	}
	q.mu.Lock()
	delete(q.inFlight, key)
	q.mu.Unlock()
}

func (q *MemoryQueue) deadLetter(msg *job.ExecutionMessage) {
	q.mu.Lock()
	q.deadLetters = append(q.deadLetters, cloneMessage(msg))
	q.mu.Unlock()
	q.release(msg)
}

func (q *MemoryQueue) requeue(item queuedMessage, delay time.Duration) {
	push := func() {
		select {
		case q.items <- item:
		default:
			q.deadLetter(item.msg)
		}
	}
	if delay <= 0 {
		push()
		return
	}
	time.AfterFunc(delay, push)
}

type memoryDelivery struct {
	queue *MemoryQueue
	item  queuedMessage

	once sync.Once
}

func (d *memoryDelivery) Message() *job.ExecutionMessage {
	return d.item.msg
}

// Attempt is 1 for the first delivery of a message.
func (d *memoryDelivery) Attempt() int {
	return d.item.attempt
}

func (d *memoryDelivery) Ack(context.Context) error {
	d.once.Do(func() {
		d.queue.release(d.item.msg)
	})
	return nil
}

func (d *memoryDelivery) Nack(_ context.Context, opts queue.NackOptions) error {
	var err error
	d.once.Do(func() {
		switch opts.Disposition {
		case queue.NackDispositionRetry:
			next := d.item
			next.attempt++
			d.queue.requeue(next, opts.Delay)
		case queue.NackDispositionDeadLetter:
			d.queue.deadLetter(d.item.msg)
		case queue.NackDispositionFailed, queue.NackDispositionCanceled:
			d.queue.release(d.item.msg)
		default:
			d.queue.release(d.item.msg)
			err = fmt.Errorf("gojob: unknown nack disposition %q", opts.Disposition)
		}
	})
	return err
}

func cloneMessage(msg *job.ExecutionMessage) *job.ExecutionMessage {
	if msg == nil {
		return nil
	}
	out := *msg
	out.Parameters = copyAnyMap(msg.Parameters)
	return &out
}

func copyAnyMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return map[string]any{}
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

var (
	_ queue.Enqueuer = (*MemoryQueue)(nil)
	_ queue.Dequeuer = (*MemoryQueue)(nil)
	_ queue.Delivery = (*memoryDelivery)(nil)
)
