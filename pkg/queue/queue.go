// Package queue provides bounded-concurrency admission control for outbound
// requests.
//
// A Queue grants at most Concurrency slots at a time. Callers that find no
// free slot wait in FIFO order. Pausing stops new slots from being granted
// without touching tasks that are already running.
package queue

import (
	"container/list"
	"context"
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DefaultConcurrency is the default number of tasks allowed in flight.
const DefaultConcurrency = 3

// Prometheus metrics for queue state, aggregated over all queues.
var (
	queueInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webapi_queue_in_flight",
		Help: "Number of requests currently holding a queue slot",
	})

	queueWaiting = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "webapi_queue_waiting",
		Help: "Number of requests waiting for a queue slot",
	})

	queuePausesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webapi_queue_pauses_total",
		Help: "Total number of times a queue was paused",
	})
)

// Queue limits the number of concurrently running tasks.
type Queue struct {
	mu          sync.Mutex
	concurrency int
	running     int
	pauses      int
	waiting     *list.List // of chan struct{}
}

// New creates a queue admitting up to concurrency tasks at once.
func New(concurrency int) (*Queue, error) {
	if concurrency < 1 {
		return nil, fmt.Errorf("concurrency must be >= 1 (got %d)", concurrency)
	}
	return &Queue{
		concurrency: concurrency,
		waiting:     list.New(),
	}, nil
}

// Do waits for a free slot, runs task, and releases the slot.
// If ctx is done before a slot is granted, task never runs.
func (q *Queue) Do(ctx context.Context, task func(ctx context.Context) error) error {
	if err := q.acquire(ctx); err != nil {
		return err
	}
	defer q.release()

	return task(ctx)
}

// Pause stops granting slots. Running tasks are unaffected. Pauses nest:
// the queue resumes once every Pause has been matched by a Resume.
func (q *Queue) Pause() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pauses == 0 {
		queuePausesTotal.Inc()
	}
	q.pauses++
}

// Resume undoes one Pause and admits waiting tasks if no pause remains.
func (q *Queue) Resume() {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.pauses > 0 {
		q.pauses--
	}
	q.dispatchLocked()
}

// Paused reports whether the queue is currently paused.
func (q *Queue) Paused() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pauses > 0
}

// InFlight returns the number of tasks holding a slot.
func (q *Queue) InFlight() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.running
}

// Waiting returns the number of tasks waiting for a slot.
func (q *Queue) Waiting() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.waiting.Len()
}

// Concurrency returns the slot count.
func (q *Queue) Concurrency() int {
	return q.concurrency
}

func (q *Queue) acquire(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	q.mu.Lock()
	if q.pauses == 0 && q.running < q.concurrency && q.waiting.Len() == 0 {
		q.running++
		queueInFlight.Inc()
		q.mu.Unlock()
		return nil
	}

	ready := make(chan struct{})
	elem := q.waiting.PushBack(ready)
	queueWaiting.Inc()
	q.mu.Unlock()

	select {
	case <-ready:
		return nil
	case <-ctx.Done():
		q.mu.Lock()
		select {
		case <-ready:
			// Granted while cancelling; hand the slot back.
			q.mu.Unlock()
			q.release()
		default:
			q.waiting.Remove(elem)
			queueWaiting.Dec()
			q.mu.Unlock()
		}
		return ctx.Err()
	}
}

func (q *Queue) release() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.running--
	queueInFlight.Dec()
	q.dispatchLocked()
}

// dispatchLocked grants free slots to waiters in FIFO order.
func (q *Queue) dispatchLocked() {
	for q.pauses == 0 && q.running < q.concurrency && q.waiting.Len() > 0 {
		front := q.waiting.Front()
		q.waiting.Remove(front)
		queueWaiting.Dec()

		q.running++
		queueInFlight.Inc()
		close(front.Value.(chan struct{}))
	}
}
