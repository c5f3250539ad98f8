package notify

import (
	"context"
	"sync"

	"postventa/internal/domain"
	"postventa/internal/observability"
)

// DefaultQueueSize bounds pending alerts.
const DefaultQueueSize = 64

// Queue decouples alert delivery from the caller: a bounded channel
// consumed by a single worker goroutine. Enqueueing never blocks; when
// the queue is full the alert is dropped and counted.
type Queue struct {
	dispatcher Dispatcher
	logger     observability.Logger
	metrics    *observability.Metrics

	ch   chan Alert
	done chan struct{}

	mu      sync.Mutex
	stopped bool
}

// NewQueue creates the queue and starts its worker. size <= 0 uses the
// default. metrics may be nil.
func NewQueue(dispatcher Dispatcher, size int, logger observability.Logger, metrics *observability.Metrics) *Queue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	q := &Queue{
		dispatcher: dispatcher,
		logger:     logger.WithComponent("notify"),
		metrics:    metrics,
		ch:         make(chan Alert, size),
		done:       make(chan struct{}),
	}
	go q.worker()
	return q
}

// NotifyRecommendation enqueues an alert for the recommendation.
// Returns false when the queue is full and the alert was dropped.
func (q *Queue) NotifyRecommendation(rec domain.Recommendation) bool {
	return q.Enqueue(AlertFromRecommendation(rec))
}

// Enqueue adds an alert without blocking. Alerts arriving after Close
// are dropped like alerts arriving on a full queue.
func (q *Queue) Enqueue(alert Alert) bool {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		q.logger.Warn("notification queue closed, dropping alert",
			"recommendation_id", alert.RecommendationID)
		q.metrics.RecordNotificationDropped()
		return false
	}
	select {
	case q.ch <- alert:
		q.mu.Unlock()
		return true
	default:
		q.mu.Unlock()
		q.logger.Warn("notification queue full, dropping alert",
			"recommendation_id", alert.RecommendationID)
		q.metrics.RecordNotificationDropped()
		return false
	}
}

// Close stops accepting alerts and waits for the worker to drain what
// was already queued. Safe to call more than once.
func (q *Queue) Close() {
	q.mu.Lock()
	if q.stopped {
		q.mu.Unlock()
		return
	}
	q.stopped = true
	close(q.ch)
	q.mu.Unlock()
	<-q.done
}

func (q *Queue) worker() {
	defer close(q.done)
	for alert := range q.ch {
		err := q.dispatcher.Dispatch(context.Background(), alert)
		if err != nil {
			q.logger.Warn("alert delivery failed",
				"recommendation_id", alert.RecommendationID,
				"error", err)
		}
		q.metrics.RecordNotification(err == nil)
	}
}
