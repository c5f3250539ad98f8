package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// DefaultMaxEvents bounds in-memory event retention.
const DefaultMaxEvents = 10000

// MemoryActivityLogger is an in-memory ActivityLogger, newest first.
// Thread-safe; retention is capped to prevent unbounded growth.
type MemoryActivityLogger struct {
	mu        sync.RWMutex
	events    []*Event
	maxEvents int
}

// MemoryOption configures a MemoryActivityLogger.
type MemoryOption func(*MemoryActivityLogger)

// WithMaxEvents sets the retention cap.
func WithMaxEvents(max int) MemoryOption {
	return func(m *MemoryActivityLogger) {
		if max > 0 {
			m.maxEvents = max
		}
	}
}

// NewMemoryActivityLogger creates a new in-memory activity logger.
func NewMemoryActivityLogger(opts ...MemoryOption) *MemoryActivityLogger {
	m := &MemoryActivityLogger{maxEvents: DefaultMaxEvents}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

var _ ActivityLogger = (*MemoryActivityLogger)(nil)

func (m *MemoryActivityLogger) Log(_ context.Context, event *Event) error {
	if event == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if event.ID == "" {
		event.ID = uuid.New().String()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	eventCopy := *event
	m.events = append([]*Event{&eventCopy}, m.events...)
	if len(m.events) > m.maxEvents {
		m.events = m.events[:m.maxEvents]
	}
	return nil
}

func (m *MemoryActivityLogger) List(_ context.Context, opts ListOptions) ([]*Event, int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var filtered []*Event
	for _, e := range m.events {
		if !matchesFilters(e, opts) {
			continue
		}
		filtered = append(filtered, e)
	}
	total := len(filtered)

	offset := opts.Offset
	if offset > total {
		offset = total
	}
	end := total
	if opts.Limit > 0 && offset+opts.Limit < end {
		end = offset + opts.Limit
	}

	out := make([]*Event, end-offset)
	copy(out, filtered[offset:end])
	return out, total, nil
}

func matchesFilters(e *Event, opts ListOptions) bool {
	if opts.Actor != "" && e.Actor != opts.Actor {
		return false
	}
	if opts.Action != "" && e.Action != opts.Action {
		return false
	}
	if opts.ResourceType != "" && e.ResourceType != opts.ResourceType {
		return false
	}
	if opts.Since != nil && e.Timestamp.Before(*opts.Since) {
		return false
	}
	return true
}
