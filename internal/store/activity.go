package store

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/vectorwave/traceview/internal/trace"
)

const (
	// DefaultRecentErrorsCapacity is the number of recent error spans tracked.
	DefaultRecentErrorsCapacity = 100

	// DefaultRecentTracesCapacity is the number of trace summaries tracked.
	DefaultRecentTracesCapacity = 50
)

// Activity provides fast access to live ingest state for frequent
// polling and WebSocket streaming. Counters use atomics for lock-free
// reads.
type Activity struct {
	spansReceived atomic.Uint64

	// Incremented on every span receipt; clients compare generations
	// to detect change without diffing payloads.
	generation atomic.Uint64

	recentErrors *RingBuffer[trace.Span]

	tracesMu   sync.RWMutex
	traces     map[string]TraceSummary // trace id -> latest summary
	traceOrder []string                // trace ids, oldest first, for eviction

	subscriberMu     sync.Mutex
	subscribers      map[uint64]chan struct{}
	nextSubscriberID uint64

	startTime time.Time
}

// NewActivity creates an empty activity feed.
func NewActivity() *Activity {
	return &Activity{
		recentErrors: NewRingBuffer[trace.Span](DefaultRecentErrorsCapacity),
		traces:       make(map[string]TraceSummary),
		subscribers:  make(map[uint64]chan struct{}),
		startTime:    time.Now(),
	}
}

// Subscribe returns a notification channel and an unsubscribe function.
// The channel gets a non-blocking signal whenever a span arrives; it is
// buffered with capacity 1 so rapid updates coalesce.
func (a *Activity) Subscribe() (<-chan struct{}, func()) {
	a.subscriberMu.Lock()
	defer a.subscriberMu.Unlock()

	id := a.nextSubscriberID
	a.nextSubscriberID++

	ch := make(chan struct{}, 1)
	a.subscribers[id] = ch

	unsubscribe := func() {
		a.subscriberMu.Lock()
		defer a.subscriberMu.Unlock()
		delete(a.subscribers, id)
	}
	return ch, unsubscribe
}

func (a *Activity) notifySubscribers() {
	a.subscriberMu.Lock()
	defer a.subscriberMu.Unlock()

	for _, ch := range a.subscribers {
		select {
		case ch <- struct{}{}:
		default:
			// Pending notification already queued; coalesce.
		}
	}
}

// RecordSpan records one ingested span and the updated summary of its
// trace. Called by TraceStore on every ingest.
func (a *Activity) RecordSpan(s trace.Span, summary TraceSummary) {
	a.spansReceived.Add(1)
	a.generation.Add(1)

	if s.Status == trace.StatusError {
		a.recentErrors.Add(s)
	}

	a.updateTraceEntry(summary)
	a.notifySubscribers()
}

func (a *Activity) updateTraceEntry(summary TraceSummary) {
	a.tracesMu.Lock()
	defer a.tracesMu.Unlock()

	if _, exists := a.traces[summary.TraceID]; !exists {
		a.traceOrder = append(a.traceOrder, summary.TraceID)
	}
	a.traces[summary.TraceID] = summary

	for len(a.traceOrder) > DefaultRecentTracesCapacity {
		oldest := a.traceOrder[0]
		a.traceOrder = a.traceOrder[1:]
		delete(a.traces, oldest)
	}
}

// SpansReceived returns the total number of spans received.
func (a *Activity) SpansReceived() uint64 {
	return a.spansReceived.Load()
}

// Generation returns the change-detection counter.
func (a *Activity) Generation() uint64 {
	return a.generation.Load()
}

// UptimeSeconds returns seconds since the feed was created.
func (a *Activity) UptimeSeconds() float64 {
	return time.Since(a.startTime).Seconds()
}

// RecentErrors returns the n most recent error spans.
func (a *Activity) RecentErrors(n int) []trace.Span {
	return a.recentErrors.GetRecent(n)
}

// RecentTraces returns summaries for the n most recently first-seen
// traces, newest first.
func (a *Activity) RecentTraces(n int) []TraceSummary {
	a.tracesMu.RLock()
	defer a.tracesMu.RUnlock()

	count := len(a.traceOrder)
	if n > count {
		n = count
	}
	if n == 0 {
		return nil
	}

	result := make([]TraceSummary, 0, n)
	for i := count - 1; i >= count-n; i-- {
		result = append(result, a.traces[a.traceOrder[i]])
	}
	return result
}

// Clear resets all activity state.
func (a *Activity) Clear() {
	a.spansReceived.Store(0)
	a.generation.Store(0)
	a.recentErrors.Clear()

	a.tracesMu.Lock()
	a.traces = make(map[string]TraceSummary)
	a.traceOrder = nil
	a.tracesMu.Unlock()

	a.startTime = time.Now()
}
