package logging

import (
	"log/slog"
	"sync"
	"time"
)

// counter tracks one batched event's count and most recent fields.
type counter struct {
	count  int64
	fields []slog.Attr
}

// Aggregator batches high-frequency events (keystroke queries, watcher
// notifications) and emits one summary line per event type per interval.
type Aggregator struct {
	logger   *slog.Logger
	interval time.Duration

	mu       sync.Mutex
	counters map[string]*counter

	done chan struct{}
	wg   sync.WaitGroup
}

// NewAggregator creates an aggregator that flushes every intervalSecs seconds.
// If logger is nil, recorded events are silently dropped.
func NewAggregator(logger *slog.Logger, intervalSecs int) *Aggregator {
	if intervalSecs <= 0 {
		intervalSecs = 30
	}
	return &Aggregator{
		logger:   logger,
		interval: time.Duration(intervalSecs) * time.Second,
		counters: make(map[string]*counter),
		done:     make(chan struct{}),
	}
}

// Start begins the background flush goroutine.
func (a *Aggregator) Start() {
	a.wg.Add(1)
	go a.flushLoop()
}

// Stop stops the background goroutine and flushes remaining counters.
func (a *Aggregator) Stop() {
	close(a.done)
	a.wg.Wait()
	a.Flush()
}

// Record increments the counter for an event type.
// fields are kept from the most recent call (last-writer-wins for context).
func (a *Aggregator) Record(component, event string, fields ...slog.Attr) {
	a.mu.Lock()
	defer a.mu.Unlock()

	key := component + "/" + event
	c, ok := a.counters[key]
	if !ok {
		c = &counter{}
		a.counters[key] = c
	}
	c.count++
	if len(fields) > 0 {
		c.fields = fields
	}
}

func (a *Aggregator) flushLoop() {
	defer a.wg.Done()
	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			a.Flush()
		case <-a.done:
			return
		}
	}
}

// Flush emits a summary line for every pending counter and resets them.
func (a *Aggregator) Flush() {
	a.mu.Lock()
	if len(a.counters) == 0 {
		a.mu.Unlock()
		return
	}
	counters := a.counters
	a.counters = make(map[string]*counter)
	a.mu.Unlock()

	if a.logger == nil {
		return
	}

	for key, c := range counters {
		attrs := []any{
			slog.String("event", key),
			slog.Int64("count", c.count),
			slog.Int("window_seconds", int(a.interval.Seconds())),
		}
		for _, f := range c.fields {
			attrs = append(attrs, f)
		}
		a.logger.Info("event_summary", attrs...)
	}
}
