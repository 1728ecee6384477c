package store

import (
	"context"
	"sync"
	"time"

	"github.com/sean-rowe/weather-switch/internal/core/location"
)

// DefaultDebounce is the quiet period after the last keystroke before a search starts.
const DefaultDebounce = 450 * time.Millisecond

// Debouncer turns a burst of query edits into at most one search.
type Debouncer struct {
	store *Store
	delay time.Duration
	ctx   context.Context

	mu      sync.Mutex
	timer   *time.Timer
	stopped bool
}

// NewDebouncer creates a debouncer for s. Searches it starts run with ctx.
func NewDebouncer(ctx context.Context, s *Store, delay time.Duration) *Debouncer {
	if delay <= 0 {
		delay = DefaultDebounce
	}

	return &Debouncer{store: s, delay: delay, ctx: ctx}
}

// Type sets the query immediately and restarts the quiet period. When it
// elapses, the query is searched if it is non-blank and valid.
func (d *Debouncer) Type(text string) {
	d.store.SetQuery(text)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.stopped {
		return
	}

	if d.timer != nil {
		d.timer.Stop()
	}

	d.timer = time.AfterFunc(d.delay, d.fire)
}

// Stop cancels the pending search, if any. Later calls to Type only set the query.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.stopped = true

	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

func (d *Debouncer) fire() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.timer = nil
	d.mu.Unlock()

	query := location.Normalize(d.store.State().Query)

	if query == "" || location.Validate(query) != nil {
		return
	}

	d.store.SearchFor(d.ctx, query)
}
