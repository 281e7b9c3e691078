// Package search coalesces bursts of query edits into single backend fetches.
package search

import (
	"context"
	"sync"
	"time"

	"qkart-storefront/pkg/logger"
)

// FetchFunc performs the network call for a query.
type FetchFunc[T any] func(ctx context.Context, text string) (T, error)

// Result is what a Dispatcher publishes for an applied fetch.
// On fetch failure Value is the zero value and Err is set.
type Result[T any] struct {
	Seq   uint64
	Query string
	Value T
	Err   error
}

// Stats describe a dispatcher for observability and tests. Issued and Discarded
// are counts; LastApplied is the sequence number of the last published result.
type Stats struct {
	Issued      uint64
	LastApplied uint64
	Discarded   uint64
}

type Options struct {
	QuietPeriod  time.Duration
	FetchTimeout time.Duration // zero means no timeout beyond the dispatcher's context
	Clock        Clock
}

// Dispatcher debounces query changes: a burst of OnQueryChange calls closer together
// than the quiet period results in exactly one fetch, carrying the last text.
//
// Every fetch gets a sequence number. Results older than the last applied one are
// discarded, so a slow superseded response never overwrites a newer one.
type Dispatcher[T any] struct {
	quiet        time.Duration
	fetchTimeout time.Duration
	clock        Clock
	fetch        FetchFunc[T]
	publish      func(Result[T])

	ctx context.Context

	mu             sync.Mutex
	pending        Timer
	generation     uint64 // bumped on every schedule
	firedGen       uint64
	lastText       string
	inflightCancel context.CancelFunc
	closed         bool
	stats          Stats
}

// NewDispatcher creates a Dispatcher. publish is invoked with the dispatcher lock
// held, in sequence order, and must not call back into the dispatcher.
func NewDispatcher[T any](ctx context.Context, opts Options, fetch FetchFunc[T], publish func(Result[T])) *Dispatcher[T] {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	d := &Dispatcher[T]{
		quiet:        opts.QuietPeriod,
		fetchTimeout: opts.FetchTimeout,
		clock:        clock,
		fetch:        fetch,
		publish:      publish,
		ctx:          ctx,
	}
	return d
}

// OnQueryChange records a new query text. Any pending fetch is cancelled and a new
// one is scheduled after the quiet period. Empty text is dispatched like any other.
func (d *Dispatcher[T]) OnQueryChange(text string) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}

	d.generation++
	gen := d.generation
	d.lastText = text
	d.pending = d.clock.AfterFunc(d.quiet, func() { d.fire(gen) })
}

// Flush fires the pending query now instead of waiting for the quiet period.
// It reports whether a query was pending.
func (d *Dispatcher[T]) Flush() bool {
	d.mu.Lock()
	if d.closed || d.pending == nil {
		d.mu.Unlock()
		return false
	}
	d.pending.Stop()
	d.pending = nil
	gen := d.generation
	d.mu.Unlock()

	d.fire(gen)
	return true
}

// Pending reports whether a query is waiting for its quiet period to end.
func (d *Dispatcher[T]) Pending() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.pending != nil
}

// Close stops the pending timer and aborts any in-flight fetch. Nothing is
// published after Close returns.
func (d *Dispatcher[T]) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.closed = true
	if d.pending != nil {
		d.pending.Stop()
		d.pending = nil
	}
	if d.inflightCancel != nil {
		d.inflightCancel()
	}
}

func (d *Dispatcher[T]) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.stats
}

func (d *Dispatcher[T]) fire(gen uint64) {
	d.mu.Lock()
	// A timer whose Stop raced with its own firing, or a generation already fired by Flush.
	if d.closed || gen != d.generation || gen == d.firedGen {
		d.mu.Unlock()
		return
	}
	d.firedGen = gen
	d.pending = nil
	text := d.lastText

	d.stats.Issued++
	seq := d.stats.Issued

	if d.inflightCancel != nil {
		d.inflightCancel()
	}
	var ctx context.Context
	var cancel context.CancelFunc
	if d.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(d.ctx, d.fetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(d.ctx)
	}
	d.inflightCancel = cancel
	d.mu.Unlock()

	logger.Debug().Uint64("seq", seq).Str("query", text).Msg("search dispatch")
	value, err := d.fetch(ctx, text)
	cancel()

	if err != nil {
		var zero T
		value = zero
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	// Stale: older than what is shown, or failed because a newer fetch superseded it.
	if d.closed || seq <= d.stats.LastApplied || (err != nil && seq < d.stats.Issued) {
		d.stats.Discarded++
		logger.Debug().Uint64("seq", seq).Uint64("applied", d.stats.LastApplied).Msg("search result discarded")
		return
	}
	if err != nil {
		logger.Warn().Err(err).Str("query", text).Msg("search fetch failed, showing empty result")
	}

	d.stats.LastApplied = seq
	d.publish(Result[T]{Seq: seq, Query: text, Value: value, Err: err})
}
