package search

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.fired || t.stopped {
		return false
	}
	t.stopped = true
	return true
}

// fakeClock fires due callbacks on new goroutines when advanced, like time.AfterFunc.
type fakeClock struct {
	mu     sync.Mutex
	start  time.Time
	now    time.Time
	timers []*fakeTimer
}

func newFakeClock() *fakeClock {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return &fakeClock{start: now, now: now}
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	var due []func()
	for _, t := range c.timers {
		if t.fired || t.stopped || t.at.After(c.now) {
			continue
		}
		t.fired = true
		due = append(due, t.f)
	}
	c.mu.Unlock()

	for _, f := range due {
		go f()
	}
}

func (c *fakeClock) Elapsed() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(c.start)
}

type call struct {
	text string
	at   time.Duration
}

type recorder struct {
	mu        sync.Mutex
	calls     []call
	published []Result[[]string]
	fetched   chan string
	applied   chan Result[[]string]
}

func newRecorder() *recorder {
	return &recorder{
		fetched: make(chan string, 16),
		applied: make(chan Result[[]string], 16),
	}
}

func (r *recorder) publish(res Result[[]string]) {
	r.mu.Lock()
	r.published = append(r.published, res)
	r.mu.Unlock()
	r.applied <- res
}

func (r *recorder) Published() []Result[[]string] {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Result[[]string](nil), r.published...)
}

func (r *recorder) Calls() []call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]call(nil), r.calls...)
}

func waitFor[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v := <-ch:
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting")
	}
	var zero T
	return zero
}

const quiet = 500 * time.Millisecond

func TestDispatcher_CoalescesBurstIntoOneFetch(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()

	fetch := func(ctx context.Context, text string) ([]string, error) {
		rec.mu.Lock()
		rec.calls = append(rec.calls, call{text: text, at: clock.Elapsed()})
		rec.mu.Unlock()
		rec.fetched <- text
		return []string{text + "-result"}, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)
	defer d.Close()

	d.OnQueryChange("a")
	clock.Advance(50 * time.Millisecond)
	d.OnQueryChange("ab")
	clock.Advance(50 * time.Millisecond)
	d.OnQueryChange("abc")

	clock.Advance(quiet - time.Millisecond)
	require.Empty(t, rec.Calls())
	require.True(t, d.Pending())

	clock.Advance(time.Millisecond)
	require.Equal(t, "abc", waitFor(t, rec.fetched))

	res := waitFor(t, rec.applied)
	require.Equal(t, uint64(1), res.Seq)
	require.Equal(t, []string{"abc-result"}, res.Value)

	calls := rec.Calls()
	require.Len(t, calls, 1)
	require.Equal(t, 600*time.Millisecond, calls[0].at)
	require.False(t, d.Pending())
}

func TestDispatcher_DiscardsStaleResponse(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	abStarted := make(chan struct{})
	releaseAB := make(chan struct{})

	fetch := func(ctx context.Context, text string) ([]string, error) {
		if text == "ab" {
			close(abStarted)
			<-releaseAB
			// Ignores cancellation, like a backend response already on the wire.
			return []string{"ab-result"}, nil
		}
		return []string{"abc-result"}, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)
	defer d.Close()

	d.OnQueryChange("ab")
	clock.Advance(quiet)
	waitFor(t, abStarted)

	clock.Advance(10 * time.Millisecond)
	d.OnQueryChange("abc")
	clock.Advance(quiet)

	res := waitFor(t, rec.applied)
	require.Equal(t, "abc", res.Query)
	require.Equal(t, uint64(2), res.Seq)

	close(releaseAB)
	require.Eventually(t, func() bool { return d.Stats().Discarded == 1 }, 2*time.Second, 5*time.Millisecond)

	published := rec.Published()
	require.Len(t, published, 1)
	require.Equal(t, []string{"abc-result"}, published[0].Value)
	require.Equal(t, Stats{Issued: 2, LastApplied: 2, Discarded: 1}, d.Stats())
}

func TestDispatcher_CancelsSupersededFetch(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	firstStarted := make(chan struct{})
	firstCtxErr := make(chan error, 1)

	fetch := func(ctx context.Context, text string) ([]string, error) {
		if text == "first" {
			close(firstStarted)
			<-ctx.Done()
			firstCtxErr <- ctx.Err()
			return nil, ctx.Err()
		}
		return []string{text}, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)
	defer d.Close()

	d.OnQueryChange("first")
	clock.Advance(quiet)
	waitFor(t, firstStarted)

	d.OnQueryChange("second")
	clock.Advance(quiet)

	require.ErrorIs(t, waitFor(t, firstCtxErr), context.Canceled)
	res := waitFor(t, rec.applied)
	require.Equal(t, "second", res.Query)
	require.NoError(t, res.Err)

	require.Eventually(t, func() bool { return d.Stats().Discarded == 1 }, 2*time.Second, 5*time.Millisecond)
	require.Len(t, rec.Published(), 1)
}

func TestDispatcher_FailSoftPublishesEmpty(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()
	boom := errors.New("connection refused")

	fetch := func(ctx context.Context, text string) ([]string, error) {
		return []string{"partial"}, boom
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)
	defer d.Close()

	d.OnQueryChange("phone")
	clock.Advance(quiet)

	res := waitFor(t, rec.applied)
	require.Empty(t, res.Value)
	require.ErrorIs(t, res.Err, boom)
	require.Equal(t, "phone", res.Query)
}

func TestDispatcher_EmptyTextIsDispatched(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()

	fetch := func(ctx context.Context, text string) ([]string, error) {
		rec.fetched <- text
		return []string{"everything"}, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)
	defer d.Close()

	d.OnQueryChange("x")
	d.OnQueryChange("")
	clock.Advance(quiet)

	require.Equal(t, "", waitFor(t, rec.fetched))
	res := waitFor(t, rec.applied)
	require.Equal(t, []string{"everything"}, res.Value)
}

func TestDispatcher_Flush(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()

	fetch := func(ctx context.Context, text string) ([]string, error) {
		return []string{text}, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)
	defer d.Close()

	require.False(t, d.Flush())

	d.OnQueryChange("now")
	require.True(t, d.Flush())
	require.Len(t, rec.Published(), 1)
	require.Equal(t, "now", rec.Published()[0].Query)

	// The stopped timer must not fire a second fetch.
	clock.Advance(quiet)
	require.Never(t, func() bool { return d.Stats().Issued > 1 }, 50*time.Millisecond, 5*time.Millisecond)
}

func TestDispatcher_CloseDropsPending(t *testing.T) {
	clock := newFakeClock()
	rec := newRecorder()

	fetch := func(ctx context.Context, text string) ([]string, error) {
		rec.fetched <- text
		return nil, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: quiet, Clock: clock}, fetch, rec.publish)

	d.OnQueryChange("bye")
	d.Close()
	d.Close()
	clock.Advance(quiet)
	d.OnQueryChange("ignored")
	clock.Advance(quiet)

	require.Never(t, func() bool { return len(rec.fetched) > 0 }, 50*time.Millisecond, 5*time.Millisecond)
	require.Equal(t, Stats{}, d.Stats())
}

func TestDispatcher_RealClock(t *testing.T) {
	rec := newRecorder()
	fetch := func(ctx context.Context, text string) ([]string, error) {
		return []string{text}, nil
	}
	d := NewDispatcher(context.Background(), Options{QuietPeriod: 10 * time.Millisecond, FetchTimeout: time.Second}, fetch, rec.publish)
	defer d.Close()

	d.OnQueryChange("q")
	d.OnQueryChange("qu")

	res := waitFor(t, rec.applied)
	require.Equal(t, "qu", res.Query)
}
