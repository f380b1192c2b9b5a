package bundle

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
)

type fakeStream struct {
	mu        sync.Mutex
	events    chan jito.BundleResult
	tracked   map[string]bool
	onTrack   func(id string)
	untracked []string
}

func newFakeStream() *fakeStream {
	return &fakeStream{events: make(chan jito.BundleResult, 16), tracked: map[string]bool{}}
}

func (f *fakeStream) Events() <-chan jito.BundleResult { return f.events }

func (f *fakeStream) Track(id string) {
	f.mu.Lock()
	f.tracked[id] = true
	hook := f.onTrack
	f.mu.Unlock()
	if hook != nil {
		hook(id)
	}
}

func (f *fakeStream) Untrack(id string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.tracked, id)
	f.untracked = append(f.untracked, id)
}

func startListener(t *testing.T, src ResultSource) *Listener {
	t.Helper()
	l := NewListener(src, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l
}

func TestAwaitAccepted(t *testing.T) {
	src := newFakeStream()
	// The result arrives as soon as the id is tracked.
	src.onTrack = func(id string) {
		src.events <- jito.BundleResult{BundleID: id, Accepted: &jito.Accepted{Slot: 99}}
	}
	l := startListener(t, src)

	v, err := l.Await(context.Background(), "b1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateAccepted, v.State)
	assert.Equal(t, uint64(99), v.Slot)
	assert.Equal(t, "b1", v.BundleID)
	assert.Equal(t, []string{"b1"}, src.untracked)
}

func TestAwaitRejectedCarriesReason(t *testing.T) {
	src := newFakeStream()
	src.onTrack = func(id string) {
		src.events <- jito.BundleResult{BundleID: id, Rejected: &jito.Rejected{Reason: "expired"}}
	}
	l := startListener(t, src)

	v, err := l.Await(context.Background(), "b1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateRejected, v.State)
	assert.Equal(t, "expired", v.Reason)
}

func TestAwaitLostIsUnknown(t *testing.T) {
	src := newFakeStream()
	src.onTrack = func(id string) {
		src.events <- jito.BundleResult{BundleID: id, Lost: true}
	}
	l := startListener(t, src)

	v, err := l.Await(context.Background(), "b1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, v.State)
}

func TestAwaitTimesOut(t *testing.T) {
	l := startListener(t, newFakeStream())

	start := time.Now()
	v, err := l.Await(context.Background(), "b1", 20*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, v.State)
	assert.NotEqual(t, StateRejected, v.State)
	assert.GreaterOrEqual(t, time.Since(start), 20*time.Millisecond)
}

func TestAwaitWithoutTimeoutStillEnds(t *testing.T) {
	l := startListener(t, newFakeStream())
	l.WithFallbackTimeout(20 * time.Millisecond)

	for _, timeout := range []time.Duration{0, -time.Second} {
		v, err := l.Await(context.Background(), "b1", timeout)
		require.NoError(t, err)
		assert.Equal(t, StateTimedOut, v.State, "timeout %s", timeout)
	}
	assert.Equal(t, DefaultAwaitTimeout, NewListener(newFakeStream(), zerolog.Nop()).fallback)
}

func TestAwaitContextCancelIsUnknown(t *testing.T) {
	l := startListener(t, newFakeStream())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(10*time.Millisecond, cancel)
	v, err := l.Await(ctx, "b1", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, v.State)
}

func TestForeignResultsAreIgnored(t *testing.T) {
	src := newFakeStream()
	src.onTrack = func(id string) {
		src.events <- jito.BundleResult{BundleID: "someone-else", Accepted: &jito.Accepted{Slot: 1}}
	}
	l := startListener(t, src)

	v, err := l.Await(context.Background(), "b1", 30*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, StateTimedOut, v.State)
}

func TestAwaitDuplicate(t *testing.T) {
	src := newFakeStream()
	l := startListener(t, src)

	started := make(chan struct{})
	src.onTrack = func(string) { close(started) }
	done := make(chan Verdict, 1)
	go func() {
		v, _ := l.Await(context.Background(), "b1", 200*time.Millisecond)
		done <- v
	}()
	<-started

	_, err := l.Await(context.Background(), "b1", time.Second)
	assert.ErrorIs(t, err, ErrAlreadyAwaiting)

	src.events <- jito.BundleResult{BundleID: "b1", Rejected: &jito.Rejected{Reason: "failed"}}
	v := <-done
	assert.Equal(t, StateRejected, v.State)
}

func TestConcurrentAwaitersGetTheirOwnVerdict(t *testing.T) {
	src := newFakeStream()
	src.onTrack = func(id string) {
		src.events <- jito.BundleResult{BundleID: id, Accepted: &jito.Accepted{Slot: uint64(len(id))}}
	}
	l := startListener(t, src)

	ids := []string{"a", "bb", "ccc", "dddd"}
	var wg sync.WaitGroup
	results := make([]Verdict, len(ids))
	for i, id := range ids {
		wg.Add(1)
		go func(i int, id string) {
			defer wg.Done()
			results[i], _ = l.Await(context.Background(), id, time.Second)
		}(i, id)
	}
	wg.Wait()

	for i, id := range ids {
		assert.Equal(t, id, results[i].BundleID)
		assert.Equal(t, StateAccepted, results[i].State)
		assert.Equal(t, uint64(len(id)), results[i].Slot)
	}
}

func TestRunSettlesWaitersWhenStreamCloses(t *testing.T) {
	src := newFakeStream()
	src.onTrack = func(string) { close(src.events) }
	l := startListener(t, src)

	v, err := l.Await(context.Background(), "b1", time.Second)
	require.NoError(t, err)
	assert.Equal(t, StateUnknown, v.State)
}

func TestStateTerminal(t *testing.T) {
	assert.False(t, StateWaiting.Terminal())
	for _, s := range []State{StateAccepted, StateRejected, StateTimedOut, StateUnknown} {
		assert.True(t, s.Terminal(), s.String())
	}
}
