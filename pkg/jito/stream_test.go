package jito

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStatusSource struct {
	mu       sync.Mutex
	statuses map[string]InflightStatus
	pollErr  error
	pingErrs int
	pings    int
}

func (f *fakeStatusSource) GetInflightBundleStatuses(_ context.Context, ids []string) ([]InflightStatus, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pollErr != nil {
		return nil, f.pollErr
	}
	var out []InflightStatus
	for _, id := range ids {
		if st, ok := f.statuses[id]; ok {
			out = append(out, st)
		}
	}
	return out, nil
}

func (f *fakeStatusSource) Ping(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pings++
	if f.pings <= f.pingErrs {
		return errors.New("still down")
	}
	f.pollErr = nil
	return nil
}

func (f *fakeStatusSource) set(id string, st InflightStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.statuses == nil {
		f.statuses = make(map[string]InflightStatus)
	}
	st.BundleID = id
	f.statuses[id] = st
}

func testStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: 2 * time.Millisecond,
		InvalidGrace: 50 * time.Millisecond,
		MaxFailures:  2,
		ReconnectPolicy: func() backoff.BackOff {
			return backoff.NewConstantBackOff(time.Millisecond)
		},
	}
}

func runStream(t *testing.T, s *ResultStream) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = s.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func nextEvent(t *testing.T, s *ResultStream) BundleResult {
	t.Helper()
	select {
	case ev := <-s.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return BundleResult{}
	}
}

func TestStreamLanded(t *testing.T) {
	src := &fakeStatusSource{}
	slot := uint64(321)
	src.set("b1", InflightStatus{Status: InflightPending})

	s := NewResultStream(src, testStreamConfig(), zerolog.Nop())
	s.Track("b1")
	runStream(t, s)

	time.Sleep(10 * time.Millisecond)
	src.set("b1", InflightStatus{Status: InflightLanded, LandedSlot: &slot})

	ev := nextEvent(t, s)
	assert.Equal(t, "b1", ev.BundleID)
	require.NotNil(t, ev.Accepted)
	assert.Equal(t, slot, ev.Accepted.Slot)
	assert.Nil(t, ev.Rejected)
	assert.False(t, ev.Lost)
}

func TestStreamFailed(t *testing.T) {
	src := &fakeStatusSource{}
	src.set("b1", InflightStatus{Status: InflightFailed})

	s := NewResultStream(src, testStreamConfig(), zerolog.Nop())
	s.Track("b1")
	runStream(t, s)

	ev := nextEvent(t, s)
	require.NotNil(t, ev.Rejected)
	assert.Equal(t, "failed", ev.Rejected.Reason)
}

func TestStreamInvalidAfterGrace(t *testing.T) {
	src := &fakeStatusSource{}
	src.set("b1", InflightStatus{Status: InflightInvalid})

	s := NewResultStream(src, testStreamConfig(), zerolog.Nop())
	start := time.Now()
	s.Track("b1")
	runStream(t, s)

	ev := nextEvent(t, s)
	assert.GreaterOrEqual(t, time.Since(start), 50*time.Millisecond)
	require.NotNil(t, ev.Rejected)
	assert.Equal(t, "invalid", ev.Rejected.Reason)
}

func TestStreamSingleEventPerBundle(t *testing.T) {
	src := &fakeStatusSource{}
	src.set("b1", InflightStatus{Status: InflightFailed})

	s := NewResultStream(src, testStreamConfig(), zerolog.Nop())
	s.Track("b1")
	runStream(t, s)

	nextEvent(t, s)
	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected second event %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestStreamUntrackedIsIgnored(t *testing.T) {
	src := &fakeStatusSource{}
	src.set("b1", InflightStatus{Status: InflightFailed})

	s := NewResultStream(src, testStreamConfig(), zerolog.Nop())
	s.Track("b1")
	s.Untrack("b1")
	runStream(t, s)

	select {
	case ev := <-s.Events():
		t.Fatalf("unexpected event %+v", ev)
	case <-time.After(30 * time.Millisecond):
	}
}

func TestStreamDisconnectLosesTrackedBundles(t *testing.T) {
	src := &fakeStatusSource{pollErr: errors.New("connection reset"), pingErrs: 2}

	s := NewResultStream(src, testStreamConfig(), zerolog.Nop())
	s.Track("b1")
	s.Track("b2")
	runStream(t, s)

	got := map[string]bool{}
	for i := 0; i < 2; i++ {
		ev := nextEvent(t, s)
		assert.True(t, ev.Lost)
		got[ev.BundleID] = true
	}
	assert.Equal(t, map[string]bool{"b1": true, "b2": true}, got)

	require.Eventually(t, s.Connected, time.Second, time.Millisecond)
	src.mu.Lock()
	assert.Equal(t, 3, src.pings)
	src.mu.Unlock()

	// Tracking resumes after the reconnect.
	src.set("b3", InflightStatus{Status: InflightFailed})
	s.Track("b3")
	ev := nextEvent(t, s)
	assert.Equal(t, "b3", ev.BundleID)
	require.NotNil(t, ev.Rejected)
}
