package bundle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
)

// ErrAlreadyAwaiting is returned when a bundle id already has a waiter.
var ErrAlreadyAwaiting = errors.New("bundle already awaited")

// DefaultAwaitTimeout bounds Await when the caller passes no timeout.
const DefaultAwaitTimeout = 30 * time.Second

// State is where a bundle stands from the listener's point of view.
type State int

const (
	StateWaiting State = iota
	StateAccepted
	StateRejected
	StateTimedOut
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateWaiting:
		return "waiting"
	case StateAccepted:
		return "accepted"
	case StateRejected:
		return "rejected"
	case StateTimedOut:
		return "timed_out"
	case StateUnknown:
		return "unknown"
	default:
		return "invalid"
	}
}

// Terminal reports whether the state is final.
func (s State) Terminal() bool {
	return s != StateWaiting
}

// Verdict is the settled outcome of one bundle.
type Verdict struct {
	BundleID string
	State    State
	Slot     uint64
	Reason   string
}

// ResultSource is the shared result stream.
type ResultSource interface {
	Events() <-chan jito.BundleResult
	Track(id string)
	Untrack(id string)
}

type waiter struct {
	resolved atomic.Bool
	done     chan Verdict
}

func newWaiter() *waiter {
	return &waiter{done: make(chan Verdict, 1)}
}

// resolve settles the waiter once; later calls are ignored.
func (w *waiter) resolve(v Verdict) bool {
	if !w.resolved.CompareAndSwap(false, true) {
		return false
	}
	w.done <- v
	return true
}

// Listener fans result events out to callers awaiting specific bundle ids.
// Events for ids nobody awaits are dropped.
type Listener struct {
	src      ResultSource
	log      zerolog.Logger
	fallback time.Duration

	mu      sync.Mutex
	waiters map[string]*waiter
}

// NewListener creates a listener over src. Run must be started before Await can settle.
func NewListener(src ResultSource, log zerolog.Logger) *Listener {
	return &Listener{
		src:      src,
		log:      log,
		fallback: DefaultAwaitTimeout,
		waiters:  make(map[string]*waiter),
	}
}

// WithFallbackTimeout sets the bound Await applies to a non-positive timeout.
func (l *Listener) WithFallbackTimeout(d time.Duration) *Listener {
	if d > 0 {
		l.fallback = d
	}
	return l
}

// Run dispatches events until ctx is done or the source closes. Pending
// waiters are settled as unknown on exit.
func (l *Listener) Run(ctx context.Context) error {
	events := l.src.Events()
	for {
		select {
		case <-ctx.Done():
			l.settleAll("listener stopped")
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				l.settleAll("result stream closed")
				return nil
			}
			l.dispatch(ev)
		}
	}
}

func (l *Listener) dispatch(ev jito.BundleResult) {
	l.mu.Lock()
	w := l.waiters[ev.BundleID]
	l.mu.Unlock()
	if w == nil {
		l.log.Debug().Str("bundle_id", ev.BundleID).Msg("ignoring result for bundle nobody awaits")
		return
	}
	w.resolve(verdictFor(ev))
}

func verdictFor(ev jito.BundleResult) Verdict {
	switch {
	case ev.Accepted != nil:
		return Verdict{BundleID: ev.BundleID, State: StateAccepted, Slot: ev.Accepted.Slot}
	case ev.Rejected != nil:
		return Verdict{BundleID: ev.BundleID, State: StateRejected, Reason: ev.Rejected.Reason}
	default:
		return Verdict{BundleID: ev.BundleID, State: StateUnknown, Reason: "result stream lost"}
	}
}

func (l *Listener) settleAll(reason string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, w := range l.waiters {
		w.resolve(Verdict{BundleID: id, State: StateUnknown, Reason: reason})
	}
}

// Await blocks until id settles, timeout elapses (StateTimedOut) or ctx is
// cancelled (StateUnknown). A non-positive timeout is replaced by the
// listener's fallback, so Await always ends.
// The waiter is registered before the id is tracked, so no event is missed.
func (l *Listener) Await(ctx context.Context, id string, timeout time.Duration) (Verdict, error) {
	if id == "" {
		return Verdict{}, errors.New("bundle id is required")
	}

	w := newWaiter()
	l.mu.Lock()
	if _, exists := l.waiters[id]; exists {
		l.mu.Unlock()
		return Verdict{}, ErrAlreadyAwaiting
	}
	l.waiters[id] = w
	l.mu.Unlock()

	defer func() {
		l.src.Untrack(id)
		l.mu.Lock()
		delete(l.waiters, id)
		l.mu.Unlock()
	}()

	l.src.Track(id)

	if timeout <= 0 {
		timeout = l.fallback
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case v := <-w.done:
		return v, nil
	case <-timer.C:
		w.resolve(Verdict{BundleID: id, State: StateTimedOut, Reason: "no result within " + timeout.String()})
	case <-ctx.Done():
		w.resolve(Verdict{BundleID: id, State: StateUnknown, Reason: ctx.Err().Error()})
	}
	// Whichever resolve won is the verdict.
	return <-w.done, nil
}
