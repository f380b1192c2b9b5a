package jito

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
)

// Accepted means the bundle landed in Slot.
type Accepted struct {
	Slot uint64
}

// Rejected means the block engine dropped the bundle.
type Rejected struct {
	Reason string
}

// BundleResult is one event from the result stream. Exactly one of Accepted,
// Rejected or Lost is set.
type BundleResult struct {
	BundleID string
	Accepted *Accepted
	Rejected *Rejected
	// Lost means the stream disconnected while the bundle was tracked; its
	// outcome is unknown.
	Lost bool
}

// StatusSource is what the stream polls.
type StatusSource interface {
	GetInflightBundleStatuses(ctx context.Context, bundleIDs []string) ([]InflightStatus, error)
	Ping(ctx context.Context) error
}

// StreamConfig tunes the result stream.
type StreamConfig struct {
	// PollInterval between status requests.
	PollInterval time.Duration
	// InvalidGrace is how long an unknown bundle id is tolerated before it is
	// reported rejected. Fresh submissions briefly read as Invalid.
	InvalidGrace time.Duration
	// MaxFailures consecutive poll errors count as a disconnect.
	MaxFailures int
	// ReconnectPolicy builds the backoff used while reconnecting.
	ReconnectPolicy func() backoff.BackOff
	// Buffer is the event channel capacity.
	Buffer int
}

// DefaultStreamConfig returns production defaults.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		PollInterval: time.Second,
		InvalidGrace: 15 * time.Second,
		MaxFailures:  3,
		ReconnectPolicy: func() backoff.BackOff {
			return backoff.NewExponentialBackOff(
				backoff.WithInitialInterval(500*time.Millisecond),
				backoff.WithMaxInterval(10*time.Second),
				backoff.WithMaxElapsedTime(0),
			)
		},
		Buffer: 256,
	}
}

// ResultStream is the process-wide feed of bundle outcomes. One worker polls
// the block engine for every tracked id and publishes a single terminal event
// per id on Events.
//
// getInflightBundleStatuses reports only a status, so Rejected.Reason is the
// status name ("failed" or "invalid"), never the engine's own reason such as
// an auction loss or expiry.
type ResultStream struct {
	src StatusSource
	cfg StreamConfig
	log zerolog.Logger

	mu      sync.Mutex
	tracked map[string]time.Time

	events    chan BundleResult
	connected atomic.Bool
}

// NewResultStream creates a stream. Zero config fields take defaults.
func NewResultStream(src StatusSource, cfg StreamConfig, log zerolog.Logger) *ResultStream {
	def := DefaultStreamConfig()
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.InvalidGrace <= 0 {
		cfg.InvalidGrace = def.InvalidGrace
	}
	if cfg.MaxFailures <= 0 {
		cfg.MaxFailures = def.MaxFailures
	}
	if cfg.ReconnectPolicy == nil {
		cfg.ReconnectPolicy = def.ReconnectPolicy
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = def.Buffer
	}
	s := &ResultStream{
		src:     src,
		cfg:     cfg,
		log:     log,
		tracked: make(map[string]time.Time),
		events:  make(chan BundleResult, cfg.Buffer),
	}
	s.connected.Store(true)
	return s
}

// Events delivers results for tracked bundles.
func (s *ResultStream) Events() <-chan BundleResult {
	return s.events
}

// Track starts watching id. Tracking an id twice is a no-op.
func (s *ResultStream) Track(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[id]; !ok {
		s.tracked[id] = time.Now()
	}
}

// Untrack stops watching id.
func (s *ResultStream) Untrack(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.tracked, id)
}

// Connected reports whether the last poll cycle reached the block engine.
func (s *ResultStream) Connected() bool {
	return s.connected.Load()
}

// Run polls until ctx is done.
func (s *ResultStream) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	failures := 0
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		err := s.poll(ctx)
		if err == nil {
			failures = 0
			continue
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		failures++
		s.log.Warn().Err(err).Int("failures", failures).Msg("bundle status poll failed")
		if failures < s.cfg.MaxFailures {
			continue
		}

		s.disconnect(ctx)
		if err := s.reconnect(ctx); err != nil {
			return err
		}
		failures = 0
	}
}

func (s *ResultStream) poll(ctx context.Context) error {
	ids := s.trackedIDs()
	if len(ids) == 0 {
		return nil
	}
	statuses, err := s.src.GetInflightBundleStatuses(ctx, ids)
	if err != nil {
		return err
	}
	for _, st := range statuses {
		s.apply(ctx, st)
	}
	return nil
}

func (s *ResultStream) apply(ctx context.Context, st InflightStatus) {
	switch st.Status {
	case InflightLanded:
		var slot uint64
		if st.LandedSlot != nil {
			slot = *st.LandedSlot
		}
		if s.resolve(st.BundleID) {
			s.emit(ctx, BundleResult{BundleID: st.BundleID, Accepted: &Accepted{Slot: slot}})
		}
	case InflightFailed:
		if s.resolve(st.BundleID) {
			s.emit(ctx, BundleResult{BundleID: st.BundleID, Rejected: &Rejected{Reason: "failed"}})
		}
	case InflightInvalid:
		if s.trackedFor(st.BundleID) < s.cfg.InvalidGrace {
			return
		}
		if s.resolve(st.BundleID) {
			s.emit(ctx, BundleResult{BundleID: st.BundleID, Rejected: &Rejected{Reason: "invalid"}})
		}
	}
}

// disconnect reports every tracked id as lost and forgets them.
func (s *ResultStream) disconnect(ctx context.Context) {
	s.connected.Store(false)

	s.mu.Lock()
	ids := make([]string, 0, len(s.tracked))
	for id := range s.tracked {
		ids = append(ids, id)
	}
	s.tracked = make(map[string]time.Time)
	s.mu.Unlock()

	s.log.Error().Int("lost", len(ids)).Msg("bundle result stream disconnected")
	for _, id := range ids {
		s.emit(ctx, BundleResult{BundleID: id, Lost: true})
	}
}

func (s *ResultStream) reconnect(ctx context.Context) error {
	policy := backoff.WithContext(s.cfg.ReconnectPolicy(), ctx)
	err := backoff.RetryNotify(func() error {
		return s.src.Ping(ctx)
	}, policy, func(err error, wait time.Duration) {
		s.log.Warn().Err(err).Dur("retry_in", wait).Msg("bundle result stream reconnect failed")
	})
	if err != nil {
		return err
	}
	s.connected.Store(true)
	s.log.Info().Msg("bundle result stream reconnected")
	return nil
}

func (s *ResultStream) emit(ctx context.Context, ev BundleResult) {
	select {
	case s.events <- ev:
	case <-ctx.Done():
	}
}

// resolve removes id and reports whether it was still tracked.
func (s *ResultStream) resolve(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tracked[id]; !ok {
		return false
	}
	delete(s.tracked, id)
	return true
}

func (s *ResultStream) trackedFor(id string) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	since, ok := s.tracked[id]
	if !ok {
		return 0
	}
	return time.Since(since)
}

func (s *ResultStream) trackedIDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.tracked))
	for id := range s.tracked {
		ids = append(ids, id)
	}
	return ids
}
