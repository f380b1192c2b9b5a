package jito

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// TipAccountSource fetches the current tip accounts.
type TipAccountSource interface {
	GetTipAccounts(ctx context.Context) ([]solana.PublicKey, error)
}

// TipAccountCache keeps the last successfully fetched tip account list and
// hands accounts out round-robin. A failed refresh never clears the list.
type TipAccountCache struct {
	src      TipAccountSource
	interval time.Duration
	policy   func() backoff.BackOff
	log      zerolog.Logger

	mu        sync.RWMutex
	accounts  []solana.PublicKey
	fetchedAt time.Time

	cursor uint64
}

// NewTipAccountCache creates a cache. seed is served until the first refresh succeeds.
func NewTipAccountCache(src TipAccountSource, interval time.Duration, log zerolog.Logger, seed ...solana.PublicKey) *TipAccountCache {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	return &TipAccountCache{
		src:      src,
		interval: interval,
		policy:   defaultRefreshPolicy,
		log:      log,
		accounts: append([]solana.PublicKey(nil), seed...),
	}
}

// Run refreshes the list until ctx is done.
func (c *TipAccountCache) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial tip account refresh failed")
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil {
				c.log.Warn().Err(err).Int("cached", c.size()).Msg("tip account refresh failed, keeping last known list")
			}
		}
	}
}

// Refresh fetches the list with a short exponential backoff. An empty answer
// is treated as a failure so the previous list survives.
func (c *TipAccountCache) Refresh(ctx context.Context) error {
	if c.src == nil {
		return types.ErrNilRPC
	}
	policy := backoff.WithContext(c.policy(), ctx)

	accounts, err := backoff.RetryWithData(func() ([]solana.PublicKey, error) {
		accounts, err := c.src.GetTipAccounts(ctx)
		if err != nil {
			return nil, err
		}
		if len(accounts) == 0 {
			return nil, fmt.Errorf("block engine returned no tip accounts")
		}
		return accounts, nil
	}, policy)
	if err != nil {
		return err
	}

	c.mu.Lock()
	c.accounts = accounts
	c.fetchedAt = time.Now()
	c.mu.Unlock()

	c.log.Debug().Int("count", len(accounts)).Msg("tip accounts refreshed")
	return nil
}

func defaultRefreshPolicy() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewExponentialBackOff(
		backoff.WithInitialInterval(200*time.Millisecond),
		backoff.WithMaxInterval(2*time.Second),
	), 3)
}

// TipAccounts returns the cached list, fetching synchronously when nothing is cached.
func (c *TipAccountCache) TipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	if list := c.snapshot(); len(list) > 0 {
		return list, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrNoTipAccountAvailable, err)
	}
	list := c.snapshot()
	if len(list) == 0 {
		return nil, types.ErrNoTipAccountAvailable
	}
	return list, nil
}

// Next returns the next tip account in rotation.
func (c *TipAccountCache) Next(ctx context.Context) (solana.PublicKey, error) {
	list, err := c.TipAccounts(ctx)
	if err != nil {
		return solana.PublicKey{}, err
	}
	i := atomic.AddUint64(&c.cursor, 1) - 1
	return list[i%uint64(len(list))], nil
}

// FetchedAt is the time of the last successful refresh; zero when only the seed is cached.
func (c *TipAccountCache) FetchedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.fetchedAt
}

func (c *TipAccountCache) snapshot() []solana.PublicKey {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]solana.PublicKey(nil), c.accounts...)
}

func (c *TipAccountCache) size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.accounts)
}
