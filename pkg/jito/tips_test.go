package jito

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/cenkalti/backoff/v4"
	"github.com/gagliardetto/solana-go"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

type fakeTipSource struct {
	mu       sync.Mutex
	accounts []solana.PublicKey
	err      error
	calls    int
}

func (f *fakeTipSource) GetTipAccounts(context.Context) ([]solana.PublicKey, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.accounts, f.err
}

func (f *fakeTipSource) set(accounts []solana.PublicKey, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accounts, f.err = accounts, err
}

func noRetry() backoff.BackOff { return &backoff.StopBackOff{} }

func newTestCache(src TipAccountSource, seed ...solana.PublicKey) *TipAccountCache {
	c := NewTipAccountCache(src, 0, zerolog.Nop(), seed...)
	c.policy = noRetry
	return c
}

func keys(n int) []solana.PublicKey {
	out := make([]solana.PublicKey, n)
	for i := range out {
		out[i] = solana.NewWallet().PublicKey()
	}
	return out
}

func TestTipCacheServesSeedWithoutFetching(t *testing.T) {
	src := &fakeTipSource{}
	seed := keys(2)
	c := newTestCache(src, seed...)

	list, err := c.TipAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, seed, list)
	assert.Zero(t, src.calls)
	assert.True(t, c.FetchedAt().IsZero())
}

func TestTipCacheKeepsLastKnownGood(t *testing.T) {
	first := keys(3)
	src := &fakeTipSource{accounts: first}
	c := newTestCache(src)
	require.NoError(t, c.Refresh(context.Background()))

	src.set(nil, errors.New("503"))
	assert.Error(t, c.Refresh(context.Background()))

	src.set(nil, nil)
	assert.Error(t, c.Refresh(context.Background()), "empty list is a failed refresh")

	list, err := c.TipAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, list)
}

func TestTipCacheFetchesWhenEmpty(t *testing.T) {
	want := keys(1)
	src := &fakeTipSource{accounts: want}
	c := newTestCache(src)

	list, err := c.TipAccounts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, want, list)
	assert.Equal(t, 1, src.calls)
}

func TestTipCacheNoAccounts(t *testing.T) {
	c := newTestCache(&fakeTipSource{err: errors.New("down")})

	_, err := c.Next(context.Background())
	assert.ErrorIs(t, err, types.ErrNoTipAccountAvailable)
}

func TestTipCacheRoundRobin(t *testing.T) {
	seed := keys(3)
	c := newTestCache(&fakeTipSource{}, seed...)

	for i := 0; i < 7; i++ {
		got, err := c.Next(context.Background())
		require.NoError(t, err)
		assert.Equal(t, seed[i%3], got)
	}
}

func TestTipCacheRefreshRetries(t *testing.T) {
	src := &fakeTipSource{err: errors.New("timeout")}
	c := NewTipAccountCache(src, 0, zerolog.Nop())
	c.policy = func() backoff.BackOff {
		return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2)
	}

	assert.Error(t, c.Refresh(context.Background()))
	assert.Equal(t, 3, src.calls)
}
