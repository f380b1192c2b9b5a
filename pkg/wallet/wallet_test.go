package wallet

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLocalFromSecret(t *testing.T) {
	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)

	fromB58, err := NewLocalFromSecret(key.String())
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromB58.PublicKey())

	raw, err := json.Marshal(toInts(key))
	require.NoError(t, err)
	fromJSON, err := NewLocalFromSecret(string(raw))
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromJSON.PublicKey())

	path := filepath.Join(t.TempDir(), "id.json")
	require.NoError(t, os.WriteFile(path, raw, 0o600))
	fromFile, err := NewLocalFromSecret(path)
	require.NoError(t, err)
	assert.Equal(t, key.PublicKey(), fromFile.PublicKey())

	_, err = NewLocalFromSecret("[1,2,3]")
	assert.Error(t, err)

	_, err = NewLocalFromSecret(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestSignMessageVerifies(t *testing.T) {
	l, err := NewRandomLocal()
	require.NoError(t, err)

	msg := []byte("bundle")
	sig, err := l.SignMessage(context.Background(), msg)
	require.NoError(t, err)
	assert.True(t, sig.Verify(l.PublicKey(), msg))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = l.SignMessage(ctx, msg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDedup(t *testing.T) {
	a, _ := NewRandomLocal()
	b, _ := NewRandomLocal()

	out := Dedup(a, nil, b, a)
	require.Len(t, out, 2)
	assert.Equal(t, a.PublicKey(), out[0].PublicKey())
	assert.Equal(t, b.PublicKey(), out[1].PublicKey())
}

func toInts(key solana.PrivateKey) []int {
	out := make([]int, len(key))
	for i, b := range key {
		out[i] = int(b)
	}
	return out
}
