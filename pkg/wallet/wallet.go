package wallet

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Signer performs detached signatures for transaction messages.
type Signer interface {
	PublicKey() solana.PublicKey
	SignMessage(ctx context.Context, message []byte) (solana.Signature, error)
}

// Local wraps a local private key.
type Local struct {
	key solana.PrivateKey
}

// NewLocalFromKeygen loads a solana-keygen JSON file.
func NewLocalFromKeygen(path string) (Local, error) {
	key, err := solana.PrivateKeyFromSolanaKeygenFile(path)
	if err != nil {
		return Local{}, fmt.Errorf("load keypair: %w", err)
	}
	return Local{key: key}, nil
}

// NewLocalFromBase58 constructs a local signer from base58-encoded key.
func NewLocalFromBase58(privateKey string) (Local, error) {
	key, err := solana.PrivateKeyFromBase58(privateKey)
	if err != nil {
		return Local{}, fmt.Errorf("decode base58 key: %w", err)
	}
	return Local{key: key}, nil
}

// NewLocalFromSecret accepts a base58 secret, a solana-keygen style JSON byte
// array, or the path of a solana-keygen file ending in .json.
func NewLocalFromSecret(secret string) (Local, error) {
	secret = strings.TrimSpace(secret)
	if strings.HasSuffix(secret, ".json") {
		return NewLocalFromKeygen(secret)
	}
	if strings.HasPrefix(secret, "[") {
		var ints []int
		if err := json.Unmarshal([]byte(secret), &ints); err != nil {
			return Local{}, fmt.Errorf("decode json key: %w", err)
		}
		if len(ints) != 64 {
			return Local{}, fmt.Errorf("decode json key: expected 64 bytes, got %d", len(ints))
		}
		raw := make([]byte, len(ints))
		for i, v := range ints {
			if v < 0 || v > 255 {
				return Local{}, fmt.Errorf("decode json key: byte %d out of range", i)
			}
			raw[i] = byte(v)
		}
		return Local{key: solana.PrivateKey(raw)}, nil
	}
	return NewLocalFromBase58(secret)
}

// NewRandomLocal generates a throwaway keypair.
func NewRandomLocal() (Local, error) {
	key, err := solana.NewRandomPrivateKey()
	if err != nil {
		return Local{}, fmt.Errorf("generate key: %w", err)
	}
	return Local{key: key}, nil
}

// PublicKey returns the associated public key.
func (l Local) PublicKey() solana.PublicKey {
	return l.key.PublicKey()
}

// SignMessage signs the provided message bytes.
func (l Local) SignMessage(ctx context.Context, message []byte) (solana.Signature, error) {
	select {
	case <-ctx.Done():
		return solana.Signature{}, ctx.Err()
	default:
		sig, err := l.key.Sign(message)
		if err != nil {
			return solana.Signature{}, fmt.Errorf("sign message: %w", err)
		}
		return sig, nil
	}
}

// Dedup drops nil signers and repeated public keys, keeping first occurrence order.
func Dedup(signers ...Signer) []Signer {
	seen := make(map[solana.PublicKey]struct{}, len(signers))
	out := make([]Signer, 0, len(signers))
	for _, s := range signers {
		if s == nil {
			continue
		}
		pk := s.PublicKey()
		if _, ok := seen[pk]; ok {
			continue
		}
		seen[pk] = struct{}{}
		out = append(out, s)
	}
	return out
}
