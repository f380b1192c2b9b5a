// Package jito talks to the Jito Block Engine: bundle submission, tip
// accounts, and bundle status tracking.
//
// For more information, see: https://github.com/jito-labs/jito-go-rpc
package jito

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gagliardetto/solana-go"
	jitorpc "github.com/jito-labs/jito-go-rpc"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// Default Jito Block Engine endpoints
const (
	MainnetBlockEngine = "https://mainnet.block-engine.jito.wtf/api/v1"
	TestnetBlockEngine = "https://testnet.block-engine.jito.wtf/api/v1"
)

// MainnetBlockEngines contains all available Jito mainnet endpoints.
var MainnetBlockEngines = []string{
	"https://mainnet.block-engine.jito.wtf/api/v1",
	"https://amsterdam.mainnet.block-engine.jito.wtf/api/v1",
	"https://frankfurt.mainnet.block-engine.jito.wtf/api/v1",
	"https://ny.mainnet.block-engine.jito.wtf/api/v1",
	"https://tokyo.mainnet.block-engine.jito.wtf/api/v1",
}

// MainnetTipAccounts are the published mainnet tip accounts. They seed the
// tip cache so a launch can proceed while the first refresh is in flight.
var MainnetTipAccounts = []solana.PublicKey{
	solana.MustPublicKeyFromBase58("96gYZGLnJYVFmbjzopPSU6QiEV5fGqZNyN9nmNhvrZU5"),
	solana.MustPublicKeyFromBase58("HFqU5x63VTqvQss8hp11i4wVV8bD44PvwucfZ2bU7gRe"),
	solana.MustPublicKeyFromBase58("Cw8CFyM9FkoMi7K7Crf6HNQqf4uEMzpKw6QNghXLvLkY"),
	solana.MustPublicKeyFromBase58("ADaUMid9yfUytqMBgopwjb2DTLSokTSzL1zt6iGPaS49"),
	solana.MustPublicKeyFromBase58("DfXygSm4jCyNCybVYYK6DwvWqjKee8pbDmJGcLWNDXjh"),
	solana.MustPublicKeyFromBase58("ADuUkR4vqLUMWXxW9gh6D6L8pMSawimctcNZ5pGwDcEt"),
	solana.MustPublicKeyFromBase58("DttWaMuVvTiduZRnguLF7jNxTgiMBZ1hyAumKUiL2KRL"),
	solana.MustPublicKeyFromBase58("3AVi9Tg9Uo68tJfuvoKvqKNWKkC5wPdSSdeBnizKZ6jT"),
}

// maxStatusBatch is the block engine's limit on ids per status request.
const maxStatusBatch = 5

// blockEngine is one endpoint's JSON-RPC surface.
type blockEngine interface {
	TipAccounts() (json.RawMessage, error)
	SendBundle(txs []string) (json.RawMessage, error)
	BundleStatuses(ids []string) (*jitorpc.BundleStatusResponse, error)
	InflightStatuses(ids []string) (json.RawMessage, error)
}

type jsonRPCEngine struct {
	c *jitorpc.JitoJsonRpcClient
}

func (e jsonRPCEngine) TipAccounts() (json.RawMessage, error) {
	return e.c.GetTipAccounts()
}

func (e jsonRPCEngine) SendBundle(txs []string) (json.RawMessage, error) {
	return e.c.SendBundle([][]string{txs})
}

func (e jsonRPCEngine) BundleStatuses(ids []string) (*jitorpc.BundleStatusResponse, error) {
	return e.c.GetBundleStatuses(ids)
}

func (e jsonRPCEngine) InflightStatuses(ids []string) (json.RawMessage, error) {
	return e.c.GetInflightBundleStatuses(ids)
}

// Client wraps the Jito RPC client with multi-endpoint support and retry logic.
type Client struct {
	engines      []blockEngine
	endpoints    []string
	currentIndex uint32
	maxRetries   int
	retryDelay   time.Duration
	log          zerolog.Logger
}

// NewClient creates a client for one endpoint. uuid is sent as the auth header; it may be empty.
func NewClient(endpoint string, uuid string) *Client {
	if endpoint == "" {
		endpoint = MainnetBlockEngine
	}
	return NewClientWithEndpoints([]string{endpoint}, uuid).WithRetries(3, 200*time.Millisecond)
}

// NewClientWithEndpoints creates a client that rotates round-robin across endpoints,
// failing over on rate limiting.
//
// Example:
//
//	client := jito.NewClientWithEndpoints(jito.MainnetBlockEngines, authUUID)
func NewClientWithEndpoints(endpoints []string, uuid string) *Client {
	if len(endpoints) == 0 {
		endpoints = MainnetBlockEngines
	}
	engines := make([]blockEngine, len(endpoints))
	for i, ep := range endpoints {
		engines[i] = jsonRPCEngine{c: jitorpc.NewJitoJsonRpcClient(ep, uuid)}
	}
	return &Client{
		engines:    engines,
		endpoints:  endpoints,
		maxRetries: len(endpoints) + 2,
		retryDelay: 100 * time.Millisecond,
		log:        zerolog.Nop(),
	}
}

// WithRetries configures the number of retries and delay between retries.
func (c *Client) WithRetries(maxRetries int, retryDelay time.Duration) *Client {
	c.maxRetries = maxRetries
	c.retryDelay = retryDelay
	return c
}

// WithLogger attaches a logger.
func (c *Client) WithLogger(log zerolog.Logger) *Client {
	c.log = log
	return c
}

// Endpoints returns the configured block engine URLs.
func (c *Client) Endpoints() []string {
	return append([]string(nil), c.endpoints...)
}

// next returns the engine for the next endpoint in round-robin order.
func (c *Client) next() (blockEngine, string) {
	idx := int(atomic.AddUint32(&c.currentIndex, 1)) % len(c.engines)
	return c.engines[idx], c.endpoints[idx]
}

// isRateLimitError checks if the error is a rate limit error.
func isRateLimitError(err error) bool {
	if err == nil {
		return false
	}
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "congested") ||
		strings.Contains(errStr, "429")
}

// isStaleBlockhash reports whether the engine refused the bundle because a
// transaction's blockhash is unknown or expired.
func isStaleBlockhash(err error) bool {
	msg := strings.ToLower(err.Error())
	if !strings.Contains(msg, "blockhash") {
		return false
	}
	return strings.Contains(msg, "expired") ||
		strings.Contains(msg, "not found") ||
		strings.Contains(msg, "invalid") ||
		strings.Contains(msg, "too old")
}

// isAdmissionError reports whether the engine answered with a JSON-RPC error
// instead of failing at the transport layer.
func isAdmissionError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rpc error") ||
		strings.Contains(msg, "bundle")
}

// withRetry runs op against rotating endpoints, retrying only on rate limiting.
func withRetry[T any](ctx context.Context, c *Client, op string, fn func(blockEngine) (T, error)) (T, error) {
	var (
		zero    T
		lastErr error
	)
	for i := 0; i < c.maxRetries; i++ {
		if err := ctx.Err(); err != nil {
			return zero, err
		}
		engine, endpoint := c.next()
		out, err := fn(engine)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !isRateLimitError(err) {
			return zero, err
		}
		c.log.Debug().Err(err).Str("op", op).Str("endpoint", endpoint).Int("attempt", i+1).Msg("block engine rate limited")
		select {
		case <-ctx.Done():
			return zero, ctx.Err()
		case <-time.After(c.retryDelay):
		}
	}
	return zero, fmt.Errorf("%s failed after %d retries: %w", op, c.maxRetries, lastErr)
}

// GetTipAccounts returns the list of tip accounts that can receive tips.
func (c *Client) GetTipAccounts(ctx context.Context) ([]solana.PublicKey, error) {
	raw, err := withRetry(ctx, c, "get tip accounts", func(e blockEngine) (json.RawMessage, error) {
		return e.TipAccounts()
	})
	if err != nil {
		return nil, fmt.Errorf("get tip accounts: %w", err)
	}

	var accounts []string
	if err := json.Unmarshal(raw, &accounts); err != nil {
		return nil, fmt.Errorf("unmarshal tip accounts: %w", err)
	}
	result := make([]solana.PublicKey, 0, len(accounts))
	for _, acc := range accounts {
		pk, err := solana.PublicKeyFromBase58(acc)
		if err != nil {
			c.log.Warn().Str("account", acc).Msg("skipping malformed tip account")
			continue
		}
		result = append(result, pk)
	}
	return result, nil
}

// Ping checks that an endpoint answers.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.GetTipAccounts(ctx)
	return err
}

// SendBundle submits fully signed transactions as one atomic bundle and
// returns the bundle id.
//
// A refusal because of an expired blockhash wraps types.ErrStaleBlockhash;
// any other refusal is a *types.SubmissionError.
func (c *Client) SendBundle(ctx context.Context, txs []*solana.Transaction) (string, error) {
	if len(txs) == 0 {
		return "", fmt.Errorf("bundle requires at least one transaction")
	}

	txStrings := make([]string, 0, len(txs))
	for _, tx := range txs {
		txBytes, err := tx.MarshalBinary()
		if err != nil {
			return "", fmt.Errorf("marshal transaction: %w", err)
		}
		txStrings = append(txStrings, base64.StdEncoding.EncodeToString(txBytes))
	}

	raw, err := withRetry(ctx, c, "send bundle", func(e blockEngine) (json.RawMessage, error) {
		return e.SendBundle(txStrings)
	})
	if err != nil {
		return "", classifySendError(err)
	}

	var bundleID string
	if err := json.Unmarshal(raw, &bundleID); err != nil {
		return "", &types.SubmissionError{Step: "send bundle", Err: fmt.Errorf("unmarshal bundle response: %w", err)}
	}
	if bundleID == "" {
		return "", &types.SubmissionError{Step: "send bundle", Err: fmt.Errorf("empty bundle id: %w", types.ErrSubmissionRejected)}
	}
	c.log.Debug().Str("bundle_id", bundleID).Int("txs", len(txs)).Msg("bundle submitted")
	return bundleID, nil
}

func classifySendError(err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return &types.SubmissionError{Step: "send bundle", Err: err}
	case isStaleBlockhash(err):
		return fmt.Errorf("%v: %w", err, types.ErrStaleBlockhash)
	case isAdmissionError(err):
		return &types.SubmissionError{Step: "send bundle", Err: fmt.Errorf("%v: %w", err, types.ErrSubmissionRejected)}
	default:
		return &types.SubmissionError{Step: "send bundle", Err: err}
	}
}

// GetBundleStatuses returns landed-bundle statuses as reported by the engine.
func (c *Client) GetBundleStatuses(ctx context.Context, bundleIDs []string) (*jitorpc.BundleStatusResponse, error) {
	statuses, err := withRetry(ctx, c, "get bundle statuses", func(e blockEngine) (*jitorpc.BundleStatusResponse, error) {
		return e.BundleStatuses(bundleIDs)
	})
	if err != nil {
		return nil, fmt.Errorf("get bundle statuses: %w", err)
	}
	return statuses, nil
}

// BundleStatus is a landed bundle as reported by getBundleStatuses. Unlike the
// inflight view it is not limited to the last five minutes.
type BundleStatus struct {
	BundleID           string
	Slot               uint64
	ConfirmationStatus string
	// Transactions are the base58 signatures of the bundle, in order.
	Transactions []string
}

// LandedBundles returns the statuses of the bundles in bundleIDs that the
// engine has seen land. Unknown ids are omitted.
func (c *Client) LandedBundles(ctx context.Context, bundleIDs []string) ([]BundleStatus, error) {
	resp, err := c.GetBundleStatuses(ctx, bundleIDs)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, nil
	}
	out := make([]BundleStatus, 0, len(resp.Value))
	for _, v := range resp.Value {
		if v.BundleID == "" {
			continue
		}
		st := BundleStatus{
			BundleID:           v.BundleID,
			ConfirmationStatus: v.ConfirmationStatus,
			Transactions:       v.Transactions,
		}
		if v.Slot > 0 {
			st.Slot = uint64(v.Slot)
		}
		out = append(out, st)
	}
	return out, nil
}

// Inflight statuses as reported by getInflightBundleStatuses.
const (
	InflightInvalid = "Invalid"
	InflightPending = "Pending"
	InflightFailed  = "Failed"
	InflightLanded  = "Landed"
)

// InflightStatus is one bundle's status from the last five minutes.
type InflightStatus struct {
	BundleID   string  `json:"bundle_id"`
	Status     string  `json:"status"`
	LandedSlot *uint64 `json:"landed_slot"`
}

type inflightResponse struct {
	Context struct {
		Slot uint64 `json:"slot"`
	} `json:"context"`
	Value []InflightStatus `json:"value"`
}

// GetInflightBundleStatuses returns parsed statuses for bundleIDs, batching
// requests at the engine's per-call limit.
func (c *Client) GetInflightBundleStatuses(ctx context.Context, bundleIDs []string) ([]InflightStatus, error) {
	out := make([]InflightStatus, 0, len(bundleIDs))
	for start := 0; start < len(bundleIDs); start += maxStatusBatch {
		end := min(start+maxStatusBatch, len(bundleIDs))
		batch := bundleIDs[start:end]

		raw, err := withRetry(ctx, c, "get inflight bundle statuses", func(e blockEngine) (json.RawMessage, error) {
			return e.InflightStatuses(batch)
		})
		if err != nil {
			return nil, fmt.Errorf("get inflight bundle statuses: %w", err)
		}
		statuses, err := parseInflight(raw)
		if err != nil {
			return nil, err
		}
		out = append(out, statuses...)
	}
	return out, nil
}

func parseInflight(raw json.RawMessage) ([]InflightStatus, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var resp inflightResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("unmarshal inflight statuses: %w", err)
	}
	return resp.Value, nil
}
