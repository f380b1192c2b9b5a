package txbuilder

import (
	"context"
	"fmt"
	"time"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	confirm "github.com/gagliardetto/solana-go/rpc/sendAndConfirmTransaction"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/rs/zerolog"

	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// ConfirmationLevel represents transaction confirmation depth.
type ConfirmationLevel string

const (
	ConfirmationProcessed ConfirmationLevel = "processed"
	ConfirmationConfirmed ConfirmationLevel = "confirmed"
	ConfirmationFinalized ConfirmationLevel = "finalized"
)

// TransactionClient is the RPC surface the sender needs.
type TransactionClient interface {
	SendTransaction(ctx context.Context, tx *solana.Transaction, opts solanarpc.TransactionOpts) (solana.Signature, error)
	SimulateTransaction(ctx context.Context, tx *solana.Transaction, opts *solanarpc.SimulateTransactionOpts) (*solanarpc.SimulateTransactionResponse, error)
	GetSignatureStatuses(ctx context.Context, sigs ...solana.Signature) ([]*solanarpc.SignatureStatusesResult, error)
}

// Sender submits standalone transactions through RPC (not the relay) and
// waits for them to land. Used by airdrop and liquidity removal.
type Sender struct {
	client       TransactionClient
	raw          *solanarpc.Client
	ws           *ws.Client
	level        ConfirmationLevel
	pollInterval time.Duration
	timeout      time.Duration
	log          zerolog.Logger
}

// NewSender constructs a polling sender.
func NewSender(client TransactionClient, level ConfirmationLevel, timeout time.Duration, log zerolog.Logger) *Sender {
	if level == "" {
		level = ConfirmationConfirmed
	}
	return &Sender{
		client:       client,
		level:        level,
		pollInterval: 400 * time.Millisecond,
		timeout:      timeout,
		log:          log,
	}
}

// WithWebsocket confirms through a signature subscription instead of polling.
func (s *Sender) WithWebsocket(raw *solanarpc.Client, wsClient *ws.Client) *Sender {
	s.raw = raw
	s.ws = wsClient
	return s
}

// WithPollInterval overrides the status polling interval.
func (s *Sender) WithPollInterval(d time.Duration) *Sender {
	if d > 0 {
		s.pollInterval = d
	}
	return s
}

func (s *Sender) opts() solanarpc.TransactionOpts {
	return solanarpc.TransactionOpts{
		PreflightCommitment: toCommitment(s.level),
	}
}

// Send submits a signed transaction without waiting.
func (s *Sender) Send(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if s.client == nil {
		return solana.Signature{}, types.ErrNilRPC
	}
	sig, err := s.client.SendTransaction(ctx, tx, s.opts())
	if err != nil {
		return solana.Signature{}, fmt.Errorf("send transaction: %w", err)
	}
	return sig, nil
}

// SendAndConfirm submits a signed transaction and waits for the configured level.
func (s *Sender) SendAndConfirm(ctx context.Context, tx *solana.Transaction) (solana.Signature, error) {
	if s.ws != nil && s.raw != nil {
		timeout := s.timeout
		sig, err := confirm.SendAndConfirmTransactionWithOpts(ctx, s.raw, s.ws, tx, s.opts(), &timeout)
		if err != nil {
			return sig, fmt.Errorf("send and confirm %s: %w", sig, err)
		}
		return sig, nil
	}

	sig, err := s.Send(ctx, tx)
	if err != nil {
		return solana.Signature{}, err
	}
	waitCtx := ctx
	if s.timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}
	if err = s.WaitForConfirmation(waitCtx, sig); err != nil {
		return sig, fmt.Errorf("confirmation failed: %w, sig: %v", err, sig)
	}
	return sig, nil
}

// Simulate runs the transaction against current state and fails on a program error.
func (s *Sender) Simulate(ctx context.Context, tx *solana.Transaction) (*solanarpc.SimulateTransactionResult, error) {
	if s.client == nil {
		return nil, types.ErrNilRPC
	}
	resp, err := s.client.SimulateTransaction(ctx, tx, &solanarpc.SimulateTransactionOpts{
		SigVerify:              false,
		Commitment:             toCommitment(s.level),
		ReplaceRecentBlockhash: true,
	})
	if err != nil {
		return nil, err
	}
	if resp == nil || resp.Value == nil {
		return nil, fmt.Errorf("empty simulation response")
	}
	if resp.Value.Err != nil {
		for _, line := range resp.Value.Logs {
			s.log.Debug().Str("log", line).Msg("simulation")
		}
		return resp.Value, fmt.Errorf("simulation failed: %v: %w", resp.Value.Err, types.ErrTransactionFailed)
	}
	return resp.Value, nil
}

// WaitForConfirmation polls transaction status until confirmed or ctx is done.
func (s *Sender) WaitForConfirmation(ctx context.Context, sig solana.Signature) error {
	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if ctx.Err() == context.DeadlineExceeded {
				return types.ErrConfirmationTimeout
			}
			return ctx.Err()
		case <-ticker.C:
			statuses, err := s.client.GetSignatureStatuses(ctx, sig)
			if err != nil {
				s.log.Debug().Err(err).Str("sig", sig.String()).Msg("signature status poll failed")
				continue
			}
			if len(statuses) == 0 || statuses[0] == nil {
				continue
			}
			status := statuses[0]
			if status.Err != nil {
				return fmt.Errorf("%v: %w", status.Err, types.ErrTransactionFailed)
			}
			if reached(status.ConfirmationStatus, s.level) {
				return nil
			}
		}
	}
}

func reached(got solanarpc.ConfirmationStatusType, want ConfirmationLevel) bool {
	switch want {
	case ConfirmationProcessed:
		return true
	case ConfirmationFinalized:
		return got == solanarpc.ConfirmationStatusFinalized
	default:
		return got == solanarpc.ConfirmationStatusConfirmed || got == solanarpc.ConfirmationStatusFinalized
	}
}

func toCommitment(level ConfirmationLevel) solanarpc.CommitmentType {
	switch level {
	case ConfirmationProcessed:
		return solanarpc.CommitmentProcessed
	case ConfirmationConfirmed:
		return solanarpc.CommitmentConfirmed
	case ConfirmationFinalized:
		return solanarpc.CommitmentFinalized
	default:
		return solanarpc.CommitmentConfirmed
	}
}
