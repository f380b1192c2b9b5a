package launch

import (
	"context"
	"errors"
	"fmt"

	"github.com/gagliardetto/solana-go"
	solanarpc "github.com/gagliardetto/solana-go/rpc"

	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
)

// SignatureReport is what the chain knows about one transaction.
type SignatureReport struct {
	Signature solana.Signature
	Found     bool
	Slot      uint64
	Status    solanarpc.ConfirmationStatusType
	Err       interface{}
}

// Reconciliation is the combined relay and chain view of a bundle whose
// outcome was inconclusive.
type Reconciliation struct {
	BundleID    string
	RelayStatus string
	// BundleLanded is set when getBundleStatuses reports the bundle.
	BundleLanded bool
	LandedSlot   uint64
	Signatures   []SignatureReport
}

// Landed reports whether the relay or the chain shows the bundle landed.
func (r *Reconciliation) Landed() bool {
	if r.RelayStatus == jito.InflightLanded || r.BundleLanded {
		return true
	}
	if len(r.Signatures) == 0 {
		return false
	}
	for _, s := range r.Signatures {
		if !s.Found || s.Err != nil {
			return false
		}
	}
	return true
}

// Failed reports whether the bundle can no longer land. An Invalid relay
// status only counts when the chain was asked and knows none of the
// transactions: the inflight view forgets bundles after five minutes.
func (r *Reconciliation) Failed() bool {
	if r.Landed() {
		return false
	}
	for _, s := range r.Signatures {
		if s.Found && s.Err != nil {
			return true
		}
	}
	switch r.RelayStatus {
	case jito.InflightFailed:
		return true
	case jito.InflightInvalid:
		if len(r.Signatures) == 0 {
			return false
		}
		for _, s := range r.Signatures {
			if s.Found {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// Reconcile queries the relay for bundleID and the chain for sigs. Use it
// after an AmbiguousSettlementError before deciding to relaunch. When no
// signatures are given, those of a landed bundle are used.
func (o *Orchestrator) Reconcile(ctx context.Context, bundleID string, sigs ...solana.Signature) (*Reconciliation, error) {
	if o.deps.Inflight == nil && o.deps.Bundles == nil && o.deps.Signatures == nil {
		return nil, errors.New("reconcile needs a bundle or signature status source")
	}
	rec := &Reconciliation{BundleID: bundleID}

	if o.deps.Inflight != nil && bundleID != "" {
		statuses, err := o.deps.Inflight.GetInflightBundleStatuses(ctx, []string{bundleID})
		if err != nil {
			return nil, fmt.Errorf("reconcile bundle %s: %w", bundleID, err)
		}
		for _, st := range statuses {
			if st.BundleID != bundleID {
				continue
			}
			rec.RelayStatus = st.Status
			if st.LandedSlot != nil {
				rec.LandedSlot = *st.LandedSlot
			}
		}
	}

	if o.deps.Bundles != nil && bundleID != "" {
		landed, err := o.deps.Bundles.LandedBundles(ctx, []string{bundleID})
		if err != nil {
			return nil, fmt.Errorf("reconcile bundle %s: %w", bundleID, err)
		}
		for _, st := range landed {
			if st.BundleID != bundleID {
				continue
			}
			rec.BundleLanded = true
			if st.Slot > 0 {
				rec.LandedSlot = st.Slot
			}
			if len(sigs) == 0 {
				sigs = parseSignatures(st.Transactions)
			}
		}
	}

	if o.deps.Signatures != nil && len(sigs) > 0 {
		statuses, err := o.deps.Signatures.GetSignatureStatuses(ctx, sigs...)
		if err != nil {
			return nil, types.RPCError{Op: "reconcile signatures", Err: err}
		}
		for i, sig := range sigs {
			rep := SignatureReport{Signature: sig}
			if i < len(statuses) && statuses[i] != nil {
				rep.Found = true
				rep.Slot = statuses[i].Slot
				rep.Status = statuses[i].ConfirmationStatus
				rep.Err = statuses[i].Err
			}
			rec.Signatures = append(rec.Signatures, rep)
		}
	}

	o.log.Info().
		Str("bundle_id", bundleID).
		Str("relay_status", rec.RelayStatus).
		Bool("bundle_landed", rec.BundleLanded).
		Int("signatures", len(rec.Signatures)).
		Bool("landed", rec.Landed()).
		Bool("failed", rec.Failed()).
		Msg("bundle reconciled")
	return rec, nil
}

func parseSignatures(raw []string) []solana.Signature {
	out := make([]solana.Signature, 0, len(raw))
	for _, s := range raw {
		if sig, err := solana.SignatureFromBase58(s); err == nil {
			out = append(out, sig)
		}
	}
	return out
}
