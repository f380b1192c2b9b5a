package launch

import (
	"bytes"
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/token"
	solanarpc "github.com/gagliardetto/solana-go/rpc"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ninja0404/raydium-launch-sdk/pkg/bundle"
	"github.com/ninja0404/raydium-launch-sdk/pkg/constants"
	"github.com/ninja0404/raydium-launch-sdk/pkg/jito"
	"github.com/ninja0404/raydium-launch-sdk/pkg/market"
	"github.com/ninja0404/raydium-launch-sdk/pkg/raydium"
	"github.com/ninja0404/raydium-launch-sdk/pkg/types"
	"github.com/ninja0404/raydium-launch-sdk/pkg/wallet"
)

type fakeChain struct {
	mu              sync.Mutex
	accounts        map[solana.PublicKey]*solanarpc.Account
	blockhashCalls  int
	accountsCalls   int
	blockhashSerial byte
}

func (f *fakeChain) GetMultipleAccounts(_ context.Context, keys ...solana.PublicKey) ([]*solanarpc.Account, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.accountsCalls++
	out := make([]*solanarpc.Account, len(keys))
	for i, k := range keys {
		out[i] = f.accounts[k]
	}
	return out, nil
}

func (f *fakeChain) GetLatestBlockhash(context.Context) (*solanarpc.GetLatestBlockhashResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.blockhashCalls++
	f.blockhashSerial++
	return &solanarpc.GetLatestBlockhashResult{
		Value: &solanarpc.LatestBlockhashResult{Blockhash: solana.Hash{f.blockhashSerial}, LastValidBlockHeight: 100},
	}, nil
}

func (f *fakeChain) put(key, owner solana.PublicKey, lamports uint64, data []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := &solanarpc.Account{Owner: owner, Lamports: lamports}
	if data != nil {
		acc.Data = solanarpc.DataBytesOrJSONFromBytes(data)
	}
	f.accounts[key] = acc
}

func (f *fakeChain) calls() (blockhash int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.blockhashCalls
}

type fakeRelay struct {
	mu  sync.Mutex
	txs []*solana.Transaction
	id  string
	err error
}

func (f *fakeRelay) SendBundle(_ context.Context, txs []*solana.Transaction) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txs = txs
	if f.err != nil {
		return "", f.err
	}
	return f.id, nil
}

func (f *fakeRelay) sent() []*solana.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.txs
}

// fakeStream feeds the real Listener. reply, when set, is emitted on Track.
type fakeStream struct {
	events chan jito.BundleResult
	reply  func(id string) *jito.BundleResult
}

func (f *fakeStream) Events() <-chan jito.BundleResult { return f.events }

func (f *fakeStream) Track(id string) {
	if f.reply == nil {
		return
	}
	if ev := f.reply(id); ev != nil {
		f.events <- *ev
	}
}

func (f *fakeStream) Untrack(string) {}

type staticTips struct{ account solana.PublicKey }

func (s staticTips) Next(context.Context) (solana.PublicKey, error) { return s.account, nil }

type testEnv struct {
	chain    *fakeChain
	relay    *fakeRelay
	stream   *fakeStream
	funding  wallet.Local
	buyer    wallet.Local
	tip      solana.PublicKey
	marketID solana.PublicKey
	baseMint solana.PublicKey
	info     *market.Info
	cfg      Config
}

func encode(t *testing.T, v interface{}) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, bin.NewBinEncoder(&buf).Encode(v))
	return buf.Bytes()
}

func newSigner(t *testing.T) wallet.Local {
	t.Helper()
	s, err := wallet.NewRandomLocal()
	require.NoError(t, err)
	return s
}

// newEnv seeds a chain with an OpenBook market for a fresh 6-decimal mint against WSOL.
func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		chain:    &fakeChain{accounts: map[solana.PublicKey]*solanarpc.Account{}},
		relay:    &fakeRelay{id: "bundle-1"},
		stream:   &fakeStream{events: make(chan jito.BundleResult, 8)},
		funding:  newSigner(t),
		buyer:    newSigner(t),
		tip:      solana.NewWallet().PublicKey(),
		marketID: solana.NewWallet().PublicKey(),
		baseMint: solana.NewWallet().PublicKey(),
	}

	st := market.State{
		Padding:      [5]byte{'s', 'e', 'r', 'u', 'm'},
		AccountFlags: 0b11,
		OwnAddress:   env.marketID,
		BaseMint:     env.baseMint,
		QuoteMint:    constants.WSOLMint,
		BaseVault:    solana.NewWallet().PublicKey(),
		QuoteVault:   solana.NewWallet().PublicKey(),
		RequestQueue: solana.NewWallet().PublicKey(),
		EventQueue:   solana.NewWallet().PublicKey(),
		Bids:         solana.NewWallet().PublicKey(),
		Asks:         solana.NewWallet().PublicKey(),
		BaseLotSize:  1_000_000,
		QuoteLotSize: 100,
		Tail:         [7]byte{'p', 'a', 'd', 'd', 'i', 'n', 'g'},
	}
	var signer solana.PublicKey
	for nonce := uint64(0); nonce < 256; nonce++ {
		pk, err := market.VaultSigner(env.marketID, constants.OpenBookProgramID, nonce)
		if err == nil {
			st.VaultSignerNonce, signer = nonce, pk
			break
		}
	}
	require.False(t, signer.IsZero(), "no vault signer nonce")

	env.chain.put(env.marketID, constants.OpenBookProgramID, 1, encode(t, &st))
	env.chain.put(env.baseMint, constants.TokenProgramID, 1, encode(t, &token.Mint{Decimals: 6, IsInitialized: true, Supply: 1e15}))
	env.chain.put(constants.WSOLMint, constants.TokenProgramID, 1, encode(t, &token.Mint{Decimals: 9, IsInitialized: true}))

	env.info = &market.Info{
		ID: env.marketID, ProgramID: constants.OpenBookProgramID, State: st, VaultSigner: signer,
		BaseDecimals: 6, QuoteDecimals: 9,
		BaseTokenProgram: constants.TokenProgramID, QuoteTokenProgram: constants.TokenProgramID,
	}

	env.cfg = DefaultConfig()
	env.cfg.Bundle.TipLamports = 1_000_000
	env.cfg.Bundle.FundingReserveLamports = 0
	env.cfg.Bundle.BuyerReserveLamports = 0
	env.cfg.Bundle.ResultTimeout = 50 * time.Millisecond
	env.cfg.Bundle.BlockhashRetryDelay = time.Millisecond
	return env
}

func (e *testEnv) fund(funding, buyer uint64) {
	e.chain.put(e.funding.PublicKey(), solana.SystemProgramID, funding, nil)
	e.chain.put(e.buyer.PublicKey(), solana.SystemProgramID, buyer, nil)
}

func (e *testEnv) orchestrator(t *testing.T, wallets Wallets) *Orchestrator {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	listener := bundle.NewListener(e.stream, zerolog.Nop())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = listener.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	o, err := New(Deps{
		Accounts:    e.chain,
		Blockhashes: e.chain,
		Relay:       e.relay,
		Listener:    listener,
		Tips:        staticTips{account: e.tip},
	}, wallets, e.cfg, zerolog.Nop())
	require.NoError(t, err)
	return o
}

func (e *testEnv) request() Request {
	return Request{
		MarketID:    e.marketID,
		BaseAmount:  decimal.NewFromInt(1_000_000),
		QuoteAmount: decimal.NewFromInt(10),
		BuyAmount:   decimal.NewFromInt(1),
	}
}

const (
	poolLamports = 10_000_000_000
	buyLamports  = 1_000_000_000
	tipLamports  = 1_000_000
)

func hasKey(tx *solana.Transaction, key solana.PublicKey) bool {
	for _, k := range tx.Message.AccountKeys {
		if k.Equals(key) {
			return true
		}
	}
	return false
}

func TestCreateAndBuyInsufficientFundingFailsBeforeBuild(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports-1, buyLamports)
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	_, err := o.CreateAndBuy(context.Background(), env.request())
	require.Error(t, err)
	assert.ErrorIs(t, err, types.ErrInsufficientFundingBalance)
	assert.Equal(t, types.KindValidation, types.Kind(err))
	assert.Zero(t, env.chain.calls(), "no blockhash fetched")
	assert.Nil(t, env.relay.sent(), "nothing submitted")
}

func TestCreateAndBuyInsufficientBuyer(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports-1)
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	_, err := o.CreateAndBuy(context.Background(), env.request())
	assert.ErrorIs(t, err, types.ErrInsufficientBuyerBalance)
	assert.Nil(t, env.relay.sent())
}

func TestCreateAndBuyAccepted(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.stream.reply = func(id string) *jito.BundleResult {
		return &jito.BundleResult{BundleID: id, Accepted: &jito.Accepted{Slot: 42}}
	}
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	res, err := o.CreateAndBuy(context.Background(), env.request())
	require.NoError(t, err)

	keys, err := raydium.DerivePoolKeys(constants.MainnetPrograms, env.info)
	require.NoError(t, err)
	assert.Equal(t, keys.ID, res.PoolID)
	assert.Equal(t, keys.LPMint, res.LPMint)
	assert.Equal(t, "bundle-1", res.BundleID)
	assert.Equal(t, uint64(42), res.Slot)
	assert.NotEmpty(t, res.OpID)

	sent := env.relay.sent()
	require.Len(t, sent, 3)
	create, buy, tip := sent[0], sent[1], sent[2]

	assert.Equal(t, env.funding.PublicKey(), create.Message.AccountKeys[0])
	assert.True(t, hasKey(create, keys.ID))
	assert.True(t, hasKey(create, constants.RaydiumCreateFeeDestination))
	assert.NoError(t, create.VerifySignatures())
	assert.Equal(t, create.Signatures[0], res.CreatePoolSignature)

	assert.Equal(t, env.buyer.PublicKey(), buy.Message.AccountKeys[0])
	assert.True(t, hasKey(buy, keys.MarketBids))
	assert.NoError(t, buy.VerifySignatures())
	assert.Equal(t, buy.Signatures[0], res.BuySignature)

	assert.Equal(t, env.funding.PublicKey(), tip.Message.AccountKeys[0])
	assert.True(t, hasKey(tip, env.tip))
	assert.Equal(t, buy.Message.RecentBlockhash, tip.Message.RecentBlockhash)
	assert.Equal(t, tip.Signatures[0], res.TipSignature)

	assert.Equal(t, uint64(buyLamports), res.Quote.AmountIn.Raw)
	assert.Positive(t, res.Quote.MinOut.Raw)
	assert.LessOrEqual(t, res.Quote.MinOut.Raw, res.Quote.ExpectedOut.Raw)
	assert.Equal(t, env.baseMint, res.Quote.ExpectedOut.Mint)
}

type emptySimulator struct{ calls int }

func (f *emptySimulator) Simulate(context.Context, *solana.Transaction) (*solanarpc.SimulateTransactionResult, error) {
	f.calls++
	return nil, nil
}

func TestCreateAndBuyToleratesEmptySimulation(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.cfg.Bundle.SimulateCreatePool = true
	env.stream.reply = func(id string) *jito.BundleResult {
		return &jito.BundleResult{BundleID: id, Accepted: &jito.Accepted{Slot: 42}}
	}
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})
	sim := &emptySimulator{}
	o.deps.Simulator = sim

	res, err := o.CreateAndBuy(context.Background(), env.request())
	require.NoError(t, err)
	assert.Equal(t, uint64(42), res.Slot)
	assert.Equal(t, 1, sim.calls)
}

func TestCreateAndBuySameWalletSumsRequirements(t *testing.T) {
	env := newEnv(t)
	need := uint64(poolLamports + buyLamports + tipLamports)
	env.stream.reply = func(id string) *jito.BundleResult {
		return &jito.BundleResult{BundleID: id, Accepted: &jito.Accepted{Slot: 1}}
	}
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.funding})

	env.chain.put(env.funding.PublicKey(), solana.SystemProgramID, need-1, nil)
	_, err := o.CreateAndBuy(context.Background(), env.request())
	assert.ErrorIs(t, err, types.ErrInsufficientFundingBalance)

	env.chain.put(env.funding.PublicKey(), solana.SystemProgramID, need, nil)
	_, err = o.CreateAndBuy(context.Background(), env.request())
	assert.NoError(t, err)
}

func TestCreateAndBuyRejectedCarriesReasonAndPool(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.stream.reply = func(id string) *jito.BundleResult {
		return &jito.BundleResult{BundleID: id, Rejected: &jito.Rejected{Reason: "expired"}}
	}
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	_, err := o.CreateAndBuy(context.Background(), env.request())
	require.Error(t, err)

	var rejected *types.RejectedError
	require.ErrorAs(t, err, &rejected)
	assert.Equal(t, "expired", rejected.Reason)
	assert.Equal(t, "bundle-1", rejected.BundleID)

	keys, kerr := raydium.DerivePoolKeys(constants.MainnetPrograms, env.info)
	require.NoError(t, kerr)
	assert.Equal(t, keys.ID.String(), rejected.PoolID)
	assert.Len(t, rejected.Signatures, len(env.relay.sent()))
	assert.ErrorIs(t, err, types.ErrBundleRejected)
	assert.NotErrorIs(t, err, types.ErrSettlementAmbiguous)
}

func TestCreateAndBuyNoResponseIsAmbiguous(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	start := time.Now()
	_, err := o.CreateAndBuy(context.Background(), env.request())
	require.Error(t, err)
	assert.GreaterOrEqual(t, time.Since(start), env.cfg.Bundle.ResultTimeout)

	var ambiguous *types.AmbiguousSettlementError
	require.ErrorAs(t, err, &ambiguous)
	assert.True(t, ambiguous.Inconclusive())
	assert.Equal(t, "bundle-1", ambiguous.BundleID)
	sent := env.relay.sent()
	require.Len(t, ambiguous.Signatures, len(sent))
	for i, tx := range sent {
		assert.Equal(t, tx.Signatures[0], ambiguous.Signatures[i])
	}
	assert.ErrorIs(t, err, types.ErrSettlementAmbiguous)
	assert.NotErrorIs(t, err, types.ErrBundleRejected)
	assert.Equal(t, types.KindAmbiguous, types.Kind(err))
	assert.False(t, types.IsRetryableError(err))
}

// timingOutAwaiter settles every bundle as timed out and records the bound it was given.
type timingOutAwaiter struct {
	mu      sync.Mutex
	timeout time.Duration
}

func (a *timingOutAwaiter) Await(_ context.Context, id string, timeout time.Duration) (bundle.Verdict, error) {
	a.mu.Lock()
	a.timeout = timeout
	a.mu.Unlock()
	return bundle.Verdict{BundleID: id, State: bundle.StateTimedOut}, nil
}

func TestCreateAndBuyZeroResultTimeoutIsBounded(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.cfg.Bundle.ResultTimeout = 0
	awaiter := &timingOutAwaiter{}

	o, err := New(Deps{
		Accounts:    env.chain,
		Blockhashes: env.chain,
		Relay:       env.relay,
		Listener:    awaiter,
		Tips:        staticTips{account: env.tip},
	}, Wallets{Funding: env.funding, Buyer: env.buyer}, env.cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = o.CreateAndBuy(context.Background(), env.request())
	var ambiguous *types.AmbiguousSettlementError
	require.ErrorAs(t, err, &ambiguous)
	assert.Equal(t, "bundle-1", ambiguous.BundleID)

	awaiter.mu.Lock()
	defer awaiter.mu.Unlock()
	assert.Equal(t, DefaultConfig().Bundle.ResultTimeout, awaiter.timeout)
}

func TestCreateAndBuyLostStreamIsAmbiguous(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.stream.reply = func(id string) *jito.BundleResult {
		return &jito.BundleResult{BundleID: id, Lost: true}
	}
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	_, err := o.CreateAndBuy(context.Background(), env.request())
	assert.ErrorIs(t, err, types.ErrSettlementAmbiguous)
}

func TestCreateAndBuyStaleBlockhashIsConstruction(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.relay.err = fmt.Errorf("blockhash not found: %w", types.ErrStaleBlockhash)
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	_, err := o.CreateAndBuy(context.Background(), env.request())
	var construction *types.ConstructionError
	require.ErrorAs(t, err, &construction)
	assert.Equal(t, "submit bundle", construction.Step)
	assert.ErrorIs(t, err, types.ErrStaleBlockhash)
}

func TestCreateAndBuyRelayRejection(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	env.relay.err = errors.New("connection reset")
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	_, err := o.CreateAndBuy(context.Background(), env.request())
	assert.Equal(t, types.KindSubmission, types.Kind(err))
}

func TestCreateAndBuyMarketNotFound(t *testing.T) {
	env := newEnv(t)
	env.fund(poolLamports+tipLamports, buyLamports)
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	req := env.request()
	req.MarketID = solana.NewWallet().PublicKey()
	_, err := o.CreateAndBuy(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrMarketNotFound)
	assert.Equal(t, types.KindValidation, types.Kind(err))
	assert.Zero(t, env.chain.calls())
}

func TestCreateAndBuyRejectsBadRequest(t *testing.T) {
	env := newEnv(t)
	o := env.orchestrator(t, Wallets{Funding: env.funding, Buyer: env.buyer})

	req := env.request()
	req.BuyAmount = decimal.Zero
	_, err := o.CreateAndBuy(context.Background(), req)
	assert.ErrorIs(t, err, types.ErrZeroAmount)
}

func TestNewRequiresDeps(t *testing.T) {
	env := newEnv(t)
	_, err := New(Deps{}, Wallets{Funding: env.funding, Buyer: env.buyer}, env.cfg, zerolog.Nop())
	assert.ErrorIs(t, err, types.ErrNilRPC)

	_, err = New(Deps{Accounts: env.chain, Blockhashes: env.chain, Relay: env.relay, Listener: bundle.NewListener(env.stream, zerolog.Nop()), Tips: staticTips{}},
		Wallets{Funding: env.funding}, env.cfg, zerolog.Nop())
	assert.ErrorIs(t, err, types.ErrNilSigner)
}

type fakeInflight struct{ statuses []jito.InflightStatus }

func (f fakeInflight) GetInflightBundleStatuses(context.Context, []string) ([]jito.InflightStatus, error) {
	return f.statuses, nil
}

type fakeSignatures struct{ statuses []*solanarpc.SignatureStatusesResult }

func (f fakeSignatures) GetSignatureStatuses(context.Context, ...solana.Signature) ([]*solanarpc.SignatureStatusesResult, error) {
	return f.statuses, nil
}

func TestReconcile(t *testing.T) {
	env := newEnv(t)
	slot := uint64(9)
	o, err := New(Deps{
		Accounts: env.chain, Blockhashes: env.chain, Relay: env.relay,
		Listener: bundle.NewListener(env.stream, zerolog.Nop()), Tips: staticTips{},
		Inflight: fakeInflight{statuses: []jito.InflightStatus{{BundleID: "b1", Status: jito.InflightLanded, LandedSlot: &slot}}},
		Signatures: fakeSignatures{statuses: []*solanarpc.SignatureStatusesResult{
			{Slot: 9, ConfirmationStatus: solanarpc.ConfirmationStatusConfirmed},
			nil,
		}},
	}, Wallets{Funding: env.funding, Buyer: env.buyer}, env.cfg, zerolog.Nop())
	require.NoError(t, err)

	rec, err := o.Reconcile(context.Background(), "b1", solana.Signature{1}, solana.Signature{2})
	require.NoError(t, err)
	assert.Equal(t, jito.InflightLanded, rec.RelayStatus)
	assert.Equal(t, uint64(9), rec.LandedSlot)
	require.Len(t, rec.Signatures, 2)
	assert.True(t, rec.Signatures[0].Found)
	assert.False(t, rec.Signatures[1].Found)
	assert.True(t, rec.Landed())
	assert.False(t, rec.Failed())

	failed := &Reconciliation{Signatures: []SignatureReport{{Found: true, Err: map[string]interface{}{"InstructionError": 1}}}}
	assert.True(t, failed.Failed())
	assert.False(t, failed.Landed())
}

type fakeLanded struct{ statuses []jito.BundleStatus }

func (f fakeLanded) LandedBundles(context.Context, []string) ([]jito.BundleStatus, error) {
	return f.statuses, nil
}

// recordingSignatures answers every lookup with found or missing statuses and remembers what it was asked.
type recordingSignatures struct {
	found bool
	asked []solana.Signature
}

func (f *recordingSignatures) GetSignatureStatuses(_ context.Context, sigs ...solana.Signature) ([]*solanarpc.SignatureStatusesResult, error) {
	f.asked = append(f.asked, sigs...)
	out := make([]*solanarpc.SignatureStatusesResult, len(sigs))
	if f.found {
		for i := range out {
			out[i] = &solanarpc.SignatureStatusesResult{Slot: 280, ConfirmationStatus: solanarpc.ConfirmationStatusFinalized}
		}
	}
	return out, nil
}

func TestReconcileByBundleIDAfterInflightExpired(t *testing.T) {
	env := newEnv(t)
	create, buy := solana.Signature{7}, solana.Signature{8}
	reconciler := func(deps Deps) *Orchestrator {
		deps.Accounts, deps.Blockhashes, deps.Relay = env.chain, env.chain, env.relay
		deps.Listener, deps.Tips = bundle.NewListener(env.stream, zerolog.Nop()), staticTips{}
		o, err := New(deps, Wallets{Funding: env.funding, Buyer: env.buyer}, env.cfg, zerolog.Nop())
		require.NoError(t, err)
		return o
	}
	invalid := fakeInflight{statuses: []jito.InflightStatus{{BundleID: "b1", Status: jito.InflightInvalid}}}

	// Landed long ago: the inflight view says Invalid, the landed view and the chain know better.
	chain := &recordingSignatures{found: true}
	o := reconciler(Deps{
		Inflight:   invalid,
		Bundles:    fakeLanded{statuses: []jito.BundleStatus{{BundleID: "b1", Slot: 280, Transactions: []string{create.String(), buy.String()}}}},
		Signatures: chain,
	})
	rec, err := o.Reconcile(context.Background(), "b1")
	require.NoError(t, err)
	assert.Equal(t, jito.InflightInvalid, rec.RelayStatus)
	assert.True(t, rec.BundleLanded)
	assert.Equal(t, uint64(280), rec.LandedSlot)
	assert.Equal(t, []solana.Signature{create, buy}, chain.asked)
	assert.True(t, rec.Landed())
	assert.False(t, rec.Failed())

	// Invalid with nothing else to go on stays undecided.
	rec, err = reconciler(Deps{Inflight: invalid}).Reconcile(context.Background(), "b1")
	require.NoError(t, err)
	assert.False(t, rec.Landed())
	assert.False(t, rec.Failed())

	// Signatures given but found on chain: landed even though the relay forgot the bundle.
	rec, err = reconciler(Deps{Inflight: invalid, Signatures: &recordingSignatures{found: true}}).
		Reconcile(context.Background(), "b1", create, buy)
	require.NoError(t, err)
	assert.True(t, rec.Landed())
	assert.False(t, rec.Failed())

	// Invalid and unknown to the chain: it can no longer land.
	rec, err = reconciler(Deps{Inflight: invalid, Bundles: fakeLanded{}, Signatures: &recordingSignatures{}}).
		Reconcile(context.Background(), "b1", create, buy)
	require.NoError(t, err)
	assert.False(t, rec.Landed())
	assert.True(t, rec.Failed())
}

type fakeSender struct {
	tx  *solana.Transaction
	sig solana.Signature
}

func (f *fakeSender) SendAndConfirm(_ context.Context, tx *solana.Transaction) (solana.Signature, error) {
	f.tx = tx
	return f.sig, nil
}

func TestRemoveLiquidityAll(t *testing.T) {
	env := newEnv(t)
	keys, err := raydium.DerivePoolKeys(constants.MainnetPrograms, env.info)
	require.NoError(t, err)

	st := raydium.PoolState{
		BaseDecimal:     6,
		QuoteDecimal:    9,
		BaseVault:       keys.BaseVault,
		QuoteVault:      keys.QuoteVault,
		BaseMint:        keys.BaseMint,
		QuoteMint:       keys.QuoteMint,
		LPMint:          keys.LPMint,
		OpenOrders:      keys.OpenOrders,
		MarketID:        env.marketID,
		MarketProgramID: constants.OpenBookProgramID,
		TargetOrders:    keys.TargetOrders,
		WithdrawQueue:   keys.WithdrawQueue,
		LPVault:         keys.LPVault,
	}
	env.chain.put(keys.ID, constants.RaydiumAmmV4ProgramID, 1, encode(t, &st))

	lpATA, _, err := solana.FindAssociatedTokenAddress(env.funding.PublicKey(), keys.LPMint)
	require.NoError(t, err)
	env.chain.put(lpATA, constants.TokenProgramID, 1, encode(t, &token.Account{
		Mint: keys.LPMint, Owner: env.funding.PublicKey(), Amount: 500, State: token.Initialized,
	}))

	sender := &fakeSender{sig: solana.Signature{7}}
	o, err := New(Deps{
		Accounts: env.chain, Blockhashes: env.chain, Relay: env.relay,
		Listener: bundle.NewListener(env.stream, zerolog.Nop()), Tips: staticTips{},
		Sender: sender,
	}, Wallets{Funding: env.funding, Buyer: env.buyer}, env.cfg, zerolog.Nop())
	require.NoError(t, err)

	res, err := o.RemoveLiquidity(context.Background(), RemoveRequest{PoolID: keys.ID, All: true})
	require.NoError(t, err)
	assert.Equal(t, solana.Signature{7}, res.Signature)
	assert.Equal(t, uint64(500), res.LPAmount.Raw)

	require.NotNil(t, sender.tx)
	assert.NoError(t, sender.tx.VerifySignatures())
	var found bool
	for _, ix := range sender.tx.Message.Instructions {
		if !sender.tx.Message.AccountKeys[ix.ProgramIDIndex].Equals(constants.RaydiumAmmV4ProgramID) {
			continue
		}
		found = true
		require.Len(t, ix.Data, 9)
		assert.Equal(t, raydium.TagWithdraw, ix.Data[0])
		assert.Equal(t, uint64(500), binary.LittleEndian.Uint64(ix.Data[1:]))
	}
	assert.True(t, found, "withdraw instruction present")
}

func TestRemoveLiquidityMissingPool(t *testing.T) {
	env := newEnv(t)
	o, err := New(Deps{
		Accounts: env.chain, Blockhashes: env.chain, Relay: env.relay,
		Listener: bundle.NewListener(env.stream, zerolog.Nop()), Tips: staticTips{},
		Sender: &fakeSender{},
	}, Wallets{Funding: env.funding, Buyer: env.buyer}, env.cfg, zerolog.Nop())
	require.NoError(t, err)

	_, err = o.RemoveLiquidity(context.Background(), RemoveRequest{PoolID: solana.NewWallet().PublicKey(), All: true})
	assert.ErrorIs(t, err, types.ErrPoolNotFound)
}
