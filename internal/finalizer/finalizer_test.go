package finalizer

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/proof"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser      = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAsset     = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testRelayer   = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testTransport = common.HexToAddress("0x8888888888888888888888888888888888888888")
	testReceiver  = common.HexToAddress("0x9000000000000000000000000000000000000001")
	hubDispatcher = common.HexToAddress("0x6666666666666666666666666666666666666666")
	hubFinalizer  = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

const testHubChainId = uint64(1)

type fakeDepositVerifier struct {
	verdict bool
}

func (f *fakeDepositVerifier) VerifyDeposit(witness *types.DepositWitness, zkProof []byte) (bool, error) {
	return f.verdict, nil
}

type testEnv struct {
	state     *state.State
	registry  *registry.Keeper
	finality  *proof.StubFinalityVerifier
	inclusion *proof.StubInclusionVerifier
	deposits  *fakeDepositVerifier
	finalizer *Finalizer
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	dbm := db.NewDatabaseManagerAt(t.TempDir())
	st := state.InitializeState(dbm)
	reg := registry.NewKeeper(dbm)

	require.NoError(t, reg.UpsertHubAsset(&db.HubAsset{
		Asset:          testAsset.Hex(),
		Decimals:       18,
		TotalLiquidity: "10000000000000000000", // 10e18
		Enabled:        true,
	}))
	require.NoError(t, reg.UpsertSourceReceiver(&db.SourceReceiver{
		ChainId:  8453,
		Receiver: testReceiver.Hex(),
		Attestor: "0x9000000000000000000000000000000000000002",
	}))

	env := &testEnv{
		state:     st,
		registry:  reg,
		finality:  &proof.StubFinalityVerifier{Verdict: true},
		inclusion: &proof.StubInclusionVerifier{Verdict: true},
		deposits:  &fakeDepositVerifier{verdict: true},
	}
	backend := proof.NewBackend(reg, env.finality, env.inclusion, hubDispatcher)
	env.finalizer = NewFinalizer(st, reg, backend, env.deposits, testTransport, hubFinalizer, testHubChainId)
	return env
}

func hubUnits(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), new(big.Int).Exp(big.NewInt(10), big.NewInt(18), nil))
}

func (env *testEnv) createLock(t *testing.T, intentId common.Hash, amount *big.Int) {
	t.Helper()
	now := time.Now()
	err := env.state.CreateLock(&db.Lock{
		IntentId:      intentId.Hex(),
		User:          testUser.Hex(),
		IntentType:    uint8(types.IntentBorrow),
		Asset:         testAsset.Hex(),
		Amount:        db.BigToDec(amount),
		Relayer:       testRelayer.Hex(),
		LockTimestamp: now,
		Expiry:        now.Add(time.Hour),
		Status:        db.LOCK_STATUS_ACTIVE,
		UpdatedAt:     now,
	}, hubUnits(10))
	require.NoError(t, err)
}

func fillWitness() *types.BorrowFillWitness {
	return &types.BorrowFillWitness{
		IntentId:           common.HexToHash("0x01"),
		IntentType:         types.IntentBorrow,
		User:               testUser,
		Recipient:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SpokeToken:         common.HexToAddress("0x3333333333333333333333333333333333333333"),
		HubAsset:           testAsset,
		Amount:             big.NewInt(5_000_000), // 5 units at 6 decimals
		Fee:                big.NewInt(2_500),
		Relayer:            testRelayer,
		SourceChainId:      8453,
		DestinationChainId: 1,
		SpokeDecimals:      6,
		MessageHash:        common.HexToHash("0xbb"),
		SourceTxHash:       common.HexToHash("0xcc"),
		SourceLogIndex:     3,
	}
}

func sourceProof() *types.CanonicalSourceProof {
	return &types.CanonicalSourceProof{
		SourceBlockNumber: 1234,
		SourceBlockHash:   common.HexToHash("0xabc"),
		ReceiptsRoot:      common.HexToHash("0xdef"),
		SourceReceiver:    testReceiver,
	}
}

func TestFinalizeBorrowFill(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	env.createLock(t, w.IntentId, hubUnits(5))

	require.NoError(t, env.finalizer.FinalizeBorrowFill(w, sourceProof()))

	lock, err := env.state.GetLock(w.IntentId.Hex())
	require.NoError(t, err)
	assert.Equal(t, db.LOCK_STATUS_CONSUMED, lock.Status)

	used, err := env.state.HasFinalizationKey(w.FinalizationKey())
	require.NoError(t, err)
	assert.True(t, used)

	// bridged-out liquidity is deducted from the asset total
	asset, err := env.registry.GetHubAsset(testAsset)
	require.NoError(t, err)
	assert.Equal(t, hubUnits(5), db.DecToBig(asset.TotalLiquidity))
}

func TestFinalizeBorrowFillExactlyOnce(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	env.createLock(t, w.IntentId, hubUnits(5))

	require.NoError(t, env.finalizer.FinalizeBorrowFill(w, sourceProof()))
	err := env.finalizer.FinalizeBorrowFill(w, sourceProof())
	assert.ErrorIs(t, err, state.ErrFinalizationReplay)

	// liquidity is deducted once
	asset, err := env.registry.GetHubAsset(testAsset)
	require.NoError(t, err)
	assert.Equal(t, hubUnits(5), db.DecToBig(asset.TotalLiquidity))
}

func TestFinalizeBorrowFillRejectsBadProof(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	env.createLock(t, w.IntentId, hubUnits(5))

	env.finality.Verdict = false
	err := env.finalizer.FinalizeBorrowFill(w, sourceProof())
	assert.ErrorIs(t, err, ErrInvalidBorrowFillProof)

	// nothing was consumed, the retry with a good proof succeeds
	lock, err := env.state.GetLock(w.IntentId.Hex())
	require.NoError(t, err)
	assert.Equal(t, db.LOCK_STATUS_ACTIVE, lock.Status)

	env.finality.Verdict = true
	require.NoError(t, env.finalizer.FinalizeBorrowFill(w, sourceProof()))
}

func TestFinalizeBorrowFillBindsConfiguredChain(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	// a witness claiming another hub deployment as destination
	w.DestinationChainId = 999
	env.createLock(t, w.IntentId, hubUnits(5))

	require.NoError(t, env.finalizer.FinalizeBorrowFill(w, sourceProof()))

	// the inclusion check must be asked for an event bound to this
	// hub's chain id, not the chain id the witness claims
	assert.Equal(t, w.EventData(hubDispatcher, hubFinalizer, testHubChainId), env.inclusion.LastEventData)
	assert.NotEqual(t, w.EventData(hubDispatcher, hubFinalizer, 999), env.inclusion.LastEventData)
}

func TestFinalizeBorrowFillRejectsExcessiveFee(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	env.createLock(t, w.IntentId, hubUnits(5))

	w.Fee = new(big.Int).Set(w.Amount)
	err := env.finalizer.FinalizeBorrowFill(w, sourceProof())
	assert.ErrorIs(t, err, ErrFeeExceedsAmount)
}

func TestFinalizeBorrowFillRollsBackOnLockMismatch(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	// locked below the witness amount, consumption must fail
	env.createLock(t, w.IntentId, hubUnits(4))

	err := env.finalizer.FinalizeBorrowFill(w, sourceProof())
	assert.ErrorIs(t, err, state.ErrLockMismatch)

	// the finalization key rolled back with the failed consume
	used, err := env.state.HasFinalizationKey(w.FinalizationKey())
	require.NoError(t, err)
	assert.False(t, used)
	assert.False(t, env.state.WasLikelySeen(w.SourceTxHash, w.SourceLogIndex))
}

func TestFinalizeBorrowFillMarksDispatchOrder(t *testing.T) {
	env := newTestEnv(t)
	w := fillWitness()
	env.createLock(t, w.IntentId, hubUnits(5))

	require.NoError(t, env.state.CreateDispatchOrder(&db.DispatchOrder{
		OrderId:     "order-1",
		IntentId:    w.IntentId.Hex(),
		MessageHash: w.MessageHash.Hex(),
		DestChainId: 8453,
		Amount:      "5000000",
		RelayerFee:  "2500",
	}))

	require.NoError(t, env.finalizer.FinalizeBorrowFill(w, sourceProof()))

	order, err := env.state.GetDispatchOrderByIntent(w.IntentId.Hex())
	require.NoError(t, err)
	assert.Equal(t, db.DISPATCH_STATUS_FINALIZED, order.Status)
}
