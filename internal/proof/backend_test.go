package proof

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testReceiver   = common.HexToAddress("0xc000000000000000000000000000000000000001")
	testAttestor   = common.HexToAddress("0xd000000000000000000000000000000000000001")
	testDispatcher = common.HexToAddress("0x6666666666666666666666666666666666666666")
	testFinalizer  = common.HexToAddress("0x7777777777777777777777777777777777777777")
)

func newTestRegistry(t *testing.T) *registry.Keeper {
	t.Helper()
	reg := registry.NewKeeper(db.NewDatabaseManagerAt(t.TempDir()))
	require.NoError(t, reg.UpsertSourceReceiver(&db.SourceReceiver{
		ChainId:  8453,
		Receiver: testReceiver.Hex(),
		Attestor: testAttestor.Hex(),
	}))
	return reg
}

func testWitness() *types.BorrowFillWitness {
	return &types.BorrowFillWitness{
		IntentId:           common.HexToHash("0x01"),
		IntentType:         types.IntentBorrow,
		User:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Recipient:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SpokeToken:         common.HexToAddress("0x3333333333333333333333333333333333333333"),
		HubAsset:           common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Amount:             big.NewInt(1_000_000),
		Fee:                big.NewInt(2_500),
		Relayer:            common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SourceChainId:      8453,
		DestinationChainId: 1,
		SpokeDecimals:      6,
		MessageHash:        common.HexToHash("0xbb"),
		SourceTxHash:       common.HexToHash("0xcc"),
		SourceLogIndex:     0,
	}
}

func testProof() *types.CanonicalSourceProof {
	return &types.CanonicalSourceProof{
		SourceBlockNumber: 1234,
		SourceBlockHash:   common.HexToHash("0xabc"),
		ReceiptsRoot:      common.HexToHash("0xdef"),
		SourceReceiver:    testReceiver,
	}
}

func TestBackendVerifies(t *testing.T) {
	inclusion := &StubInclusionVerifier{Verdict: true}
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: true}, inclusion, testDispatcher)

	w := testWitness()
	ok, err := b.VerifyCanonicalBorrowFill(w, testProof(), testFinalizer, 1)
	require.NoError(t, err)
	assert.True(t, ok)

	// the inclusion stage is handed the destination-bound event data
	assert.Equal(t, w.EventData(testDispatcher, testFinalizer, 1), inclusion.LastEventData)
	assert.Equal(t, w.IntentId, inclusion.LastIntentId)
}

func TestBackendRejectsInboundWitness(t *testing.T) {
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: true}, &StubInclusionVerifier{Verdict: true}, testDispatcher)

	w := testWitness()
	w.IntentType = types.IntentSupply
	_, err := b.VerifyCanonicalBorrowFill(w, testProof(), testFinalizer, 1)
	assert.ErrorIs(t, err, ErrUnsupportedWitnessType)
}

func TestBackendRejectsMissingDispatcher(t *testing.T) {
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: true}, &StubInclusionVerifier{Verdict: true}, common.Address{})

	_, err := b.VerifyCanonicalBorrowFill(testWitness(), testProof(), testFinalizer, 1)
	assert.ErrorIs(t, err, ErrDispatcherNotConfigured)
}

func TestBackendRejectsUnknownSourceChain(t *testing.T) {
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: true}, &StubInclusionVerifier{Verdict: true}, testDispatcher)

	w := testWitness()
	w.SourceChainId = 10
	_, err := b.VerifyCanonicalBorrowFill(w, testProof(), testFinalizer, 1)
	assert.ErrorIs(t, err, registry.ErrReceiverNotConfigured)
}

func TestBackendRejectsReceiverMismatch(t *testing.T) {
	inclusion := &StubInclusionVerifier{Verdict: true}
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: true}, inclusion, testDispatcher)

	p := testProof()
	p.SourceReceiver = common.HexToAddress("0x99")
	ok, err := b.VerifyCanonicalBorrowFill(testWitness(), p, testFinalizer, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	// short-circuits before the proof stages run
	assert.Nil(t, inclusion.LastEventData)
}

func TestBackendRejectsFinalityFailure(t *testing.T) {
	inclusion := &StubInclusionVerifier{Verdict: true}
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: false}, inclusion, testDispatcher)

	ok, err := b.VerifyCanonicalBorrowFill(testWitness(), testProof(), testFinalizer, 1)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, inclusion.LastEventData)
}

func TestBackendRejectsInclusionFailure(t *testing.T) {
	b := NewBackend(newTestRegistry(t), &StubFinalityVerifier{Verdict: true}, &StubInclusionVerifier{Verdict: false}, testDispatcher)

	ok, err := b.VerifyCanonicalBorrowFill(testWitness(), testProof(), testFinalizer, 1)
	require.NoError(t, err)
	assert.False(t, ok)
}
