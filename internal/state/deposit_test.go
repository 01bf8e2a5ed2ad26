package state

import (
	"math/big"
	"testing"

	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestPendingDeposit(pendingId string) *db.PendingDeposit {
	return &db.PendingDeposit{
		PendingId:     pendingId,
		DepositId:     "0x05",
		IntentType:    uint8(types.IntentRepay),
		User:          testUser,
		HubAsset:      testAsset,
		Amount:        "120000000",
		SourceChainId: 10,
		MessageHash:   "0xbb",
	}
}

func TestRegisterPendingDepositIdempotent(t *testing.T) {
	s := newTestState(t)

	created, err := s.RegisterPendingDeposit(newTestPendingDeposit("0xp1"))
	require.NoError(t, err)
	assert.True(t, created)

	created, err = s.RegisterPendingDeposit(newTestPendingDeposit("0xp1"))
	require.NoError(t, err)
	assert.False(t, created)

	pd, err := s.GetPendingDeposit("0xp1")
	require.NoError(t, err)
	assert.False(t, pd.Finalized)
}

func TestFinalizeDepositCreditsCustodyOnce(t *testing.T) {
	s := newTestState(t)
	_, err := s.RegisterPendingDeposit(newTestPendingDeposit("0xp1"))
	require.NoError(t, err)

	finalized, err := s.FinalizeDeposit("0xp1")
	require.NoError(t, err)
	assert.True(t, finalized.Finalized)

	amount, consumed, err := s.GetCustodyBalance(10, "0x05")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(120_000_000), amount)
	assert.False(t, consumed)

	_, err = s.FinalizeDeposit("0xp1")
	assert.ErrorIs(t, err, ErrPendingAlreadyFinalized)

	// the failed second finalize must not double-credit
	amount, _, err = s.GetCustodyBalance(10, "0x05")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(120_000_000), amount)
}

func TestFinalizeDepositUnknownPending(t *testing.T) {
	s := newTestState(t)
	_, err := s.FinalizeDeposit("0xmissing")
	assert.ErrorIs(t, err, ErrPendingNotFound)
}

func TestCustodyBalanceAccumulatesAcrossDeposits(t *testing.T) {
	s := newTestState(t)

	first := newTestPendingDeposit("0xp1")
	_, err := s.RegisterPendingDeposit(first)
	require.NoError(t, err)
	_, err = s.FinalizeDeposit("0xp1")
	require.NoError(t, err)

	second := newTestPendingDeposit("0xp2")
	second.Amount = "30000000"
	_, err = s.RegisterPendingDeposit(second)
	require.NoError(t, err)
	_, err = s.FinalizeDeposit("0xp2")
	require.NoError(t, err)

	amount, _, err := s.GetCustodyBalance(10, "0x05")
	require.NoError(t, err)
	assert.Equal(t, big.NewInt(150_000_000), amount)
}
