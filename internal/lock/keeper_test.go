package lock

import (
	"math/big"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testUser    = common.HexToAddress("0x1111111111111111111111111111111111111111")
	testAsset   = common.HexToAddress("0x4444444444444444444444444444444444444444")
	testToken   = common.HexToAddress("0x3333333333333333333333333333333333333333")
	testRelayer = common.HexToAddress("0x5555555555555555555555555555555555555555")
	testAdmin   = common.HexToAddress("0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa")
)

type denyAllRisk struct{}

func (denyAllRisk) CanLockBorrow(user, asset common.Address, amount *big.Int) bool   { return false }
func (denyAllRisk) CanLockWithdraw(user, asset common.Address, amount *big.Int) bool { return false }

func newTestKeeper(t *testing.T, risk RiskManager) (*Keeper, *state.State) {
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
	require.NoError(t, reg.UpsertSpokeToken(&db.SpokeToken{
		ChainId:  8453,
		Token:    testToken.Hex(),
		HubAsset: testAsset.Hex(),
		Decimals: 6,
		Enabled:  true,
	}))

	if risk == nil {
		risk = UnrestrictedRisk{}
	}
	return NewKeeper(st, reg, risk, testAdmin, 30*time.Minute), st
}

func borrowIntent(deadline time.Time) *types.Intent {
	return &types.Intent{
		IntentType:    types.IntentBorrow,
		User:          testUser,
		InputChainId:  1,
		OutputChainId: 8453,
		OutputToken:   testToken,
		Amount:        big.NewInt(5_000_000), // 5 units at 6 decimals
		Recipient:     testUser,
		MaxRelayerFee: big.NewInt(10_000),
		Nonce:         7,
		Deadline:      uint64(deadline.Unix()),
	}
}

func TestKeeperLock(t *testing.T) {
	keeper, st := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(2 * time.Hour))

	intentId, err := keeper.Lock(intent, testRelayer)
	require.NoError(t, err)
	assert.Equal(t, intent.IntentId(), intentId)

	lock, err := keeper.GetLock(intentId)
	require.NoError(t, err)
	assert.Equal(t, db.LOCK_STATUS_ACTIVE, lock.Status)
	// amount stored in hub units, rescaled 6 -> 18 decimals
	assert.Equal(t, "5000000000000000000", lock.Amount)
	assert.Equal(t, testRelayer.Hex(), lock.Relayer)

	reserved, err := st.GetReservedLiquidity(testAsset.Hex())
	require.NoError(t, err)
	assert.Equal(t, "5000000000000000000", reserved.String())
}

func TestKeeperLockRejectsReplay(t *testing.T) {
	keeper, _ := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(2 * time.Hour))

	_, err := keeper.Lock(intent, testRelayer)
	require.NoError(t, err)

	_, err = keeper.Lock(intent, testRelayer)
	assert.ErrorIs(t, err, state.ErrLockAlreadyExists)
}

func TestKeeperLockRejectsInboundType(t *testing.T) {
	keeper, _ := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(2 * time.Hour))
	intent.IntentType = types.IntentRepay

	_, err := keeper.Lock(intent, testRelayer)
	assert.ErrorIs(t, err, ErrUnsupportedIntentType)
}

func TestKeeperLockRejectsPassedDeadline(t *testing.T) {
	keeper, _ := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(-time.Second))

	_, err := keeper.Lock(intent, testRelayer)
	assert.ErrorIs(t, err, ErrIntentExpired)
}

func TestKeeperLockRejectsRiskDecline(t *testing.T) {
	keeper, st := newTestKeeper(t, denyAllRisk{})
	intent := borrowIntent(time.Now().Add(2 * time.Hour))

	_, err := keeper.Lock(intent, testRelayer)
	assert.ErrorIs(t, err, ErrRiskCheckFailed)

	reserved, err := st.GetReservedLiquidity(testAsset.Hex())
	require.NoError(t, err)
	assert.Zero(t, reserved.Sign())
}

func TestKeeperLockRejectsUnknownToken(t *testing.T) {
	keeper, _ := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(2 * time.Hour))
	intent.OutputToken = common.HexToAddress("0xdddddddddddddddddddddddddddddddddddddddd")

	_, err := keeper.Lock(intent, testRelayer)
	assert.ErrorIs(t, err, registry.ErrAssetNotSupported)
}

func TestKeeperLockExpiryClampedToDeadline(t *testing.T) {
	keeper, _ := newTestKeeper(t, nil)
	now := time.Now()
	keeper.SetNowFunc(func() time.Time { return now })

	// deadline inside the TTL window wins
	deadline := now.Add(10 * time.Minute)
	intent := borrowIntent(deadline)

	intentId, err := keeper.Lock(intent, testRelayer)
	require.NoError(t, err)

	lock, err := keeper.GetLock(intentId)
	require.NoError(t, err)
	assert.Equal(t, deadline.Unix(), lock.Expiry.Unix())
}

func TestKeeperCancelLock(t *testing.T) {
	keeper, st := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(2 * time.Hour))

	intentId, err := keeper.Lock(intent, testRelayer)
	require.NoError(t, err)

	stranger := common.HexToAddress("0xbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbbb")
	assert.ErrorIs(t, keeper.CancelLock(intentId, stranger), state.ErrUnauthorizedCanceller)

	require.NoError(t, keeper.CancelLock(intentId, testAdmin))

	lock, err := keeper.GetLock(intentId)
	require.NoError(t, err)
	assert.Equal(t, db.LOCK_STATUS_CANCELLED, lock.Status)

	reserved, err := st.GetReservedLiquidity(testAsset.Hex())
	require.NoError(t, err)
	assert.Zero(t, reserved.Sign())
}

func TestKeeperConsumeLock(t *testing.T) {
	keeper, _ := newTestKeeper(t, nil)
	intent := borrowIntent(time.Now().Add(2 * time.Hour))

	intentId, err := keeper.Lock(intent, testRelayer)
	require.NoError(t, err)

	hubAmount, _ := new(big.Int).SetString("5000000000000000000", 10)
	consumed, err := keeper.ConsumeLock(intentId, types.IntentBorrow, testUser, testAsset, hubAmount, testRelayer)
	require.NoError(t, err)
	assert.Equal(t, intentId.Hex(), consumed.IntentId)

	_, err = keeper.ConsumeLock(intentId, types.IntentBorrow, testUser, testAsset, hubAmount, testRelayer)
	assert.ErrorIs(t, err, state.ErrLockNotActive)
}
