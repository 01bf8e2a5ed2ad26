package lock

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedIntentType = errors.New("intent type cannot be locked")
	ErrIntentExpired         = errors.New("intent deadline already passed")
	ErrRiskCheckFailed       = errors.New("risk check declined the lock")
)

// RiskManager is the external money-market collaborator consulted
// before liquidity is reserved. Both checks are binary; the reasons
// stay inside the risk engine.
type RiskManager interface {
	CanLockBorrow(user, asset common.Address, amount *big.Int) bool
	CanLockWithdraw(user, asset common.Address, amount *big.Int) bool
}

// LockEvent is published on the event bus for every lock transition.
type LockEvent struct {
	IntentId   common.Hash
	IntentType types.IntentType
	User       common.Address
	Asset      common.Address
	Amount     *big.Int
	Relayer    common.Address
	Expiry     time.Time
}

// Keeper owns the lock state machine and the reservation ledger. Locks
// are created here only; the finalizer consumes them through
// ConsumeLock and never touches lock rows directly.
type Keeper struct {
	state    *state.State
	registry *registry.Keeper
	risk     RiskManager
	admin    common.Address
	lockTtl  time.Duration

	nowFunc func() time.Time
}

func NewKeeper(st *state.State, reg *registry.Keeper, risk RiskManager, admin common.Address, lockTtl time.Duration) *Keeper {
	return &Keeper{
		state:    st,
		registry: reg,
		risk:     risk,
		admin:    admin,
		lockTtl:  lockTtl,
		nowFunc:  time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (k *Keeper) SetNowFunc(now func() time.Time) {
	k.nowFunc = now
}

// Lock pre-commits hub liquidity against a borrow or withdraw intent.
// The reservation increment and the lock row are written atomically;
// the bridge dispatch happens strictly after this returns.
func (k *Keeper) Lock(intent *types.Intent, relayer common.Address) (common.Hash, error) {
	if !intent.IntentType.IsOutbound() {
		return common.Hash{}, ErrUnsupportedIntentType
	}
	intentId := intent.IntentId()

	// replay check first, before any substantive validation
	if _, err := k.state.GetLock(intentId.Hex()); err == nil {
		return common.Hash{}, state.ErrLockAlreadyExists
	} else if err != state.ErrLockNotFound {
		return common.Hash{}, err
	}

	hubAsset, spokeToken, err := k.registry.ResolveSpokeToken(intent.OutputChainId, intent.OutputToken)
	if err != nil {
		return common.Hash{}, err
	}

	hubAmount, err := types.RescaleAmount(intent.Amount, spokeToken.Decimals, hubAsset.Decimals)
	if err != nil {
		return common.Hash{}, err
	}

	now := k.nowFunc()
	deadline := time.Unix(int64(intent.Deadline), 0)
	if !now.Before(deadline) {
		return common.Hash{}, ErrIntentExpired
	}

	asset := common.HexToAddress(hubAsset.Asset)
	switch intent.IntentType {
	case types.IntentBorrow:
		if !k.risk.CanLockBorrow(intent.User, asset, hubAmount) {
			return common.Hash{}, ErrRiskCheckFailed
		}
	case types.IntentWithdraw:
		if !k.risk.CanLockWithdraw(intent.User, asset, hubAmount) {
			return common.Hash{}, ErrRiskCheckFailed
		}
	}

	expiry := now.Add(k.lockTtl)
	if deadline.Before(expiry) {
		expiry = deadline
	}

	record := &db.Lock{
		IntentId:      intentId.Hex(),
		User:          intent.User.Hex(),
		IntentType:    uint8(intent.IntentType),
		Asset:         hubAsset.Asset,
		Amount:        db.BigToDec(hubAmount),
		Relayer:       relayer.Hex(),
		LockTimestamp: now,
		Expiry:        expiry,
		Status:        db.LOCK_STATUS_ACTIVE,
		UpdatedAt:     now,
	}
	if err := k.state.CreateLock(record, db.DecToBig(hubAsset.TotalLiquidity)); err != nil {
		return common.Hash{}, err
	}

	log.Infof("Lock created, intent %s, type %s, asset %s, amount %s, relayer %s, expiry %v",
		intentId.Hex(), intent.IntentType, hubAsset.Asset, hubAmount, relayer.Hex(), expiry)

	k.state.EventBus.Publish(state.LockCreated, LockEvent{
		IntentId:   intentId,
		IntentType: intent.IntentType,
		User:       intent.User,
		Asset:      asset,
		Amount:     hubAmount,
		Relayer:    relayer,
		Expiry:     expiry,
	})
	return intentId, nil
}

// CancelLock releases an active lock on request of its relayer or the
// administrator.
func (k *Keeper) CancelLock(intentId common.Hash, caller common.Address) error {
	isAdmin := k.admin != (common.Address{}) && caller == k.admin
	if err := k.state.CancelLock(intentId.Hex(), caller.Hex(), isAdmin); err != nil {
		return err
	}
	log.Infof("Lock cancelled, intent %s, caller %s", intentId.Hex(), caller.Hex())
	k.state.EventBus.Publish(state.LockCancelled, LockEvent{IntentId: intentId})
	return nil
}

// CancelExpiredLock releases an active lock whose expiry has passed.
// Open to any caller; expiry is re-checked against the wall clock.
func (k *Keeper) CancelExpiredLock(intentId common.Hash) error {
	if err := k.state.CancelExpiredLock(intentId.Hex(), k.nowFunc()); err != nil {
		return err
	}
	log.Infof("Expired lock cancelled, intent %s", intentId.Hex())
	k.state.EventBus.Publish(state.LockCancelled, LockEvent{IntentId: intentId})
	return nil
}

// ConsumeLock moves an active lock to consumed after an exact match of
// the expected fields. Wired to the settlement collaborator only.
func (k *Keeper) ConsumeLock(intentId common.Hash, expectedType types.IntentType, expectedUser, expectedAsset common.Address, expectedAmount *big.Int, expectedRelayer common.Address) (*db.Lock, error) {
	consumed, err := k.state.ConsumeLock(intentId.Hex(), expectedType, expectedUser.Hex(), expectedAsset.Hex(), expectedAmount, expectedRelayer.Hex(), k.nowFunc())
	if err != nil {
		return nil, err
	}
	log.Infof("Lock consumed, intent %s, amount %s", intentId.Hex(), expectedAmount)
	k.state.EventBus.Publish(state.LockConsumed, LockEvent{IntentId: intentId, Amount: expectedAmount})
	return consumed, nil
}

func (k *Keeper) GetLock(intentId common.Hash) (*db.Lock, error) {
	return k.state.GetLock(intentId.Hex())
}
