package finalizer

import (
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/proof"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrInvalidBorrowFillProof = errors.New("canonical borrow fill proof did not verify")
	ErrFeeExceedsAmount       = errors.New("rescaled fee meets or exceeds the rescaled amount")
)

// FinalizedEvent is published after a fill settles on the hub ledger.
type FinalizedEvent struct {
	IntentId common.Hash
	Key      common.Hash
	Amount   *big.Int // hub-unit
	Lock     *db.Lock
}

// Finalizer settles spoke fills against the hub ledger. A fill
// finalizes at most once: the write-once key, the lock consumption and
// the dispatch order update commit in one transaction or not at all.
type Finalizer struct {
	state    *state.State
	registry *registry.Keeper
	backend  *proof.Backend
	deposits proof.DepositProofVerifier

	bridgeTransport common.Address
	finalizer       common.Address
	chainId         uint64
	nowFunc         func() time.Time
}

func NewFinalizer(st *state.State, reg *registry.Keeper, backend *proof.Backend, deposits proof.DepositProofVerifier, bridgeTransport, hubFinalizer common.Address, hubChainId uint64) *Finalizer {
	return &Finalizer{
		state:           st,
		registry:        reg,
		backend:         backend,
		deposits:        deposits,
		bridgeTransport: bridgeTransport,
		finalizer:       hubFinalizer,
		chainId:         hubChainId,
		nowFunc:         time.Now,
	}
}

// SetNowFunc overrides the clock, for tests.
func (f *Finalizer) SetNowFunc(now func() time.Time) {
	f.nowFunc = now
}

// FinalizeBorrowFill verifies the canonical source proof for one fill
// witness and, on success, consumes its replay key and its lock. Replay
// is checked cheaply before the proof is verified and again inside the
// transaction; only the transactional check is authoritative.
func (f *Finalizer) FinalizeBorrowFill(witness *types.BorrowFillWitness, p *types.CanonicalSourceProof) error {
	key := witness.FinalizationKey()
	if f.state.WasLikelySeen(witness.SourceTxHash, witness.SourceLogIndex) {
		return state.ErrFinalizationReplay
	}
	used, err := f.state.HasFinalizationKey(key)
	if err != nil {
		return err
	}
	if used {
		return state.ErrFinalizationReplay
	}

	// the proof must bind this hub's own chain id, never the witness's
	// claim of it; otherwise a fill proven for another deployment that
	// shares contract addresses would settle here
	ok, err := f.backend.VerifyCanonicalBorrowFill(witness, p, f.finalizer, f.chainId)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: intent %s, source tx %s", ErrInvalidBorrowFillProof, witness.IntentId.Hex(), witness.SourceTxHash.Hex())
	}

	hubAsset, err := f.registry.GetHubAsset(witness.HubAsset)
	if err != nil {
		return err
	}
	hubAmount, err := types.RescaleAmount(witness.Amount, witness.SpokeDecimals, hubAsset.Decimals)
	if err != nil {
		return err
	}
	hubFee, err := types.RescaleAmount(witness.Fee, witness.SpokeDecimals, hubAsset.Decimals)
	if err != nil {
		return err
	}
	if hubFee.Cmp(hubAmount) >= 0 {
		return fmt.Errorf("%w: fee %s, amount %s", ErrFeeExceedsAmount, hubFee, hubAmount)
	}

	now := f.nowFunc()
	var consumed *db.Lock
	err = f.state.HubTransaction(func(tx *gorm.DB) error {
		if err := f.state.UseFinalizationKey(tx, key, witness.IntentId.Hex(), witness.SourceTxHash, witness.SourceLogIndex); err != nil {
			return err
		}
		lock, err := f.state.ConsumeLockTx(tx, witness.IntentId.Hex(), state.ConsumeArgs{
			IntentType: uint8(witness.IntentType),
			User:       witness.User.Hex(),
			Asset:      witness.HubAsset.Hex(),
			Amount:     hubAmount,
			Relayer:    witness.Relayer.Hex(),
			Now:        now,
		})
		if err != nil {
			return err
		}
		consumed = lock
		return f.state.MarkDispatchFinalized(tx, witness.MessageHash.Hex())
	})
	if err != nil {
		return err
	}
	f.state.MarkSeen(witness.SourceTxHash, witness.SourceLogIndex)

	f.settleLiquidity(hubAsset, hubAmount)

	log.Infof("Borrow fill finalized, intent %s, key %s, hub amount %s",
		witness.IntentId.Hex(), key.Hex(), hubAmount)

	f.state.EventBus.Publish(state.FillFinalized, FinalizedEvent{
		IntentId: witness.IntentId,
		Key:      key,
		Amount:   hubAmount,
		Lock:     consumed,
	})
	return nil
}

// settleLiquidity deducts the bridged-out amount from the asset's
// total. The registry lives in its own database, so this runs after
// the ledger commit; a failure here leaves the total stale until the
// next operator update, never a double spend.
func (f *Finalizer) settleLiquidity(hubAsset *db.HubAsset, amount *big.Int) {
	total := db.DecToBig(hubAsset.TotalLiquidity)
	next := new(big.Int).Sub(total, amount)
	if next.Sign() < 0 {
		log.Warnf("Total liquidity underflow for asset %s, total %s, settled %s", hubAsset.Asset, total, amount)
		next = new(big.Int)
	}
	if err := f.registry.UpdateLiquidity(common.HexToAddress(hubAsset.Asset), db.BigToDec(next)); err != nil {
		log.Warnf("Failed to update total liquidity for asset %s: %v", hubAsset.Asset, err)
	}
}
