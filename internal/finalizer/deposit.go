package finalizer

import (
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnauthorizedBridgeCaller = errors.New("caller is not the configured bridge transport")
	ErrInvalidDepositType       = errors.New("intent type is not a deposit")
	ErrZeroDepositField         = errors.New("user or asset is the zero address, or amount is not positive")
	ErrWitnessMismatch          = errors.New("witness does not match the registered pending deposit")
	ErrInvalidDepositProof      = errors.New("deposit proof did not verify")
)

// DepositEvent is published on registration and again on finalization.
type DepositEvent struct {
	PendingId common.Hash
	DepositId common.Hash
	User      common.Address
	HubAsset  common.Address
	Amount    string
}

// HandleBridgeMessage consumes one untrusted deposit callback on the
// hub. It records a pending deposit and nothing else; funds are only
// credited when a proof finalizes the record. Registering the same
// callback twice is a no-op because the pending id is content-derived.
func (f *Finalizer) HandleBridgeMessage(caller common.Address, message []byte) error {
	if caller != f.bridgeTransport {
		return fmt.Errorf("%w: expected %s, got %s", ErrUnauthorizedBridgeCaller, f.bridgeTransport.Hex(), caller.Hex())
	}
	if len(message) != types.DepositMessageSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", types.ErrInvalidMessageLength, types.DepositMessageSize, len(message))
	}
	decoded, err := types.DecodeDepositMessage(message)
	if err != nil {
		return err
	}
	if !decoded.IntentType.IsInbound() {
		return fmt.Errorf("%w: got %s", ErrInvalidDepositType, decoded.IntentType)
	}
	zero := common.Address{}
	if decoded.User == zero || decoded.HubAsset == zero || decoded.Amount.Sign() <= 0 {
		return ErrZeroDepositField
	}
	if _, err := f.registry.GetHubAsset(decoded.HubAsset); err != nil {
		return err
	}

	witness := types.DepositWitness{
		DepositId:     decoded.DepositId,
		IntentType:    decoded.IntentType,
		User:          decoded.User,
		HubAsset:      decoded.HubAsset,
		Amount:        decoded.Amount,
		SourceChainId: decoded.SourceChainId,
		MessageHash:   decoded.Hash(),
	}
	pendingId := witness.PendingId()

	created, err := f.state.RegisterPendingDeposit(&db.PendingDeposit{
		PendingId:     pendingId.Hex(),
		DepositId:     decoded.DepositId.Hex(),
		IntentType:    uint8(decoded.IntentType),
		User:          decoded.User.Hex(),
		HubAsset:      decoded.HubAsset.Hex(),
		Amount:        db.BigToDec(decoded.Amount),
		SourceChainId: decoded.SourceChainId,
		MessageHash:   witness.MessageHash.Hex(),
	})
	if err != nil {
		return err
	}
	if !created {
		log.Debugf("Pending deposit already registered, pending id %s", pendingId.Hex())
		return nil
	}

	log.Infof("Pending deposit registered, pending id %s, deposit id %s, user %s, amount %s",
		pendingId.Hex(), decoded.DepositId.Hex(), decoded.User.Hex(), decoded.Amount)

	f.state.EventBus.Publish(state.DepositRegistered, DepositEvent{
		PendingId: pendingId,
		DepositId: decoded.DepositId,
		User:      decoded.User,
		HubAsset:  decoded.HubAsset,
		Amount:    db.BigToDec(decoded.Amount),
	})
	return nil
}

// FinalizePendingDeposit verifies a validity proof for one registered
// deposit and credits custody exactly once. The witness must match the
// stored record field for field; the id alone is not trusted.
func (f *Finalizer) FinalizePendingDeposit(witness *types.DepositWitness, zkProof []byte) error {
	pendingId := witness.PendingId()
	pd, err := f.state.GetPendingDeposit(pendingId.Hex())
	if err != nil {
		return err
	}
	if pd.Finalized {
		return state.ErrPendingAlreadyFinalized
	}
	if !witnessMatches(pd, witness) {
		return fmt.Errorf("%w: pending id %s", ErrWitnessMismatch, pendingId.Hex())
	}

	ok, err := f.deposits.VerifyDeposit(witness, zkProof)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: pending id %s", ErrInvalidDepositProof, pendingId.Hex())
	}

	finalized, err := f.state.FinalizeDeposit(pendingId.Hex())
	if err != nil {
		return err
	}

	f.state.EventBus.Publish(state.DepositFinalized, DepositEvent{
		PendingId: pendingId,
		DepositId: witness.DepositId,
		User:      witness.User,
		HubAsset:  witness.HubAsset,
		Amount:    finalized.Amount,
	})
	return nil
}

func witnessMatches(pd *db.PendingDeposit, w *types.DepositWitness) bool {
	return pd.DepositId == w.DepositId.Hex() &&
		pd.IntentType == uint8(w.IntentType) &&
		pd.User == w.User.Hex() &&
		pd.HubAsset == w.HubAsset.Hex() &&
		pd.Amount == db.BigToDec(w.Amount) &&
		pd.SourceChainId == w.SourceChainId &&
		pd.MessageHash == w.MessageHash.Hex()
}
