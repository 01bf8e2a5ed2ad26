package proof

import (
	"errors"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnsupportedWitnessType  = errors.New("witness intent type cannot be proven")
	ErrDispatcherNotConfigured = errors.New("destination dispatcher is not configured")
)

// FinalityVerifier confirms that a source-chain block is irreversible.
// Implementations wrap a light client, an oracle network or a stub; the
// proof blob is transport specific and opaque to the backend.
type FinalityVerifier interface {
	VerifyFinality(chainId uint64, blockNumber uint64, blockHash common.Hash, attestor common.Address, finalityProof []byte) (bool, error)
}

// InclusionVerifier confirms that a specific event log is part of a
// block's receipts.
type InclusionVerifier interface {
	VerifyInclusion(receiptsRoot common.Hash, emitter common.Address, intentId common.Hash, eventData []byte, logIndex uint32, inclusionProof []byte) (bool, error)
}

// Backend binds a witness to a canonical source proof in two stages:
// finality first, then event inclusion, short-circuiting on the first
// failure. A proof that does not verify is a normal negative result,
// not an error; errors are reserved for malformed or unconfigured
// input so callers can tell "rejected" from "broken".
type Backend struct {
	registry   *registry.Keeper
	finality   FinalityVerifier
	inclusion  InclusionVerifier
	dispatcher common.Address
}

func NewBackend(reg *registry.Keeper, finality FinalityVerifier, inclusion InclusionVerifier, destDispatcher common.Address) *Backend {
	return &Backend{
		registry:   reg,
		finality:   finality,
		inclusion:  inclusion,
		dispatcher: destDispatcher,
	}
}

func (b *Backend) VerifyCanonicalBorrowFill(witness *types.BorrowFillWitness, p *types.CanonicalSourceProof, destFinalizer common.Address, destChainId uint64) (bool, error) {
	if !witness.IntentType.IsOutbound() {
		return false, ErrUnsupportedWitnessType
	}
	if b.dispatcher == (common.Address{}) {
		return false, ErrDispatcherNotConfigured
	}

	receiver, err := b.registry.GetSourceReceiver(witness.SourceChainId)
	if err != nil {
		return false, err
	}
	if p.SourceReceiver != common.HexToAddress(receiver.Receiver) {
		log.Warnf("Proof source receiver mismatch, chain %d, expected %s, got %s",
			witness.SourceChainId, receiver.Receiver, p.SourceReceiver.Hex())
		return false, nil
	}

	ok, err := b.finality.VerifyFinality(witness.SourceChainId, p.SourceBlockNumber, p.SourceBlockHash, common.HexToAddress(receiver.Attestor), p.FinalityProof)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Warnf("Finality verification failed, chain %d, block %d, hash %s",
			witness.SourceChainId, p.SourceBlockNumber, p.SourceBlockHash.Hex())
		return false, nil
	}

	// the event binds the destination identity too, so a proof built
	// for one destination cannot be replayed against another
	eventData := witness.EventData(b.dispatcher, destFinalizer, destChainId)
	ok, err = b.inclusion.VerifyInclusion(p.ReceiptsRoot, p.SourceReceiver, witness.IntentId, eventData, witness.SourceLogIndex, p.InclusionProof)
	if err != nil {
		return false, err
	}
	if !ok {
		log.Warnf("Inclusion verification failed, chain %d, intent %s, log index %d",
			witness.SourceChainId, witness.IntentId.Hex(), witness.SourceLogIndex)
		return false, nil
	}
	return true, nil
}
