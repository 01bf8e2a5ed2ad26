package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// BorrowFillWitness carries the typed fields of a spoke-side fill, as
// recorded by the spoke's BorrowFillRecorded event. The same struct is
// used to request and to verify a canonical proof; any single-field
// change breaks verification.
type BorrowFillWitness struct {
	IntentId           common.Hash
	IntentType         IntentType
	User               common.Address
	Recipient          common.Address
	SpokeToken         common.Address
	HubAsset           common.Address
	Amount             *big.Int // spoke-unit
	Fee                *big.Int // spoke-unit
	Relayer            common.Address
	SourceChainId      uint64
	DestinationChainId uint64
	SpokeDecimals      uint8
	MessageHash        common.Hash
	SourceTxHash       common.Hash
	SourceLogIndex     uint32
}

// FinalizationKey derives the write-once replay key for this witness.
// It is deliberately independent of lock status: cancelling or expiring
// a lock must never reopen a consumed finalization.
func (w *BorrowFillWitness) FinalizationKey() common.Hash {
	buf := make([]byte, 0, 8+32+4+32+32)
	buf = appendUint64(buf, w.SourceChainId)
	buf = append(buf, w.SourceTxHash.Bytes()...)
	buf = appendUint64(buf, uint64(w.SourceLogIndex))
	buf = append(buf, w.IntentId.Bytes()...)
	buf = append(buf, w.MessageHash.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

// EventData encodes the witness fields plus the destination binding the
// way the spoke's BorrowFillRecorded event lays them out. The proof
// backend compares this against the proven receipt log byte for byte.
func (w *BorrowFillWitness) EventData(destDispatcher, destFinalizer common.Address, destChainId uint64) []byte {
	buf := make([]byte, 0, 256)
	buf = append(buf, byte(w.IntentType))
	buf = append(buf, w.User.Bytes()...)
	buf = append(buf, w.Recipient.Bytes()...)
	buf = append(buf, w.SpokeToken.Bytes()...)
	buf = append(buf, w.HubAsset.Bytes()...)
	buf = append(buf, common.BigToHash(w.Amount).Bytes()...)
	buf = append(buf, common.BigToHash(w.Fee).Bytes()...)
	buf = append(buf, w.Relayer.Bytes()...)
	buf = appendUint64(buf, w.SourceChainId)
	buf = appendUint64(buf, destChainId)
	buf = append(buf, w.SpokeDecimals)
	buf = append(buf, w.MessageHash.Bytes()...)
	buf = append(buf, destDispatcher.Bytes()...)
	buf = append(buf, destFinalizer.Bytes()...)
	return buf
}

// CanonicalSourceProof is the two-stage evidence for one fill: a
// finality proof for the source block and an inclusion proof for the
// fill event under that block's receipts root. Verified per call, never
// persisted.
type CanonicalSourceProof struct {
	SourceBlockNumber uint64
	SourceBlockHash   common.Hash
	ReceiptsRoot      common.Hash
	SourceReceiver    common.Address
	FinalityProof     []byte
	InclusionProof    []byte
}

// DepositWitness carries the typed fields of an inbound supply/repay
// deposit, matched against the registered PendingDeposit before the ZK
// verifier runs.
type DepositWitness struct {
	DepositId     common.Hash
	IntentType    IntentType
	User          common.Address
	HubAsset      common.Address
	Amount        *big.Int
	SourceChainId uint64
	MessageHash   common.Hash
}

// PendingId derives the deterministic key of a pending deposit.
// Identical callback fields always map to the same id, which is what
// makes duplicate registration a no-op instead of a double-credit.
func (w *DepositWitness) PendingId() common.Hash {
	buf := make([]byte, 0, 8+32+1+20+20+32+32)
	buf = appendUint64(buf, w.SourceChainId)
	buf = append(buf, w.DepositId.Bytes()...)
	buf = append(buf, byte(w.IntentType))
	buf = append(buf, w.User.Bytes()...)
	buf = append(buf, w.HubAsset.Bytes()...)
	buf = append(buf, common.BigToHash(w.Amount).Bytes()...)
	buf = append(buf, w.MessageHash.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

// Commitment hashes the witness for the ZK verifier's public input.
func (w *DepositWitness) Commitment() common.Hash {
	return w.PendingId()
}
