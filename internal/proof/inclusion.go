package proof

import (
	"bytes"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/rlp"
)

// BorrowFillRecordedTopic identifies the spoke's fill audit event; the
// second topic is the intent id.
var BorrowFillRecordedTopic = crypto.Keccak256Hash([]byte("BorrowFillRecorded(bytes32,bytes)"))

// receiptProof is the RLP wire form of an inclusion proof: the receipt
// in consensus encoding, the sibling hashes from its leaf to the
// receipts root, and the leaf's position.
type receiptProof struct {
	Receipt []byte
	Path    [][]byte
	Index   uint32
}

// EncodeReceiptProof builds the proof blob; the prover side uses it and
// tests use it to produce fixtures.
func EncodeReceiptProof(receipt []byte, path []common.Hash, index uint32) ([]byte, error) {
	raw := make([][]byte, len(path))
	for i, h := range path {
		raw[i] = h.Bytes()
	}
	return rlp.EncodeToBytes(&receiptProof{Receipt: receipt, Path: raw, Index: index})
}

// ReceiptInclusionVerifier walks a keccak merkle path from one encoded
// receipt to the proven receipts root, then requires the receipt to
// contain the exact expected event: right emitter, right topics, and
// byte-identical data. Changing any single witness field changes the
// expected data and the whole verification fails.
type ReceiptInclusionVerifier struct{}

func NewReceiptInclusionVerifier() *ReceiptInclusionVerifier {
	return &ReceiptInclusionVerifier{}
}

func (v *ReceiptInclusionVerifier) VerifyInclusion(receiptsRoot common.Hash, emitter common.Address, intentId common.Hash, eventData []byte, logIndex uint32, inclusionProof []byte) (bool, error) {
	var p receiptProof
	if err := rlp.DecodeBytes(inclusionProof, &p); err != nil {
		return false, nil
	}
	for _, sib := range p.Path {
		if len(sib) != common.HashLength {
			return false, nil
		}
	}

	leaf := crypto.Keccak256Hash(p.Receipt)
	if merkleRoot(leaf, p.Path, p.Index) != receiptsRoot {
		return false, nil
	}

	receipt := new(gethtypes.Receipt)
	if err := receipt.UnmarshalBinary(p.Receipt); err != nil {
		return false, nil
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return false, nil
	}
	if int(logIndex) >= len(receipt.Logs) {
		return false, nil
	}
	lg := receipt.Logs[logIndex]
	if lg.Address != emitter {
		return false, nil
	}
	if len(lg.Topics) != 2 || lg.Topics[0] != BorrowFillRecordedTopic || lg.Topics[1] != intentId {
		return false, nil
	}
	return bytes.Equal(lg.Data, eventData), nil
}

// merkleRoot recomputes the root from a leaf, its siblings and its
// index, low bit deciding the side at each level.
func merkleRoot(leaf common.Hash, path [][]byte, index uint32) common.Hash {
	current := leaf
	for _, sib := range path {
		if index&1 == 0 {
			current = crypto.Keccak256Hash(current.Bytes(), sib)
		} else {
			current = crypto.Keccak256Hash(sib, current.Bytes())
		}
		index >>= 1
	}
	return current
}

// MerkleRoot is the prover-side counterpart of the verifier's walk,
// exported for fixture construction.
func MerkleRoot(leaf common.Hash, path []common.Hash, index uint32) common.Hash {
	raw := make([][]byte, len(path))
	for i, h := range path {
		raw[i] = h.Bytes()
	}
	return merkleRoot(leaf, raw, index)
}
