package proof

import (
	"encoding/binary"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// AttestedFinalityVerifier accepts a 65-byte secp256k1 signature by the
// chain's configured attestor over keccak(chainId || blockNumber ||
// blockHash). It is the light-client stand-in for chains whose finality
// is attested by a committee signer; a malformed or mis-signed blob is
// a negative result, not an error.
type AttestedFinalityVerifier struct{}

func NewAttestedFinalityVerifier() *AttestedFinalityVerifier {
	return &AttestedFinalityVerifier{}
}

// FinalityDigest is the message the attestor signs for one block.
func FinalityDigest(chainId, blockNumber uint64, blockHash common.Hash) common.Hash {
	buf := make([]byte, 0, 8+8+32)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], chainId)
	buf = append(buf, b[:]...)
	binary.BigEndian.PutUint64(b[:], blockNumber)
	buf = append(buf, b[:]...)
	buf = append(buf, blockHash.Bytes()...)
	return crypto.Keccak256Hash(buf)
}

func (v *AttestedFinalityVerifier) VerifyFinality(chainId uint64, blockNumber uint64, blockHash common.Hash, attestor common.Address, finalityProof []byte) (bool, error) {
	if len(finalityProof) != crypto.SignatureLength {
		return false, nil
	}
	if attestor == (common.Address{}) {
		return false, nil
	}
	digest := FinalityDigest(chainId, blockNumber, blockHash)
	pub, err := crypto.SigToPub(digest.Bytes(), finalityProof)
	if err != nil {
		return false, nil
	}
	return crypto.PubkeyToAddress(*pub) == attestor, nil
}
