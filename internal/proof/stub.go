package proof

import (
	"github.com/ethereum/go-ethereum/common"
)

// StubFinalityVerifier reports a fixed verdict. Useful for local runs
// against devnets with no attestation set, and for tests that want to
// drive the backend without building signatures.
type StubFinalityVerifier struct {
	Verdict bool
	Err     error
}

func (s *StubFinalityVerifier) VerifyFinality(chainId uint64, blockNumber uint64, blockHash common.Hash, attestor common.Address, finalityProof []byte) (bool, error) {
	return s.Verdict, s.Err
}

// StubInclusionVerifier reports a fixed verdict and records the data it
// was asked to check.
type StubInclusionVerifier struct {
	Verdict bool
	Err     error

	LastEventData []byte
	LastIntentId  common.Hash
}

func (s *StubInclusionVerifier) VerifyInclusion(receiptsRoot common.Hash, emitter common.Address, intentId common.Hash, eventData []byte, logIndex uint32, inclusionProof []byte) (bool, error) {
	s.LastEventData = append([]byte(nil), eventData...)
	s.LastIntentId = intentId
	return s.Verdict, s.Err
}
