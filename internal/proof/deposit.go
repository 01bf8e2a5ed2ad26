package proof

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/hublend/hublend-settler/internal/types"
)

// DepositProofVerifier checks the validity proof of one inbound
// deposit against the witness commitment. A false return means the
// proof does not cover this witness; an error means the verifier
// itself could not run.
type DepositProofVerifier interface {
	VerifyDeposit(witness *types.DepositWitness, proof []byte) (bool, error)
}

// AttestedDepositVerifier accepts a 65-byte secp256k1 signature over
// the witness commitment from the per-chain attestor. It stands in for
// the SNARK verifier behind the same interface; swapping it out does
// not touch the finalizer.
type AttestedDepositVerifier struct {
	attestorFor func(chainId uint64) (common.Address, error)
}

func NewAttestedDepositVerifier(attestorFor func(chainId uint64) (common.Address, error)) *AttestedDepositVerifier {
	return &AttestedDepositVerifier{attestorFor: attestorFor}
}

func (v *AttestedDepositVerifier) VerifyDeposit(witness *types.DepositWitness, proof []byte) (bool, error) {
	attestor, err := v.attestorFor(witness.SourceChainId)
	if err != nil {
		return false, err
	}
	if attestor == (common.Address{}) {
		return false, nil
	}
	if len(proof) != 65 {
		return false, nil
	}
	sig := make([]byte, 65)
	copy(sig, proof)
	if sig[64] >= 27 {
		sig[64] -= 27
	}
	pub, err := crypto.SigToPub(witness.Commitment().Bytes(), sig)
	if err != nil {
		return false, nil
	}
	return crypto.PubkeyToAddress(*pub) == attestor, nil
}
