package proof

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttestedFinalityVerifier(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)
	attestor := crypto.PubkeyToAddress(key.PublicKey)

	blockHash := common.HexToHash("0xabc")
	digest := FinalityDigest(8453, 1234, blockHash)
	sig, err := crypto.Sign(digest.Bytes(), key)
	require.NoError(t, err)

	v := NewAttestedFinalityVerifier()

	ok, err := v.VerifyFinality(8453, 1234, blockHash, attestor, sig)
	require.NoError(t, err)
	assert.True(t, ok)

	// signature over a different block does not transfer
	ok, err = v.VerifyFinality(8453, 1235, blockHash, attestor, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.VerifyFinality(1, 1234, blockHash, attestor, sig)
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong signer
	otherKey, err := crypto.GenerateKey()
	require.NoError(t, err)
	otherSig, err := crypto.Sign(digest.Bytes(), otherKey)
	require.NoError(t, err)
	ok, err = v.VerifyFinality(8453, 1234, blockHash, attestor, otherSig)
	require.NoError(t, err)
	assert.False(t, ok)

	// malformed proofs are a negative verdict, not an error
	ok, err = v.VerifyFinality(8453, 1234, blockHash, attestor, sig[:64])
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = v.VerifyFinality(8453, 1234, blockHash, common.Address{}, sig)
	require.NoError(t, err)
	assert.False(t, ok)
}
