package proof

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildReceipt(t *testing.T, emitter common.Address, intentId common.Hash, eventData []byte) []byte {
	t.Helper()
	receipt := &gethtypes.Receipt{
		Status:            gethtypes.ReceiptStatusSuccessful,
		CumulativeGasUsed: 21000,
		Logs: []*gethtypes.Log{
			{
				Address: emitter,
				Topics:  []common.Hash{BorrowFillRecordedTopic, intentId},
				Data:    eventData,
			},
		},
	}
	encoded, err := receipt.MarshalBinary()
	require.NoError(t, err)
	return encoded
}

func TestReceiptInclusionVerifier(t *testing.T) {
	emitter := common.HexToAddress("0xc000000000000000000000000000000000000001")
	intentId := common.HexToHash("0x01")
	eventData := []byte("borrow fill event payload")

	encoded := buildReceipt(t, emitter, intentId, eventData)
	leaf := crypto.Keccak256Hash(encoded)
	path := []common.Hash{common.HexToHash("0xs1"), common.HexToHash("0xs2")}
	index := uint32(2)
	root := MerkleRoot(leaf, path, index)

	blob, err := EncodeReceiptProof(encoded, path, index)
	require.NoError(t, err)

	v := NewReceiptInclusionVerifier()

	ok, err := v.VerifyInclusion(root, emitter, intentId, eventData, 0, blob)
	require.NoError(t, err)
	assert.True(t, ok)

	// wrong root
	ok, err = v.VerifyInclusion(common.HexToHash("0xbad"), emitter, intentId, eventData, 0, blob)
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong emitter
	ok, err = v.VerifyInclusion(root, common.HexToAddress("0x99"), intentId, eventData, 0, blob)
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong intent id
	ok, err = v.VerifyInclusion(root, emitter, common.HexToHash("0x02"), eventData, 0, blob)
	require.NoError(t, err)
	assert.False(t, ok)

	// wrong event data
	ok, err = v.VerifyInclusion(root, emitter, intentId, []byte("tampered"), 0, blob)
	require.NoError(t, err)
	assert.False(t, ok)

	// log index out of range
	ok, err = v.VerifyInclusion(root, emitter, intentId, eventData, 1, blob)
	require.NoError(t, err)
	assert.False(t, ok)

	// garbage blob is a negative verdict, not an error
	ok, err = v.VerifyInclusion(root, emitter, intentId, eventData, 0, []byte{0x01, 0x02})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestReceiptInclusionVerifierRejectsFailedReceipt(t *testing.T) {
	emitter := common.HexToAddress("0xc000000000000000000000000000000000000001")
	intentId := common.HexToHash("0x01")
	eventData := []byte("payload")

	receipt := &gethtypes.Receipt{
		Status:            gethtypes.ReceiptStatusFailed,
		CumulativeGasUsed: 21000,
		Logs: []*gethtypes.Log{
			{
				Address: emitter,
				Topics:  []common.Hash{BorrowFillRecordedTopic, intentId},
				Data:    eventData,
			},
		},
	}
	encoded, err := receipt.MarshalBinary()
	require.NoError(t, err)

	root := crypto.Keccak256Hash(encoded)
	blob, err := EncodeReceiptProof(encoded, nil, 0)
	require.NoError(t, err)

	ok, err := NewReceiptInclusionVerifier().VerifyInclusion(root, emitter, intentId, eventData, 0, blob)
	require.NoError(t, err)
	assert.False(t, ok)
}
