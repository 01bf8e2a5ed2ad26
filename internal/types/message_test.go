package types

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleFillMessage() *FillMessage {
	return &FillMessage{
		IntentId:           common.HexToHash("0xa1b2"),
		IntentType:         IntentBorrow,
		User:               common.HexToAddress("0x1111111111111111111111111111111111111111"),
		Recipient:          common.HexToAddress("0x2222222222222222222222222222222222222222"),
		SpokeToken:         common.HexToAddress("0x3333333333333333333333333333333333333333"),
		HubAsset:           common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Amount:             big.NewInt(1_000_000),
		Fee:                big.NewInt(2_500),
		Relayer:            common.HexToAddress("0x5555555555555555555555555555555555555555"),
		SourceChainId:      1,
		DestinationChainId: 8453,
		HubDispatcher:      common.HexToAddress("0x6666666666666666666666666666666666666666"),
		HubFinalizer:       common.HexToAddress("0x7777777777777777777777777777777777777777"),
		SpokeDecimals:      6,
	}
}

func TestFillMessageRoundTrip(t *testing.T) {
	msg := sampleFillMessage()
	encoded := msg.Encode()
	assert.Len(t, encoded, FillMessageSize)

	decoded, err := DecodeFillMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
	assert.Equal(t, msg.Hash(), decoded.Hash())
}

func TestFillMessageLengthCheck(t *testing.T) {
	encoded := sampleFillMessage().Encode()

	_, err := DecodeFillMessage(encoded[:len(encoded)-1])
	assert.ErrorIs(t, err, ErrInvalidMessageLength)

	_, err = DecodeFillMessage(append(encoded, 0x00))
	assert.ErrorIs(t, err, ErrInvalidMessageLength)

	_, err = DecodeFillMessage(nil)
	assert.ErrorIs(t, err, ErrInvalidMessageLength)
}

func TestFillMessageHashChangesWithContent(t *testing.T) {
	msg := sampleFillMessage()
	base := msg.Hash()

	msg.Fee = big.NewInt(2_501)
	assert.NotEqual(t, base, msg.Hash())
}

func TestDepositMessageRoundTrip(t *testing.T) {
	msg := &DepositMessage{
		DepositId:     common.HexToHash("0x05"),
		IntentType:    IntentRepay,
		User:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		HubAsset:      common.HexToAddress("0x4444444444444444444444444444444444444444"),
		Amount:        big.NewInt(120_000_000),
		SourceChainId: 10,
	}
	encoded := msg.Encode()
	assert.Len(t, encoded, DepositMessageSize)

	decoded, err := DecodeDepositMessage(encoded)
	require.NoError(t, err)
	assert.Equal(t, msg, decoded)
}

func TestDepositMessageLengthCheck(t *testing.T) {
	encoded := (&DepositMessage{Amount: big.NewInt(1)}).Encode()

	_, err := DecodeDepositMessage(encoded[:DepositMessageSize-1])
	assert.ErrorIs(t, err, ErrInvalidMessageLength)

	_, err = DecodeDepositMessage(append(encoded, 0x00))
	assert.ErrorIs(t, err, ErrInvalidMessageLength)
}

func TestIntentIdDeterministic(t *testing.T) {
	intent := &Intent{
		IntentType:    IntentBorrow,
		User:          common.HexToAddress("0x1111111111111111111111111111111111111111"),
		InputChainId:  1,
		OutputChainId: 8453,
		OutputToken:   common.HexToAddress("0x3333333333333333333333333333333333333333"),
		Amount:        big.NewInt(500),
		Recipient:     common.HexToAddress("0x2222222222222222222222222222222222222222"),
		MaxRelayerFee: big.NewInt(5),
		Nonce:         7,
		Deadline:      1700000000,
	}
	first := intent.IntentId()
	assert.Equal(t, first, intent.IntentId())

	intent.Nonce = 8
	assert.NotEqual(t, first, intent.IntentId())
}
