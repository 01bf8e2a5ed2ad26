package types

import (
	"encoding/binary"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Fixed-size wire schemas for bridge callbacks. Decoding requires the
// exact byte length; anything shorter, longer or padded is rejected
// before a single field is read.
const (
	// intentId(32) type(1) user(20) recipient(20) spokeToken(20)
	// hubAsset(20) amount(32) fee(32) relayer(20) sourceChainId(8)
	// destChainId(8) hubDispatcher(20) hubFinalizer(20) spokeDecimals(1)
	FillMessageSize = 32 + 1 + 20 + 20 + 20 + 20 + 32 + 32 + 20 + 8 + 8 + 20 + 20 + 1

	// depositId(32) type(1) user(20) hubAsset(20) amount(32) sourceChainId(8)
	DepositMessageSize = 32 + 1 + 20 + 20 + 32 + 8
)

var ErrInvalidMessageLength = fmt.Errorf("invalid message length")

// FillMessage is the destination-bound payload for a borrow/withdraw
// fill. It embeds the hub dispatcher and finalizer identities so the
// spoke can authenticate origin without trusting bridge metadata.
type FillMessage struct {
	IntentId           common.Hash
	IntentType         IntentType
	User               common.Address
	Recipient          common.Address
	SpokeToken         common.Address
	HubAsset           common.Address
	Amount             *big.Int
	Fee                *big.Int
	Relayer            common.Address
	SourceChainId      uint64
	DestinationChainId uint64
	HubDispatcher      common.Address
	HubFinalizer       common.Address
	SpokeDecimals      uint8
}

func (m *FillMessage) Encode() []byte {
	buf := make([]byte, 0, FillMessageSize)
	buf = append(buf, m.IntentId.Bytes()...)
	buf = append(buf, byte(m.IntentType))
	buf = append(buf, m.User.Bytes()...)
	buf = append(buf, m.Recipient.Bytes()...)
	buf = append(buf, m.SpokeToken.Bytes()...)
	buf = append(buf, m.HubAsset.Bytes()...)
	buf = append(buf, common.BigToHash(m.Amount).Bytes()...)
	buf = append(buf, common.BigToHash(m.Fee).Bytes()...)
	buf = append(buf, m.Relayer.Bytes()...)
	buf = appendUint64(buf, m.SourceChainId)
	buf = appendUint64(buf, m.DestinationChainId)
	buf = append(buf, m.HubDispatcher.Bytes()...)
	buf = append(buf, m.HubFinalizer.Bytes()...)
	buf = append(buf, m.SpokeDecimals)
	return buf
}

// Hash is the keyed identity of an encoded fill message, used to bind
// dispatch events to downstream proofs.
func (m *FillMessage) Hash() common.Hash {
	return crypto.Keccak256Hash(m.Encode())
}

func DecodeFillMessage(data []byte) (*FillMessage, error) {
	if len(data) != FillMessageSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidMessageLength, FillMessageSize, len(data))
	}
	r := reader{data: data}
	m := &FillMessage{}
	m.IntentId = r.hash()
	m.IntentType = IntentType(r.byte())
	m.User = r.address()
	m.Recipient = r.address()
	m.SpokeToken = r.address()
	m.HubAsset = r.address()
	m.Amount = r.big()
	m.Fee = r.big()
	m.Relayer = r.address()
	m.SourceChainId = r.uint64()
	m.DestinationChainId = r.uint64()
	m.HubDispatcher = r.address()
	m.HubFinalizer = r.address()
	m.SpokeDecimals = r.byte()
	return m, nil
}

// DepositMessage is the hub-bound payload for a supply/repay deposit.
type DepositMessage struct {
	DepositId     common.Hash
	IntentType    IntentType
	User          common.Address
	HubAsset      common.Address
	Amount        *big.Int
	SourceChainId uint64
}

func (m *DepositMessage) Encode() []byte {
	buf := make([]byte, 0, DepositMessageSize)
	buf = append(buf, m.DepositId.Bytes()...)
	buf = append(buf, byte(m.IntentType))
	buf = append(buf, m.User.Bytes()...)
	buf = append(buf, m.HubAsset.Bytes()...)
	buf = append(buf, common.BigToHash(m.Amount).Bytes()...)
	buf = appendUint64(buf, m.SourceChainId)
	return buf
}

func (m *DepositMessage) Hash() common.Hash {
	return crypto.Keccak256Hash(m.Encode())
}

func DecodeDepositMessage(data []byte) (*DepositMessage, error) {
	if len(data) != DepositMessageSize {
		return nil, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidMessageLength, DepositMessageSize, len(data))
	}
	r := reader{data: data}
	m := &DepositMessage{}
	m.DepositId = r.hash()
	m.IntentType = IntentType(r.byte())
	m.User = r.address()
	m.HubAsset = r.address()
	m.Amount = r.big()
	m.SourceChainId = r.uint64()
	return m, nil
}

func appendUint64(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

// reader walks a length-checked buffer; bounds were verified by the
// caller so every take is in range.
type reader struct {
	data []byte
	off  int
}

func (r *reader) take(n int) []byte {
	b := r.data[r.off : r.off+n]
	r.off += n
	return b
}

func (r *reader) byte() byte {
	return r.take(1)[0]
}

func (r *reader) hash() common.Hash {
	return common.BytesToHash(r.take(32))
}

func (r *reader) address() common.Address {
	return common.BytesToAddress(r.take(20))
}

func (r *reader) big() *big.Int {
	return new(big.Int).SetBytes(r.take(32))
}

func (r *reader) uint64() uint64 {
	return binary.BigEndian.Uint64(r.take(8))
}
