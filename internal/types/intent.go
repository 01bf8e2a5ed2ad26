package types

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

type IntentType uint8

const (
	IntentUnknown IntentType = iota
	IntentSupply
	IntentBorrow
	IntentRepay
	IntentWithdraw
)

func (t IntentType) String() string {
	switch t {
	case IntentSupply:
		return "supply"
	case IntentBorrow:
		return "borrow"
	case IntentRepay:
		return "repay"
	case IntentWithdraw:
		return "withdraw"
	}
	return "unknown"
}

// IsOutbound reports whether the intent moves funds hub -> spoke and
// therefore requires a liquidity lock.
func (t IntentType) IsOutbound() bool {
	return t == IntentBorrow || t == IntentWithdraw
}

// IsInbound reports whether the intent moves funds spoke -> hub via the
// pending-deposit path.
func (t IntentType) IsInbound() bool {
	return t == IntentSupply || t == IntentRepay
}

// Intent is the user-signed request consumed by the inbox before any of
// this engine runs. Signature and nonce checks happen upstream.
type Intent struct {
	IntentType    IntentType
	User          common.Address
	InputChainId  uint64
	OutputChainId uint64
	InputToken    common.Address
	OutputToken   common.Address
	Amount        *big.Int
	Recipient     common.Address
	MaxRelayerFee *big.Int
	Nonce         uint64
	Deadline      uint64 // unix seconds
}

// IntentId hashes the canonical intent fields. The same fields always
// produce the same id, so the lock layer can reject a second lock for a
// replayed intent without trusting the caller.
func (i *Intent) IntentId() common.Hash {
	buf := make([]byte, 0, 1+20+8+8+20+20+32+20+32+8+8)
	buf = append(buf, byte(i.IntentType))
	buf = append(buf, i.User.Bytes()...)
	buf = appendUint64(buf, i.InputChainId)
	buf = appendUint64(buf, i.OutputChainId)
	buf = append(buf, i.InputToken.Bytes()...)
	buf = append(buf, i.OutputToken.Bytes()...)
	buf = append(buf, common.BigToHash(i.Amount).Bytes()...)
	buf = append(buf, i.Recipient.Bytes()...)
	buf = append(buf, common.BigToHash(i.MaxRelayerFee).Bytes()...)
	buf = appendUint64(buf, i.Nonce)
	buf = appendUint64(buf, i.Deadline)
	return crypto.Keccak256Hash(buf)
}
