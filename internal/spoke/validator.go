package spoke

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnauthorizedSpokePool       = errors.New("caller is not the configured bridge transport")
	ErrInvalidCallbackRelayer      = errors.New("callback relayer does not match the expected fill relayer")
	ErrInvalidMessageSourceChain   = errors.New("message source chain does not match the hub chain")
	ErrInvalidMessageDestChain     = errors.New("message destination chain does not match this chain")
	ErrInvalidMessageHubDispatcher = errors.New("message hub dispatcher does not match the configured identity")
	ErrInvalidMessageHubFinalizer  = errors.New("message hub finalizer does not match the configured identity")
	ErrZeroParticipant             = errors.New("user, recipient or relayer is the zero address")
	ErrRelayerMismatch             = errors.New("decoded relayer does not match the callback relayer")
	ErrInvalidIntentType           = errors.New("intent type is not fillable")
	ErrZeroAsset                   = errors.New("token address is zero")
	ErrInvalidFee                  = errors.New("fee must be positive and below the amount")
	ErrTokenMismatch               = errors.New("token sent does not match the decoded spoke token")
	ErrAmountMismatch              = errors.New("amount received does not match the decoded amount")
)

// TokenVault moves spoke-side funds. ERC-20 mechanics live behind this
// interface; the validator only decides whether a payout may happen.
type TokenVault interface {
	Transfer(token, to common.Address, amount *big.Int) error
}

// FillEvent is the audit record published after a successful payout.
// Its fields are what the hub later proves against.
type FillEvent struct {
	IntentId    common.Hash
	Message     *types.FillMessage
	MessageHash common.Hash
	PaidOut     *big.Int
	Fee         *big.Int
}

// Validator is the spoke-side message validation state machine. One
// entry point, sequential fail-closed checks, exactly-once payout.
type Validator struct {
	state *state.State
	vault TokenVault

	bridgeTransport common.Address
	fillRelayer     common.Address
	hubChainId      uint64
	chainId         uint64
	hubDispatcher   common.Address
	hubFinalizer    common.Address
}

func NewValidator(st *state.State, vault TokenVault, bridgeTransport, fillRelayer common.Address, hubChainId, chainId uint64, hubDispatcher, hubFinalizer common.Address) *Validator {
	return &Validator{
		state:           st,
		vault:           vault,
		bridgeTransport: bridgeTransport,
		fillRelayer:     fillRelayer,
		hubChainId:      hubChainId,
		chainId:         chainId,
		hubDispatcher:   hubDispatcher,
		hubFinalizer:    hubFinalizer,
	}
}

// HandleBridgeMessage consumes one untrusted bridge callback. Any
// violation rejects the whole payout; identity mismatches name both
// the expected and actual value so an operator can tell
// misconfiguration from attack.
func (v *Validator) HandleBridgeMessage(caller common.Address, tokenSent common.Address, amountReceived *big.Int, callbackRelayer common.Address, message []byte) error {
	if caller != v.bridgeTransport {
		return fmt.Errorf("%w: expected %s, got %s", ErrUnauthorizedSpokePool, v.bridgeTransport.Hex(), caller.Hex())
	}
	if len(message) != types.FillMessageSize {
		return fmt.Errorf("%w: expected %d bytes, got %d", types.ErrInvalidMessageLength, types.FillMessageSize, len(message))
	}
	if callbackRelayer != v.fillRelayer {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidCallbackRelayer, v.fillRelayer.Hex(), callbackRelayer.Hex())
	}

	decoded, err := types.DecodeFillMessage(message)
	if err != nil {
		return err
	}
	if decoded.SourceChainId != v.hubChainId {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidMessageSourceChain, v.hubChainId, decoded.SourceChainId)
	}
	if decoded.DestinationChainId != v.chainId {
		return fmt.Errorf("%w: expected %d, got %d", ErrInvalidMessageDestChain, v.chainId, decoded.DestinationChainId)
	}
	if decoded.HubDispatcher != v.hubDispatcher {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidMessageHubDispatcher, v.hubDispatcher.Hex(), decoded.HubDispatcher.Hex())
	}
	if decoded.HubFinalizer != v.hubFinalizer {
		return fmt.Errorf("%w: expected %s, got %s", ErrInvalidMessageHubFinalizer, v.hubFinalizer.Hex(), decoded.HubFinalizer.Hex())
	}

	zero := common.Address{}
	if decoded.User == zero || decoded.Recipient == zero || decoded.Relayer == zero {
		return ErrZeroParticipant
	}
	if decoded.Relayer != callbackRelayer {
		return fmt.Errorf("%w: decoded %s, callback %s", ErrRelayerMismatch, decoded.Relayer.Hex(), callbackRelayer.Hex())
	}
	if !decoded.IntentType.IsOutbound() {
		return fmt.Errorf("%w: got %s", ErrInvalidIntentType, decoded.IntentType)
	}
	if decoded.SpokeToken == zero || decoded.HubAsset == zero {
		return ErrZeroAsset
	}
	if decoded.Fee.Sign() <= 0 || decoded.Fee.Cmp(decoded.Amount) >= 0 {
		return ErrInvalidFee
	}

	// the transport could substitute token or amount under the message
	if tokenSent != decoded.SpokeToken {
		return fmt.Errorf("%w: sent %s, decoded %s", ErrTokenMismatch, tokenSent.Hex(), decoded.SpokeToken.Hex())
	}
	if amountReceived == nil || amountReceived.Cmp(decoded.Amount) != 0 {
		return fmt.Errorf("%w: received %v, decoded %s", ErrAmountMismatch, amountReceived, decoded.Amount)
	}

	payout := new(big.Int).Sub(decoded.Amount, decoded.Fee)
	msgHash := decoded.Hash()
	record := &db.FillRecord{
		IntentId:    decoded.IntentId.Hex(),
		Recipient:   decoded.Recipient.Hex(),
		Relayer:     decoded.Relayer.Hex(),
		Amount:      db.BigToDec(decoded.Amount),
		Fee:         db.BigToDec(decoded.Fee),
		MessageHash: msgHash.Hex(),
	}

	// mark-then-act: the registry row is written before any transfer,
	// and both roll back together if a transfer fails
	err = v.state.MarkFilledThen(record, func() error {
		if err := v.vault.Transfer(decoded.SpokeToken, decoded.Recipient, payout); err != nil {
			return err
		}
		return v.vault.Transfer(decoded.SpokeToken, decoded.Relayer, decoded.Fee)
	})
	if err != nil {
		return err
	}

	log.Infof("Fill paid, intent %s, recipient %s, payout %s, fee %s, message hash %s",
		decoded.IntentId.Hex(), decoded.Recipient.Hex(), payout, decoded.Fee, msgHash.Hex())

	v.state.EventBus.Publish(state.FillPaid, FillEvent{
		IntentId:    decoded.IntentId,
		Message:     decoded,
		MessageHash: msgHash,
		PaidOut:     payout,
		Fee:         decoded.Fee,
	})
	return nil
}
