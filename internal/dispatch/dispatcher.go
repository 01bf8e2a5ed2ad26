package dispatch

import (
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/registry"
	"github.com/hublend/hublend-settler/internal/state"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
)

var (
	ErrUnauthorizedCaller    = errors.New("caller is not an allowed dispatcher")
	ErrRelayerFeeTooHigh     = errors.New("relayer fee exceeds the allowed maximum")
	ErrInvalidRoute          = errors.New("route is missing a pool, counterpart or receiver")
	ErrQuoteExpired          = errors.New("quote is older than the route allows")
	ErrQuoteInFuture         = errors.New("quote timestamp is too far in the future")
	ErrInvalidQuoteDeadlines = errors.New("quote deadlines are missing or inverted")
)

// Quote is the relayer-provided price and timing for one transfer.
type Quote struct {
	OutputAmount        *big.Int
	QuoteTimestamp      time.Time
	ExclusivityDeadline time.Time
	FillDeadline        time.Time
	ExclusiveRelayer    common.Address
}

// Request describes a locked intent ready for bridging.
type Request struct {
	IntentId      common.Hash
	IntentType    types.IntentType
	User          common.Address
	Recipient     common.Address
	OutputToken   common.Address
	Amount        *big.Int // hub-unit
	OutputChainId uint64
	RelayerFee    *big.Int // spoke-unit
	MaxRelayerFee *big.Int
	HubAsset      common.Address
	Relayer       common.Address
}

// Result carries the encoded destination-bound message and its audit
// order. The bridge transport hands the message to the destination.
type Result struct {
	Order   *db.DispatchOrder
	Message *types.FillMessage
}

// Dispatcher turns a locked intent into a validated bridge transfer
// request. It never mutates the lock; the lock is consumed only after a
// proven fill comes back through the finalizer.
type Dispatcher struct {
	state      *state.State
	registry   *registry.Keeper
	allowlist  map[common.Address]bool
	hubChainId uint64
	dispatcher common.Address
	finalizer  common.Address
	maxDrift   time.Duration

	nowFunc func() time.Time
}

func NewDispatcher(st *state.State, reg *registry.Keeper, allowed []common.Address, hubChainId uint64, dispatcher, finalizer common.Address, maxDrift time.Duration) *Dispatcher {
	allowlist := make(map[common.Address]bool, len(allowed))
	for _, a := range allowed {
		allowlist[a] = true
	}
	return &Dispatcher{
		state:      st,
		registry:   reg,
		allowlist:  allowlist,
		hubChainId: hubChainId,
		dispatcher: dispatcher,
		finalizer:  finalizer,
		maxDrift:   maxDrift,
		nowFunc:    time.Now,
	}
}

func (d *Dispatcher) SetNowFunc(now func() time.Time) {
	d.nowFunc = now
}

// DispatchBorrowFill validates fee, route and quote windows, then
// produces the destination-bound fill message. The message embeds the
// hub dispatcher and finalizer so the spoke can authenticate origin
// without trusting the transport's metadata.
func (d *Dispatcher) DispatchBorrowFill(caller common.Address, req *Request, quote *Quote) (*Result, error) {
	if !d.allowlist[caller] {
		return nil, ErrUnauthorizedCaller
	}
	if req.RelayerFee.Cmp(req.MaxRelayerFee) > 0 {
		return nil, ErrRelayerFeeTooHigh
	}
	if quote.OutputAmount == nil || req.RelayerFee.Cmp(quote.OutputAmount) >= 0 {
		return nil, ErrRelayerFeeTooHigh
	}

	route, err := d.registry.GetRoute(req.HubAsset, req.OutputChainId)
	if err != nil {
		return nil, err
	}
	if isZeroAddr(route.BridgePool) || isZeroAddr(route.CounterpartToken) || isZeroAddr(route.CounterpartReceiver) {
		return nil, ErrInvalidRoute
	}

	now := d.nowFunc()
	if err := d.checkQuoteWindow(quote, route, now); err != nil {
		return nil, err
	}

	// quote wins, then the route's configured relayer, then whoever the
	// caller nominated on the request
	exclusiveRelayer := quote.ExclusiveRelayer
	if exclusiveRelayer == (common.Address{}) {
		exclusiveRelayer = common.HexToAddress(route.ExclusiveRelayer)
	}
	if exclusiveRelayer == (common.Address{}) {
		exclusiveRelayer = req.Relayer
	}

	hubAsset, spokeToken, err := d.registry.ResolveSpokeToken(req.OutputChainId, req.OutputToken)
	if err != nil {
		return nil, err
	}
	spokeAmount, err := types.RescaleAmount(req.Amount, hubAsset.Decimals, spokeToken.Decimals)
	if err != nil {
		return nil, err
	}

	msg := &types.FillMessage{
		IntentId:           req.IntentId,
		IntentType:         req.IntentType,
		User:               req.User,
		Recipient:          req.Recipient,
		SpokeToken:         req.OutputToken,
		HubAsset:           req.HubAsset,
		Amount:             spokeAmount,
		Fee:                req.RelayerFee,
		Relayer:            exclusiveRelayer,
		SourceChainId:      d.hubChainId,
		DestinationChainId: req.OutputChainId,
		HubDispatcher:      d.dispatcher,
		HubFinalizer:       d.finalizer,
		SpokeDecimals:      spokeToken.Decimals,
	}
	msgHash := msg.Hash()

	order := &db.DispatchOrder{
		OrderId:          uuid.New().String(),
		IntentId:         req.IntentId.Hex(),
		MessageHash:      msgHash.Hex(),
		DestChainId:      req.OutputChainId,
		Amount:           db.BigToDec(spokeAmount),
		RelayerFee:       db.BigToDec(req.RelayerFee),
		ExclusiveRelayer: exclusiveRelayer.Hex(),
		FillDeadline:     quote.FillDeadline,
	}
	if err := d.state.CreateDispatchOrder(order); err != nil {
		return nil, err
	}

	log.Infof("Dispatch created, intent %s, order %s, message hash %s, dest chain %d, amount %s, fee %s",
		req.IntentId.Hex(), order.OrderId, msgHash.Hex(), req.OutputChainId, spokeAmount, req.RelayerFee)

	d.state.EventBus.Publish(state.FillDispatched, order)
	return &Result{Order: order, Message: msg}, nil
}

// checkQuoteWindow bounds how stale or speculative a price quote may be
// before it authorizes a transfer.
func (d *Dispatcher) checkQuoteWindow(quote *Quote, route *db.Route, now time.Time) error {
	if quote.QuoteTimestamp.IsZero() {
		return ErrInvalidQuoteDeadlines
	}
	maxAge := time.Duration(route.MaxQuoteAge) * time.Second
	if now.After(quote.QuoteTimestamp.Add(maxAge)) {
		return ErrQuoteExpired
	}
	if quote.QuoteTimestamp.After(now.Add(d.maxDrift)) {
		return ErrQuoteInFuture
	}
	if quote.FillDeadline.IsZero() || quote.ExclusivityDeadline.After(quote.FillDeadline) {
		return ErrInvalidQuoteDeadlines
	}
	if !quote.FillDeadline.After(quote.QuoteTimestamp) || !quote.FillDeadline.After(now) {
		return ErrInvalidQuoteDeadlines
	}
	if !quote.ExclusivityDeadline.After(quote.QuoteTimestamp) || !quote.ExclusivityDeadline.After(now) {
		return ErrInvalidQuoteDeadlines
	}
	// the route caps how far past the quote a fill may still land
	buffer := time.Duration(route.FillDeadlineBuffer) * time.Second
	if quote.FillDeadline.After(quote.QuoteTimestamp.Add(buffer)) {
		return ErrInvalidQuoteDeadlines
	}
	return nil
}

func isZeroAddr(hex string) bool {
	return common.HexToAddress(hex) == (common.Address{})
}
