package bridge

import (
	"context"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/go-errors/errors"
	"github.com/hublend/hublend-settler/internal/config"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/state"
	log "github.com/sirupsen/logrus"
)

// FillHandler consumes delivered fill callbacks on a spoke.
type FillHandler interface {
	HandleBridgeMessage(caller common.Address, tokenSent common.Address, amountReceived *big.Int, callbackRelayer common.Address, message []byte) error
}

// DepositHandler consumes delivered deposit callbacks on the hub.
type DepositHandler interface {
	HandleBridgeMessage(caller common.Address, message []byte) error
}

var (
	// FillDelivered(address indexed relayer, address token, uint256 amount, bytes message)
	FillDeliveredTopic = crypto.Keccak256Hash([]byte("FillDelivered(address,address,uint256,bytes)"))
	// DepositDelivered(bytes message)
	DepositDeliveredTopic = crypto.Keccak256Hash([]byte("DepositDelivered(bytes)"))

	fillDeliveredArgs    abi.Arguments
	depositDeliveredArgs abi.Arguments
)

func init() {
	addressTy := mustNewType("address")
	uint256Ty := mustNewType("uint256")
	bytesTy := mustNewType("bytes")
	fillDeliveredArgs = abi.Arguments{
		{Name: "token", Type: addressTy},
		{Name: "amount", Type: uint256Ty},
		{Name: "message", Type: bytesTy},
	}
	depositDeliveredArgs = abi.Arguments{
		{Name: "message", Type: bytesTy},
	}
}

func mustNewType(t string) abi.Type {
	ty, err := abi.NewType(t, "", nil)
	if err != nil {
		log.Fatalf("Failed to build abi type %s: %v", t, err)
	}
	return ty
}

// Listener polls the bridge transport contract for delivered messages
// and hands them to the role's handler. It only advances its checkpoint
// past a block once every log in it was seen; handler rejections are
// final and do not block the sync.
type Listener struct {
	state     *state.State
	ethClient *ethclient.Client

	transport       common.Address
	startHeight     uint64
	confirmations   uint64
	maxBlockRange   uint64
	requestInterval time.Duration

	fills    FillHandler
	deposits DepositHandler
}

func NewListener(st *state.State, fills FillHandler, deposits DepositHandler) *Listener {
	ethClient, err := DialEthClient()
	if err != nil {
		log.Fatalf("Error creating spoke EVM RPC client: %v", err)
	}
	return &Listener{
		state:           st,
		ethClient:       ethClient,
		transport:       config.AppConfig.BridgeTransport,
		startHeight:     config.AppConfig.SpokeStartHeight,
		confirmations:   uint64(config.AppConfig.SpokeConfirmations),
		maxBlockRange:   uint64(config.AppConfig.SpokeMaxBlockRange),
		requestInterval: config.AppConfig.SpokeRequestInterval,
		fills:           fills,
		deposits:        deposits,
	}
}

func DialEthClient() (*ethclient.Client, error) {
	if strings.TrimSpace(config.AppConfig.SpokeRPC) == "" {
		return nil, errors.New("spoke rpc endpoint is not configured")
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()
	client, err := rpc.DialOptions(ctx, config.AppConfig.SpokeRPC)
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return ethclient.NewClient(client), nil
}

func (lis *Listener) Start(ctx context.Context) {
	go lis.listenBridgeEvents(ctx)
}

func (lis *Listener) listenBridgeEvents(ctx context.Context) {
	lastSync, err := lis.state.GetSyncCheckpoint(db.SYNC_KIND_SPOKE)
	if err != nil {
		log.Fatalf("Error querying sync checkpoint: %v", err)
	}
	if lastSync == 0 {
		lastSync = lis.startHeight
	}

	abortInterval := lis.requestInterval + time.Second*2

	for {
		select {
		case <-ctx.Done():
			log.Info("Bridge listener stopping...")
			return
		default:
			latestBlock, err := lis.ethClient.BlockNumber(ctx)
			if err != nil {
				log.Errorf("Error getting latest block number: %v", err)
				time.Sleep(abortInterval)
				continue
			}
			if latestBlock < lis.confirmations {
				time.Sleep(lis.requestInterval)
				continue
			}

			targetBlock := latestBlock - lis.confirmations
			fromBlock := lastSync + 1
			if fromBlock > targetBlock {
				log.Debugf("Sync to tip, target block %d", targetBlock)
				time.Sleep(lis.requestInterval)
				continue
			}
			toBlock := min(fromBlock+lis.maxBlockRange-1, targetBlock)

			log.WithFields(log.Fields{
				"fromBlock": fromBlock,
				"toBlock":   toBlock,
			}).Info("Syncing bridge events")

			if err := lis.filterBridgeEvents(ctx, fromBlock, toBlock); err != nil {
				log.Errorf("Error filtering bridge events from %d to %d: %v", fromBlock, toBlock, err)
				time.Sleep(abortInterval)
				continue
			}

			lastSync = toBlock
			if err := lis.state.SaveSyncCheckpoint(db.SYNC_KIND_SPOKE, lastSync); err != nil {
				log.Errorf("Error saving sync checkpoint at %d: %v", lastSync, err)
			}

			time.Sleep(lis.requestInterval)
		}
	}
}

func (lis *Listener) filterBridgeEvents(ctx context.Context, fromBlock, toBlock uint64) error {
	logs, err := lis.ethClient.FilterLogs(ctx, ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{lis.transport},
		Topics:    [][]common.Hash{{FillDeliveredTopic, DepositDeliveredTopic}},
	})
	if err != nil {
		return errors.Wrap(err, 0)
	}

	for _, vlog := range logs {
		if vlog.Removed || len(vlog.Topics) == 0 {
			continue
		}
		switch vlog.Topics[0] {
		case FillDeliveredTopic:
			if err := lis.processFillDelivered(&vlog); err != nil {
				log.Warnf("Fill callback rejected at block %d, tx %s: %v", vlog.BlockNumber, vlog.TxHash.Hex(), err)
			}
		case DepositDeliveredTopic:
			if err := lis.processDepositDelivered(&vlog); err != nil {
				log.Warnf("Deposit callback rejected at block %d, tx %s: %v", vlog.BlockNumber, vlog.TxHash.Hex(), err)
			}
		}
	}
	return nil
}

func (lis *Listener) processFillDelivered(vlog *gethtypes.Log) error {
	if lis.fills == nil {
		log.Debugf("No fill handler configured, skipping tx %s", vlog.TxHash.Hex())
		return nil
	}
	if len(vlog.Topics) != 2 {
		return errors.Errorf("unexpected topic count %d", len(vlog.Topics))
	}
	relayer := common.BytesToAddress(vlog.Topics[1].Bytes())

	values, err := fillDeliveredArgs.Unpack(vlog.Data)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	token, ok := values[0].(common.Address)
	if !ok {
		return errors.Errorf("unexpected token field type %T", values[0])
	}
	amount, ok := values[1].(*big.Int)
	if !ok {
		return errors.Errorf("unexpected amount field type %T", values[1])
	}
	message, ok := values[2].([]byte)
	if !ok {
		return errors.Errorf("unexpected message field type %T", values[2])
	}
	return lis.fills.HandleBridgeMessage(vlog.Address, token, amount, relayer, message)
}

func (lis *Listener) processDepositDelivered(vlog *gethtypes.Log) error {
	if lis.deposits == nil {
		log.Debugf("No deposit handler configured, skipping tx %s", vlog.TxHash.Hex())
		return nil
	}
	values, err := depositDeliveredArgs.Unpack(vlog.Data)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	message, ok := values[0].([]byte)
	if !ok {
		return errors.Errorf("unexpected message field type %T", values[0])
	}
	return lis.deposits.HandleBridgeMessage(vlog.Address, message)
}

func min(a, b uint64) uint64 {
	if a < b {
		return a
	}
	return b
}
