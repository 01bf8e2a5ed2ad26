package spoke

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/go-errors/errors"
	log "github.com/sirupsen/logrus"
)

var erc20TransferSelector = crypto.Keccak256([]byte("transfer(address,uint256)"))[:4]

const (
	erc20TransferGasLimit = 100000
	vaultRequestTimeout   = time.Second * 30
)

// EvmVault pays fills out of a hot wallet holding the spoke tokens.
type EvmVault struct {
	client  *ethclient.Client
	key     *ecdsa.PrivateKey
	sender  common.Address
	chainId *big.Int
}

func NewEvmVault(client *ethclient.Client, privKeyHex string, chainId uint64) (*EvmVault, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privKeyHex), "0x"))
	if err != nil {
		return nil, errors.Wrap(err, 0)
	}
	return &EvmVault{
		client:  client,
		key:     key,
		sender:  crypto.PubkeyToAddress(key.PublicKey),
		chainId: new(big.Int).SetUint64(chainId),
	}, nil
}

func (v *EvmVault) Transfer(token, to common.Address, amount *big.Int) error {
	ctx, cancel := context.WithTimeout(context.Background(), vaultRequestTimeout)
	defer cancel()

	nonce, err := v.client.PendingNonceAt(ctx, v.sender)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	gasPrice, err := v.client.SuggestGasPrice(ctx)
	if err != nil {
		return errors.Wrap(err, 0)
	}

	data := make([]byte, 0, 4+32+32)
	data = append(data, erc20TransferSelector...)
	data = append(data, common.LeftPadBytes(to.Bytes(), 32)...)
	data = append(data, common.BigToHash(amount).Bytes()...)

	tx := gethtypes.NewTx(&gethtypes.LegacyTx{
		Nonce:    nonce,
		To:       &token,
		Gas:      erc20TransferGasLimit,
		GasPrice: gasPrice,
		Data:     data,
	})
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(v.chainId), v.key)
	if err != nil {
		return errors.Wrap(err, 0)
	}
	if err := v.client.SendTransaction(ctx, signed); err != nil {
		return errors.Wrap(err, 0)
	}
	log.Infof("Vault transfer sent, token %s, to %s, amount %s, tx %s",
		token.Hex(), to.Hex(), amount, signed.Hash().Hex())
	return nil
}
