package config

import (
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

var AppConfig Config

func InitConfig() {
	viper.AutomaticEnv()

	// Default config
	viper.SetDefault("HTTP_PORT", "8080")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("DB_DIR", "/app/db")
	viper.SetDefault("HUB_CHAIN_ID", 1)
	viper.SetDefault("SPOKE_CHAIN_ID", 0)
	viper.SetDefault("ROLE", "hub")
	viper.SetDefault("HUB_DISPATCHER", "")
	viper.SetDefault("HUB_FINALIZER", "")
	viper.SetDefault("BRIDGE_TRANSPORT", "")
	viper.SetDefault("EXPECTED_FILL_RELAYER", "")
	viper.SetDefault("LOCK_TTL", "30m")
	viper.SetDefault("MAX_FUTURE_DRIFT", "60s")
	viper.SetDefault("SPOKE_RPC", "http://localhost:8545")
	viper.SetDefault("SPOKE_START_HEIGHT", 0)
	viper.SetDefault("SPOKE_CONFIRMATIONS", 3)
	viper.SetDefault("SPOKE_MAX_BLOCK_RANGE", 500)
	viper.SetDefault("SPOKE_REQUEST_INTERVAL", "10s")
	viper.SetDefault("DISPATCH_CALLERS", "")
	viper.SetDefault("VAULT_PRIVATE_KEY", "")
	viper.SetDefault("ADMIN_JWT_SECRET", "")
	viper.SetDefault("ADMIN_ADDRESS", "")

	logLevel, err := logrus.ParseLevel(strings.ToLower(viper.GetString("LOG_LEVEL")))
	if err != nil {
		logrus.Fatalf("Invalid log level: %v", err)
	}

	AppConfig = Config{
		HTTPPort:             viper.GetString("HTTP_PORT"),
		DbDir:                viper.GetString("DB_DIR"),
		LogLevel:             logLevel,
		Role:                 viper.GetString("ROLE"),
		HubChainId:           viper.GetUint64("HUB_CHAIN_ID"),
		SpokeChainId:         viper.GetUint64("SPOKE_CHAIN_ID"),
		HubDispatcher:        common.HexToAddress(viper.GetString("HUB_DISPATCHER")),
		HubFinalizer:         common.HexToAddress(viper.GetString("HUB_FINALIZER")),
		BridgeTransport:      common.HexToAddress(viper.GetString("BRIDGE_TRANSPORT")),
		ExpectedFillRelayer:  common.HexToAddress(viper.GetString("EXPECTED_FILL_RELAYER")),
		AdminAddress:         common.HexToAddress(viper.GetString("ADMIN_ADDRESS")),
		LockTtl:              viper.GetDuration("LOCK_TTL"),
		MaxFutureDrift:       viper.GetDuration("MAX_FUTURE_DRIFT"),
		SpokeRPC:             viper.GetString("SPOKE_RPC"),
		SpokeStartHeight:     viper.GetUint64("SPOKE_START_HEIGHT"),
		SpokeConfirmations:   viper.GetInt("SPOKE_CONFIRMATIONS"),
		SpokeMaxBlockRange:   viper.GetInt("SPOKE_MAX_BLOCK_RANGE"),
		SpokeRequestInterval: viper.GetDuration("SPOKE_REQUEST_INTERVAL"),
		DispatchCallers:      parseAddressList(viper.GetString("DISPATCH_CALLERS")),
		VaultPrivateKey:      viper.GetString("VAULT_PRIVATE_KEY"),
		AdminJwtSecret:       viper.GetString("ADMIN_JWT_SECRET"),
	}

	if AppConfig.LockTtl < time.Minute {
		logrus.Warnf("Lock TTL %v is too short, set to 1m", AppConfig.LockTtl)
		AppConfig.LockTtl = time.Minute
	}

	logrus.Infof("Init config, role %s, hub chain %d, lock ttl %v, max future drift %v",
		AppConfig.Role, AppConfig.HubChainId, AppConfig.LockTtl, AppConfig.MaxFutureDrift)

	logrus.SetOutput(os.Stdout)
	logrus.SetLevel(AppConfig.LogLevel)
}

func parseAddressList(raw string) []common.Address {
	var out []common.Address
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, common.HexToAddress(part))
	}
	return out
}

type Config struct {
	HTTPPort             string
	DbDir                string
	LogLevel             logrus.Level
	Role                 string // "hub" or "spoke"
	HubChainId           uint64
	SpokeChainId         uint64
	HubDispatcher        common.Address
	HubFinalizer         common.Address
	BridgeTransport      common.Address
	ExpectedFillRelayer  common.Address
	AdminAddress         common.Address
	LockTtl              time.Duration
	MaxFutureDrift       time.Duration
	SpokeRPC             string
	SpokeStartHeight     uint64
	SpokeConfirmations   int
	SpokeMaxBlockRange   int
	SpokeRequestInterval time.Duration
	DispatchCallers      []common.Address
	VaultPrivateKey      string
	AdminJwtSecret       string
}
