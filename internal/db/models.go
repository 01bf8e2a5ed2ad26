package db

import (
	"time"

	log "github.com/sirupsen/logrus"
)

const (
	LOCK_STATUS_ACTIVE    = "active"
	LOCK_STATUS_CONSUMED  = "consumed"
	LOCK_STATUS_CANCELLED = "cancelled"

	RESERVE_KIND_LIQUIDITY = "liquidity"
	RESERVE_KIND_DEBT      = "debt"
	RESERVE_KIND_WITHDRAW  = "withdraw"

	DISPATCH_STATUS_CREATED   = "created"
	DISPATCH_STATUS_FINALIZED = "finalized"

	SYNC_KIND_SPOKE = "spoke"
)

// Lock model, a hub-side liquidity reservation against one intent.
// Absence of a row is the "none" state; a row never leaves
// "consumed" or "cancelled" once it gets there.
type Lock struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	IntentId      string    `gorm:"not null;uniqueIndex" json:"intent_id"`
	User          string    `gorm:"not null" json:"user"`
	IntentType    uint8     `gorm:"not null" json:"intent_type"`
	Asset         string    `gorm:"not null;index" json:"asset"`
	Amount        string    `gorm:"not null" json:"amount"` // hub-unit, decimal string
	Relayer       string    `gorm:"not null" json:"relayer"`
	LockTimestamp time.Time `gorm:"not null" json:"lock_timestamp"`
	Expiry        time.Time `gorm:"not null" json:"expiry"`
	Status        string    `gorm:"not null;index" json:"status"` // "active", "consumed", "cancelled"
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// Reservation model, unsigned accumulators backing the lock ledger.
// Kind "liquidity" rows are per asset (User empty); "debt" and
// "withdraw" rows are per (user, asset).
type Reservation struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Asset     string    `gorm:"not null;uniqueIndex:idx_resv_key" json:"asset"`
	User      string    `gorm:"uniqueIndex:idx_resv_key" json:"user"`
	Kind      string    `gorm:"not null;uniqueIndex:idx_resv_key" json:"kind"`
	Amount    string    `gorm:"not null" json:"amount"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// HubAsset model, per-asset liquidity and decimals configuration
type HubAsset struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	Asset          string    `gorm:"not null;uniqueIndex" json:"asset"`
	Decimals       uint8     `gorm:"not null" json:"decimals"`
	TotalLiquidity string    `gorm:"not null" json:"total_liquidity"`
	Enabled        bool      `gorm:"not null" json:"enabled"`
	UpdatedAt      time.Time `gorm:"not null" json:"updated_at"`
}

// SpokeToken model, maps a (chain, spoke token) pair to its hub asset
type SpokeToken struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChainId   uint64    `gorm:"not null;uniqueIndex:idx_spoke_token" json:"chain_id"`
	Token     string    `gorm:"not null;uniqueIndex:idx_spoke_token" json:"token"`
	HubAsset  string    `gorm:"not null" json:"hub_asset"`
	Decimals  uint8     `gorm:"not null" json:"decimals"`
	Enabled   bool      `gorm:"not null" json:"enabled"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// Route model, per (hub asset, destination chain) bridge parameters.
// DestChainId 0 is the chain-agnostic default route.
type Route struct {
	ID                  uint      `gorm:"primaryKey" json:"id"`
	HubAsset            string    `gorm:"not null;uniqueIndex:idx_route_key" json:"hub_asset"`
	DestChainId         uint64    `gorm:"uniqueIndex:idx_route_key" json:"dest_chain_id"`
	BridgePool          string    `gorm:"not null" json:"bridge_pool"`
	CounterpartToken    string    `gorm:"not null" json:"counterpart_token"`
	CounterpartReceiver string    `gorm:"not null" json:"counterpart_receiver"`
	ExclusiveRelayer    string    `json:"exclusive_relayer"`
	FillDeadlineBuffer  uint64    `gorm:"not null" json:"fill_deadline_buffer"` // seconds
	MaxQuoteAge         uint64    `gorm:"not null" json:"max_quote_age"`        // seconds
	Enabled             bool      `gorm:"not null" json:"enabled"`
	UpdatedAt           time.Time `gorm:"not null" json:"updated_at"`
}

// DispatchOrder model, audit trail of bridge transfer requests
type DispatchOrder struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	OrderId          string    `gorm:"not null;uniqueIndex" json:"order_id"`
	IntentId         string    `gorm:"not null;index" json:"intent_id"`
	MessageHash      string    `gorm:"not null;index" json:"message_hash"`
	DestChainId      uint64    `gorm:"not null" json:"dest_chain_id"`
	Amount           string    `gorm:"not null" json:"amount"`
	RelayerFee       string    `gorm:"not null" json:"relayer_fee"`
	ExclusiveRelayer string    `json:"exclusive_relayer"`
	FillDeadline     time.Time `gorm:"not null" json:"fill_deadline"`
	Status           string    `gorm:"not null" json:"status"` // "created", "finalized"
	UpdatedAt        time.Time `gorm:"not null" json:"updated_at"`
}

// FillRecord model, the spoke's exactly-once payout registry.
// A row exists iff the intent has been paid out; rows are never
// removed or overwritten.
type FillRecord struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	IntentId    string    `gorm:"not null;uniqueIndex" json:"intent_id"`
	Recipient   string    `gorm:"not null" json:"recipient"`
	Relayer     string    `gorm:"not null" json:"relayer"`
	Amount      string    `gorm:"not null" json:"amount"`
	Fee         string    `gorm:"not null" json:"fee"`
	MessageHash string    `gorm:"not null" json:"message_hash"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

// FinalizationKey model, write-once replay registry for fill finalization
type FinalizationKey struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Key       string    `gorm:"not null;uniqueIndex" json:"key"`
	IntentId  string    `gorm:"not null;index" json:"intent_id"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// PendingDeposit model, hub deposit-receive path.
// Registered by an untrusted bridge callback, finalized exactly once
// by a verified proof.
type PendingDeposit struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	PendingId     string    `gorm:"not null;uniqueIndex" json:"pending_id"`
	DepositId     string    `gorm:"not null" json:"deposit_id"`
	IntentType    uint8     `gorm:"not null" json:"intent_type"`
	User          string    `gorm:"not null" json:"user"`
	HubAsset      string    `gorm:"not null" json:"hub_asset"`
	Amount        string    `gorm:"not null" json:"amount"`
	SourceChainId uint64    `gorm:"not null" json:"source_chain_id"`
	MessageHash   string    `gorm:"not null" json:"message_hash"`
	Finalized     bool      `gorm:"not null" json:"finalized"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// CustodyBalance model, per (source chain, deposit id) credited funds
type CustodyBalance struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	SourceChainId uint64    `gorm:"not null;uniqueIndex:idx_custody_key" json:"source_chain_id"`
	DepositId     string    `gorm:"not null;uniqueIndex:idx_custody_key" json:"deposit_id"`
	HubAsset      string    `gorm:"not null" json:"hub_asset"`
	Amount        string    `gorm:"not null" json:"amount"`
	Consumed      bool      `gorm:"not null" json:"consumed"` // set by the money-market, not by finalization
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

// SourceReceiver model, expected fill-event emitter per source chain
type SourceReceiver struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	ChainId   uint64    `gorm:"not null;uniqueIndex" json:"chain_id"`
	Receiver  string    `gorm:"not null" json:"receiver"`
	Attestor  string    `gorm:"not null" json:"attestor"` // finality attestation signer
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

// SyncStatus model, bridge listener height checkpoint
type SyncStatus struct {
	ID            uint      `gorm:"primaryKey" json:"id"`
	Kind          string    `gorm:"not null;uniqueIndex" json:"kind"`
	LastSyncBlock uint64    `gorm:"not null" json:"last_sync_block"`
	UpdatedAt     time.Time `gorm:"not null" json:"updated_at"`
}

func (dm *DatabaseManager) autoMigrate() {
	if err := dm.hubDb.AutoMigrate(&Lock{}, &Reservation{}, &DispatchOrder{}, &FinalizationKey{}, &PendingDeposit{}, &CustodyBalance{}, &SyncStatus{}); err != nil {
		log.Fatalf("Failed to migrate hub ledger database: %v", err)
	}
	if err := dm.spokeDb.AutoMigrate(&FillRecord{}, &SyncStatus{}); err != nil {
		log.Fatalf("Failed to migrate spoke fill database: %v", err)
	}
	if err := dm.registryDb.AutoMigrate(&HubAsset{}, &SpokeToken{}, &Route{}, &SourceReceiver{}); err != nil {
		log.Fatalf("Failed to migrate registry database: %v", err)
	}
}
