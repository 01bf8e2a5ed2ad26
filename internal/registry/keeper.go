package registry

import (
	"errors"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

var (
	ErrAssetNotSupported     = errors.New("asset not supported or disabled")
	ErrRouteNotFound         = errors.New("no enabled route for asset and chain")
	ErrReceiverNotConfigured = errors.New("no source receiver configured for chain")
)

// Keeper is the read surface for hub asset, spoke token and route
// configuration. Mutation is administrative, done through the Upsert
// methods behind the ops server.
type Keeper struct {
	dbm *db.DatabaseManager
	mu  sync.RWMutex
}

func NewKeeper(dbm *db.DatabaseManager) *Keeper {
	return &Keeper{dbm: dbm}
}

func (k *Keeper) GetHubAsset(asset common.Address) (*db.HubAsset, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var ha db.HubAsset
	err := k.dbm.GetRegistryDB().Where("asset = ?", asset.Hex()).First(&ha).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrAssetNotSupported
		}
		return nil, err
	}
	if !ha.Enabled {
		return nil, ErrAssetNotSupported
	}
	return &ha, nil
}

// ResolveSpokeToken maps a (chain, spoke token) pair to its hub asset
// and spoke-side decimals. Disabled pairs and pairs whose hub asset is
// disabled both resolve to ErrAssetNotSupported.
func (k *Keeper) ResolveSpokeToken(chainId uint64, token common.Address) (*db.HubAsset, *db.SpokeToken, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var st db.SpokeToken
	err := k.dbm.GetRegistryDB().Where("chain_id = ? and token = ?", chainId, token.Hex()).First(&st).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrAssetNotSupported
		}
		return nil, nil, err
	}
	if !st.Enabled {
		return nil, nil, ErrAssetNotSupported
	}

	var ha db.HubAsset
	err = k.dbm.GetRegistryDB().Where("asset = ?", st.HubAsset).First(&ha).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, ErrAssetNotSupported
		}
		return nil, nil, err
	}
	if !ha.Enabled {
		return nil, nil, ErrAssetNotSupported
	}
	return &ha, &st, nil
}

// GetRoute resolves (hub asset, destination chain), falling back to the
// chain-agnostic default row (DestChainId 0) when no exact route exists.
func (k *Keeper) GetRoute(hubAsset common.Address, destChainId uint64) (*db.Route, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var route db.Route
	err := k.dbm.GetRegistryDB().Where("hub_asset = ? and dest_chain_id = ?", hubAsset.Hex(), destChainId).First(&route).Error
	if err == gorm.ErrRecordNotFound {
		err = k.dbm.GetRegistryDB().Where("hub_asset = ? and dest_chain_id = 0", hubAsset.Hex()).First(&route).Error
	}
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrRouteNotFound
		}
		return nil, err
	}
	if !route.Enabled {
		return nil, ErrRouteNotFound
	}
	return &route, nil
}

// GetSourceReceiver returns the expected fill-event emitter and
// finality attestor for a source chain.
func (k *Keeper) GetSourceReceiver(chainId uint64) (*db.SourceReceiver, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()

	var sr db.SourceReceiver
	err := k.dbm.GetRegistryDB().Where("chain_id = ?", chainId).First(&sr).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrReceiverNotConfigured
		}
		return nil, err
	}
	return &sr, nil
}

func (k *Keeper) UpsertHubAsset(ha *db.HubAsset) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var existing db.HubAsset
	err := k.dbm.GetRegistryDB().Where("asset = ?", ha.Asset).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == nil {
		ha.ID = existing.ID
	}
	ha.UpdatedAt = time.Now()
	log.Infof("Upsert hub asset %s, decimals %d, enabled %v", ha.Asset, ha.Decimals, ha.Enabled)
	return k.dbm.GetRegistryDB().Save(ha).Error
}

func (k *Keeper) UpsertSpokeToken(st *db.SpokeToken) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var existing db.SpokeToken
	err := k.dbm.GetRegistryDB().Where("chain_id = ? and token = ?", st.ChainId, st.Token).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == nil {
		st.ID = existing.ID
	}
	st.UpdatedAt = time.Now()
	return k.dbm.GetRegistryDB().Save(st).Error
}

func (k *Keeper) UpsertRoute(route *db.Route) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var existing db.Route
	err := k.dbm.GetRegistryDB().Where("hub_asset = ? and dest_chain_id = ?", route.HubAsset, route.DestChainId).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == nil {
		route.ID = existing.ID
	}
	route.UpdatedAt = time.Now()
	log.Infof("Upsert route, asset %s, chain %d, pool %s, enabled %v", route.HubAsset, route.DestChainId, route.BridgePool, route.Enabled)
	return k.dbm.GetRegistryDB().Save(route).Error
}

func (k *Keeper) UpsertSourceReceiver(sr *db.SourceReceiver) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	var existing db.SourceReceiver
	err := k.dbm.GetRegistryDB().Where("chain_id = ?", sr.ChainId).First(&existing).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == nil {
		sr.ID = existing.ID
	}
	sr.UpdatedAt = time.Now()
	return k.dbm.GetRegistryDB().Save(sr).Error
}

// UpdateLiquidity adjusts an asset's total liquidity. Called by the
// money-market collaborator when funds enter or leave custody.
func (k *Keeper) UpdateLiquidity(asset common.Address, total string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	return k.dbm.GetRegistryDB().Model(&db.HubAsset{}).Where("asset = ?", asset.Hex()).
		Updates(map[string]interface{}{"total_liquidity": total, "updated_at": time.Now()}).Error
}
