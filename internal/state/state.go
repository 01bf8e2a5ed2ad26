package state

import (
	"sync"

	"github.com/hublend/hublend-settler/internal/db"
	"github.com/kelindar/bitmap"
	log "github.com/sirupsen/logrus"
)

type State struct {
	EventBus *EventBus

	dbm *db.DatabaseManager

	// Separate mutexes for different sub-modules
	hubMu      sync.RWMutex
	spokeMu    sync.RWMutex
	custodyMu  sync.RWMutex
	syncMu     sync.Mutex
	prefiltMu  sync.Mutex

	// In-memory prefilter of seen (source tx, log index) pairs, a cheap
	// short-circuit in front of the durable finalization-key registry.
	seenLogIndexes map[string]*bitmap.Bitmap
}

// InitializeState builds the state facade over the databases. Counts are
// logged so a restart after a crash shows what survived.
func InitializeState(dbm *db.DatabaseManager) *State {
	var (
		activeLocks int64
		pending     int64
		fills       int64
	)
	if err := dbm.GetHubDB().Model(&db.Lock{}).Where("status = ?", db.LOCK_STATUS_ACTIVE).Count(&activeLocks).Error; err != nil {
		log.Warnf("Failed to count active locks: %v", err)
	}
	if err := dbm.GetHubDB().Model(&db.PendingDeposit{}).Where("finalized = ?", false).Count(&pending).Error; err != nil {
		log.Warnf("Failed to count pending deposits: %v", err)
	}
	if err := dbm.GetSpokeDB().Model(&db.FillRecord{}).Count(&fills).Error; err != nil {
		log.Warnf("Failed to count fill records: %v", err)
	}

	log.Infof("State init on startup, active locks: %d, unfinalized deposits: %d, fills: %d",
		activeLocks, pending, fills)

	return &State{
		EventBus:       NewEventBus(),
		dbm:            dbm,
		seenLogIndexes: make(map[string]*bitmap.Bitmap),
	}
}
