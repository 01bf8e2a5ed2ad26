package state

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/hublend/hublend-settler/internal/db"
	"github.com/kelindar/bitmap"
	"gorm.io/gorm"
)

// seenPrefilterLimit bounds the in-memory prefilter; past it the map is
// reset wholesale, which only costs an extra registry lookup.
const seenPrefilterLimit = 4096

// WasLikelySeen is a lock-free-ish fast path in front of the durable
// finalization-key registry. False negatives are fine; false positives
// are impossible because only UseFinalizationKey marks bits.
func (s *State) WasLikelySeen(sourceTxHash common.Hash, logIndex uint32) bool {
	s.prefiltMu.Lock()
	defer s.prefiltMu.Unlock()

	bm, ok := s.seenLogIndexes[sourceTxHash.Hex()]
	if !ok {
		return false
	}
	return bm.Contains(logIndex)
}

// MarkSeen records a durably used key in the prefilter. Callers inside
// HubTransaction call it after the commit, never before; a bit for a
// rolled-back key would wrongly block the retry.
func (s *State) MarkSeen(sourceTxHash common.Hash, logIndex uint32) {
	s.prefiltMu.Lock()
	defer s.prefiltMu.Unlock()

	if len(s.seenLogIndexes) >= seenPrefilterLimit {
		s.seenLogIndexes = make(map[string]*bitmap.Bitmap)
	}
	key := sourceTxHash.Hex()
	bm, ok := s.seenLogIndexes[key]
	if !ok {
		bm = &bitmap.Bitmap{}
		s.seenLogIndexes[key] = bm
	}
	bm.Set(logIndex)
}

// UseFinalizationKey consumes a write-once replay key. It fails with
// ErrFinalizationReplay on a second use regardless of payload content;
// entries are never removed or overwritten.
func (s *State) UseFinalizationKey(tx *gorm.DB, key common.Hash, intentId string, sourceTxHash common.Hash, logIndex uint32) error {
	standalone := tx == nil
	if standalone {
		tx = s.dbm.GetHubDB()
	}
	var existing db.FinalizationKey
	err := tx.Where("key = ?", key.Hex()).First(&existing).Error
	if err == nil {
		return ErrFinalizationReplay
	}
	if err != gorm.ErrRecordNotFound {
		return err
	}
	if err := tx.Create(&db.FinalizationKey{
		Key:       key.Hex(),
		IntentId:  intentId,
		UpdatedAt: time.Now(),
	}).Error; err != nil {
		return err
	}
	if standalone {
		s.MarkSeen(sourceTxHash, logIndex)
	}
	return nil
}

func (s *State) HasFinalizationKey(key common.Hash) (bool, error) {
	var existing db.FinalizationKey
	err := s.dbm.GetHubDB().Where("key = ?", key.Hex()).First(&existing).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// HubTransaction runs fn inside the hub ledger lock and a database
// transaction, so finalization marks its replay key and mutates the
// ledger as one atomic unit.
func (s *State) HubTransaction(fn func(tx *gorm.DB) error) error {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()

	return s.dbm.GetHubDB().Transaction(fn)
}

// ConsumeLockTx is ConsumeLock for callers already inside
// HubTransaction. It shares the same checks; see lock.go.
func (s *State) ConsumeLockTx(tx *gorm.DB, intentId string, args ConsumeArgs) (*db.Lock, error) {
	lock, err := s.activeLock(tx, intentId)
	if err != nil {
		return nil, err
	}
	if args.Now.After(lock.Expiry) {
		return nil, ErrLockExpired
	}
	lockAmount := db.DecToBig(lock.Amount)
	if args.Amount == nil || args.Amount.Sign() <= 0 || args.Amount.Cmp(lockAmount) > 0 {
		return nil, ErrLockMismatch
	}
	if lock.IntentType != args.IntentType || lock.User != args.User || lock.Asset != args.Asset || lock.Relayer != args.Relayer {
		return nil, ErrLockMismatch
	}
	if err := s.releaseLock(tx, lock, db.LOCK_STATUS_CONSUMED); err != nil {
		return nil, err
	}
	return lock, nil
}

type ConsumeArgs struct {
	IntentType uint8
	User       string
	Asset      string
	Amount     *big.Int
	Relayer    string
	Now        time.Time
}
