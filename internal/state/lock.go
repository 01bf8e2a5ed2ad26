package state

import (
	"fmt"
	"math/big"
	"time"

	"github.com/hublend/hublend-settler/internal/db"
	"github.com/hublend/hublend-settler/internal/types"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// CreateLock writes a new lock and its reservation counters in one
// transaction. The liquidity check happens inside the same critical
// section so two racing locks cannot both pass against the same free
// liquidity.
func (s *State) CreateLock(lock *db.Lock, totalLiquidity *big.Int) error {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()

	return s.dbm.GetHubDB().Transaction(func(tx *gorm.DB) error {
		var existing db.Lock
		err := tx.Where("intent_id = ?", lock.IntentId).First(&existing).Error
		if err == nil {
			return ErrLockAlreadyExists
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}

		amount := db.DecToBig(lock.Amount)
		reserved, err := s.reservedAmount(tx, lock.Asset, "", db.RESERVE_KIND_LIQUIDITY)
		if err != nil {
			return err
		}
		available := new(big.Int).Sub(totalLiquidity, reserved)
		if available.Sign() < 0 {
			available.SetInt64(0)
		}
		if amount.Cmp(available) > 0 {
			return ErrInsufficientHubLiquidity
		}

		if err := tx.Create(lock).Error; err != nil {
			return err
		}
		if err := s.adjustReservation(tx, lock.Asset, "", db.RESERVE_KIND_LIQUIDITY, amount); err != nil {
			return err
		}
		return s.adjustReservation(tx, lock.Asset, lock.User, reserveKindFor(types.IntentType(lock.IntentType)), amount)
	})
}

// CancelLock cancels an active lock on behalf of its relayer or an
// administrator and releases the reservation.
func (s *State) CancelLock(intentId string, caller string, isAdmin bool) error {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()

	return s.dbm.GetHubDB().Transaction(func(tx *gorm.DB) error {
		lock, err := s.activeLock(tx, intentId)
		if err != nil {
			return err
		}
		if !isAdmin && lock.Relayer != caller {
			return ErrUnauthorizedCanceller
		}
		return s.releaseLock(tx, lock, db.LOCK_STATUS_CANCELLED)
	})
}

// CancelExpiredLock cancels an active lock once its expiry has passed.
// Any caller may do this; expiry is a wall-clock predicate, not a timer.
func (s *State) CancelExpiredLock(intentId string, now time.Time) error {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()

	return s.dbm.GetHubDB().Transaction(func(tx *gorm.DB) error {
		lock, err := s.activeLock(tx, intentId)
		if err != nil {
			return err
		}
		if now.Before(lock.Expiry) {
			return ErrLockNotExpired
		}
		return s.releaseLock(tx, lock, db.LOCK_STATUS_CANCELLED)
	})
}

// ConsumeLock transitions an active, unexpired lock to consumed after an
// exact identity match. expectedAmount may be below the locked ceiling
// (partial fill) but never above it, and never zero.
func (s *State) ConsumeLock(intentId string, expectedType types.IntentType, expectedUser, expectedAsset string, expectedAmount *big.Int, expectedRelayer string, now time.Time) (*db.Lock, error) {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()

	var consumed *db.Lock
	err := s.dbm.GetHubDB().Transaction(func(tx *gorm.DB) error {
		lock, err := s.activeLock(tx, intentId)
		if err != nil {
			return err
		}
		if now.After(lock.Expiry) {
			// an expired lock must be cancelled, not consumed
			return ErrLockExpired
		}
		lockAmount := db.DecToBig(lock.Amount)
		if expectedAmount == nil || expectedAmount.Sign() <= 0 || expectedAmount.Cmp(lockAmount) > 0 {
			return ErrLockMismatch
		}
		if types.IntentType(lock.IntentType) != expectedType ||
			lock.User != expectedUser ||
			lock.Asset != expectedAsset ||
			lock.Relayer != expectedRelayer {
			return ErrLockMismatch
		}
		if err := s.releaseLock(tx, lock, db.LOCK_STATUS_CONSUMED); err != nil {
			return err
		}
		consumed = lock
		return nil
	})
	if err != nil {
		return nil, err
	}
	return consumed, nil
}

func (s *State) GetLock(intentId string) (*db.Lock, error) {
	s.hubMu.RLock()
	defer s.hubMu.RUnlock()

	var lock db.Lock
	result := s.dbm.GetHubDB().Where("intent_id = ?", intentId).First(&lock)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrLockNotFound
		}
		return nil, result.Error
	}
	return &lock, nil
}

// GetReservedLiquidity reads the per-asset reservation accumulator.
func (s *State) GetReservedLiquidity(asset string) (*big.Int, error) {
	s.hubMu.RLock()
	defer s.hubMu.RUnlock()

	return s.reservedAmount(nil, asset, "", db.RESERVE_KIND_LIQUIDITY)
}

// GetReservedDebt reads the per-user borrow reservation accumulator.
func (s *State) GetReservedDebt(user, asset string) (*big.Int, error) {
	s.hubMu.RLock()
	defer s.hubMu.RUnlock()

	return s.reservedAmount(nil, asset, user, db.RESERVE_KIND_DEBT)
}

// GetReservedWithdraw reads the per-user withdraw reservation accumulator.
func (s *State) GetReservedWithdraw(user, asset string) (*big.Int, error) {
	s.hubMu.RLock()
	defer s.hubMu.RUnlock()

	return s.reservedAmount(nil, asset, user, db.RESERVE_KIND_WITHDRAW)
}

func (s *State) GetActiveLocksByAsset(asset string) ([]*db.Lock, error) {
	s.hubMu.RLock()
	defer s.hubMu.RUnlock()

	var locks []*db.Lock
	result := s.dbm.GetHubDB().Where("asset = ? and status = ?", asset, db.LOCK_STATUS_ACTIVE).Find(&locks)
	if result.Error != nil {
		return nil, result.Error
	}
	return locks, nil
}

func (s *State) activeLock(tx *gorm.DB, intentId string) (*db.Lock, error) {
	var lock db.Lock
	err := tx.Where("intent_id = ?", intentId).First(&lock).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, ErrLockNotFound
		}
		return nil, err
	}
	if lock.Status != db.LOCK_STATUS_ACTIVE {
		return nil, ErrLockNotActive
	}
	return &lock, nil
}

// releaseLock decrements the reservation counters and moves the lock to
// a terminal status. The two effects never happen independently.
func (s *State) releaseLock(tx *gorm.DB, lock *db.Lock, status string) error {
	amount := db.DecToBig(lock.Amount)
	neg := new(big.Int).Neg(amount)
	if err := s.adjustReservation(tx, lock.Asset, "", db.RESERVE_KIND_LIQUIDITY, neg); err != nil {
		return err
	}
	if err := s.adjustReservation(tx, lock.Asset, lock.User, reserveKindFor(types.IntentType(lock.IntentType)), neg); err != nil {
		return err
	}
	lock.Status = status
	lock.UpdatedAt = time.Now()
	return tx.Save(lock).Error
}

func (s *State) reservedAmount(tx *gorm.DB, asset, user, kind string) (*big.Int, error) {
	if tx == nil {
		tx = s.dbm.GetHubDB()
	}
	var resv db.Reservation
	err := tx.Where("asset = ? and user = ? and kind = ?", asset, user, kind).First(&resv).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return new(big.Int), nil
		}
		return nil, err
	}
	return db.DecToBig(resv.Amount), nil
}

func (s *State) adjustReservation(tx *gorm.DB, asset, user, kind string, delta *big.Int) error {
	var resv db.Reservation
	err := tx.Where("asset = ? and user = ? and kind = ?", asset, user, kind).First(&resv).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == gorm.ErrRecordNotFound {
		resv = db.Reservation{Asset: asset, User: user, Kind: kind, Amount: "0"}
	}
	next := new(big.Int).Add(db.DecToBig(resv.Amount), delta)
	if next.Sign() < 0 {
		// the accumulator equals the sum of active locks at all times;
		// going negative means the ledger is corrupt
		log.Errorf("Reservation underflow, asset %s user %s kind %s delta %s", asset, user, kind, delta)
		return fmt.Errorf("reservation underflow for asset %s kind %s", asset, kind)
	}
	resv.Amount = db.BigToDec(next)
	resv.UpdatedAt = time.Now()
	return tx.Save(&resv).Error
}

func reserveKindFor(t types.IntentType) string {
	if t == types.IntentWithdraw {
		return db.RESERVE_KIND_WITHDRAW
	}
	return db.RESERVE_KIND_DEBT
}
