package state

import (
	"time"

	"github.com/hublend/hublend-settler/internal/db"
	"gorm.io/gorm"
)

// MarkFilled records the exactly-once payout for an intent. The row is
// written before any token moves; a reentrant or replayed message finds
// the row and fails here.
func (s *State) MarkFilled(record *db.FillRecord) error {
	s.spokeMu.Lock()
	defer s.spokeMu.Unlock()

	return s.dbm.GetSpokeDB().Transaction(func(tx *gorm.DB) error {
		var existing db.FillRecord
		err := tx.Where("intent_id = ?", record.IntentId).First(&existing).Error
		if err == nil {
			return ErrIntentAlreadyFilled
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		record.UpdatedAt = time.Now()
		return tx.Create(record).Error
	})
}

// MarkFilledThen writes the fill record and then runs act inside the
// same transaction. If act fails the record is rolled back with it, so
// either the payout and its registry row both happen or neither does.
// The record write comes first, which is what rejects a reentrant
// replay of the same message.
func (s *State) MarkFilledThen(record *db.FillRecord, act func() error) error {
	s.spokeMu.Lock()
	defer s.spokeMu.Unlock()

	return s.dbm.GetSpokeDB().Transaction(func(tx *gorm.DB) error {
		var existing db.FillRecord
		err := tx.Where("intent_id = ?", record.IntentId).First(&existing).Error
		if err == nil {
			return ErrIntentAlreadyFilled
		}
		if err != gorm.ErrRecordNotFound {
			return err
		}
		record.UpdatedAt = time.Now()
		if err := tx.Create(record).Error; err != nil {
			return err
		}
		return act()
	})
}

func (s *State) IsFilled(intentId string) (bool, error) {
	s.spokeMu.RLock()
	defer s.spokeMu.RUnlock()

	var record db.FillRecord
	err := s.dbm.GetSpokeDB().Where("intent_id = ?", intentId).First(&record).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *State) GetFill(intentId string) (*db.FillRecord, error) {
	s.spokeMu.RLock()
	defer s.spokeMu.RUnlock()

	var record db.FillRecord
	result := s.dbm.GetSpokeDB().Where("intent_id = ?", intentId).First(&record)
	if result.Error != nil {
		return nil, result.Error
	}
	return &record, nil
}
