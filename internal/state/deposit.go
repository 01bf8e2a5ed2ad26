package state

import (
	"math/big"
	"time"

	"github.com/hublend/hublend-settler/internal/db"
	log "github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// RegisterPendingDeposit records an untrusted bridge callback. It never
// moves funds. The pending id is content-derived, so registering the
// same callback twice is a no-op rather than a second record; finalize
// enforces single use on top of that.
func (s *State) RegisterPendingDeposit(pd *db.PendingDeposit) (bool, error) {
	s.custodyMu.Lock()
	defer s.custodyMu.Unlock()

	var existing db.PendingDeposit
	err := s.dbm.GetHubDB().Where("pending_id = ?", pd.PendingId).First(&existing).Error
	if err == nil {
		// already registered, nothing to do
		return false, nil
	}
	if err != gorm.ErrRecordNotFound {
		return false, err
	}

	pd.Finalized = false
	pd.UpdatedAt = time.Now()
	if err := s.dbm.GetHubDB().Create(pd).Error; err != nil {
		return false, err
	}
	return true, nil
}

// FinalizeDeposit flips the pending record to finalized and credits
// custody for (sourceChainId, depositId) in one transaction. A second
// call fails before anything is written.
func (s *State) FinalizeDeposit(pendingId string) (*db.PendingDeposit, error) {
	s.custodyMu.Lock()
	defer s.custodyMu.Unlock()

	var finalized *db.PendingDeposit
	err := s.dbm.GetHubDB().Transaction(func(tx *gorm.DB) error {
		var pd db.PendingDeposit
		err := tx.Where("pending_id = ?", pendingId).First(&pd).Error
		if err != nil {
			if err == gorm.ErrRecordNotFound {
				return ErrPendingNotFound
			}
			return err
		}
		if pd.Finalized {
			return ErrPendingAlreadyFinalized
		}
		pd.Finalized = true
		pd.UpdatedAt = time.Now()
		if err := tx.Save(&pd).Error; err != nil {
			return err
		}

		var custody db.CustodyBalance
		err = tx.Where("source_chain_id = ? and deposit_id = ?", pd.SourceChainId, pd.DepositId).First(&custody).Error
		if err != nil && err != gorm.ErrRecordNotFound {
			return err
		}
		if err == gorm.ErrRecordNotFound {
			custody = db.CustodyBalance{
				SourceChainId: pd.SourceChainId,
				DepositId:     pd.DepositId,
				HubAsset:      pd.HubAsset,
				Amount:        "0",
				Consumed:      false,
			}
		}
		next := new(big.Int).Add(db.DecToBig(custody.Amount), db.DecToBig(pd.Amount))
		custody.Amount = db.BigToDec(next)
		custody.UpdatedAt = time.Now()
		if err := tx.Save(&custody).Error; err != nil {
			return err
		}

		finalized = &pd
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Infof("Deposit finalized, pending id %s, deposit id %s, amount %s", pendingId, finalized.DepositId, finalized.Amount)
	return finalized, nil
}

func (s *State) GetPendingDeposit(pendingId string) (*db.PendingDeposit, error) {
	s.custodyMu.RLock()
	defer s.custodyMu.RUnlock()

	var pd db.PendingDeposit
	result := s.dbm.GetHubDB().Where("pending_id = ?", pendingId).First(&pd)
	if result.Error != nil {
		if result.Error == gorm.ErrRecordNotFound {
			return nil, ErrPendingNotFound
		}
		return nil, result.Error
	}
	return &pd, nil
}

func (s *State) GetCustodyBalance(sourceChainId uint64, depositId string) (*big.Int, bool, error) {
	s.custodyMu.RLock()
	defer s.custodyMu.RUnlock()

	var custody db.CustodyBalance
	err := s.dbm.GetHubDB().Where("source_chain_id = ? and deposit_id = ?", sourceChainId, depositId).First(&custody).Error
	if err == gorm.ErrRecordNotFound {
		return new(big.Int), false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return db.DecToBig(custody.Amount), custody.Consumed, nil
}
