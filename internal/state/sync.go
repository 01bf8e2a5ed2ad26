package state

import (
	"time"

	"github.com/hublend/hublend-settler/internal/db"
	"gorm.io/gorm"
)

// GetSyncCheckpoint returns the bridge listener's last processed block
// for the given kind, zero if none was saved yet.
func (s *State) GetSyncCheckpoint(kind string) (uint64, error) {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var status db.SyncStatus
	err := s.dbm.GetHubDB().Where("kind = ?", kind).First(&status).Error
	if err == gorm.ErrRecordNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return status.LastSyncBlock, nil
}

func (s *State) SaveSyncCheckpoint(kind string, height uint64) error {
	s.syncMu.Lock()
	defer s.syncMu.Unlock()

	var status db.SyncStatus
	err := s.dbm.GetHubDB().Where("kind = ?", kind).First(&status).Error
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}
	if err == gorm.ErrRecordNotFound {
		status = db.SyncStatus{Kind: kind}
	}
	status.LastSyncBlock = height
	status.UpdatedAt = time.Now()
	return s.dbm.GetHubDB().Save(&status).Error
}
