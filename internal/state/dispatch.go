package state

import (
	"time"

	"github.com/hublend/hublend-settler/internal/db"
	"gorm.io/gorm"
)

// CreateDispatchOrder persists the audit record of a bridge transfer
// request, keyed by the encoded message hash for downstream proof
// binding.
func (s *State) CreateDispatchOrder(order *db.DispatchOrder) error {
	s.hubMu.Lock()
	defer s.hubMu.Unlock()

	order.Status = db.DISPATCH_STATUS_CREATED
	order.UpdatedAt = time.Now()
	return s.dbm.GetHubDB().Create(order).Error
}

// MarkDispatchFinalized flags the order whose message hash was settled.
// Missing orders are tolerated: finalization does not depend on the
// dispatch audit trail surviving.
func (s *State) MarkDispatchFinalized(tx *gorm.DB, messageHash string) error {
	if tx == nil {
		tx = s.dbm.GetHubDB()
	}
	err := tx.Model(&db.DispatchOrder{}).Where("message_hash = ?", messageHash).
		Updates(&db.DispatchOrder{Status: db.DISPATCH_STATUS_FINALIZED, UpdatedAt: time.Now()}).Error
	return err
}

func (s *State) GetDispatchOrderByIntent(intentId string) (*db.DispatchOrder, error) {
	s.hubMu.RLock()
	defer s.hubMu.RUnlock()

	var order db.DispatchOrder
	result := s.dbm.GetHubDB().Where("intent_id = ?", intentId).Order("id desc").First(&order)
	if result.Error != nil {
		return nil, result.Error
	}
	return &order, nil
}
