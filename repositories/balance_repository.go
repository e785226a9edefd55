package repositories

import (
	"time"

	"tabforum/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// BalanceRepository is the append-only tabcoin ledger. Entries are only ever
// created; the current balance of a recipient is the sum of its entries.
type BalanceRepository interface {
	WithTx(tx *gorm.DB) BalanceRepository
	GetTotal(balanceType models.BalanceType, recipientID uuid.UUID) (int, error)
	Create(operation *models.BalanceOperation) error
}

type balanceRepository struct {
	db *gorm.DB
}

func NewBalanceRepository(db *gorm.DB) BalanceRepository {
	return &balanceRepository{db: db}
}

func (r *balanceRepository) WithTx(tx *gorm.DB) BalanceRepository {
	return &balanceRepository{db: tx}
}

func (r *balanceRepository) GetTotal(balanceType models.BalanceType, recipientID uuid.UUID) (int, error) {
	var total int
	err := r.db.Raw(
		`SELECT COALESCE(SUM(amount), 0) FROM balance_operations WHERE balance_type = ? AND recipient_id = ?`,
		balanceType, recipientID,
	).Scan(&total).Error
	return total, err
}

func (r *balanceRepository) Create(operation *models.BalanceOperation) error {
	if operation.ID == uuid.Nil {
		operation.ID = uuid.New()
	}
	if operation.CreatedAt.IsZero() {
		operation.CreatedAt = time.Now().UTC()
	}
	return r.db.Create(operation).Error
}
