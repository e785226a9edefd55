package repositories

import (
	"math"

	"tabforum/models"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// PrestigeRepository computes the per-user earnings baseline used by
// settlement. GetByUserID answers "how much should publishing credit this
// user right now"; GetByContentID answers "how much did publishing this
// content credit its owner at the time".
type PrestigeRepository interface {
	WithTx(tx *gorm.DB) PrestigeRepository
	GetByContentID(contentID uuid.UUID) (int, error)
	GetByUserID(userID uuid.UUID, isRoot bool) (int, error)
}

type prestigeRepository struct {
	db *gorm.DB
}

func NewPrestigeRepository(db *gorm.DB) PrestigeRepository {
	return &prestigeRepository{db: db}
}

func (r *prestigeRepository) WithTx(tx *gorm.DB) PrestigeRepository {
	return &prestigeRepository{db: tx}
}

// GetByContentID reads back the user:tabcoin credit originated by the
// content when it was published.
func (r *prestigeRepository) GetByContentID(contentID uuid.UUID) (int, error) {
	var total int
	err := r.db.Raw(
		`SELECT COALESCE(SUM(amount), 0)
		 FROM balance_operations
		 WHERE balance_type = ? AND originator_type = ? AND originator_id = ?`,
		models.BalanceTypeUserTabcoin, models.OriginatorContent, contentID,
	).Scan(&total).Error
	return total, err
}

const (
	prestigeWindowSize    = 10
	prestigeEarningsFloor = -5
	prestigeEarningsCap   = 5
	rootBaseEarnings      = 2
	childBaseEarnings     = 1
)

// GetByUserID derives earnings from the mean tabcoin balance of the user's
// most recent published contents in the same scope (root posts or replies).
// Users whose recent content trends negative get negative earnings, which
// blocks further publishing upstream.
func (r *prestigeRepository) GetByUserID(userID uuid.UUID, isRoot bool) (int, error) {
	parentFilter := "c.parent_id IS NOT NULL"
	if isRoot {
		parentFilter = "c.parent_id IS NULL"
	}

	var tabcoins []int
	err := r.db.Raw(
		`SELECT COALESCE((
			SELECT SUM(b.amount)
			FROM balance_operations b
			WHERE b.balance_type = ? AND b.recipient_id = c.id
		 ), 0) AS tabcoins
		 FROM contents c
		 WHERE c.owner_id = ? AND c.status = 'published' AND `+parentFilter+`
		 ORDER BY c.published_at DESC
		 LIMIT ?`,
		models.BalanceTypeContentTabcoin, userID, prestigeWindowSize,
	).Scan(&tabcoins).Error
	if err != nil {
		return 0, err
	}

	if len(tabcoins) == 0 {
		if isRoot {
			return rootBaseEarnings, nil
		}
		return childBaseEarnings, nil
	}

	sum := 0
	for _, value := range tabcoins {
		sum += value
	}
	mean := float64(sum) / float64(len(tabcoins))

	earnings := int(math.Round(mean))
	if earnings < prestigeEarningsFloor {
		earnings = prestigeEarningsFloor
	}
	if earnings > prestigeEarningsCap {
		earnings = prestigeEarningsCap
	}
	return earnings, nil
}
