package models

import (
	"time"

	"github.com/google/uuid"
)

type BalanceType string

const (
	BalanceTypeUserTabcoin    BalanceType = "user:tabcoin"
	BalanceTypeContentTabcoin BalanceType = "content:tabcoin"
)

type OriginatorType string

const (
	OriginatorContent OriginatorType = "content"
	OriginatorEvent   OriginatorType = "event"
)

// BalanceOperation is one entry of the append-only tabcoin ledger. Entries
// are never updated or removed; the current balance of a recipient is the
// sum of its amounts.
type BalanceOperation struct {
	ID             uuid.UUID      `json:"id" gorm:"type:uuid;primarykey"`
	BalanceType    BalanceType    `json:"balance_type" gorm:"size:30;not null;index:idx_balance_recipient"`
	RecipientID    uuid.UUID      `json:"recipient_id" gorm:"type:uuid;not null;index:idx_balance_recipient"`
	Amount         int            `json:"amount" gorm:"not null"`
	OriginatorType OriginatorType `json:"originator_type" gorm:"size:20;not null"`
	OriginatorID   uuid.UUID      `json:"originator_id" gorm:"type:uuid;not null;index"`
	CreatedAt      time.Time      `json:"created_at"`
}

func (BalanceOperation) TableName() string {
	return "balance_operations"
}
