package services

import (
	"tabforum/models"
	"tabforum/repositories"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// contentDefaultEarnings is what every content earns for itself on publish.
const contentDefaultEarnings = 1

// LedgerOperation is one planned ledger write, decided before anything is
// persisted.
type LedgerOperation struct {
	BalanceType models.BalanceType
	RecipientID uuid.UUID
	Amount      int
}

// SettlementContext carries the externally-fetched inputs the settlement
// rules may need: the parent's owner (when the content has a parent), the
// content's current tabcoin total, and the prestige earnings for the two
// directions of the state machine.
type SettlementContext struct {
	ParentOwnerID   *uuid.UUID
	ContentTabcoins int
	PublishEarnings int
	DeleteEarnings  int
}

// SettlementPlan maps a content state transition to the ledger writes it
// requires. Rules are evaluated in order and the first match wins:
//
//  1. replies to the author's own content move no coins;
//  2. draft straight to deleted moves no coins;
//  3. published to deleted debits the owner;
//  4. reaching published credits the owner and the content;
//  5. anything else moves no coins.
//
// It performs no I/O, so the credit/debit arithmetic is testable without a
// database.
func SettlementPlan(old, new *models.Content, ctx SettlementContext) ([]LedgerOperation, error) {
	if new.ParentID != nil && ctx.ParentOwnerID != nil && *ctx.ParentOwnerID == new.OwnerID {
		return nil, nil
	}

	if old != nil && old.PublishedAt == nil && new.Status == models.StatusDeleted {
		return nil, nil
	}

	if old != nil && old.PublishedAt != nil && new.Status == models.StatusDeleted {
		// Positive balances give back the content's own earning plus
		// everything above it; negative ones only claw back the original
		// publish credit.
		var amountToDebit int
		if ctx.ContentTabcoins > 0 {
			amountToDebit = contentDefaultEarnings - ctx.ContentTabcoins - ctx.DeleteEarnings
		} else {
			amountToDebit = -ctx.DeleteEarnings
		}

		return []LedgerOperation{
			{BalanceType: models.BalanceTypeUserTabcoin, RecipientID: new.OwnerID, Amount: amountToDebit},
		}, nil
	}

	createdPublished := old == nil && new.PublishedAt != nil
	becamePublished := old != nil && old.PublishedAt == nil && new.Status == models.StatusPublished

	if createdPublished || becamePublished {
		if ctx.PublishEarnings < 0 {
			return nil, &models.ForbiddenError{
				Message:           "Publishing is blocked while other poorly-rated publications have not been deleted.",
				Action:            "Delete your most recent contents rated as not relevant.",
				ErrorLocationCode: "SERVICE:TABCOIN:SETTLEMENT_PLAN:NEGATIVE_USER_EARNINGS",
			}
		}

		return []LedgerOperation{
			{BalanceType: models.BalanceTypeUserTabcoin, RecipientID: new.OwnerID, Amount: ctx.PublishEarnings},
			{BalanceType: models.BalanceTypeContentTabcoin, RecipientID: new.ID, Amount: contentDefaultEarnings},
		}, nil
	}

	return nil, nil
}

// TabcoinService settles the tabcoin ledger for a content state transition.
// Settle must run inside the same transaction as the content write itself,
// which callers arrange through WithTx.
type TabcoinService interface {
	WithTx(tx *gorm.DB) TabcoinService
	Settle(old, new, parent *models.Content, eventID *uuid.UUID) error
}

type tabcoinService struct {
	balances repositories.BalanceRepository
	prestige repositories.PrestigeRepository
}

func NewTabcoinService(balances repositories.BalanceRepository, prestige repositories.PrestigeRepository) TabcoinService {
	return &tabcoinService{balances: balances, prestige: prestige}
}

func (s *tabcoinService) WithTx(tx *gorm.DB) TabcoinService {
	return &tabcoinService{
		balances: s.balances.WithTx(tx),
		prestige: s.prestige.WithTx(tx),
	}
}

func (s *tabcoinService) Settle(old, new, parent *models.Content, eventID *uuid.UUID) error {
	ctx, err := s.gatherContext(old, new, parent)
	if err != nil {
		return err
	}

	operations, err := SettlementPlan(old, new, ctx)
	if err != nil {
		return err
	}

	originatorType := models.OriginatorContent
	originatorID := new.ID
	if eventID != nil {
		originatorType = models.OriginatorEvent
		originatorID = *eventID
	}

	for _, operation := range operations {
		err := s.balances.Create(&models.BalanceOperation{
			BalanceType:    operation.BalanceType,
			RecipientID:    operation.RecipientID,
			Amount:         operation.Amount,
			OriginatorType: originatorType,
			OriginatorID:   originatorID,
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// gatherContext fetches only what the matching rule can need, mirroring the
// rule order so no prestige lookup happens for transitions that settle to a
// no-op.
func (s *tabcoinService) gatherContext(old, new, parent *models.Content) (SettlementContext, error) {
	var ctx SettlementContext

	if parent != nil {
		owner := parent.OwnerID
		ctx.ParentOwnerID = &owner
		if owner == new.OwnerID {
			return ctx, nil
		}
	}

	if old != nil && old.PublishedAt != nil && new.Status == models.StatusDeleted {
		earnings, err := s.prestige.GetByContentID(old.ID)
		if err != nil {
			return ctx, err
		}
		ctx.DeleteEarnings = earnings

		tabcoins, err := s.balances.GetTotal(models.BalanceTypeContentTabcoin, old.ID)
		if err != nil {
			return ctx, err
		}
		ctx.ContentTabcoins = tabcoins
		return ctx, nil
	}

	createdPublished := old == nil && new.PublishedAt != nil
	becamePublished := old != nil && old.PublishedAt == nil && new.Status == models.StatusPublished
	if createdPublished || becamePublished {
		earnings, err := s.prestige.GetByUserID(new.OwnerID, new.ParentID == nil)
		if err != nil {
			return ctx, err
		}
		ctx.PublishEarnings = earnings
	}

	return ctx, nil
}
