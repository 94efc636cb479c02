package wallet

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PayoutNotifier announces admin payout decisions to the requesting seller.
// Best-effort: implementations log their own failures.
type PayoutNotifier interface {
	PayoutDecision(ctx context.Context, userID uuid.UUID, email string, status enums.PayoutStatus, amount decimal.Decimal)
}

// ProfileFinder loads the requester's profile for notification contact data.
type ProfileFinder interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error)
}

// Service defines wallet ledger and payout operations.
type Service interface {
	Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error)
	ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*TransactionList, error)
	CreditOnCollection(ctx context.Context, input CreditInput) (*CreditResult, error)
	RequestPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, notes *string) (*models.PayoutRequest, error)
	ApprovePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	DenyPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error)
	ListPayouts(ctx context.Context, status *enums.PayoutStatus, limit int) ([]models.PayoutRequest, error)
}

type service struct {
	repo        Repository
	tx          txRunner
	notifier    PayoutNotifier
	profiles    ProfileFinder
	logg        *logger.Logger
	sellerShare decimal.Decimal
}

// CreditInput identifies the order being credited to a seller.
type CreditInput struct {
	OrderID  uuid.UUID
	SellerID uuid.UUID
	Amount   decimal.Decimal
}

// CreditResult reports the applied credit. AlreadyCredited is true when a
// previous call for the same order already landed.
type CreditResult struct {
	CreditAmount    decimal.Decimal `json:"credit_amount"`
	NewBalance      decimal.Decimal `json:"new_balance"`
	AlreadyCredited bool            `json:"already_credited"`
}

// TransactionList wraps a page of ledger entries.
type TransactionList struct {
	Items  []models.WalletTransaction `json:"items"`
	Cursor string                     `json:"cursor"`
}

// NewService wires the wallet service. sellerShare is the fraction of the
// order total credited to the seller (the remainder is platform commission).
// notifier and profiles may be nil, which disables payout notifications.
func NewService(repo Repository, tx txRunner, notifier PayoutNotifier, profiles ProfileFinder, logg *logger.Logger, sellerShare float64) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("wallet repository required")
	}
	if tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if sellerShare <= 0 || sellerShare > 1 {
		return nil, fmt.Errorf("seller share %v out of range", sellerShare)
	}
	return &service{
		repo:        repo,
		tx:          tx,
		notifier:    notifier,
		profiles:    profiles,
		logg:        logg,
		sellerShare: decimal.NewFromFloat(sellerShare),
	}, nil
}

func (s *service) Get(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	wallet, err := s.repo.FindWallet(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return &models.Wallet{UserID: userID}, nil
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load wallet")
	}
	return wallet, nil
}

func (s *service) ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor string) (*TransactionList, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}

	var parsed *pagination.Cursor
	if cursor != "" {
		c, err := pagination.ParseCursor(cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		parsed = c
	}

	rows, next, err := s.repo.ListTransactions(ctx, userID, limit, parsed)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list wallet transactions")
	}

	out := &TransactionList{Items: rows}
	if next != nil {
		out.Cursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

// CreditOnCollection credits the seller's share of an order to their wallet.
// Idempotent per order: the ledger's unique (reference_order_id, type) index
// turns a repeat call into a no-op reporting AlreadyCredited.
func (s *service) CreditOnCollection(ctx context.Context, input CreditInput) (*CreditResult, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if input.SellerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "seller id required")
	}
	if input.Amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit amount must be positive")
	}

	creditAmount := input.Amount.Mul(s.sellerShare).Round(2)
	result := &CreditResult{CreditAmount: creditAmount}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		if _, err := repo.EnsureWallet(ctx, input.SellerID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "ensure wallet")
		}

		orderID := input.OrderID
		entry := &models.WalletTransaction{
			UserID:           input.SellerID,
			Type:             enums.WalletTransactionTypeCredit,
			Amount:           creditAmount,
			Status:           enums.WalletTransactionStatusCompleted,
			ReferenceOrderID: &orderID,
			Reason:           "sale proceeds (90% of order total)",
		}
		if err := repo.CreateTransaction(ctx, entry); err != nil {
			if isDuplicateCredit(err) {
				result.AlreadyCredited = true
				return nil
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append credit transaction")
		}

		if err := repo.CreditAvailable(ctx, input.SellerID, creditAmount); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "apply wallet credit")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	wallet, err := s.repo.FindWallet(ctx, input.SellerID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reload wallet")
	}
	result.NewBalance = wallet.AvailableBalance
	if result.AlreadyCredited {
		result.CreditAmount = decimal.Zero
	}
	return result, nil
}

// RequestPayout reserves the amount into pending_balance at request time so
// two pending requests can never spend the same funds.
func (s *service) RequestPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal, notes *string) (*models.PayoutRequest, error) {
	if userID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "user id required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout amount must be positive")
	}

	payout := &models.PayoutRequest{
		UserID: userID,
		Amount: amount,
		Status: enums.PayoutStatusPending,
		Notes:  notes,
	}

	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		reserved, err := repo.ReserveForPayout(ctx, userID, amount)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reserve payout amount")
		}
		if !reserved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "insufficient available balance").
				WithDetails(map[string]any{"requested": amount.StringFixed(2)})
		}
		if err := repo.CreatePayout(ctx, payout); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create payout request")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payout, nil
}

// ApprovePayout debits the reserved funds and records the debit in the
// ledger.
func (s *service) ApprovePayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	return s.decide(ctx, payoutID, enums.PayoutStatusApproved)
}

// DenyPayout returns the reserved funds to the available balance.
func (s *service) DenyPayout(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	return s.decide(ctx, payoutID, enums.PayoutStatusDenied)
}

// MarkPayoutPaid stamps an approved payout as transferred.
func (s *service) MarkPayoutPaid(ctx context.Context, payoutID uuid.UUID) (*models.PayoutRequest, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var payout *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindPayout(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
		}

		moved, err := repo.TransitionPayout(ctx, payoutID, enums.PayoutStatusApproved, enums.PayoutStatusPaid, "paid_at", time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "mark payout paid")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is not approved")
		}
		loaded.Status = enums.PayoutStatusPaid
		payout = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, payout)
	return payout, nil
}

func (s *service) ListPayouts(ctx context.Context, status *enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	payouts, err := s.repo.ListPayouts(ctx, status, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list payout requests")
	}
	return payouts, nil
}

func (s *service) decide(ctx context.Context, payoutID uuid.UUID, decision enums.PayoutStatus) (*models.PayoutRequest, error) {
	if payoutID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "payout id required")
	}

	var payout *models.PayoutRequest
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)

		loaded, err := repo.FindPayout(ctx, payoutID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "payout request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load payout request")
		}

		stamp := "approved_at"
		if decision == enums.PayoutStatusDenied {
			stamp = "denied_at"
		}
		moved, err := repo.TransitionPayout(ctx, payoutID, enums.PayoutStatusPending, decision, stamp, time.Now().UTC())
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "transition payout")
		}
		if !moved {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "payout is not pending")
		}

		switch decision {
		case enums.PayoutStatusApproved:
			settled, err := repo.SettleReserved(ctx, loaded.UserID, loaded.Amount)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "settle reserved funds")
			}
			if !settled {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved balance out of sync")
			}
			payoutRef := loaded.ID
			entry := &models.WalletTransaction{
				UserID:            loaded.UserID,
				Type:              enums.WalletTransactionTypeDebit,
				Amount:            loaded.Amount,
				Status:            enums.WalletTransactionStatusCompleted,
				ReferencePayoutID: &payoutRef,
				Reason:            "payout approved",
			}
			if err := repo.CreateTransaction(ctx, entry); err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "append debit transaction")
			}
		case enums.PayoutStatusDenied:
			released, err := repo.ReleaseReserved(ctx, loaded.UserID, loaded.Amount)
			if err != nil {
				return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "release reserved funds")
			}
			if !released {
				return pkgerrors.New(pkgerrors.CodeStateConflict, "reserved balance out of sync")
			}
		}

		loaded.Status = decision
		payout = loaded
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.notifyDecision(ctx, payout)
	return payout, nil
}

// notifyDecision tells the requester what happened to their payout. The
// decision already committed, so a missing profile only costs the email leg.
func (s *service) notifyDecision(ctx context.Context, payout *models.PayoutRequest) {
	if s.notifier == nil || payout == nil {
		return
	}
	email := ""
	if s.profiles != nil {
		profile, err := s.profiles.FindByID(ctx, payout.UserID)
		if err == nil {
			email = profile.Email
		} else if s.logg != nil {
			s.logg.Warn(s.logg.WithUserID(ctx, payout.UserID.String()),
				"payout notification: profile lookup failed")
		}
	}
	s.notifier.PayoutDecision(ctx, payout.UserID, email, payout.Status, payout.Amount)
}

func isDuplicateCredit(err error) bool {
	return errors.Is(err, gorm.ErrDuplicatedKey) ||
		pkgerrors.IsUniqueViolation(err, "ux_wallet_tx_order_type")
}
