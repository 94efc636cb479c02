package wallet

import (
	"context"
	"testing"
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

type fakeWalletRepo struct {
	wallets map[uuid.UUID]*models.Wallet
	payouts map[uuid.UUID]*models.PayoutRequest

	ledger       []*models.WalletTransaction
	duplicateErr error
}

func newFakeWalletRepo() *fakeWalletRepo {
	return &fakeWalletRepo{
		wallets: map[uuid.UUID]*models.Wallet{},
		payouts: map[uuid.UUID]*models.PayoutRequest{},
	}
}

func (f *fakeWalletRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeWalletRepo) EnsureWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	if wallet, ok := f.wallets[userID]; ok {
		return wallet, nil
	}
	wallet := &models.Wallet{UserID: userID}
	f.wallets[userID] = wallet
	return wallet, nil
}

func (f *fakeWalletRepo) FindWallet(ctx context.Context, userID uuid.UUID) (*models.Wallet, error) {
	wallet, ok := f.wallets[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return wallet, nil
}

func (f *fakeWalletRepo) CreditAvailable(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) error {
	wallet := f.wallets[userID]
	wallet.AvailableBalance = wallet.AvailableBalance.Add(amount)
	return nil
}

func (f *fakeWalletRepo) ReserveForPayout(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	wallet, ok := f.wallets[userID]
	if !ok || wallet.AvailableBalance.LessThan(amount) {
		return false, nil
	}
	wallet.AvailableBalance = wallet.AvailableBalance.Sub(amount)
	wallet.PendingBalance = wallet.PendingBalance.Add(amount)
	return true, nil
}

func (f *fakeWalletRepo) SettleReserved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	wallet, ok := f.wallets[userID]
	if !ok || wallet.PendingBalance.LessThan(amount) {
		return false, nil
	}
	wallet.PendingBalance = wallet.PendingBalance.Sub(amount)
	return true, nil
}

func (f *fakeWalletRepo) ReleaseReserved(ctx context.Context, userID uuid.UUID, amount decimal.Decimal) (bool, error) {
	wallet, ok := f.wallets[userID]
	if !ok || wallet.PendingBalance.LessThan(amount) {
		return false, nil
	}
	wallet.PendingBalance = wallet.PendingBalance.Sub(amount)
	wallet.AvailableBalance = wallet.AvailableBalance.Add(amount)
	return true, nil
}

func (f *fakeWalletRepo) CreateTransaction(ctx context.Context, tx *models.WalletTransaction) error {
	if tx.ReferenceOrderID != nil {
		for _, existing := range f.ledger {
			if existing.ReferenceOrderID != nil && *existing.ReferenceOrderID == *tx.ReferenceOrderID && existing.Type == tx.Type {
				if f.duplicateErr != nil {
					return f.duplicateErr
				}
				return gorm.ErrDuplicatedKey
			}
		}
	}
	f.ledger = append(f.ledger, tx)
	return nil
}

func (f *fakeWalletRepo) ListTransactions(ctx context.Context, userID uuid.UUID, limit int, cursor *pagination.Cursor) ([]models.WalletTransaction, *pagination.Cursor, error) {
	var rows []models.WalletTransaction
	for _, tx := range f.ledger {
		if tx.UserID == userID {
			rows = append(rows, *tx)
		}
	}
	return rows, nil, nil
}

func (f *fakeWalletRepo) CreatePayout(ctx context.Context, payout *models.PayoutRequest) error {
	if payout.ID == uuid.Nil {
		payout.ID = uuid.New()
	}
	f.payouts[payout.ID] = payout
	return nil
}

func (f *fakeWalletRepo) FindPayout(ctx context.Context, id uuid.UUID) (*models.PayoutRequest, error) {
	payout, ok := f.payouts[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return payout, nil
}

func (f *fakeWalletRepo) TransitionPayout(ctx context.Context, id uuid.UUID, from, to enums.PayoutStatus, stampColumn string, now time.Time) (bool, error) {
	payout, ok := f.payouts[id]
	if !ok || payout.Status != from {
		return false, nil
	}
	payout.Status = to
	return true, nil
}

func (f *fakeWalletRepo) ListPayouts(ctx context.Context, status *enums.PayoutStatus, limit int) ([]models.PayoutRequest, error) {
	var rows []models.PayoutRequest
	for _, payout := range f.payouts {
		if status == nil || payout.Status == *status {
			rows = append(rows, *payout)
		}
	}
	return rows, nil
}

// fakeTxRunner runs the callback directly; the fake repo has no real
// transaction semantics to isolate.
type fakeTxRunner struct{}

func (fakeTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(nil)
}

type payoutNotice struct {
	userID uuid.UUID
	email  string
	status enums.PayoutStatus
	amount decimal.Decimal
}

type fakePayoutNotifier struct {
	notices []payoutNotice
}

func (f *fakePayoutNotifier) PayoutDecision(ctx context.Context, userID uuid.UUID, email string, status enums.PayoutStatus, amount decimal.Decimal) {
	f.notices = append(f.notices, payoutNotice{userID: userID, email: email, status: status, amount: amount})
}

type fakeProfileFinder struct {
	profiles map[uuid.UUID]*models.Profile
}

func (f *fakeProfileFinder) FindByID(ctx context.Context, id uuid.UUID) (*models.Profile, error) {
	profile, ok := f.profiles[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	return profile, nil
}

func newWalletService(t *testing.T, repo Repository) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, nil, nil, logger.New(logger.Options{ServiceName: "test"}), 0.9)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func newNotifyingWalletService(t *testing.T, repo Repository, notifier *fakePayoutNotifier, profiles *fakeProfileFinder) Service {
	t.Helper()
	svc, err := NewService(repo, fakeTxRunner{}, notifier, profiles, logger.New(logger.Options{ServiceName: "test"}), 0.9)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestCreditOnCollection_AppliesSellerShare(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	sellerID := uuid.New()

	result, err := svc.CreditOnCollection(context.Background(), CreditInput{
		OrderID:  uuid.New(),
		SellerID: sellerID,
		Amount:   decimal.NewFromFloat(260.00),
	})
	if err != nil {
		t.Fatalf("CreditOnCollection: %v", err)
	}
	if !result.CreditAmount.Equal(decimal.NewFromFloat(234.00)) {
		t.Fatalf("expected 90%% credit 234.00, got %s", result.CreditAmount)
	}
	if !result.NewBalance.Equal(decimal.NewFromFloat(234.00)) {
		t.Fatalf("unexpected balance %s", result.NewBalance)
	}
	if result.AlreadyCredited {
		t.Fatal("first credit reported as duplicate")
	}
	if len(repo.ledger) != 1 || repo.ledger[0].Type != enums.WalletTransactionTypeCredit {
		t.Fatalf("expected one credit ledger entry, got %+v", repo.ledger)
	}
}

func TestCreditOnCollection_RoundsToCents(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)

	result, err := svc.CreditOnCollection(context.Background(), CreditInput{
		OrderID:  uuid.New(),
		SellerID: uuid.New(),
		Amount:   decimal.NewFromFloat(100.55),
	})
	if err != nil {
		t.Fatalf("CreditOnCollection: %v", err)
	}
	// 100.55 * 0.9 = 90.495, rounded half-up to 90.50.
	if !result.CreditAmount.Equal(decimal.NewFromFloat(90.50)) {
		t.Fatalf("expected rounded credit 90.50, got %s", result.CreditAmount)
	}
}

func TestCreditOnCollection_DuplicateOrderIsNoOp(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	sellerID := uuid.New()
	orderID := uuid.New()
	input := CreditInput{OrderID: orderID, SellerID: sellerID, Amount: decimal.NewFromFloat(100.00)}

	if _, err := svc.CreditOnCollection(context.Background(), input); err != nil {
		t.Fatalf("first credit: %v", err)
	}
	result, err := svc.CreditOnCollection(context.Background(), input)
	if err != nil {
		t.Fatalf("second credit: %v", err)
	}
	if !result.AlreadyCredited {
		t.Fatal("expected AlreadyCredited on repeat call")
	}
	if !result.CreditAmount.Equal(decimal.Zero) {
		t.Fatalf("duplicate credit must report zero amount, got %s", result.CreditAmount)
	}
	wallet := repo.wallets[sellerID]
	if !wallet.AvailableBalance.Equal(decimal.NewFromFloat(90.00)) {
		t.Fatalf("balance credited twice: %s", wallet.AvailableBalance)
	}
	if len(repo.ledger) != 1 {
		t.Fatalf("expected one ledger entry, got %d", len(repo.ledger))
	}
}

func TestRequestPayout_ReservesFunds(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	userID := uuid.New()
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(500.00)}

	payout, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(200.00), nil)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if payout.Status != enums.PayoutStatusPending {
		t.Fatalf("expected pending payout, got %s", payout.Status)
	}
	wallet := repo.wallets[userID]
	if !wallet.AvailableBalance.Equal(decimal.NewFromFloat(300.00)) {
		t.Fatalf("available not debited: %s", wallet.AvailableBalance)
	}
	if !wallet.PendingBalance.Equal(decimal.NewFromFloat(200.00)) {
		t.Fatalf("pending not reserved: %s", wallet.PendingBalance)
	}
}

func TestRequestPayout_InsufficientBalance(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	userID := uuid.New()
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(50.00)}

	_, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(200.00), nil)
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	wallet := repo.wallets[userID]
	if !wallet.AvailableBalance.Equal(decimal.NewFromFloat(50.00)) {
		t.Fatalf("balance changed on rejected payout: %s", wallet.AvailableBalance)
	}
	if len(repo.payouts) != 0 {
		t.Fatal("rejected payout must not persist")
	}
}

func TestApprovePayout_SettlesAndDebits(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	userID := uuid.New()
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(500.00)}

	payout, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(200.00), nil)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	approved, err := svc.ApprovePayout(context.Background(), payout.ID)
	if err != nil {
		t.Fatalf("ApprovePayout: %v", err)
	}
	if approved.Status != enums.PayoutStatusApproved {
		t.Fatalf("expected approved, got %s", approved.Status)
	}
	wallet := repo.wallets[userID]
	if !wallet.PendingBalance.Equal(decimal.Zero) {
		t.Fatalf("pending not settled: %s", wallet.PendingBalance)
	}
	if !wallet.AvailableBalance.Equal(decimal.NewFromFloat(300.00)) {
		t.Fatalf("available should stay debited: %s", wallet.AvailableBalance)
	}
	if len(repo.ledger) != 1 || repo.ledger[0].Type != enums.WalletTransactionTypeDebit {
		t.Fatalf("expected debit ledger entry, got %+v", repo.ledger)
	}
	if repo.ledger[0].ReferencePayoutID == nil || *repo.ledger[0].ReferencePayoutID != payout.ID {
		t.Fatal("debit entry missing payout reference")
	}
}

func TestDenyPayout_ReleasesFunds(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	userID := uuid.New()
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(500.00)}

	payout, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(200.00), nil)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	denied, err := svc.DenyPayout(context.Background(), payout.ID)
	if err != nil {
		t.Fatalf("DenyPayout: %v", err)
	}
	if denied.Status != enums.PayoutStatusDenied {
		t.Fatalf("expected denied, got %s", denied.Status)
	}
	wallet := repo.wallets[userID]
	if !wallet.AvailableBalance.Equal(decimal.NewFromFloat(500.00)) {
		t.Fatalf("funds not returned: %s", wallet.AvailableBalance)
	}
	if !wallet.PendingBalance.Equal(decimal.Zero) {
		t.Fatalf("pending not released: %s", wallet.PendingBalance)
	}
	if len(repo.ledger) != 0 {
		t.Fatal("deny must not write a ledger entry")
	}
}

func TestApprovePayout_NotifiesRequester(t *testing.T) {
	repo := newFakeWalletRepo()
	notifier := &fakePayoutNotifier{}
	userID := uuid.New()
	profiles := &fakeProfileFinder{profiles: map[uuid.UUID]*models.Profile{
		userID: {ID: userID, Email: "seller@example.co.za"},
	}}
	svc := newNotifyingWalletService(t, repo, notifier, profiles)
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(500.00)}

	payout, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(200.00), nil)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if _, err := svc.ApprovePayout(context.Background(), payout.ID); err != nil {
		t.Fatalf("ApprovePayout: %v", err)
	}

	if len(notifier.notices) != 1 {
		t.Fatalf("expected one payout notification, got %d", len(notifier.notices))
	}
	notice := notifier.notices[0]
	if notice.userID != userID || notice.email != "seller@example.co.za" {
		t.Fatalf("unexpected recipient: %+v", notice)
	}
	if notice.status != enums.PayoutStatusApproved {
		t.Fatalf("expected approved status, got %s", notice.status)
	}
	if !notice.amount.Equal(decimal.NewFromFloat(200.00)) {
		t.Fatalf("unexpected amount %s", notice.amount)
	}
}

func TestDenyPayout_NotifiesWithoutProfile(t *testing.T) {
	repo := newFakeWalletRepo()
	notifier := &fakePayoutNotifier{}
	userID := uuid.New()
	svc := newNotifyingWalletService(t, repo, notifier, &fakeProfileFinder{profiles: map[uuid.UUID]*models.Profile{}})
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(500.00)}

	payout, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(50.00), nil)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}
	if _, err := svc.DenyPayout(context.Background(), payout.ID); err != nil {
		t.Fatalf("DenyPayout: %v", err)
	}

	// The in-app leg still reaches the user even with no profile email.
	if len(notifier.notices) != 1 {
		t.Fatalf("expected one payout notification, got %d", len(notifier.notices))
	}
	if notifier.notices[0].email != "" {
		t.Fatalf("expected blank email on missing profile, got %q", notifier.notices[0].email)
	}
	if notifier.notices[0].status != enums.PayoutStatusDenied {
		t.Fatalf("expected denied status, got %s", notifier.notices[0].status)
	}
}

func TestApprovePayout_ConflictDoesNotNotify(t *testing.T) {
	repo := newFakeWalletRepo()
	notifier := &fakePayoutNotifier{}
	svc := newNotifyingWalletService(t, repo, notifier, &fakeProfileFinder{profiles: map[uuid.UUID]*models.Profile{}})
	payoutID := uuid.New()
	repo.payouts[payoutID] = &models.PayoutRequest{ID: payoutID, UserID: uuid.New(), Status: enums.PayoutStatusDenied, Amount: decimal.NewFromFloat(10)}

	if _, err := svc.ApprovePayout(context.Background(), payoutID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
	if len(notifier.notices) != 0 {
		t.Fatal("failed decision must not notify")
	}
}

func TestApprovePayout_NotPending(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	payoutID := uuid.New()
	repo.payouts[payoutID] = &models.PayoutRequest{ID: payoutID, UserID: uuid.New(), Status: enums.PayoutStatusDenied, Amount: decimal.NewFromFloat(10)}

	_, err := svc.ApprovePayout(context.Background(), payoutID)
	if !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestMarkPayoutPaid_RequiresApproved(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	userID := uuid.New()
	repo.wallets[userID] = &models.Wallet{UserID: userID, AvailableBalance: decimal.NewFromFloat(500.00)}

	payout, err := svc.RequestPayout(context.Background(), userID, decimal.NewFromFloat(100.00), nil)
	if err != nil {
		t.Fatalf("RequestPayout: %v", err)
	}

	if _, err := svc.MarkPayoutPaid(context.Background(), payout.ID); !pkgerrors.Is(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("pending payout must not be markable paid, got %v", err)
	}

	if _, err := svc.ApprovePayout(context.Background(), payout.ID); err != nil {
		t.Fatalf("ApprovePayout: %v", err)
	}
	paid, err := svc.MarkPayoutPaid(context.Background(), payout.ID)
	if err != nil {
		t.Fatalf("MarkPayoutPaid: %v", err)
	}
	if paid.Status != enums.PayoutStatusPaid {
		t.Fatalf("expected paid, got %s", paid.Status)
	}
}

func TestGet_MissingWalletReturnsZeroBalances(t *testing.T) {
	repo := newFakeWalletRepo()
	svc := newWalletService(t, repo)
	userID := uuid.New()

	wallet, err := svc.Get(context.Background(), userID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if wallet.UserID != userID || !wallet.AvailableBalance.Equal(decimal.Zero) {
		t.Fatalf("expected empty wallet, got %+v", wallet)
	}
}
