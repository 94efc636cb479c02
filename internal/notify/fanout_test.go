package notify

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	"github.com/rebookza/rebook-backend/pkg/enums"
	"github.com/rebookza/rebook-backend/pkg/logger"
	"github.com/rebookza/rebook-backend/pkg/mailer"
)

type fakeMailer struct {
	sent    []mailer.Message
	sendErr error
}

func (f *fakeMailer) Send(ctx context.Context, msg mailer.Message) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.sent = append(f.sent, msg)
	return nil
}

type fakeCreator struct {
	created   []*models.Notification
	createErr error
}

func (f *fakeCreator) Create(ctx context.Context, notification *models.Notification) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, notification)
	return nil
}

func fanoutOrder() *models.Order {
	return &models.Order{
		ID:          uuid.New(),
		BuyerID:     uuid.New(),
		SellerID:    uuid.New(),
		BuyerEmail:  "naledi@example.com",
		SellerEmail: "sipho@example.com",
	}
}

func TestOrderCommitted_NotifiesBothParties(t *testing.T) {
	mail := &fakeMailer{}
	creator := &fakeCreator{}
	fanout := NewFanout(mail, creator, logger.New(logger.Options{ServiceName: "test"}))
	order := fanoutOrder()

	fanout.OrderCommitted(context.Background(), order, "TRK1")

	if len(mail.sent) != 2 {
		t.Fatalf("expected 2 emails, got %d", len(mail.sent))
	}
	recipients := map[string]bool{}
	for _, msg := range mail.sent {
		recipients[msg.To] = true
		if !strings.Contains(msg.Text, "TRK1") {
			t.Fatalf("email missing tracking number: %q", msg.Text)
		}
	}
	if !recipients[order.BuyerEmail] || !recipients[order.SellerEmail] {
		t.Fatalf("both parties should get mail, got %v", recipients)
	}
	if len(creator.created) != 2 {
		t.Fatalf("expected 2 in-app rows, got %d", len(creator.created))
	}
	for _, row := range creator.created {
		if row.Type != enums.NotificationTypeOrderCommitted {
			t.Fatalf("unexpected notification type: %s", row.Type)
		}
		if row.Link == nil || !strings.Contains(*row.Link, order.ID.String()) {
			t.Fatal("notification link should point at the order")
		}
	}
}

func TestOrderCommitted_MailFailureStillWritesRows(t *testing.T) {
	mail := &fakeMailer{sendErr: errors.New("smtp down")}
	creator := &fakeCreator{}
	fanout := NewFanout(mail, creator, logger.New(logger.Options{ServiceName: "test"}))

	fanout.OrderCommitted(context.Background(), fanoutOrder(), "TRK1")

	if len(creator.created) != 2 {
		t.Fatalf("in-app rows must land despite mail failures, got %d", len(creator.created))
	}
}

func TestOrderDelivered_AsksBuyerForReceipt(t *testing.T) {
	mail := &fakeMailer{}
	creator := &fakeCreator{}
	fanout := NewFanout(mail, creator, logger.New(logger.Options{ServiceName: "test"}))
	order := fanoutOrder()

	fanout.OrderDelivered(context.Background(), order)

	if len(mail.sent) != 1 || mail.sent[0].To != order.BuyerEmail {
		t.Fatalf("delivery mail goes to the buyer only, got %+v", mail.sent)
	}
	if !strings.Contains(mail.sent[0].Text, "confirm receipt") {
		t.Fatalf("delivery mail should ask for receipt confirmation: %q", mail.sent[0].Text)
	}
	if len(creator.created) != 2 {
		t.Fatalf("expected rows for both parties, got %d", len(creator.created))
	}
}

func TestWalletCredited_FormatsRands(t *testing.T) {
	mail := &fakeMailer{}
	creator := &fakeCreator{}
	fanout := NewFanout(mail, creator, logger.New(logger.Options{ServiceName: "test"}))
	order := fanoutOrder()

	fanout.WalletCredited(context.Background(), order, decimal.NewFromFloat(234.5))

	if len(mail.sent) != 1 || mail.sent[0].To != order.SellerEmail {
		t.Fatalf("credit mail goes to the seller, got %+v", mail.sent)
	}
	if !strings.Contains(mail.sent[0].Text, "R234.50") {
		t.Fatalf("amount should render with two decimals: %q", mail.sent[0].Text)
	}
}

func TestPayoutDecision_NotifiesRequester(t *testing.T) {
	mail := &fakeMailer{}
	creator := &fakeCreator{}
	fanout := NewFanout(mail, creator, logger.New(logger.Options{ServiceName: "test"}))
	userID := uuid.New()

	fanout.PayoutDecision(context.Background(), userID, "sipho@example.com", enums.PayoutStatusApproved, decimal.NewFromFloat(200))

	if len(mail.sent) != 1 || mail.sent[0].To != "sipho@example.com" {
		t.Fatalf("payout mail goes to the requester, got %+v", mail.sent)
	}
	if !strings.Contains(mail.sent[0].Text, "R200.00") || !strings.Contains(mail.sent[0].Text, "approved") {
		t.Fatalf("payout mail should carry amount and decision: %q", mail.sent[0].Text)
	}
	if len(creator.created) != 1 {
		t.Fatalf("expected one in-app row, got %d", len(creator.created))
	}
	row := creator.created[0]
	if row.UserID != userID || row.Type != enums.NotificationTypePayoutDecision {
		t.Fatalf("unexpected in-app row: %+v", row)
	}
}

func TestPayoutDecision_NoEmailStillWritesRow(t *testing.T) {
	mail := &fakeMailer{}
	creator := &fakeCreator{}
	fanout := NewFanout(mail, creator, logger.New(logger.Options{ServiceName: "test"}))

	fanout.PayoutDecision(context.Background(), uuid.New(), "", enums.PayoutStatusDenied, decimal.NewFromFloat(50))

	if len(mail.sent) != 0 {
		t.Fatalf("blank address must skip the mail leg, got %+v", mail.sent)
	}
	if len(creator.created) != 1 {
		t.Fatalf("expected one in-app row, got %d", len(creator.created))
	}
}

func TestFanout_NilDependenciesAreSafe(t *testing.T) {
	fanout := NewFanout(nil, nil, logger.New(logger.Options{ServiceName: "test"}))

	fanout.OrderCommitted(context.Background(), fanoutOrder(), "TRK1")
	fanout.OrderCancelled(context.Background(), fanoutOrder(), "changed my mind")
	fanout.OrderDelivered(context.Background(), fanoutOrder())
	fanout.WalletCredited(context.Background(), fanoutOrder(), decimal.NewFromInt(10))
	fanout.PayoutDecision(context.Background(), uuid.New(), "sipho@example.com", enums.PayoutStatusApproved, decimal.NewFromInt(100))
}
