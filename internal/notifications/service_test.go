package notifications

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/rebookza/rebook-backend/pkg/db/models"
	pkgerrors "github.com/rebookza/rebook-backend/pkg/errors"
	"github.com/rebookza/rebook-backend/pkg/pagination"
)

type fakeNotificationRepo struct {
	rows map[uuid.UUID]*models.Notification
}

func newFakeNotificationRepo(rows ...*models.Notification) *fakeNotificationRepo {
	repo := &fakeNotificationRepo{rows: map[uuid.UUID]*models.Notification{}}
	for _, row := range rows {
		repo.rows[row.ID] = row
	}
	return repo
}

func (f *fakeNotificationRepo) WithTx(tx *gorm.DB) Repository { return f }

func (f *fakeNotificationRepo) Create(ctx context.Context, notification *models.Notification) error {
	if notification.ID == uuid.Nil {
		notification.ID = uuid.New()
	}
	f.rows[notification.ID] = notification
	return nil
}

func (f *fakeNotificationRepo) List(ctx context.Context, params listNotificationsParams) ([]models.Notification, *pagination.Cursor, error) {
	var out []models.Notification
	for _, row := range f.rows {
		if row.UserID != params.UserID {
			continue
		}
		if params.UnreadOnly && row.ReadAt != nil {
			continue
		}
		out = append(out, *row)
	}
	return out, nil, nil
}

func (f *fakeNotificationRepo) MarkRead(ctx context.Context, userID, notificationID uuid.UUID, now time.Time) (notificationMarkResult, error) {
	row, ok := f.rows[notificationID]
	if !ok || row.UserID != userID {
		return notificationMarkResult{}, nil
	}
	if row.ReadAt != nil {
		return notificationMarkResult{Found: true}, nil
	}
	row.ReadAt = &now
	return notificationMarkResult{Found: true, Updated: true}, nil
}

func (f *fakeNotificationRepo) MarkAllRead(ctx context.Context, userID uuid.UUID, now time.Time) (int64, error) {
	var updated int64
	for _, row := range f.rows {
		if row.UserID == userID && row.ReadAt == nil {
			row.ReadAt = &now
			updated++
		}
	}
	return updated, nil
}

func unreadNotification(userID uuid.UUID) *models.Notification {
	return &models.Notification{
		ID:     uuid.New(),
		UserID: userID,
		Type:   "order_committed",
		Title:  "Seller committed your order",
	}
}

func TestNotifications_ListUnreadOnly(t *testing.T) {
	userID := uuid.New()
	read := unreadNotification(userID)
	now := time.Now().UTC()
	read.ReadAt = &now
	unread := unreadNotification(userID)
	other := unreadNotification(uuid.New())
	repo := newFakeNotificationRepo(read, unread, other)

	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	result, err := svc.List(context.Background(), ListParams{UserID: userID, UnreadOnly: true})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(result.Items) != 1 || result.Items[0].ID != unread.ID {
		t.Fatalf("expected the single unread row, got %+v", result.Items)
	}
}

func TestNotifications_MarkRead(t *testing.T) {
	userID := uuid.New()
	row := unreadNotification(userID)
	repo := newFakeNotificationRepo(row)
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	if err := svc.MarkRead(context.Background(), userID, row.ID); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if row.ReadAt == nil {
		t.Fatal("notification not marked read")
	}

	// Reading an already-read notification is not an error.
	if err := svc.MarkRead(context.Background(), userID, row.ID); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
}

func TestNotifications_MarkReadScopedToOwner(t *testing.T) {
	row := unreadNotification(uuid.New())
	repo := newFakeNotificationRepo(row)
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	err = svc.MarkRead(context.Background(), uuid.New(), row.ID)
	if !pkgerrors.Is(err, pkgerrors.CodeNotFound) {
		t.Fatalf("another user's notification must look absent, got %v", err)
	}
	if row.ReadAt != nil {
		t.Fatal("foreign mark-read must not mutate the row")
	}
}

func TestNotifications_MarkAllRead(t *testing.T) {
	userID := uuid.New()
	repo := newFakeNotificationRepo(
		unreadNotification(userID),
		unreadNotification(userID),
		unreadNotification(uuid.New()),
	)
	svc, err := NewService(repo)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}

	updated, err := svc.MarkAllRead(context.Background(), userID)
	if err != nil {
		t.Fatalf("MarkAllRead: %v", err)
	}
	if updated != 2 {
		t.Fatalf("expected 2 updated, got %d", updated)
	}
}
