package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/notification"
)

const notificationColumns = "id, user_id, message, type, is_read, created_at"

type notificationRow struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	Message   string    `db:"message"`
	Type      string    `db:"type"`
	IsRead    bool      `db:"is_read"`
	CreatedAt time.Time `db:"created_at"`
}

type notificationRepository struct {
	base
}

var _ notification.Repository = (*notificationRepository)(nil) // interface compliance check

func NewNotificationRepository(exec core.DBExecutor) *notificationRepository {
	return &notificationRepository{base{exec: exec}}
}

func (repo notificationRepository) CreateNotification(ctx context.Context, n notification.Notification, exec ...core.DBExecutor) (notification.Notification, error) {
	n.ID = uuid.New().String()
	n.CreatedAt = n.CreatedAt.UTC()
	if n.Type == "" {
		n.Type = notification.TypeInfo
	}
	_, err := repo.execute(ctx, exec,
		"INSERT INTO notifications ("+notificationColumns+") VALUES (?, ?, ?, ?, ?, ?)",
		n.ID, n.UserID, n.Message, string(n.Type), n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return notification.Notification{}, errors.Wrap(err, "inserting notification")
	}
	return n, nil
}

func (repo notificationRepository) QueryNotifications(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]notification.Notification, error) {
	var rows []notificationRow
	err := repo.selectAll(ctx, exec, &rows,
		"SELECT "+notificationColumns+" FROM notifications WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting notifications")
	}
	ns := make([]notification.Notification, 0, len(rows))
	for _, n := range rows {
		ns = append(ns, notification.Notification{
			ID:        n.ID,
			UserID:    n.UserID,
			Message:   n.Message,
			Type:      notification.Type(n.Type),
			IsRead:    n.IsRead,
			CreatedAt: n.CreatedAt.UTC(),
		})
	}
	return ns, nil
}

func (repo notificationRepository) MarkRead(ctx context.Context, userID, id string, exec ...core.DBExecutor) error {
	res, err := repo.execute(ctx, exec, "UPDATE notifications SET is_read = TRUE WHERE id = ? AND user_id = ?", id, userID)
	if err != nil {
		return errors.Wrap(err, "marking notification read")
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return notification.ErrNotFound
	}
	return nil
}

func (repo notificationRepository) MarkAllRead(ctx context.Context, userID string, exec ...core.DBExecutor) (int64, error) {
	res, err := repo.execute(ctx, exec, "UPDATE notifications SET is_read = TRUE WHERE user_id = ? AND is_read = FALSE", userID)
	if err != nil {
		return 0, errors.Wrap(err, "marking notifications read")
	}
	n, err := res.RowsAffected()
	return n, errors.Wrap(err, "reading affected rows")
}
