package notification

import (
	"context"
	"fmt"
	"net/mail"
	"time"

	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

type Type string

const (
	TypeInfo    Type = "info"
	TypeSuccess Type = "success"
	TypeWarning Type = "warning"
)

// inboxSize is the number of notifications returned by List.
const inboxSize = 20

var ErrNotFound = core.NewNotFoundError("notification")

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Message   string    `json:"message"`
	Type      Type      `json:"type"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type (
	Repository interface {
		CreateNotification(ctx context.Context, n Notification, exec ...core.DBExecutor) (Notification, error)
		QueryNotifications(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]Notification, error)
		// MarkRead returns ErrNotFound when no notification with id belongs to userID.
		MarkRead(ctx context.Context, userID, id string, exec ...core.DBExecutor) error
		MarkAllRead(ctx context.Context, userID string, exec ...core.DBExecutor) (int64, error)
	}

	// Recipient resolves the email address of a user.
	Recipient interface {
		EmailOf(ctx context.Context, userID string) (mail.Address, error)
	}

	Service struct {
		repo       Repository
		recipients Recipient
		mailSvc    core.EmailService
		clock      core.Clock
		logger     core.Logger
		appName    string
	}
)

func NewService(repo Repository, clock core.Clock, logger core.Logger) *Service {
	return &Service{repo: repo, clock: clock, logger: logger}
}

// WithMailer mirrors warning notifications to the recipient's inbox.
func (svc *Service) WithMailer(mailSvc core.EmailService, recipients Recipient, appName string) *Service {
	svc.mailSvc = mailSvc
	svc.recipients = recipients
	svc.appName = appName
	return svc
}

// Notify records a notification for userID. Failures are logged and never returned:
// a notification must not undo the transition that produced it.
func (svc *Service) Notify(ctx context.Context, userID, message string, typ Type) {
	if userID == "" {
		return
	}
	n := Notification{
		UserID:    userID,
		Message:   message,
		Type:      typ,
		CreatedAt: svc.clock.Now(),
	}
	if _, err := svc.repo.CreateNotification(ctx, n); err != nil {
		svc.logger.Error(fmt.Sprintf("creating notification for %s: %v", userID, err), err)
	}
	if typ == TypeWarning {
		svc.mail(ctx, userID, message)
	}
}

func (svc *Service) mail(ctx context.Context, userID, message string) {
	if svc.mailSvc == nil || svc.recipients == nil {
		return
	}
	to, err := svc.recipients.EmailOf(ctx, userID)
	if err != nil {
		svc.logger.Warn(fmt.Sprintf("resolving email for %s: %v", userID, err), err)
		return
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:       []mail.Address{to},
		Subject:  "You have a new notification",
		BodyStr:  message,
		AppName:  svc.appName,
		Category: string(TypeWarning),
	})
}

// List returns the latest notifications of userID, newest first.
func (svc *Service) List(ctx context.Context, userID string) ([]Notification, error) {
	ns, err := svc.repo.QueryNotifications(ctx, userID, inboxSize)
	return ns, errors.Wrap(err, "querying notifications")
}

func (svc *Service) MarkRead(ctx context.Context, userID, id string) error {
	return svc.repo.MarkRead(ctx, userID, id)
}

func (svc *Service) MarkAllRead(ctx context.Context, userID string) error {
	_, err := svc.repo.MarkAllRead(ctx, userID)
	return errors.Wrap(err, "marking notifications read")
}
