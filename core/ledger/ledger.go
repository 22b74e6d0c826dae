package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

type Action string

const (
	ActionMaterialApproved Action = "MATERIAL_APPROVED"
	ActionProjectApproved  Action = "PROJECT_APPROVED"
	ActionDoubtSolved      Action = "DOUBT_SOLVED"
)

var pointTable = map[Action]int{
	ActionMaterialApproved: 10,
	ActionProjectApproved:  15,
	ActionDoubtSolved:      5,
}

// statementSize is the number of entries returned with a Statement.
const statementSize = 50

var (
	// errors
	ErrUserNotFound   = core.NewNotFoundError("user")
	ErrAlreadyAwarded = core.NewConflictError("points were already awarded for this event")
)

// PointsFor returns the points earned by action.
func PointsFor(action Action) (int, bool) {
	pts, ok := pointTable[action]
	return pts, ok
}

// Entry is one append-only line of the points log.
type Entry struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Action        Action    `json:"action"`
	PointsEarned  int       `json:"points_earned"`
	ReferenceID   string    `json:"reference_id"`
	ReferenceType string    `json:"reference_type"`
	CreatedAt     time.Time `json:"created_at"`
}

// Statement is a user's balance with their latest log entries.
type Statement struct {
	Points int     `json:"points"`
	Log    []Entry `json:"log"`
}

type (
	Repository interface {
		// AppendEntry inserts e; ok is false when the same user, action and reference were already logged.
		AppendEntry(ctx context.Context, e Entry, exec ...core.DBExecutor) (entry Entry, ok bool, err error)
		// Credit adds points to the user's balance and returns the new balance.
		Credit(ctx context.Context, userID string, points int, exec ...core.DBExecutor) (int, error)
		Balance(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
		QueryEntries(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]Entry, error)
		SumEntries(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error)
	}

	// CertificateIssuer is notified once a user's balance reaches the threshold.
	CertificateIssuer interface {
		IssueIfEligible(ctx context.Context, userID string) (bool, error)
	}

	Service struct {
		db        core.DB
		repo      Repository
		issuer    CertificateIssuer
		clock     core.Clock
		logger    core.Logger
		metrics   core.Metrics
		threshold int
	}
)

func NewService(
	db core.DB,
	repo Repository,
	issuer CertificateIssuer,
	clock core.Clock,
	logger core.Logger,
	metrics core.Metrics,
	threshold int,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		db:        db,
		repo:      repo,
		issuer:    issuer,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		threshold: threshold,
	}
}

// Award credits userID for action in its own transaction and then settles the credit.
// An unknown action is logged and ignored: the returned Entry is empty.
func (svc *Service) Award(ctx context.Context, userID string, action Action, refID, refType string) (Entry, error) {
	var entry Entry
	err := core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		var err error
		entry, err = svc.AwardTx(ctx, tx, userID, action, refID, refType)
		return err
	})
	if err != nil {
		return Entry{}, err
	}
	svc.Settle(ctx, entry)
	return entry, nil
}

// AwardTx appends the log entry and credits the balance using tx.
// The caller owns tx and must call Settle once it is committed.
func (svc *Service) AwardTx(ctx context.Context, tx core.DBExecutor, userID string, action Action, refID, refType string) (Entry, error) {
	pts, ok := PointsFor(action)
	if !ok {
		svc.logger.Warn(fmt.Sprintf("ignoring unknown points action %q for user %s", action, userID))
		return Entry{}, nil
	}

	entry, ok, err := svc.repo.AppendEntry(ctx, Entry{
		UserID:        userID,
		Action:        action,
		PointsEarned:  pts,
		ReferenceID:   refID,
		ReferenceType: refType,
		CreatedAt:     svc.clock.Now(),
	}, tx)
	if err != nil {
		return Entry{}, errors.Wrap(err, "appending points entry")
	}
	if !ok {
		return Entry{}, ErrAlreadyAwarded
	}
	if _, err = svc.repo.Credit(ctx, userID, pts, tx); err != nil {
		return Entry{}, errors.Wrap(err, "crediting points")
	}
	return entry, nil
}

// Settle runs the post-commit side of a credit: metrics and certificate issuance.
// Failures are logged; the credit itself is already durable.
func (svc *Service) Settle(ctx context.Context, entry Entry) {
	if entry.ID == "" {
		return
	}
	svc.metrics.PointsAwarded(string(entry.Action), entry.PointsEarned)
	if svc.issuer == nil {
		return
	}

	total, err := svc.repo.Balance(ctx, entry.UserID)
	if err != nil {
		svc.logger.Error(fmt.Sprintf("reading balance of %s: %v", entry.UserID, err), err)
		return
	}
	if total < svc.threshold {
		return
	}
	if _, err = svc.issuer.IssueIfEligible(ctx, entry.UserID); err != nil {
		svc.logger.Error(fmt.Sprintf("issuing certificate for %s: %v", entry.UserID, err), err)
	}
}

// Statement returns the balance of userID with the latest log entries.
func (svc *Service) Statement(ctx context.Context, userID string) (Statement, error) {
	total, err := svc.repo.Balance(ctx, userID)
	if err != nil {
		return Statement{}, errors.Wrap(err, "reading balance")
	}
	entries, err := svc.repo.QueryEntries(ctx, userID, statementSize)
	if err != nil {
		return Statement{}, errors.Wrap(err, "querying points entries")
	}
	return Statement{Points: total, Log: entries}, nil
}

// Reconcile returns the stored balance of userID and the sum of its log entries.
func (svc *Service) Reconcile(ctx context.Context, userID string) (balance, logged int, err error) {
	if balance, err = svc.repo.Balance(ctx, userID); err != nil {
		return 0, 0, errors.Wrap(err, "reading balance")
	}
	if logged, err = svc.repo.SumEntries(ctx, userID); err != nil {
		return 0, 0, errors.Wrap(err, "summing points entries")
	}
	return balance, logged, nil
}
