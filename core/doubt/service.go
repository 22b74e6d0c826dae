package doubt

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
)

const referenceType = "doubt"

var (
	// errors
	ErrNotFound        = core.NewNotFoundError("doubt")
	ErrNotAssigned     = core.NewPermissionError("this doubt is not assigned to you")
	ErrCannotAsk       = core.NewPermissionError("only juniors can submit doubts")
	ErrAlreadyAnswered = core.NewConflictError("this doubt has already been answered")
	ErrEscalated       = core.NewConflictError("this doubt has been escalated to faculty")
)

type (
	Repository interface {
		CreateDoubt(ctx context.Context, d Doubt, exec ...core.DBExecutor) (Doubt, error)
		GetDoubt(ctx context.Context, id string, exec ...core.DBExecutor) (Doubt, error)
		QueryByAsker(ctx context.Context, askerID string, exec ...core.DBExecutor) ([]Doubt, error)
		// QueryByResponder returns the doubts assigned to responderID as senior or faculty.
		QueryByResponder(ctx context.Context, responderID string, exec ...core.DBExecutor) ([]Doubt, error)
		// MarkAnswered answers an open doubt. ok is false when the doubt is no longer open.
		MarkAnswered(ctx context.Context, id, answer, answeredBy string, at time.Time, exec ...core.DBExecutor) (bool, error)
		// RecordEscalatedAnswer answers an escalated doubt on behalf of its faculty.
		// ok is false when the doubt is not escalated to facultyID or was answered already.
		RecordEscalatedAnswer(ctx context.Context, id, answer, facultyID string, at time.Time, exec ...core.DBExecutor) (bool, error)
		// QueryStale returns the open doubts created before cutoff.
		QueryStale(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) ([]StaleDoubt, error)
		// Escalate moves an open doubt to escalated. ok is false when the doubt is no longer open.
		Escalate(ctx context.Context, id string, facultyID *string, at time.Time, exec ...core.DBExecutor) (bool, error)
	}

	// Directory finds the users doubts are routed to.
	Directory interface {
		FindActive(ctx context.Context, role user.Role, department string, exec ...core.DBExecutor) ([]user.User, error)
	}

	Ledger interface {
		AwardTx(ctx context.Context, tx core.DBExecutor, userID string, action ledger.Action, refID, refType string) (ledger.Entry, error)
		Settle(ctx context.Context, entry ledger.Entry)
	}

	Notifier interface {
		Notify(ctx context.Context, userID, message string, typ notification.Type)
	}

	Options struct {
		// Window is how long a doubt may stay open before it is escalated.
		Window time.Duration
		// RandIntn picks the assigned senior; defaults to math/rand.
		RandIntn func(n int) int
	}

	Service struct {
		db        core.DB
		repo      Repository
		directory Directory
		ledger    Ledger
		notifier  Notifier
		validate  *validator.Validate
		clock     core.Clock
		logger    core.Logger
		metrics   core.Metrics
		window    time.Duration
		randIntn  func(n int) int
	}
)

func NewService(
	db core.DB,
	repo Repository,
	directory Directory,
	ldgr Ledger,
	notifier Notifier,
	validate *validator.Validate,
	clock core.Clock,
	logger core.Logger,
	metrics core.Metrics,
	opts Options,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	if opts.RandIntn == nil {
		opts.RandIntn = rand.Intn
	}
	if opts.Window <= 0 {
		opts.Window = 48 * time.Hour
	}
	return &Service{
		db:        db,
		repo:      repo,
		directory: directory,
		ledger:    ldgr,
		notifier:  notifier,
		validate:  validate,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		window:    opts.Window,
		randIntn:  opts.RandIntn,
	}
}

// Submit creates an open doubt for asker and routes it: a random active senior of the
// department, else the first active faculty member, else nobody.
func (svc *Service) Submit(ctx context.Context, asker user.User, nd NewDoubt) (Doubt, error) {
	if !asker.Can(user.CapAskDoubt) {
		return Doubt{}, ErrCannotAsk
	}
	if err := nd.Validate(svc.validate); err != nil {
		return Doubt{}, err
	}
	if nd.Department == "" {
		nd.Department = asker.Department
	}

	d := Doubt{
		AskerID:    asker.ID,
		Subject:    nd.Subject,
		Department: nd.Department,
		Question:   nd.Question,
		Status:     StatusOpen,
		CreatedAt:  svc.clock.Now(),
	}

	seniors, err := svc.directory.FindActive(ctx, user.RoleSenior, nd.Department)
	if err != nil {
		return Doubt{}, errors.Wrap(err, "finding seniors")
	}
	if len(seniors) > 0 {
		id := seniors[svc.randIntn(len(seniors))].ID
		d.AssignedSeniorID = &id
	} else {
		faculty, err := svc.directory.FindActive(ctx, user.RoleFaculty, nd.Department)
		if err != nil {
			return Doubt{}, errors.Wrap(err, "finding faculty")
		}
		if len(faculty) > 0 {
			id := faculty[0].ID
			d.FacultyID = &id
		}
	}

	d, err = svc.repo.CreateDoubt(ctx, d)
	if err != nil {
		return Doubt{}, errors.Wrap(err, "creating doubt")
	}

	msg := fmt.Sprintf("You have a new doubt assigned: %q...", core.Excerpt(d.Question, 60))
	switch {
	case d.AssignedSeniorID != nil:
		svc.notifier.Notify(ctx, *d.AssignedSeniorID, msg, notification.TypeInfo)
	case d.FacultyID != nil:
		svc.notifier.Notify(ctx, *d.FacultyID, msg, notification.TypeInfo)
	}
	return d, nil
}

// Answer records responder's answer. An open doubt becomes answered and a senior
// responder earns DOUBT_SOLVED in the same transaction. An escalated doubt keeps its
// status and may only be answered once, by its faculty.
func (svc *Service) Answer(ctx context.Context, responder user.User, id string, na NewAnswer) (Doubt, error) {
	if err := na.Validate(svc.validate); err != nil {
		return Doubt{}, err
	}
	d, err := svc.repo.GetDoubt(ctx, id)
	if err != nil {
		return Doubt{}, err
	}
	if !d.IsResponder(responder.ID) {
		return Doubt{}, ErrNotAssigned
	}

	now := svc.clock.Now()
	var entry ledger.Entry
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		switch d.Status {
		case StatusOpen:
			ok, err := svc.repo.MarkAnswered(ctx, d.ID, na.Answer, responder.ID, now, tx)
			if err != nil {
				return errors.Wrap(err, "answering doubt")
			}
			if !ok {
				return svc.conflict(ctx, d.ID, tx)
			}
			if responder.Role == user.RoleSenior {
				entry, err = svc.ledger.AwardTx(ctx, tx, responder.ID, ledger.ActionDoubtSolved, d.ID, referenceType)
				return err
			}
			return nil
		case StatusEscalated:
			if d.FacultyID == nil || *d.FacultyID != responder.ID {
				return ErrEscalated
			}
			ok, err := svc.repo.RecordEscalatedAnswer(ctx, d.ID, na.Answer, responder.ID, now, tx)
			if err != nil {
				return errors.Wrap(err, "answering escalated doubt")
			}
			if !ok {
				return ErrAlreadyAnswered
			}
			return nil
		default:
			return ErrAlreadyAnswered
		}
	})
	if err != nil {
		return Doubt{}, err
	}

	svc.ledger.Settle(ctx, entry)
	svc.notifier.Notify(
		ctx, d.AskerID,
		`Your doubt has been answered! Check "My Doubts" to see the answer.`,
		notification.TypeSuccess,
	)

	d, err = svc.repo.GetDoubt(ctx, d.ID)
	return d, errors.Wrap(err, "reloading doubt")
}

// conflict explains why a conditional transition on doubt id affected no row.
func (svc *Service) conflict(ctx context.Context, id string, exec core.DBExecutor) error {
	d, err := svc.repo.GetDoubt(ctx, id, exec)
	if err != nil {
		return err
	}
	if d.Status == StatusEscalated {
		return ErrEscalated
	}
	return ErrAlreadyAnswered
}

// EscalateStale escalates every doubt left open longer than the window.
// A doubt that fails is logged and counted; it does not stop the sweep.
func (svc *Service) EscalateStale(ctx context.Context) (escalated, failed int, err error) {
	now := svc.clock.Now()
	stale, err := svc.repo.QueryStale(ctx, now.Add(-svc.window))
	if err != nil {
		return 0, 0, errors.Wrap(err, "querying stale doubts")
	}

	for _, sd := range stale {
		ok, err := svc.escalate(ctx, sd, now)
		if err != nil {
			failed++
			svc.logger.Error(fmt.Sprintf("escalating doubt %s: %v", sd.ID, err), err)
			continue
		}
		if ok {
			escalated++
		}
	}
	return escalated, failed, nil
}

func (svc *Service) escalate(ctx context.Context, sd StaleDoubt, now time.Time) (bool, error) {
	faculty, err := svc.directory.FindActive(ctx, user.RoleFaculty, sd.Department)
	if err != nil {
		return false, errors.Wrap(err, "finding faculty")
	}
	if len(faculty) == 0 && sd.AskerDepartment != "" && sd.AskerDepartment != sd.Department {
		if faculty, err = svc.directory.FindActive(ctx, user.RoleFaculty, sd.AskerDepartment); err != nil {
			return false, errors.Wrap(err, "finding faculty")
		}
	}

	var facultyID *string
	if len(faculty) > 0 {
		facultyID = &faculty[0].ID
	}
	ok, err := svc.repo.Escalate(ctx, sd.ID, facultyID, now)
	if err != nil || !ok {
		return false, errors.Wrap(err, "updating doubt")
	}

	svc.metrics.DoubtEscalated()
	if facultyID != nil {
		svc.notifier.Notify(
			ctx, *facultyID,
			fmt.Sprintf("A student doubt has been escalated to you after %d hours without a response.", int(svc.window.Hours())),
			notification.TypeWarning,
		)
	}
	return true, nil
}

func (svc *Service) Get(ctx context.Context, id string) (Doubt, error) {
	return svc.repo.GetDoubt(ctx, id)
}

// ListMine returns the doubts asked by asker, newest first.
func (svc *Service) ListMine(ctx context.Context, asker user.User) ([]Doubt, error) {
	ds, err := svc.repo.QueryByAsker(ctx, asker.ID)
	return ds, errors.Wrap(err, "querying doubts")
}

// ListAssigned returns the doubts responder may answer, newest first.
func (svc *Service) ListAssigned(ctx context.Context, responder user.User) ([]Doubt, error) {
	ds, err := svc.repo.QueryByResponder(ctx, responder.ID)
	return ds, errors.Wrap(err, "querying doubts")
}
