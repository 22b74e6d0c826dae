package submission

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
)

var (
	// errors
	ErrMaterialNotFound = core.NewNotFoundError("material")
	ErrProjectNotFound  = core.NewNotFoundError("project")
	ErrAlreadyReviewed  = core.NewConflictError("this submission has already been reviewed")
	ErrCannotSubmit     = core.NewPermissionError("only seniors can submit materials and projects")
	ErrCannotReview     = core.NewPermissionError("only faculty can review submissions")
	ErrUnknownKind      = errors.New("unknown submission kind")
)

// kindSpec holds what differs between reviewing a material and a project.
type kindSpec struct {
	action ledger.Action
	noun   string
}

var kinds = map[Kind]kindSpec{
	KindMaterial: {action: ledger.ActionMaterialApproved, noun: "material"},
	KindProject:  {action: ledger.ActionProjectApproved, noun: "project"},
}

type (
	Repository interface {
		CreateMaterial(ctx context.Context, m Material, exec ...core.DBExecutor) (Material, error)
		GetMaterial(ctx context.Context, id string, exec ...core.DBExecutor) (Material, error)
		QueryMaterials(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Material, error)
		QueryMaterialsByUploader(ctx context.Context, uploaderID string, exec ...core.DBExecutor) ([]Material, error)
		AddMaterialView(ctx context.Context, id string, exec ...core.DBExecutor) error

		CreateProject(ctx context.Context, p Project, exec ...core.DBExecutor) (Project, error)
		GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (Project, error)
		QueryProjects(ctx context.Context, filter QueryFilter, exec ...core.DBExecutor) ([]Project, error)
		QueryProjectsByUploader(ctx context.Context, uploaderID string, exec ...core.DBExecutor) ([]Project, error)

		// Review applies d to a pending submission. ok is false when it is no longer pending.
		Review(ctx context.Context, kind Kind, id string, d Decision, exec ...core.DBExecutor) (bool, error)
	}

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

	Service struct {
		db        core.DB
		repo      Repository
		directory Directory
		ledger    Ledger
		notifier  Notifier
		validate  *validator.Validate
		clock     core.Clock
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
) *Service {
	return &Service{
		db:        db,
		repo:      repo,
		directory: directory,
		ledger:    ldgr,
		notifier:  notifier,
		validate:  validate,
		clock:     clock,
	}
}

func (svc *Service) UploadMaterial(ctx context.Context, uploader user.User, nm NewMaterial) (Material, error) {
	if !uploader.Can(user.CapSubmitContent) {
		return Material{}, ErrCannotSubmit
	}
	if err := nm.Validate(svc.validate); err != nil {
		return Material{}, err
	}
	if nm.Department == "" {
		nm.Department = uploader.Department
	}

	m, err := svc.repo.CreateMaterial(ctx, Material{
		UploaderID:  uploader.ID,
		Title:       nm.Title,
		Subject:     nm.Subject,
		Department:  nm.Department,
		Year:        nm.Year,
		FileURL:     nm.FileURL,
		Description: nm.Description,
		Status:      StatusPending,
		CreatedAt:   svc.clock.Now(),
	})
	if err != nil {
		return Material{}, errors.Wrap(err, "creating material")
	}
	svc.notifyReviewer(ctx, m.Department, fmt.Sprintf("New material %q submitted by %s awaiting your approval.", m.Title, uploader.Name))
	return m, nil
}

func (svc *Service) SubmitProject(ctx context.Context, uploader user.User, np NewProject) (Project, error) {
	if !uploader.Can(user.CapSubmitContent) {
		return Project{}, ErrCannotSubmit
	}
	if err := np.Validate(svc.validate); err != nil {
		return Project{}, err
	}
	if np.Department == "" {
		np.Department = uploader.Department
	}

	p, err := svc.repo.CreateProject(ctx, Project{
		UploaderID:    uploader.ID,
		Title:         np.Title,
		Abstract:      np.Abstract,
		TechStack:     np.TechStack,
		GithubLink:    np.GithubLink,
		DemoVideoLink: np.DemoVideoLink,
		PPTURL:        np.PPTURL,
		ReportPDFURL:  np.ReportPDFURL,
		TeamMembers:   np.TeamMembers,
		Department:    np.Department,
		Status:        StatusPending,
		CreatedAt:     svc.clock.Now(),
	})
	if err != nil {
		return Project{}, errors.Wrap(err, "creating project")
	}
	svc.notifyReviewer(ctx, p.Department, fmt.Sprintf("New project %q submitted by %s awaiting approval.", p.Title, uploader.Name))
	return p, nil
}

// notifyReviewer tells the first active faculty member of department about a new submission.
func (svc *Service) notifyReviewer(ctx context.Context, department, msg string) {
	faculty, err := svc.directory.FindActive(ctx, user.RoleFaculty, department)
	if err != nil || len(faculty) == 0 {
		return
	}
	svc.notifier.Notify(ctx, faculty[0].ID, msg, notification.TypeInfo)
}

func (svc *Service) head(ctx context.Context, kind Kind, id string) (head, error) {
	switch kind {
	case KindMaterial:
		m, err := svc.repo.GetMaterial(ctx, id)
		if err != nil {
			return head{}, err
		}
		return head{UploaderID: m.UploaderID, Title: m.Title, Status: m.Status}, nil
	case KindProject:
		p, err := svc.repo.GetProject(ctx, id)
		if err != nil {
			return head{}, err
		}
		return head{UploaderID: p.UploaderID, Title: p.Title, Status: p.Status}, nil
	}
	return head{}, ErrUnknownKind
}

// Approve approves a pending submission and credits its uploader in the same transaction.
// Approving twice is a conflict and credits nothing.
func (svc *Service) Approve(ctx context.Context, reviewer user.User, kind Kind, id string) error {
	ks, ok := kinds[kind]
	if !ok {
		return ErrUnknownKind
	}
	if !reviewer.Can(user.CapModerate) {
		return ErrCannotReview
	}
	h, err := svc.head(ctx, kind, id)
	if err != nil {
		return err
	}
	if h.Status != StatusPending {
		return ErrAlreadyReviewed
	}

	var entry ledger.Entry
	err = core.RunInTx(ctx, svc.db, func(tx core.DBExecutor) error {
		ok, err := svc.repo.Review(ctx, kind, id, Decision{Status: StatusApproved, ApprovedBy: &reviewer.ID}, tx)
		if err != nil {
			return errors.Wrapf(err, "approving %s", ks.noun)
		}
		if !ok {
			return ErrAlreadyReviewed
		}
		entry, err = svc.ledger.AwardTx(ctx, tx, h.UploaderID, ks.action, id, string(kind))
		return err
	})
	if err != nil {
		return err
	}

	svc.ledger.Settle(ctx, entry)
	pts, _ := ledger.PointsFor(ks.action)
	svc.notifier.Notify(
		ctx, h.UploaderID,
		fmt.Sprintf("Your %s %q has been approved! +%d points awarded.", ks.noun, h.Title, pts),
		notification.TypeSuccess,
	)
	return nil
}

// Reject rejects a pending submission with a mandatory reason.
func (svc *Service) Reject(ctx context.Context, reviewer user.User, kind Kind, id string, r Rejection) error {
	ks, ok := kinds[kind]
	if !ok {
		return ErrUnknownKind
	}
	if !reviewer.Can(user.CapModerate) {
		return ErrCannotReview
	}
	if err := r.Validate(svc.validate); err != nil {
		return err
	}
	h, err := svc.head(ctx, kind, id)
	if err != nil {
		return err
	}
	if h.Status != StatusPending {
		return ErrAlreadyReviewed
	}

	ok, err = svc.repo.Review(ctx, kind, id, Decision{Status: StatusRejected, RejectionReason: &r.Reason})
	if err != nil {
		return errors.Wrapf(err, "rejecting %s", ks.noun)
	}
	if !ok {
		return ErrAlreadyReviewed
	}

	svc.notifier.Notify(
		ctx, h.UploaderID,
		fmt.Sprintf("Your %s %q was rejected. Reason: %s", ks.noun, h.Title, r.Reason),
		notification.TypeWarning,
	)
	return nil
}

func (svc *Service) QueryMaterials(ctx context.Context, filter QueryFilter) ([]Material, error) {
	filter.Clean()
	ms, err := svc.repo.QueryMaterials(ctx, filter)
	return ms, errors.Wrap(err, "querying materials")
}

func (svc *Service) MyMaterials(ctx context.Context, uploader user.User) ([]Material, error) {
	ms, err := svc.repo.QueryMaterialsByUploader(ctx, uploader.ID)
	return ms, errors.Wrap(err, "querying materials")
}

func (svc *Service) GetMaterial(ctx context.Context, id string) (Material, error) {
	return svc.repo.GetMaterial(ctx, id)
}

// AddView counts one more view of material id.
func (svc *Service) AddView(ctx context.Context, id string) error {
	return svc.repo.AddMaterialView(ctx, id)
}

func (svc *Service) QueryProjects(ctx context.Context, filter QueryFilter) ([]Project, error) {
	filter.Clean()
	ps, err := svc.repo.QueryProjects(ctx, filter)
	return ps, errors.Wrap(err, "querying projects")
}

func (svc *Service) MyProjects(ctx context.Context, uploader user.User) ([]Project, error) {
	ps, err := svc.repo.QueryProjectsByUploader(ctx, uploader.ID)
	return ps, errors.Wrap(err, "querying projects")
}

func (svc *Service) GetProject(ctx context.Context, id string) (Project, error) {
	return svc.repo.GetProject(ctx, id)
}
