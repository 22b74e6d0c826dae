package user

import (
	"context"
	"net/mail"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

var (
	// errors
	ErrNotFound           = core.NewNotFoundError("user")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = core.NewValidationError(errors.New("invalid email or password"))
	ErrAccountDeactivated = core.NewPermissionError("Your account has been deactivated. Contact faculty.")
	ErrWrongPassword      = core.NewValidationError(nil, core.FieldError{Field: "current_password", Error: "current password is incorrect"})
)

type (
	Repository interface {
		CreateUser(ctx context.Context, usr User, exec ...core.DBExecutor) (User, error)
		GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (User, error)
		GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (User, error)
		// FilterUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		FilterUsers(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]User, error)
		// FindActive returns the active users with role in department, oldest first.
		FindActive(ctx context.Context, role Role, department string, exec ...core.DBExecutor) ([]User, error)
		SetPassword(ctx context.Context, id string, hash []byte, at time.Time, exec ...core.DBExecutor) error
		SetActive(ctx context.Context, id string, active bool, at time.Time, exec ...core.DBExecutor) (User, error)
	}

	Service struct {
		repo     Repository
		validate *validator.Validate
		clock    core.Clock
	}
)

func NewService(repo Repository, validate *validator.Validate, clock core.Clock) *Service {
	return &Service{repo: repo, validate: validate, clock: clock}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string) error {
	_, err := svc.repo.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	case errors.Cause(err) == ErrNotFound:
		return nil
	default:
		return errors.Wrap(err, "checking email uniqueness")
	}
}

func (svc *Service) Register(ctx context.Context, nu NewUser) (User, error) {
	if err := nu.Validate(svc.validate); err != nil {
		return User{}, err
	}
	if err := svc.checkUniqueness(ctx, nu.Email); err != nil {
		return User{}, err
	}

	now := svc.clock.Now()
	usr := User{
		Name:       nu.Name,
		Email:      nu.Email,
		Role:       nu.Role,
		Department: nu.Department,
		Year:       nu.Year,
		IsActive:   true,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "hashing password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	return usr, errors.Wrap(err, "creating user")
}

// Authenticate checks the credentials and returns the matching active user.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if len(usr.PasswordHash) == 0 || usr.CheckPassword(pwd) != nil {
		return User{}, ErrInvalidCredentials
	}
	if !usr.IsActive {
		return User{}, ErrAccountDeactivated
	}
	return usr, nil
}

func (svc *Service) ChangePassword(ctx context.Context, usr User, cp ChangePassword) error {
	if err := cp.Validate(svc.validate); err != nil {
		return err
	}
	if usr.CheckPassword(cp.CurrentPassword) != nil {
		return ErrWrongPassword
	}
	if err := usr.SetPassword(cp.NewPassword); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(svc.repo.SetPassword(ctx, usr.ID, usr.PasswordHash, svc.clock.Now()), "setting password")
}

// ResetPassword sets a new password without checking the current one. Used by the admin CLI.
func (svc *Service) ResetPassword(ctx context.Context, email, pwd string) error {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return errors.Wrap(err, "hashing password")
	}
	return errors.Wrap(svc.repo.SetPassword(ctx, usr.ID, usr.PasswordHash, svc.clock.Now()), "setting password")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	return svc.repo.GetUserByID(ctx, id)
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	return svc.repo.GetUserByEmail(ctx, core.CleanString(email, true /* lower */))
}

func (svc *Service) Query(ctx context.Context, filter QueryFilter, ordering []core.DBOrdering) ([]User, error) {
	filter.Clean()
	return svc.repo.FilterUsers(ctx, filter, ordering)
}

// ToggleActive flips the target's active flag. Moderators cannot deactivate themselves.
func (svc *Service) ToggleActive(ctx context.Context, moderator User, id string) (User, error) {
	if !moderator.Can(CapModerate) {
		return User{}, core.NewPermissionError("permission denied")
	}
	if moderator.ID == id {
		return User{}, core.NewPermissionError("you cannot change your own account status")
	}
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	return svc.repo.SetActive(ctx, id, !usr.IsActive, svc.clock.Now())
}

// FirstActive returns the earliest registered active user with role in department.
func (svc *Service) FirstActive(ctx context.Context, role Role, department string, exec ...core.DBExecutor) (User, bool, error) {
	users, err := svc.repo.FindActive(ctx, role, department, exec...)
	if err != nil {
		return User{}, false, errors.Wrap(err, "finding active users")
	}
	if len(users) == 0 {
		return User{}, false, nil
	}
	return users[0], true, nil
}

func (svc *Service) FindActive(ctx context.Context, role Role, department string, exec ...core.DBExecutor) ([]User, error) {
	return svc.repo.FindActive(ctx, role, department, exec...)
}

// EmailOf returns the address notifications for id are mailed to.
func (svc *Service) EmailOf(ctx context.Context, id string) (mail.Address, error) {
	usr, err := svc.repo.GetUserByID(ctx, id)
	if err != nil {
		return mail.Address{}, err
	}
	return mail.Address{Name: usr.Name, Address: usr.Email}, nil
}
