package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/user"
)

const userColumns = "id, name, email, password_hash, role, department, year, points, is_active, created_at, updated_at"

type userRow struct {
	ID           string    `db:"id"`
	Name         string    `db:"name"`
	Email        string    `db:"email"`
	PasswordHash string    `db:"password_hash"`
	Role         string    `db:"role"`
	Department   string    `db:"department"`
	Year         null.Int  `db:"year"`
	Points       int       `db:"points"`
	IsActive     bool      `db:"is_active"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(exec core.DBExecutor) *userRepository {
	return &userRepository{base{exec: exec}}
}

func (repo userRepository) boil(usr user.User) userRow {
	return userRow{
		ID:           usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		PasswordHash: string(usr.PasswordHash),
		Role:         string(usr.Role),
		Department:   usr.Department,
		Year:         null.IntFromPtr(usr.Year),
		Points:       usr.Points,
		IsActive:     usr.IsActive,
		CreatedAt:    usr.CreatedAt.UTC(),
		UpdatedAt:    usr.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unboil(u userRow) user.User {
	var hash []byte
	if u.PasswordHash != "" {
		hash = []byte(u.PasswordHash)
	}
	return user.User{
		ID:           u.ID,
		Name:         u.Name,
		Email:        u.Email,
		Role:         user.Role(u.Role),
		Department:   u.Department,
		Year:         u.Year.Ptr(),
		Points:       u.Points,
		IsActive:     u.IsActive,
		PasswordHash: hash,
		CreatedAt:    u.CreatedAt.UTC(),
		UpdatedAt:    u.UpdatedAt.UTC(),
	}
}

func (repo userRepository) unboilSlice(rows []userRow) []user.User {
	users := make([]user.User, 0, len(rows))
	for _, u := range rows {
		users = append(users, repo.unboil(u))
	}
	return users
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User, exec ...core.DBExecutor) (user.User, error) {
	usr.ID = uuid.New().String()
	u := repo.boil(usr)
	_, err := repo.execute(ctx, exec,
		"INSERT INTO users ("+userColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		u.ID, u.Name, u.Email, u.PasswordHash, u.Role, u.Department, u.Year, u.Points, u.IsActive, u.CreatedAt, u.UpdatedAt,
	)
	if err != nil {
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) GetUserByID(ctx context.Context, id string, exec ...core.DBExecutor) (user.User, error) {
	var u userRow
	if err := repo.get(ctx, exec, &u, "SELECT "+userColumns+" FROM users WHERE id = ?", id); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user by id")
	}
	return repo.unboil(u), nil
}

func (repo userRepository) GetUserByEmail(ctx context.Context, email string, exec ...core.DBExecutor) (user.User, error) {
	var u userRow
	if err := repo.get(ctx, exec, &u, "SELECT "+userColumns+" FROM users WHERE email = ?", email); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "selecting user by email")
	}
	return repo.unboil(u), nil
}

var userOrderings = map[string]string{
	"name":       "name",
	"email":      "email",
	"role":       "role",
	"department": "department",
	"points":     "points",
	"created_at": "created_at",
}

func (repo userRepository) FilterUsers(ctx context.Context, filter user.QueryFilter, ordering []core.DBOrdering, exec ...core.DBExecutor) ([]user.User, error) {
	var w where
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", val, val)
	}
	if filter.Role != "" {
		w.add("role = ?", string(filter.Role))
	}
	if filter.Department != "" {
		w.add("department = ?", filter.Department)
	}
	if filter.IsActive != nil {
		w.add("is_active = ?", *filter.IsActive)
	}

	var rows []userRow
	q := "SELECT " + userColumns + " FROM users" + w.String() + orderBy(ordering, userOrderings, "created_at DESC, id")
	if err := repo.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "filtering users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) FindActive(ctx context.Context, role user.Role, department string, exec ...core.DBExecutor) ([]user.User, error) {
	var rows []userRow
	err := repo.selectAll(ctx, exec, &rows,
		"SELECT "+userColumns+" FROM users WHERE role = ? AND department = ? AND is_active = TRUE ORDER BY created_at, id",
		string(role), department,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting active users")
	}
	return repo.unboilSlice(rows), nil
}

func (repo userRepository) SetPassword(ctx context.Context, id string, hash []byte, at time.Time, exec ...core.DBExecutor) error {
	res, err := repo.execute(ctx, exec, "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?", string(hash), at.UTC(), id)
	if err != nil {
		return errors.Wrap(err, "updating password")
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return user.ErrNotFound
	}
	return nil
}

func (repo userRepository) SetActive(ctx context.Context, id string, active bool, at time.Time, exec ...core.DBExecutor) (user.User, error) {
	res, err := repo.execute(ctx, exec, "UPDATE users SET is_active = ?, updated_at = ? WHERE id = ?", active, at.UTC(), id)
	if err != nil {
		return user.User{}, errors.Wrap(err, "updating user status")
	}
	ok, err := affected(res)
	if err != nil {
		return user.User{}, err
	}
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	return repo.GetUserByID(ctx, id, exec...)
}
