package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/ledger"
)

const entryColumns = "id, user_id, action, points_earned, reference_id, reference_type, created_at"

type entryRow struct {
	ID            string    `db:"id"`
	UserID        string    `db:"user_id"`
	Action        string    `db:"action"`
	PointsEarned  int       `db:"points_earned"`
	ReferenceID   string    `db:"reference_id"`
	ReferenceType string    `db:"reference_type"`
	CreatedAt     time.Time `db:"created_at"`
}

func (e entryRow) unboil() ledger.Entry {
	return ledger.Entry{
		ID:            e.ID,
		UserID:        e.UserID,
		Action:        ledger.Action(e.Action),
		PointsEarned:  e.PointsEarned,
		ReferenceID:   e.ReferenceID,
		ReferenceType: e.ReferenceType,
		CreatedAt:     e.CreatedAt.UTC(),
	}
}

type ledgerRepository struct {
	base
}

var _ ledger.Repository = (*ledgerRepository)(nil) // interface compliance check

func NewLedgerRepository(exec core.DBExecutor) *ledgerRepository {
	return &ledgerRepository{base{exec: exec}}
}

func (repo ledgerRepository) AppendEntry(ctx context.Context, e ledger.Entry, exec ...core.DBExecutor) (ledger.Entry, bool, error) {
	e.ID = uuid.New().String()
	e.CreatedAt = e.CreatedAt.UTC()
	res, err := repo.execute(ctx, exec,
		"INSERT INTO points_log ("+entryColumns+") VALUES (?, ?, ?, ?, ?, ?, ?)"+
			" ON CONFLICT (user_id, action, reference_id, reference_type) DO NOTHING",
		e.ID, e.UserID, string(e.Action), e.PointsEarned, e.ReferenceID, e.ReferenceType, e.CreatedAt,
	)
	if err != nil {
		return ledger.Entry{}, false, errors.Wrap(err, "inserting points entry")
	}
	ok, err := affected(res)
	if err != nil || !ok {
		return ledger.Entry{}, false, err
	}
	return e, true, nil
}

func (repo ledgerRepository) Credit(ctx context.Context, userID string, points int, exec ...core.DBExecutor) (int, error) {
	var total int
	err := repo.get(ctx, exec, &total, "UPDATE users SET points = points + ? WHERE id = ? RETURNING points", points, userID)
	if err != nil {
		return 0, trapNoRowsErr(err, ledger.ErrUserNotFound, "crediting user")
	}
	return total, nil
}

func (repo ledgerRepository) Balance(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	var total int
	if err := repo.get(ctx, exec, &total, "SELECT points FROM users WHERE id = ?", userID); err != nil {
		return 0, trapNoRowsErr(err, ledger.ErrUserNotFound, "selecting balance")
	}
	return total, nil
}

func (repo ledgerRepository) QueryEntries(ctx context.Context, userID string, limit int, exec ...core.DBExecutor) ([]ledger.Entry, error) {
	var rows []entryRow
	err := repo.selectAll(ctx, exec, &rows,
		"SELECT "+entryColumns+" FROM points_log WHERE user_id = ? ORDER BY created_at DESC, id LIMIT ?",
		userID, limit,
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting points entries")
	}
	entries := make([]ledger.Entry, 0, len(rows))
	for _, e := range rows {
		entries = append(entries, e.unboil())
	}
	return entries, nil
}

func (repo ledgerRepository) SumEntries(ctx context.Context, userID string, exec ...core.DBExecutor) (int, error) {
	var total int
	err := repo.get(ctx, exec, &total, "SELECT COALESCE(SUM(points_earned), 0) FROM points_log WHERE user_id = ?", userID)
	return total, errors.Wrap(err, "summing points entries")
}
