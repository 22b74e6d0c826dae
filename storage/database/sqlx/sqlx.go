// Package sqlxrepos implements the core repositories with hand-written SQL on top of sqlx.
// Queries use '?' placeholders and are rebound to the driver's bindvar type.
package sqlxrepos

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

type base struct {
	exec core.DBExecutor
}

func (b base) getExec(svcExec []core.DBExecutor) core.DBExecutor {
	if len(svcExec) > 0 && svcExec[0] != nil {
		return svcExec[0]
	}
	return b.exec
}

func (b base) get(ctx context.Context, exec []core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	e := b.getExec(exec)
	return sqlx.GetContext(ctx, e, dest, e.Rebind(q), args...)
}

func (b base) selectAll(ctx context.Context, exec []core.DBExecutor, dest interface{}, q string, args ...interface{}) error {
	e := b.getExec(exec)
	return sqlx.SelectContext(ctx, e, dest, e.Rebind(q), args...)
}

func (b base) execute(ctx context.Context, exec []core.DBExecutor, q string, args ...interface{}) (sql.Result, error) {
	e := b.getExec(exec)
	return e.ExecContext(ctx, e.Rebind(q), args...)
}

// affected reports whether res touched at least one row.
func affected(res sql.Result) (bool, error) {
	n, err := res.RowsAffected()
	if err != nil {
		return false, errors.Wrap(err, "reading affected rows")
	}
	return n > 0, nil
}

// trapNoRowsErr maps sql.ErrNoRows to notFound
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}

// likePattern builds a case-insensitive LIKE operand; match it against LOWER(column).
func likePattern(s string) string {
	return "%" + strings.ToLower(s) + "%"
}

// where accumulates AND-ed conditions with their arguments.
type where struct {
	conds []string
	args  []interface{}
}

func (w *where) add(cond string, args ...interface{}) {
	w.conds = append(w.conds, cond)
	w.args = append(w.args, args...)
}

func (w where) String() string {
	if len(w.conds) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(w.conds, " AND ")
}

// orderBy renders ordering restricted to the allowed columns, or fallback.
func orderBy(ordering []core.DBOrdering, allowed map[string]string, fallback string) string {
	parts := make([]string, 0, len(ordering))
	for _, ord := range ordering {
		col, ok := allowed[ord.Field]
		if !ok {
			continue
		}
		parts = append(parts, core.DBOrdering{Field: col, Ascending: ord.Ascending}.String())
	}
	if len(parts) == 0 {
		return fmt.Sprintf(" ORDER BY %s", fallback)
	}
	return " ORDER BY " + strings.Join(parts, ", ")
}
