package ledger_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/user"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
	"github.com/campusmentor/campusmentor/testutil"
)

type issuerSpy struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (s *issuerSpy) IssueIfEligible(_ context.Context, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, userID)
	return s.err == nil, s.err
}

func (s *issuerSpy) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

type env struct {
	svc    *ledger.Service
	repo   ledger.Repository
	users  user.Repository
	issuer *issuerSpy
	logger *testutil.Logger
}

func setup(t *testing.T, threshold ...int) env {
	limit := 100
	if len(threshold) > 0 {
		limit = threshold[0]
	}
	db := testutil.OpenDB(t)
	repo := sqlxrepos.NewLedgerRepository(db)
	issuer := &issuerSpy{}
	logger := &testutil.Logger{}
	return env{
		svc:    ledger.NewService(db, repo, issuer, testutil.NewClock(), logger, nil, limit),
		repo:   repo,
		users:  sqlxrepos.NewUserRepository(db),
		issuer: issuer,
		logger: logger,
	}
}

func TestService_Award(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	senior := testutil.CreateUser(t, e.users, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")

	entry, err := e.svc.Award(ctx, senior.ID, ledger.ActionMaterialApproved, "m-1", "material")
	require.NoError(t, err)
	assert.NotEmpty(t, entry.ID)
	assert.Equal(t, 10, entry.PointsEarned)
	assert.Equal(t, senior.ID, entry.UserID)

	_, err = e.svc.Award(ctx, senior.ID, ledger.ActionProjectApproved, "p-1", "project")
	require.NoError(t, err)
	_, err = e.svc.Award(ctx, senior.ID, ledger.ActionDoubtSolved, "d-1", "doubt")
	require.NoError(t, err)

	stmt, err := e.svc.Statement(ctx, senior.ID)
	require.NoError(t, err)
	assert.Equal(t, 30, stmt.Points)
	assert.Len(t, stmt.Log, 3)

	balance, logged, err := e.svc.Reconcile(ctx, senior.ID)
	require.NoError(t, err)
	assert.Equal(t, balance, logged, "balance must equal the sum of the log")

	assert.Empty(t, e.issuer.Calls(), "no certificate check below the threshold")
}

func TestService_Award_sameEventTwice(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	senior := testutil.CreateUser(t, e.users, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")

	_, err := e.svc.Award(ctx, senior.ID, ledger.ActionDoubtSolved, "d-1", "doubt")
	require.NoError(t, err)
	_, err = e.svc.Award(ctx, senior.ID, ledger.ActionDoubtSolved, "d-1", "doubt")
	assert.Equal(t, ledger.ErrAlreadyAwarded, err)

	balance, logged, err := e.svc.Reconcile(ctx, senior.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
	assert.Equal(t, 5, logged)
}

func TestService_Award_unknownAction(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	senior := testutil.CreateUser(t, e.users, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")

	entry, err := e.svc.Award(ctx, senior.ID, ledger.Action("LIKED_A_POST"), "x", "post")
	require.NoError(t, err)
	assert.Empty(t, entry.ID)

	balance, logged, err := e.svc.Reconcile(ctx, senior.ID)
	require.NoError(t, err)
	assert.Zero(t, balance)
	assert.Zero(t, logged)
	assert.Len(t, e.logger.Messages("WARN"), 1)
}

func TestService_Award_unknownUser(t *testing.T) {
	e := setup(t)
	_, err := e.svc.Award(context.Background(), "nobody", ledger.ActionDoubtSolved, "d-1", "doubt")
	assert.Error(t, err)
}

func TestService_Award_crossingThreshold(t *testing.T) {
	e := setup(t)
	ctx := context.Background()
	senior := testutil.CreateUser(t, e.users, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")

	// 6 projects: 90 points, 1 material: 100 points
	for i, ref := range []string{"p1", "p2", "p3", "p4", "p5", "p6"} {
		_, err := e.svc.Award(ctx, senior.ID, ledger.ActionProjectApproved, ref, "project")
		require.NoError(t, err, "award #%d", i)
	}
	assert.Empty(t, e.issuer.Calls())

	_, err := e.svc.Award(ctx, senior.ID, ledger.ActionMaterialApproved, "m1", "material")
	require.NoError(t, err)
	assert.Equal(t, []string{senior.ID}, e.issuer.Calls())
}

func TestService_Award_issuerFailureKeepsCredit(t *testing.T) {
	e := setup(t, 5)
	ctx := context.Background()
	senior := testutil.CreateUser(t, e.users, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")
	e.issuer.err = errors.New("renderer down")

	_, err := e.svc.Award(ctx, senior.ID, ledger.ActionDoubtSolved, "d-1", "doubt")
	require.NoError(t, err, "certificate failures are not the caller's")

	balance, err := e.repo.Balance(ctx, senior.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, balance)
	assert.Len(t, e.issuer.Calls(), 1)
	assert.Len(t, e.logger.Messages("ERROR"), 1)
}

func newMockService(t *testing.T) (*ledger.Service, *sqlx.DB, sqlmock.Sqlmock) {
	mockDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = mockDB.Close() })

	db := sqlx.NewDb(mockDB, "postgres")
	repo := sqlxrepos.NewLedgerRepository(db)
	return ledger.NewService(db, repo, &issuerSpy{}, testutil.NewClock(), &testutil.Logger{}, nil, 100), db, mock
}

func TestService_Award_rollsBackWhenLogAppendFails(t *testing.T) {
	svc, _, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO points_log").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := svc.Award(context.Background(), "u-1", ledger.ActionDoubtSolved, "d-1", "doubt")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "balance must not be credited without a log entry")
}

func TestService_Award_rollsBackWhenCreditFails(t *testing.T) {
	svc, _, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO points_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`UPDATE users SET points = points \+ \$1`).WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	_, err := svc.Award(context.Background(), "u-1", ledger.ActionDoubtSolved, "d-1", "doubt")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet(), "log entry must be rolled back with the credit")
}

func TestService_AwardTx_callerOwnsTransaction(t *testing.T) {
	svc, db, mock := newMockService(t)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO points_log").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery("UPDATE users SET points").WillReturnRows(sqlmock.NewRows([]string{"points"}).AddRow(5))
	mock.ExpectRollback()

	callerErr := errors.New("answer update failed")
	err := core.RunInTx(context.Background(), db, func(tx core.DBExecutor) error {
		if _, err := svc.AwardTx(context.Background(), tx, "u-1", ledger.ActionDoubtSolved, "d-1", "doubt"); err != nil {
			return err
		}
		return callerErr
	})
	assert.Equal(t, callerErr, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
