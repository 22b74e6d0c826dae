package sqlxrepos_test

import (
	"context"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmentor/campusmentor/core/certificate"
	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/ledger"
	"github.com/campusmentor/campusmentor/core/submission"
	"github.com/campusmentor/campusmentor/core/user"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
	"github.com/campusmentor/campusmentor/testutil"
)

func strPtr(s string) *string { return &s }

func TestLedgerRepository(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewLedgerRepository(db)
	usr := testutil.CreateUser(t, usrRepo, "Asha Rao", "asha@campus.edu", user.RoleSenior, "CSE", "")

	e := ledger.Entry{
		UserID:        usr.ID,
		Action:        ledger.ActionMaterialApproved,
		PointsEarned:  10,
		ReferenceID:   "m-1",
		ReferenceType: "material",
		CreatedAt:     testutil.Epoch,
	}
	created, ok, err := repo.AppendEntry(ctx, e)
	require.NoError(t, err)
	require.True(t, ok)
	assert.NotEmpty(t, created.ID)

	_, ok, err = repo.AppendEntry(ctx, e)
	require.NoError(t, err)
	assert.False(t, ok, "the same event is logged once")

	e.ReferenceID = "m-2"
	e.CreatedAt = testutil.Epoch.Add(time.Minute)
	_, ok, err = repo.AppendEntry(ctx, e)
	require.NoError(t, err)
	require.True(t, ok)

	total, err := repo.Credit(ctx, usr.ID, 20)
	require.NoError(t, err)
	assert.Equal(t, 20, total)

	_, err = repo.Credit(ctx, usr.ID, -25)
	assert.Error(t, err, "a balance never goes negative")

	_, err = repo.Credit(ctx, "missing", 5)
	assert.Equal(t, ledger.ErrUserNotFound, errors.Cause(err))

	balance, err := repo.Balance(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, balance)

	sum, err := repo.SumEntries(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, 20, sum)

	entries, err := repo.QueryEntries(ctx, usr.ID, 1)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "m-2", entries[0].ReferenceID, "newest first")
	assert.True(t, entries[0].CreatedAt.Equal(testutil.Epoch.Add(time.Minute)))
}

func TestDoubtRepository_transitions(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	repo := sqlxrepos.NewDoubtRepository(db)

	junior := testutil.CreateUser(t, usrRepo, "June Junior", "june@campus.edu", user.RoleJunior, "ECE", "")
	senior := testutil.CreateUser(t, usrRepo, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")
	faculty := testutil.CreateUser(t, usrRepo, "Fay Faculty", "fay@campus.edu", user.RoleFaculty, "CSE", "")

	create := func(at time.Time) doubt.Doubt {
		d, err := repo.CreateDoubt(ctx, doubt.Doubt{
			AskerID:          junior.ID,
			AssignedSeniorID: &senior.ID,
			Department:       "CSE",
			Question:         "What is the difference between a process and a thread?",
			Status:           doubt.StatusOpen,
			CreatedAt:        at,
		})
		require.NoError(t, err)
		return d
	}
	old := create(testutil.Epoch)
	fresh := create(testutil.Epoch.Add(47 * time.Hour))
	answered := create(testutil.Epoch.Add(-time.Hour))

	now := testutil.Epoch.Add(49 * time.Hour)
	ok, err := repo.MarkAnswered(ctx, answered.ID, "Threads share an address space.", senior.ID, now)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.MarkAnswered(ctx, answered.ID, "Again.", senior.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "an answered doubt cannot be answered again")

	stale, err := repo.QueryStale(ctx, now.Add(-48*time.Hour))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, old.ID, stale[0].ID)
	assert.Equal(t, "CSE", stale[0].Department)
	assert.Equal(t, "ECE", stale[0].AskerDepartment)

	ok, err = repo.Escalate(ctx, answered.ID, &faculty.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "only open doubts escalate")

	ok, err = repo.Escalate(ctx, old.ID, &faculty.ID, now)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = repo.MarkAnswered(ctx, old.ID, "Too late.", senior.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "an escalated doubt is not answered by its senior")

	ok, err = repo.RecordEscalatedAnswer(ctx, old.ID, "From faculty.", senior.ID, now)
	require.NoError(t, err)
	assert.False(t, ok, "only the escalation faculty answers")

	ok, err = repo.RecordEscalatedAnswer(ctx, old.ID, "From faculty.", faculty.ID, now)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.RecordEscalatedAnswer(ctx, old.ID, "Twice.", faculty.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	d, err := repo.GetDoubt(ctx, old.ID)
	require.NoError(t, err)
	assert.Equal(t, doubt.StatusEscalated, d.Status)
	require.NotNil(t, d.Answer)
	assert.Equal(t, "From faculty.", *d.Answer)
	assert.Equal(t, "Fay Faculty", d.AnswererName)
	require.NotNil(t, d.EscalatedAt)
	assert.True(t, d.EscalatedAt.Equal(now))

	assigned, err := repo.QueryByResponder(ctx, faculty.ID)
	require.NoError(t, err)
	require.Len(t, assigned, 1)
	assert.Equal(t, old.ID, assigned[0].ID)

	mine, err := repo.QueryByAsker(ctx, junior.ID)
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, fresh.ID, mine[0].ID, "newest first")

	_, err = repo.GetDoubt(ctx, "missing")
	assert.Equal(t, doubt.ErrNotFound, err)
}

func TestCertificateRepository_onePerUser(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	usr := testutil.CreateUser(t, sqlxrepos.NewUserRepository(db), "Asha Rao", "asha@campus.edu", user.RoleSenior, "CSE", "")
	repo := sqlxrepos.NewCertificateRepository(db)

	c := certificate.Certificate{UserID: usr.ID, TotalPoints: 100, CertificateURL: "/uploads/certificates/a.pdf", IssuedAt: testutil.Epoch}
	created, ok, err := repo.CreateCertificate(ctx, c)
	require.NoError(t, err)
	require.True(t, ok)

	c.CertificateURL = "/uploads/certificates/b.pdf"
	_, ok, err = repo.CreateCertificate(ctx, c)
	require.NoError(t, err)
	assert.False(t, ok)

	got, err := repo.GetCertificateByUser(ctx, usr.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)
	assert.Equal(t, "/uploads/certificates/a.pdf", got.CertificateURL)

	_, err = repo.GetCertificate(ctx, "missing")
	assert.Equal(t, certificate.ErrNotFound, err)
}

func TestSubmissionRepository_review(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	usrRepo := sqlxrepos.NewUserRepository(db)
	senior := testutil.CreateUser(t, usrRepo, "Sam Senior", "sam@campus.edu", user.RoleSenior, "CSE", "")
	faculty := testutil.CreateUser(t, usrRepo, "Fay Faculty", "fay@campus.edu", user.RoleFaculty, "CSE", "")
	repo := sqlxrepos.NewSubmissionRepository(db)

	m, err := repo.CreateMaterial(ctx, submission.Material{
		UploaderID: senior.ID, Title: "Compiler Notes", Subject: "Compilers", Department: "CSE",
		Status: submission.StatusPending, CreatedAt: testutil.Epoch,
	})
	require.NoError(t, err)
	p, err := repo.CreateProject(ctx, submission.Project{
		UploaderID: senior.ID, Title: "Smart Attendance", TeamMembers: []string{"Chen", "Dina"}, Department: "CSE",
		Status: submission.StatusPending, CreatedAt: testutil.Epoch,
	})
	require.NoError(t, err)

	approve := submission.Decision{Status: submission.StatusApproved, ApprovedBy: &faculty.ID}
	ok, err := repo.Review(ctx, submission.KindMaterial, m.ID, approve)
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = repo.Review(ctx, submission.KindMaterial, m.ID,
		submission.Decision{Status: submission.StatusRejected, RejectionReason: strPtr("late")})
	require.NoError(t, err)
	assert.False(t, ok, "a reviewed material stays reviewed")

	ok, err = repo.Review(ctx, submission.KindProject, p.ID, approve)
	require.NoError(t, err)
	require.True(t, ok)

	got, err := repo.GetProject(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"Chen", "Dina"}, got.TeamMembers)
	assert.Equal(t, submission.StatusApproved, got.Status)
	assert.Equal(t, "Sam Senior", got.UploaderName)

	require.NoError(t, repo.AddMaterialView(ctx, m.ID))
	require.NoError(t, repo.AddMaterialView(ctx, m.ID))
	assert.Equal(t, submission.ErrMaterialNotFound, repo.AddMaterialView(ctx, "missing"))

	ms, err := repo.QueryMaterials(ctx, submission.QueryFilter{Search: "COMPILER", Limit: 10})
	require.NoError(t, err)
	require.Len(t, ms, 1)
	assert.Equal(t, 2, ms[0].Views)

	ms, err = repo.QueryMaterials(ctx, submission.QueryFilter{Status: submission.StatusPending, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, ms)
}

func TestUserRepository_FindActive(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	repo := sqlxrepos.NewUserRepository(db)

	second := testutil.CreateUser(t, repo, "Bilal Khan", "bilal@campus.edu", user.RoleSenior, "CSE", "", testutil.Epoch.Add(time.Hour))
	first := testutil.CreateUser(t, repo, "Asha Rao", "asha@campus.edu", user.RoleSenior, "CSE", "")
	inactive := testutil.CreateUser(t, repo, "Chen Li", "chen@campus.edu", user.RoleSenior, "CSE", "")
	testutil.CreateUser(t, repo, "Dina Das", "dina@campus.edu", user.RoleSenior, "ECE", "")
	testutil.CreateUser(t, repo, "Fay Faculty", "fay@campus.edu", user.RoleFaculty, "CSE", "")

	_, err := repo.SetActive(ctx, inactive.ID, false, testutil.Epoch)
	require.NoError(t, err)

	seniors, err := repo.FindActive(ctx, user.RoleSenior, "CSE")
	require.NoError(t, err)
	require.Len(t, seniors, 2)
	assert.Equal(t, first.ID, seniors[0].ID)
	assert.Equal(t, second.ID, seniors[1].ID)

	_, err = repo.GetUserByEmail(ctx, "nobody@campus.edu")
	assert.Equal(t, user.ErrNotFound, err)
}
