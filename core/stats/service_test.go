package stats_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/doubt"
	"github.com/campusmentor/campusmentor/core/stats"
	"github.com/campusmentor/campusmentor/core/submission"
	"github.com/campusmentor/campusmentor/core/user"
	sqlxrepos "github.com/campusmentor/campusmentor/storage/database/sqlx"
	"github.com/campusmentor/campusmentor/testutil"
)

func TestService(t *testing.T) {
	db := testutil.OpenDB(t)
	ctx := context.Background()
	userRepo := sqlxrepos.NewUserRepository(db)
	subRepo := sqlxrepos.NewSubmissionRepository(db)
	doubtRepo := sqlxrepos.NewDoubtRepository(db)
	svc := stats.NewService(sqlxrepos.NewStatsRepository(db))

	newUser := func(name, email string, role user.Role, points int, active bool) user.User {
		usr, err := userRepo.CreateUser(ctx, user.User{
			Name:       name,
			Email:      email,
			Role:       role,
			Department: "CSE",
			Points:     points,
			IsActive:   active,
			CreatedAt:  testutil.Epoch,
			UpdatedAt:  testutil.Epoch,
		})
		require.NoError(t, err)
		return usr
	}
	junior := newUser("June Junior", "june@campus.edu", user.RoleJunior, 0, true)
	asha := newUser("Asha Rao", "asha@campus.edu", user.RoleSenior, 45, true)
	newUser("Bilal Khan", "bilal@campus.edu", user.RoleSenior, 80, true)
	newUser("Chen Li", "chen@campus.edu", user.RoleSenior, 45, true)
	newUser("Dormant", "dormant@campus.edu", user.RoleSenior, 500, false)
	faculty := newUser("Fay Faculty", "fay@campus.edu", user.RoleFaculty, 0, true)

	material := func(title string) submission.Material {
		m, err := subRepo.CreateMaterial(ctx, submission.Material{
			UploaderID: asha.ID,
			Title:      title,
			Subject:    "DSA",
			Department: "CSE",
			Status:     submission.StatusPending,
			CreatedAt:  testutil.Epoch,
		})
		require.NoError(t, err)
		return m
	}
	approved := material("Graphs")
	material("Trees")
	ok, err := subRepo.Review(ctx, submission.KindMaterial, approved.ID, submission.Decision{Status: submission.StatusApproved, ApprovedBy: &faculty.ID})
	require.NoError(t, err)
	require.True(t, ok)
	_, err = subRepo.CreateProject(ctx, submission.Project{
		UploaderID: asha.ID,
		Title:      "Campus Bot",
		Abstract:   "A chatbot",
		TechStack:  "Go",
		Department: "CSE",
		Status:     submission.StatusPending,
		CreatedAt:  testutil.Epoch,
	})
	require.NoError(t, err)

	ask := func(assignee *string) doubt.Doubt {
		d, err := doubtRepo.CreateDoubt(ctx, doubt.Doubt{
			AskerID:          junior.ID,
			AssignedSeniorID: assignee,
			Subject:          "DSA",
			Department:       "CSE",
			Question:         "How does Dijkstra handle ties?",
			Status:           doubt.StatusOpen,
			CreatedAt:        testutil.Epoch,
		})
		require.NoError(t, err)
		return d
	}
	solved := ask(&asha.ID)
	ask(&asha.ID)
	stale := ask(nil)
	ok, err = doubtRepo.MarkAnswered(ctx, solved.ID, "Ties are broken by queue order.", asha.ID, testutil.Epoch.Add(time.Hour))
	require.NoError(t, err)
	require.True(t, ok)
	ok, err = doubtRepo.Escalate(ctx, stale.ID, &faculty.ID, testutil.Epoch.Add(49*time.Hour))
	require.NoError(t, err)
	require.True(t, ok)

	t.Run("junior", func(t *testing.T) {
		got, err := svc.Junior(ctx, junior)
		require.NoError(t, err)
		assert.Equal(t, stats.JuniorStats{Materials: 1, Projects: 0, OpenDoubts: 2, AnsweredDoubts: 1}, got)
	})

	t.Run("senior", func(t *testing.T) {
		got, err := svc.Senior(ctx, asha)
		require.NoError(t, err)
		assert.Equal(t, stats.SeniorStats{Points: 45, Approved: 1, Pending: 2, Solved: 1, AssignedDoubts: 1}, got)
	})

	t.Run("faculty", func(t *testing.T) {
		_, err := svc.Faculty(ctx, asha)
		assert.True(t, core.IsPermission(err))

		got, err := svc.Faculty(ctx, faculty)
		require.NoError(t, err)
		assert.Equal(t, stats.FacultyStats{
			Pending:          2,
			PendingMaterials: 1,
			PendingProjects:  1,
			ActiveUsers:      5,
			Materials:        2,
			Projects:         1,
			Escalated:        1,
			Seniors:          3,
		}, got.FacultyStats)

		require.Len(t, got.TopMentors, 3)
		assert.Equal(t, "Bilal Khan", got.TopMentors[0].Name)
		assert.Equal(t, 80, got.TopMentors[0].Points)
		// equal points are ordered by name
		assert.Equal(t, "Asha Rao", got.TopMentors[1].Name)
		assert.Equal(t, "Chen Li", got.TopMentors[2].Name)
	})
}
