package sqlxrepos

import (
	"context"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/stats"
	"github.com/campusmentor/campusmentor/core/user"
)

type statsRepository struct {
	base
}

var _ stats.Repository = (*statsRepository)(nil) // interface compliance check

func NewStatsRepository(exec core.DBExecutor) *statsRepository {
	return &statsRepository{base{exec: exec}}
}

type counter struct {
	dest *int
	q    string
	args []interface{}
}

// count runs every counter concurrently and stops at the first failure.
func (repo statsRepository) count(ctx context.Context, counters ...counter) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, c := range counters {
		c := c
		g.Go(func() error {
			return errors.Wrap(repo.get(ctx, nil, c.dest, c.q, c.args...), "counting")
		})
	}
	return g.Wait()
}

func (repo statsRepository) JuniorStats(ctx context.Context, userID string) (stats.JuniorStats, error) {
	var s stats.JuniorStats
	err := repo.count(ctx,
		counter{&s.Materials, "SELECT COUNT(*) FROM materials WHERE status = 'approved'", nil},
		counter{&s.Projects, "SELECT COUNT(*) FROM projects WHERE status = 'approved'", nil},
		counter{&s.OpenDoubts, "SELECT COUNT(*) FROM doubts WHERE asker_id = ? AND answer IS NULL", []interface{}{userID}},
		counter{&s.AnsweredDoubts, "SELECT COUNT(*) FROM doubts WHERE asker_id = ? AND answer IS NOT NULL", []interface{}{userID}},
	)
	return s, err
}

func (repo statsRepository) SeniorStats(ctx context.Context, userID string) (stats.SeniorStats, error) {
	var s stats.SeniorStats
	err := repo.count(ctx,
		counter{&s.Points, "SELECT COALESCE(MAX(points), 0) FROM users WHERE id = ?", []interface{}{userID}},
		counter{&s.Approved, "SELECT COUNT(*) FROM materials WHERE uploader_id = ? AND status = 'approved'", []interface{}{userID}},
		counter{&s.Pending, "SELECT (SELECT COUNT(*) FROM materials WHERE uploader_id = ? AND status = 'pending')" +
			" + (SELECT COUNT(*) FROM projects WHERE uploader_id = ? AND status = 'pending')", []interface{}{userID, userID}},
		counter{&s.Solved, "SELECT COUNT(*) FROM doubts WHERE answered_by = ?", []interface{}{userID}},
		counter{&s.AssignedDoubts, "SELECT COUNT(*) FROM doubts WHERE assigned_senior_id = ? AND status = 'open'", []interface{}{userID}},
	)
	return s, err
}

func (repo statsRepository) FacultyStats(ctx context.Context) (stats.FacultyStats, error) {
	var s stats.FacultyStats
	err := repo.count(ctx,
		counter{&s.PendingMaterials, "SELECT COUNT(*) FROM materials WHERE status = 'pending'", nil},
		counter{&s.PendingProjects, "SELECT COUNT(*) FROM projects WHERE status = 'pending'", nil},
		counter{&s.ActiveUsers, "SELECT COUNT(*) FROM users WHERE is_active = TRUE", nil},
		counter{&s.Materials, "SELECT COUNT(*) FROM materials", nil},
		counter{&s.Projects, "SELECT COUNT(*) FROM projects", nil},
		counter{&s.Escalated, "SELECT COUNT(*) FROM doubts WHERE status = 'escalated'", nil},
		counter{&s.Seniors, "SELECT COUNT(*) FROM users WHERE role = ? AND is_active = TRUE", []interface{}{string(user.RoleSenior)}},
	)
	return s, err
}

func (repo statsRepository) TopMentors(ctx context.Context, limit int) ([]stats.Mentor, error) {
	mentors := []stats.Mentor{}
	err := repo.selectAll(ctx, nil, &mentors,
		"SELECT id, name, points FROM users WHERE role = ? AND is_active = TRUE ORDER BY points DESC, name LIMIT ?",
		string(user.RoleSenior), limit,
	)
	return mentors, errors.Wrap(err, "selecting top mentors")
}
