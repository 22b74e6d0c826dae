package stats

import (
	"context"

	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/user"
)

const topMentorsLimit = 5

var ErrCannotView = core.NewPermissionError("only faculty can view platform statistics")

type JuniorStats struct {
	Materials      int `json:"materials" db:"materials"`
	Projects       int `json:"projects" db:"projects"`
	OpenDoubts     int `json:"open_doubts" db:"open_doubts"`
	AnsweredDoubts int `json:"answered_doubts" db:"answered_doubts"`
}

type SeniorStats struct {
	Points         int `json:"points" db:"points"`
	Approved       int `json:"approved" db:"approved"`
	Pending        int `json:"pending" db:"pending"`
	Solved         int `json:"solved" db:"solved"`
	AssignedDoubts int `json:"assigned_doubts" db:"assigned_doubts"`
}

type FacultyStats struct {
	Pending          int `json:"pending"`
	PendingMaterials int `json:"pending_materials" db:"pending_materials"`
	PendingProjects  int `json:"pending_projects" db:"pending_projects"`
	ActiveUsers      int `json:"active_users" db:"active_users"`
	Materials        int `json:"materials" db:"materials"`
	Projects         int `json:"projects" db:"projects"`
	Escalated        int `json:"escalated" db:"escalated"`
	Seniors          int `json:"seniors" db:"seniors"`
}

type Mentor struct {
	ID     string `json:"id" db:"id"`
	Name   string `json:"name" db:"name"`
	Points int    `json:"points" db:"points"`
}

type FacultyReport struct {
	FacultyStats
	TopMentors []Mentor `json:"top_mentors"`
}

type (
	Repository interface {
		JuniorStats(ctx context.Context, userID string) (JuniorStats, error)
		SeniorStats(ctx context.Context, userID string) (SeniorStats, error)
		FacultyStats(ctx context.Context) (FacultyStats, error)
		TopMentors(ctx context.Context, limit int) ([]Mentor, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Junior(ctx context.Context, usr user.User) (JuniorStats, error) {
	s, err := svc.repo.JuniorStats(ctx, usr.ID)
	return s, errors.Wrap(err, "computing junior stats")
}

func (svc *Service) Senior(ctx context.Context, usr user.User) (SeniorStats, error) {
	s, err := svc.repo.SeniorStats(ctx, usr.ID)
	return s, errors.Wrap(err, "computing senior stats")
}

func (svc *Service) Faculty(ctx context.Context, usr user.User) (FacultyReport, error) {
	if !usr.Can(user.CapViewReports) {
		return FacultyReport{}, ErrCannotView
	}
	s, err := svc.repo.FacultyStats(ctx)
	if err != nil {
		return FacultyReport{}, errors.Wrap(err, "computing faculty stats")
	}
	s.Pending = s.PendingMaterials + s.PendingProjects

	mentors, err := svc.repo.TopMentors(ctx, topMentorsLimit)
	if err != nil {
		return FacultyReport{}, errors.Wrap(err, "finding top mentors")
	}
	return FacultyReport{FacultyStats: s, TopMentors: mentors}, nil
}
