package sqlxrepos

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/submission"
)

const (
	materialColumns = "m.id, m.uploader_id, m.title, m.subject, m.department, m.year, m.file_url, m.description," +
		" m.status, m.approved_by, m.rejection_reason, m.views, m.created_at"
	projectColumns = "p.id, p.uploader_id, p.title, p.abstract, p.tech_stack, p.github_link, p.demo_video_link," +
		" p.ppt_url, p.report_pdf_url, p.team_members, p.department, p.status, p.approved_by, p.rejection_reason, p.created_at"
)

type materialRow struct {
	ID              string      `db:"id"`
	UploaderID      string      `db:"uploader_id"`
	Title           string      `db:"title"`
	Subject         string      `db:"subject"`
	Department      string      `db:"department"`
	Year            null.Int    `db:"year"`
	FileURL         null.String `db:"file_url"`
	Description     string      `db:"description"`
	Status          string      `db:"status"`
	ApprovedBy      null.String `db:"approved_by"`
	RejectionReason null.String `db:"rejection_reason"`
	Views           int         `db:"views"`
	CreatedAt       time.Time   `db:"created_at"`
	UploaderName    null.String `db:"uploader_name"`
}

func (m materialRow) unboil() submission.Material {
	return submission.Material{
		ID:              m.ID,
		UploaderID:      m.UploaderID,
		Title:           m.Title,
		Subject:         m.Subject,
		Department:      m.Department,
		Year:            m.Year.Ptr(),
		FileURL:         m.FileURL.Ptr(),
		Description:     m.Description,
		Status:          submission.Status(m.Status),
		ApprovedBy:      m.ApprovedBy.Ptr(),
		RejectionReason: m.RejectionReason.Ptr(),
		Views:           m.Views,
		CreatedAt:       m.CreatedAt.UTC(),
		UploaderName:    m.UploaderName.String,
	}
}

type projectRow struct {
	ID              string         `db:"id"`
	UploaderID      string         `db:"uploader_id"`
	Title           string         `db:"title"`
	Abstract        string         `db:"abstract"`
	TechStack       string         `db:"tech_stack"`
	GithubLink      string         `db:"github_link"`
	DemoVideoLink   string         `db:"demo_video_link"`
	PPTURL          null.String    `db:"ppt_url"`
	ReportPDFURL    null.String    `db:"report_pdf_url"`
	TeamMembers     types.JSONText `db:"team_members"`
	Department      string         `db:"department"`
	Status          string         `db:"status"`
	ApprovedBy      null.String    `db:"approved_by"`
	RejectionReason null.String    `db:"rejection_reason"`
	CreatedAt       time.Time      `db:"created_at"`
	UploaderName    null.String    `db:"uploader_name"`
}

func (p projectRow) unboil() (submission.Project, error) {
	members := []string{}
	if len(p.TeamMembers) > 0 {
		if err := p.TeamMembers.Unmarshal(&members); err != nil {
			return submission.Project{}, errors.Wrapf(err, "decoding team members of project %s", p.ID)
		}
	}
	return submission.Project{
		ID:              p.ID,
		UploaderID:      p.UploaderID,
		Title:           p.Title,
		Abstract:        p.Abstract,
		TechStack:       p.TechStack,
		GithubLink:      p.GithubLink,
		DemoVideoLink:   p.DemoVideoLink,
		PPTURL:          p.PPTURL.Ptr(),
		ReportPDFURL:    p.ReportPDFURL.Ptr(),
		TeamMembers:     members,
		Department:      p.Department,
		Status:          submission.Status(p.Status),
		ApprovedBy:      p.ApprovedBy.Ptr(),
		RejectionReason: p.RejectionReason.Ptr(),
		CreatedAt:       p.CreatedAt.UTC(),
		UploaderName:    p.UploaderName.String,
	}, nil
}

func unboilProjects(rows []projectRow) ([]submission.Project, error) {
	ps := make([]submission.Project, 0, len(rows))
	for _, r := range rows {
		p, err := r.unboil()
		if err != nil {
			return nil, err
		}
		ps = append(ps, p)
	}
	return ps, nil
}

type submissionRepository struct {
	base
}

var _ submission.Repository = (*submissionRepository)(nil) // interface compliance check

func NewSubmissionRepository(exec core.DBExecutor) *submissionRepository {
	return &submissionRepository{base{exec: exec}}
}

func (repo submissionRepository) CreateMaterial(ctx context.Context, m submission.Material, exec ...core.DBExecutor) (submission.Material, error) {
	m.ID = uuid.New().String()
	m.CreatedAt = m.CreatedAt.UTC()
	_, err := repo.execute(ctx, exec,
		"INSERT INTO materials (id, uploader_id, title, subject, department, year, file_url, description, status, views, created_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		m.ID, m.UploaderID, m.Title, m.Subject, m.Department, null.IntFromPtr(m.Year), null.StringFromPtr(m.FileURL),
		m.Description, string(m.Status), m.Views, m.CreatedAt,
	)
	if err != nil {
		return submission.Material{}, errors.Wrap(err, "inserting material")
	}
	return m, nil
}

func (repo submissionRepository) GetMaterial(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Material, error) {
	var m materialRow
	err := repo.get(ctx, exec, &m,
		"SELECT "+materialColumns+", u.name AS uploader_name FROM materials m"+
			" LEFT JOIN users u ON u.id = m.uploader_id WHERE m.id = ?", id)
	if err != nil {
		return submission.Material{}, trapNoRowsErr(err, submission.ErrMaterialNotFound, "selecting material")
	}
	return m.unboil(), nil
}

func (repo submissionRepository) queryMaterials(ctx context.Context, exec []core.DBExecutor, w where, page string) ([]submission.Material, error) {
	var rows []materialRow
	q := "SELECT " + materialColumns + ", u.name AS uploader_name FROM materials m" +
		" LEFT JOIN users u ON u.id = m.uploader_id" + w.String() + " ORDER BY m.created_at DESC, m.id" + page
	if err := repo.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting materials")
	}
	ms := make([]submission.Material, 0, len(rows))
	for _, r := range rows {
		ms = append(ms, r.unboil())
	}
	return ms, nil
}

func (repo submissionRepository) QueryMaterials(ctx context.Context, filter submission.QueryFilter, exec ...core.DBExecutor) ([]submission.Material, error) {
	var w where
	if filter.Status != "" {
		w.add("m.status = ?", string(filter.Status))
	}
	if filter.Subject != "" {
		w.add("m.subject = ?", filter.Subject)
	}
	if filter.Department != "" {
		w.add("m.department = ?", filter.Department)
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(m.title) LIKE ? OR LOWER(m.description) LIKE ?)", val, val)
	}
	w.args = append(w.args, filter.Limit, filter.Offset)
	return repo.queryMaterials(ctx, exec, w, " LIMIT ? OFFSET ?")
}

func (repo submissionRepository) QueryMaterialsByUploader(ctx context.Context, uploaderID string, exec ...core.DBExecutor) ([]submission.Material, error) {
	var w where
	w.add("m.uploader_id = ?", uploaderID)
	return repo.queryMaterials(ctx, exec, w, "")
}

func (repo submissionRepository) AddMaterialView(ctx context.Context, id string, exec ...core.DBExecutor) error {
	res, err := repo.execute(ctx, exec, "UPDATE materials SET views = views + 1 WHERE id = ?", id)
	if err != nil {
		return errors.Wrap(err, "counting material view")
	}
	ok, err := affected(res)
	if err != nil {
		return err
	}
	if !ok {
		return submission.ErrMaterialNotFound
	}
	return nil
}

func (repo submissionRepository) CreateProject(ctx context.Context, p submission.Project, exec ...core.DBExecutor) (submission.Project, error) {
	p.ID = uuid.New().String()
	p.CreatedAt = p.CreatedAt.UTC()
	if p.TeamMembers == nil {
		p.TeamMembers = []string{}
	}
	members, err := json.Marshal(p.TeamMembers)
	if err != nil {
		return submission.Project{}, errors.Wrap(err, "encoding team members")
	}
	_, err = repo.execute(ctx, exec,
		"INSERT INTO projects (id, uploader_id, title, abstract, tech_stack, github_link, demo_video_link, ppt_url,"+
			" report_pdf_url, team_members, department, status, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)",
		p.ID, p.UploaderID, p.Title, p.Abstract, p.TechStack, p.GithubLink, p.DemoVideoLink,
		null.StringFromPtr(p.PPTURL), null.StringFromPtr(p.ReportPDFURL), string(members), p.Department,
		string(p.Status), p.CreatedAt,
	)
	if err != nil {
		return submission.Project{}, errors.Wrap(err, "inserting project")
	}
	return p, nil
}

func (repo submissionRepository) GetProject(ctx context.Context, id string, exec ...core.DBExecutor) (submission.Project, error) {
	var p projectRow
	err := repo.get(ctx, exec, &p,
		"SELECT "+projectColumns+", u.name AS uploader_name FROM projects p"+
			" LEFT JOIN users u ON u.id = p.uploader_id WHERE p.id = ?", id)
	if err != nil {
		return submission.Project{}, trapNoRowsErr(err, submission.ErrProjectNotFound, "selecting project")
	}
	return p.unboil()
}

func (repo submissionRepository) queryProjects(ctx context.Context, exec []core.DBExecutor, w where, page string) ([]submission.Project, error) {
	var rows []projectRow
	q := "SELECT " + projectColumns + ", u.name AS uploader_name FROM projects p" +
		" LEFT JOIN users u ON u.id = p.uploader_id" + w.String() + " ORDER BY p.created_at DESC, p.id" + page
	if err := repo.selectAll(ctx, exec, &rows, q, w.args...); err != nil {
		return nil, errors.Wrap(err, "selecting projects")
	}
	return unboilProjects(rows)
}

func (repo submissionRepository) QueryProjects(ctx context.Context, filter submission.QueryFilter, exec ...core.DBExecutor) ([]submission.Project, error) {
	var w where
	if filter.Status != "" {
		w.add("p.status = ?", string(filter.Status))
	}
	if filter.Department != "" {
		w.add("p.department = ?", filter.Department)
	}
	if filter.Search != "" {
		val := likePattern(filter.Search)
		w.add("(LOWER(p.title) LIKE ? OR LOWER(p.abstract) LIKE ? OR LOWER(p.tech_stack) LIKE ?)", val, val, val)
	}
	w.args = append(w.args, filter.Limit, filter.Offset)
	return repo.queryProjects(ctx, exec, w, " LIMIT ? OFFSET ?")
}

func (repo submissionRepository) QueryProjectsByUploader(ctx context.Context, uploaderID string, exec ...core.DBExecutor) ([]submission.Project, error) {
	var w where
	w.add("p.uploader_id = ?", uploaderID)
	return repo.queryProjects(ctx, exec, w, "")
}

var reviewTables = map[submission.Kind]string{
	submission.KindMaterial: "materials",
	submission.KindProject:  "projects",
}

func (repo submissionRepository) Review(ctx context.Context, kind submission.Kind, id string, d submission.Decision, exec ...core.DBExecutor) (bool, error) {
	table, ok := reviewTables[kind]
	if !ok {
		return false, submission.ErrUnknownKind
	}
	res, err := repo.execute(ctx, exec,
		"UPDATE "+table+" SET status = ?, approved_by = ?, rejection_reason = ? WHERE id = ? AND status = ?",
		string(d.Status), null.StringFromPtr(d.ApprovedBy), null.StringFromPtr(d.RejectionReason),
		id, string(submission.StatusPending),
	)
	if err != nil {
		return false, errors.Wrapf(err, "reviewing %s", kind)
	}
	return affected(res)
}
