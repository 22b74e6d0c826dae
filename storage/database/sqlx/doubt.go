package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/doubt"
)

const doubtColumns = "d.id, d.asker_id, d.assigned_senior_id, d.faculty_id, d.subject, d.department, d.question," +
	" d.status, d.answer, d.answered_by, d.answered_at, d.created_at, d.escalated_at"

type doubtRow struct {
	ID               string      `db:"id"`
	AskerID          string      `db:"asker_id"`
	AssignedSeniorID null.String `db:"assigned_senior_id"`
	FacultyID        null.String `db:"faculty_id"`
	Subject          string      `db:"subject"`
	Department       string      `db:"department"`
	Question         string      `db:"question"`
	Status           string      `db:"status"`
	Answer           null.String `db:"answer"`
	AnsweredBy       null.String `db:"answered_by"`
	AnsweredAt       null.Time   `db:"answered_at"`
	CreatedAt        time.Time   `db:"created_at"`
	EscalatedAt      null.Time   `db:"escalated_at"`

	AskerName    null.String `db:"asker_name"`
	AnswererName null.String `db:"answerer_name"`
}

func utcPtr(t null.Time) *time.Time {
	if !t.Valid {
		return nil
	}
	u := t.Time.UTC()
	return &u
}

func (d doubtRow) unboil() doubt.Doubt {
	return doubt.Doubt{
		ID:               d.ID,
		AskerID:          d.AskerID,
		AssignedSeniorID: d.AssignedSeniorID.Ptr(),
		FacultyID:        d.FacultyID.Ptr(),
		Subject:          d.Subject,
		Department:       d.Department,
		Question:         d.Question,
		Status:           doubt.Status(d.Status),
		Answer:           d.Answer.Ptr(),
		AnsweredBy:       d.AnsweredBy.Ptr(),
		AnsweredAt:       utcPtr(d.AnsweredAt),
		CreatedAt:        d.CreatedAt.UTC(),
		EscalatedAt:      utcPtr(d.EscalatedAt),
		AskerName:        d.AskerName.String,
		AnswererName:     d.AnswererName.String,
	}
}

func unboilDoubts(rows []doubtRow) []doubt.Doubt {
	ds := make([]doubt.Doubt, 0, len(rows))
	for _, d := range rows {
		ds = append(ds, d.unboil())
	}
	return ds
}

type doubtRepository struct {
	base
}

var _ doubt.Repository = (*doubtRepository)(nil) // interface compliance check

func NewDoubtRepository(exec core.DBExecutor) *doubtRepository {
	return &doubtRepository{base{exec: exec}}
}

func (repo doubtRepository) CreateDoubt(ctx context.Context, d doubt.Doubt, exec ...core.DBExecutor) (doubt.Doubt, error) {
	d.ID = uuid.New().String()
	d.CreatedAt = d.CreatedAt.UTC()
	_, err := repo.execute(ctx, exec,
		"INSERT INTO doubts (id, asker_id, assigned_senior_id, faculty_id, subject, department, question, status, created_at)"+
			" VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
		d.ID, d.AskerID, null.StringFromPtr(d.AssignedSeniorID), null.StringFromPtr(d.FacultyID),
		d.Subject, d.Department, d.Question, string(d.Status), d.CreatedAt,
	)
	if err != nil {
		return doubt.Doubt{}, errors.Wrap(err, "inserting doubt")
	}
	return d, nil
}

func (repo doubtRepository) GetDoubt(ctx context.Context, id string, exec ...core.DBExecutor) (doubt.Doubt, error) {
	var d doubtRow
	err := repo.get(ctx, exec, &d,
		"SELECT "+doubtColumns+", a.name AS asker_name, r.name AS answerer_name FROM doubts d"+
			" LEFT JOIN users a ON a.id = d.asker_id"+
			" LEFT JOIN users r ON r.id = d.answered_by"+
			" WHERE d.id = ?", id)
	if err != nil {
		return doubt.Doubt{}, trapNoRowsErr(err, doubt.ErrNotFound, "selecting doubt")
	}
	return d.unboil(), nil
}

func (repo doubtRepository) QueryByAsker(ctx context.Context, askerID string, exec ...core.DBExecutor) ([]doubt.Doubt, error) {
	var rows []doubtRow
	err := repo.selectAll(ctx, exec, &rows,
		"SELECT "+doubtColumns+", r.name AS answerer_name FROM doubts d"+
			" LEFT JOIN users r ON r.id = d.answered_by"+
			" WHERE d.asker_id = ? ORDER BY d.created_at DESC, d.id", askerID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting doubts by asker")
	}
	return unboilDoubts(rows), nil
}

func (repo doubtRepository) QueryByResponder(ctx context.Context, responderID string, exec ...core.DBExecutor) ([]doubt.Doubt, error) {
	var rows []doubtRow
	err := repo.selectAll(ctx, exec, &rows,
		"SELECT "+doubtColumns+", a.name AS asker_name FROM doubts d"+
			" JOIN users a ON a.id = d.asker_id"+
			" WHERE d.assigned_senior_id = ? OR d.faculty_id = ? ORDER BY d.created_at DESC, d.id",
		responderID, responderID)
	if err != nil {
		return nil, errors.Wrap(err, "selecting doubts by responder")
	}
	return unboilDoubts(rows), nil
}

func (repo doubtRepository) MarkAnswered(ctx context.Context, id, answer, answeredBy string, at time.Time, exec ...core.DBExecutor) (bool, error) {
	res, err := repo.execute(ctx, exec,
		"UPDATE doubts SET status = ?, answer = ?, answered_by = ?, answered_at = ? WHERE id = ? AND status = ?",
		string(doubt.StatusAnswered), answer, answeredBy, at.UTC(), id, string(doubt.StatusOpen),
	)
	if err != nil {
		return false, errors.Wrap(err, "answering doubt")
	}
	return affected(res)
}

func (repo doubtRepository) RecordEscalatedAnswer(ctx context.Context, id, answer, facultyID string, at time.Time, exec ...core.DBExecutor) (bool, error) {
	res, err := repo.execute(ctx, exec,
		"UPDATE doubts SET answer = ?, answered_by = ?, answered_at = ?"+
			" WHERE id = ? AND status = ? AND faculty_id = ? AND answer IS NULL",
		answer, facultyID, at.UTC(), id, string(doubt.StatusEscalated), facultyID,
	)
	if err != nil {
		return false, errors.Wrap(err, "answering escalated doubt")
	}
	return affected(res)
}

type staleRow struct {
	ID              string      `db:"id"`
	Department      string      `db:"department"`
	AskerDepartment null.String `db:"asker_department"`
	CreatedAt       time.Time   `db:"created_at"`
}

func (repo doubtRepository) QueryStale(ctx context.Context, cutoff time.Time, exec ...core.DBExecutor) ([]doubt.StaleDoubt, error) {
	var rows []staleRow
	err := repo.selectAll(ctx, exec, &rows,
		"SELECT d.id, d.department, a.department AS asker_department, d.created_at FROM doubts d"+
			" LEFT JOIN users a ON a.id = d.asker_id"+
			" WHERE d.status = ? AND d.created_at < ? ORDER BY d.created_at, d.id",
		string(doubt.StatusOpen), cutoff.UTC(),
	)
	if err != nil {
		return nil, errors.Wrap(err, "selecting stale doubts")
	}
	stale := make([]doubt.StaleDoubt, 0, len(rows))
	for _, r := range rows {
		stale = append(stale, doubt.StaleDoubt{
			ID:              r.ID,
			Department:      r.Department,
			AskerDepartment: r.AskerDepartment.String,
			CreatedAt:       r.CreatedAt.UTC(),
		})
	}
	return stale, nil
}

func (repo doubtRepository) Escalate(ctx context.Context, id string, facultyID *string, at time.Time, exec ...core.DBExecutor) (bool, error) {
	res, err := repo.execute(ctx, exec,
		"UPDATE doubts SET status = ?, faculty_id = ?, escalated_at = ? WHERE id = ? AND status = ?",
		string(doubt.StatusEscalated), null.StringFromPtr(facultyID), at.UTC(), id, string(doubt.StatusOpen),
	)
	if err != nil {
		return false, errors.Wrap(err, "escalating doubt")
	}
	return affected(res)
}
