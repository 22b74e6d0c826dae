package doubt

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/campusmentor/campusmentor/core"
)

type Status string

const (
	StatusOpen      Status = "open"
	StatusAnswered  Status = "answered"
	StatusEscalated Status = "escalated"
)

type Doubt struct {
	ID               string     `json:"id"`
	AskerID          string     `json:"asker_id"`
	AssignedSeniorID *string    `json:"assigned_senior_id"`
	FacultyID        *string    `json:"faculty_id"`
	Subject          string     `json:"subject"`
	Department       string     `json:"department"`
	Question         string     `json:"question"`
	Status           Status     `json:"status"`
	Answer           *string    `json:"answer"`
	AnsweredBy       *string    `json:"answered_by"`
	AnsweredAt       *time.Time `json:"answered_at"`
	CreatedAt        time.Time  `json:"created_at"` // UTC
	EscalatedAt      *time.Time `json:"escalated_at"`

	// set by listings
	AskerName    string `json:"asker_name,omitempty"`
	AnswererName string `json:"answerer_name,omitempty"`
}

// IsResponder reports whether userID may answer d.
func (d Doubt) IsResponder(userID string) bool {
	return (d.AssignedSeniorID != nil && *d.AssignedSeniorID == userID) ||
		(d.FacultyID != nil && *d.FacultyID == userID)
}

// StaleDoubt is an open doubt past the escalation window.
type StaleDoubt struct {
	ID              string
	Department      string
	AskerDepartment string
	CreatedAt       time.Time
}

// NewDoubt contains information needed to submit a Doubt.
type NewDoubt struct {
	Subject    string `json:"subject"`
	Department string `json:"department"`
	Question   string `json:"question" validate:"required,min=20"`
}

func (nd *NewDoubt) Validate(validate *validator.Validate) error {
	nd.Subject = core.CleanString(nd.Subject)
	nd.Department = core.CleanString(nd.Department)
	nd.Question = core.CleanString(nd.Question)
	return validate.Struct(nd)
}

type NewAnswer struct {
	Answer string `json:"answer" validate:"required,min=10"`
}

func (na *NewAnswer) Validate(validate *validator.Validate) error {
	na.Answer = core.CleanString(na.Answer)
	return validate.Struct(na)
}
