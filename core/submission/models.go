package submission

import (
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/campusmentor/campusmentor/core"
)

type Kind string

const (
	KindMaterial Kind = "material"
	KindProject  Kind = "project"
)

type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

const (
	defaultLimit = 30
	maxLimit     = 100
)

type Material struct {
	ID              string    `json:"id"`
	UploaderID      string    `json:"uploader_id"`
	Title           string    `json:"title"`
	Subject         string    `json:"subject"`
	Department      string    `json:"department"`
	Year            *int      `json:"year"`
	FileURL         *string   `json:"file_url"`
	Description     string    `json:"description"`
	Status          Status    `json:"status"`
	ApprovedBy      *string   `json:"approved_by"`
	RejectionReason *string   `json:"rejection_reason"`
	Views           int       `json:"views"`
	CreatedAt       time.Time `json:"created_at"` // UTC

	UploaderName string `json:"uploader_name,omitempty"`
}

type Project struct {
	ID              string    `json:"id"`
	UploaderID      string    `json:"uploader_id"`
	Title           string    `json:"title"`
	Abstract        string    `json:"abstract"`
	TechStack       string    `json:"tech_stack"`
	GithubLink      string    `json:"github_link"`
	DemoVideoLink   string    `json:"demo_video_link"`
	PPTURL          *string   `json:"ppt_url"`
	ReportPDFURL    *string   `json:"report_pdf_url"`
	TeamMembers     []string  `json:"team_members"`
	Department      string    `json:"department"`
	Status          Status    `json:"status"`
	ApprovedBy      *string   `json:"approved_by"`
	RejectionReason *string   `json:"rejection_reason"`
	CreatedAt       time.Time `json:"created_at"` // UTC

	UploaderName string `json:"uploader_name,omitempty"`
}

// Decision is the outcome of a review.
type Decision struct {
	Status          Status
	ApprovedBy      *string
	RejectionReason *string
}

// head is what a review needs to know about a submission.
type head struct {
	UploaderID string
	Title      string
	Status     Status
}

// NewMaterial contains information needed to upload a Material.
// File references are set by the transport after storing the upload.
type NewMaterial struct {
	Title       string  `json:"title" form:"title" validate:"required"`
	Subject     string  `json:"subject" form:"subject"`
	Department  string  `json:"department" form:"department"`
	Year        *int    `json:"year" form:"year" validate:"omitempty,min=1,max=6"`
	Description string  `json:"description" form:"description"`
	FileURL     *string `json:"-" form:"-"`
}

func (nm *NewMaterial) Validate(validate *validator.Validate) error {
	nm.Title = core.CleanString(nm.Title)
	nm.Subject = core.CleanString(nm.Subject)
	nm.Department = core.CleanString(nm.Department)
	nm.Description = core.CleanString(nm.Description)
	return validate.Struct(nm)
}

// NewProject contains information needed to submit a Project.
type NewProject struct {
	Title         string   `json:"title" form:"title" validate:"required"`
	Abstract      string   `json:"abstract" form:"abstract"`
	TechStack     string   `json:"tech_stack" form:"tech_stack"`
	GithubLink    string   `json:"github_link" form:"github_link" validate:"omitempty,url"`
	DemoVideoLink string   `json:"demo_video_link" form:"demo_video_link" validate:"omitempty,url"`
	Department    string   `json:"department" form:"department"`
	TeamMembers   []string `json:"team_members" form:"-"`
	PPTURL        *string  `json:"-" form:"-"`
	ReportPDFURL  *string  `json:"-" form:"-"`
}

func (np *NewProject) Validate(validate *validator.Validate) error {
	np.Title = core.CleanString(np.Title)
	np.Abstract = core.CleanString(np.Abstract)
	np.TechStack = core.CleanString(np.TechStack)
	np.GithubLink = core.CleanString(np.GithubLink)
	np.DemoVideoLink = core.CleanString(np.DemoVideoLink)
	np.Department = core.CleanString(np.Department)
	members := make([]string, 0, len(np.TeamMembers))
	for _, m := range np.TeamMembers {
		if m = core.CleanString(m); m != "" {
			members = append(members, m)
		}
	}
	np.TeamMembers = members
	return validate.Struct(np)
}

type Rejection struct {
	Reason string `json:"reason" validate:"required,notblank"`
}

func (r *Rejection) Validate(validate *validator.Validate) error {
	r.Reason = core.CleanString(r.Reason)
	return validate.Struct(r)
}

type QueryFilter struct {
	Status     Status `query:"status"`
	Subject    string `query:"subject"`
	Department string `query:"department"`
	Search     string `query:"search"`
	Limit      int    `query:"limit"`
	Offset     int    `query:"offset"`
}

func (qf *QueryFilter) Clean() {
	qf.Status = Status(core.CleanString(string(qf.Status), true /* lower */))
	qf.Subject = core.CleanString(qf.Subject)
	qf.Department = core.CleanString(qf.Department)
	qf.Search = core.CleanString(qf.Search)
	if qf.Limit <= 0 {
		qf.Limit = defaultLimit
	}
	if qf.Limit > maxLimit {
		qf.Limit = maxLimit
	}
	if qf.Offset < 0 {
		qf.Offset = 0
	}
}
