package certificate

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/notification"
	"github.com/campusmentor/campusmentor/core/user"
)

var ErrNotFound = core.NewNotFoundError("certificate")

type Certificate struct {
	ID             string    `json:"id"`
	UserID         string    `json:"user_id"`
	TotalPoints    int       `json:"total_points"` // snapshot at issuance
	CertificateURL string    `json:"certificate_url"`
	IssuedAt       time.Time `json:"issued_at"`
}

type (
	Repository interface {
		// CreateCertificate inserts c unless its user already holds a certificate.
		// ok reports whether c was inserted.
		CreateCertificate(ctx context.Context, c Certificate, exec ...core.DBExecutor) (cert Certificate, ok bool, err error)
		GetCertificate(ctx context.Context, id string, exec ...core.DBExecutor) (Certificate, error)
		GetCertificateByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (Certificate, error)
	}

	UserFinder interface {
		GetByID(ctx context.Context, id string) (user.User, error)
	}

	Notifier interface {
		Notify(ctx context.Context, userID, message string, typ notification.Type)
	}

	Service struct {
		repo      Repository
		users     UserFinder
		renderer  Renderer
		store     core.ArtifactStore
		notifier  Notifier
		clock     core.Clock
		logger    core.Logger
		metrics   core.Metrics
		appName   string
		threshold int
	}

	Options struct {
		AppName   string
		Threshold int
	}
)

func NewService(
	repo Repository,
	users UserFinder,
	renderer Renderer,
	store core.ArtifactStore,
	notifier Notifier,
	clock core.Clock,
	logger core.Logger,
	metrics core.Metrics,
	opts Options,
) *Service {
	if metrics == nil {
		metrics = core.NopMetrics{}
	}
	return &Service{
		repo:      repo,
		users:     users,
		renderer:  renderer,
		store:     store,
		notifier:  notifier,
		clock:     clock,
		logger:    logger,
		metrics:   metrics,
		appName:   opts.AppName,
		threshold: opts.Threshold,
	}
}

// IssueIfEligible issues the certificate of userID when their balance reached the threshold
// and they hold none yet. It reports whether a certificate was issued by this call.
// Losing a concurrent issuance is not an error.
func (svc *Service) IssueIfEligible(ctx context.Context, userID string) (bool, error) {
	if _, err := svc.repo.GetCertificateByUser(ctx, userID); err == nil {
		return false, nil
	} else if errors.Cause(err) != ErrNotFound {
		return false, errors.Wrap(err, "finding certificate")
	}

	usr, err := svc.users.GetByID(ctx, userID)
	if err != nil {
		return false, errors.Wrap(err, "finding user")
	}
	if usr.Points < svc.threshold {
		return false, nil
	}

	now := svc.clock.Now()
	content, err := svc.renderer.Render(Document{
		AppName:    svc.appName,
		Name:       usr.Name,
		Department: usr.Department,
		Points:     usr.Points,
		IssuedAt:   now,
	})
	if err != nil {
		return false, errors.Wrap(err, "rendering certificate")
	}

	// concurrent issuances must not overwrite each other's artifact
	name := fmt.Sprintf("certificates/certificate_%s_%d_%s.pdf", usr.ID, now.UnixMilli(), uuid.New().String()[:8])
	ref, err := svc.store.Save(ctx, name, content, "application/pdf")
	if err != nil {
		return false, errors.Wrap(err, "saving certificate")
	}

	_, ok, err := svc.repo.CreateCertificate(ctx, Certificate{
		UserID:         usr.ID,
		TotalPoints:    usr.Points,
		CertificateURL: ref,
		IssuedAt:       now,
	})
	if err != nil || !ok {
		svc.discard(ctx, ref)
		return false, errors.Wrap(err, "creating certificate")
	}

	svc.metrics.CertificateIssued()
	svc.notifier.Notify(
		ctx, usr.ID,
		fmt.Sprintf("Congratulations! You reached %d points and earned your %s certificate.", usr.Points, svc.appName),
		notification.TypeSuccess,
	)
	return true, nil
}

// discard removes an artifact that no certificate row references.
func (svc *Service) discard(ctx context.Context, ref string) {
	if err := svc.store.Delete(ctx, ref); err != nil {
		svc.logger.Warn(fmt.Sprintf("deleting orphan certificate %s: %v", ref, err), err)
	}
}

// GetLatest returns the certificate of userID.
func (svc *Service) GetLatest(ctx context.Context, userID string) (Certificate, error) {
	return svc.repo.GetCertificateByUser(ctx, userID)
}

// Open returns the certificate id of owner with its artifact. The caller closes the reader.
func (svc *Service) Open(ctx context.Context, owner user.User, id string) (Certificate, io.ReadCloser, error) {
	cert, err := svc.repo.GetCertificate(ctx, id)
	if err != nil {
		return Certificate{}, nil, err
	}
	if cert.UserID != owner.ID {
		return Certificate{}, nil, ErrNotFound
	}
	rc, err := svc.store.Open(ctx, cert.CertificateURL)
	if err != nil {
		return Certificate{}, nil, errors.Wrap(err, "opening certificate artifact")
	}
	return cert, rc, nil
}

// DownloadName is the file name offered when owner downloads their certificate.
func (svc *Service) DownloadName(owner user.User) string {
	return fmt.Sprintf("%s_Certificate_%s.pdf", svc.appName, slug.Make(owner.Name))
}
