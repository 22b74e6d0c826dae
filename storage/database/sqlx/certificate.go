package sqlxrepos

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
	"github.com/campusmentor/campusmentor/core/certificate"
)

const certificateColumns = "id, user_id, total_points, certificate_url, issued_at"

type certificateRow struct {
	ID             string    `db:"id"`
	UserID         string    `db:"user_id"`
	TotalPoints    int       `db:"total_points"`
	CertificateURL string    `db:"certificate_url"`
	IssuedAt       time.Time `db:"issued_at"`
}

func (c certificateRow) unboil() certificate.Certificate {
	return certificate.Certificate{
		ID:             c.ID,
		UserID:         c.UserID,
		TotalPoints:    c.TotalPoints,
		CertificateURL: c.CertificateURL,
		IssuedAt:       c.IssuedAt.UTC(),
	}
}

type certificateRepository struct {
	base
}

var _ certificate.Repository = (*certificateRepository)(nil) // interface compliance check

func NewCertificateRepository(exec core.DBExecutor) *certificateRepository {
	return &certificateRepository{base{exec: exec}}
}

func (repo certificateRepository) CreateCertificate(ctx context.Context, c certificate.Certificate, exec ...core.DBExecutor) (certificate.Certificate, bool, error) {
	c.ID = uuid.New().String()
	c.IssuedAt = c.IssuedAt.UTC()
	res, err := repo.execute(ctx, exec,
		"INSERT INTO certificates ("+certificateColumns+") VALUES (?, ?, ?, ?, ?) ON CONFLICT (user_id) DO NOTHING",
		c.ID, c.UserID, c.TotalPoints, c.CertificateURL, c.IssuedAt,
	)
	if err != nil {
		return certificate.Certificate{}, false, errors.Wrap(err, "inserting certificate")
	}
	ok, err := affected(res)
	if err != nil || !ok {
		return certificate.Certificate{}, false, err
	}
	return c, true, nil
}

func (repo certificateRepository) GetCertificate(ctx context.Context, id string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	var c certificateRow
	if err := repo.get(ctx, exec, &c, "SELECT "+certificateColumns+" FROM certificates WHERE id = ?", id); err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "selecting certificate")
	}
	return c.unboil(), nil
}

func (repo certificateRepository) GetCertificateByUser(ctx context.Context, userID string, exec ...core.DBExecutor) (certificate.Certificate, error) {
	var c certificateRow
	err := repo.get(ctx, exec, &c,
		"SELECT "+certificateColumns+" FROM certificates WHERE user_id = ? ORDER BY issued_at DESC LIMIT 1", userID)
	if err != nil {
		return certificate.Certificate{}, trapNoRowsErr(err, certificate.ErrNotFound, "selecting certificate by user")
	}
	return c.unboil(), nil
}
