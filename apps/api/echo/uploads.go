package echoapi

import (
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/gosimple/slug"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

const maxUploadSize = 10 << 20 // 10 MiB

var (
	documentExts = map[string]bool{".pdf": true, ".doc": true, ".docx": true, ".ppt": true, ".pptx": true}
	slideExts    = map[string]bool{".ppt": true, ".pptx": true, ".pdf": true}
	reportExts   = map[string]bool{".pdf": true, ".doc": true, ".docx": true}
)

type uploader struct {
	store core.ArtifactStore
	clock core.Clock
}

// save stores the file of form field under dir and returns its reference.
// A missing field is not an error: the reference is nil.
func (up uploader) save(ctx echo.Context, field, dir string, allowed map[string]bool) (*string, error) {
	fh, err := ctx.FormFile(field)
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s upload", field)
	}

	invalid := func(msg string) error {
		return core.NewValidationError(nil, core.FieldError{Field: field, Error: msg})
	}
	if fh.Size > maxUploadSize {
		return nil, invalid("file must not exceed 10 MB")
	}
	ext := strings.ToLower(filepath.Ext(fh.Filename))
	if !allowed[ext] {
		return nil, invalid("invalid file type")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s upload", field)
	}
	//goland:noinspection GoUnhandledErrorResult
	defer f.Close()
	content, err := io.ReadAll(io.LimitReader(f, maxUploadSize+1))
	if err != nil {
		return nil, errors.Wrapf(err, "reading %s upload", field)
	}
	if len(content) > maxUploadSize {
		return nil, invalid("file must not exceed 10 MB")
	}

	ctype := fh.Header.Get(echo.HeaderContentType)
	if ctype == "" || ctype == echo.MIMEOctetStream {
		ctype = http.DetectContentType(content)
	}
	base := slug.Make(strings.TrimSuffix(filepath.Base(fh.Filename), filepath.Ext(fh.Filename)))
	name := fmt.Sprintf("%s/%d-%s%s", dir, up.clock.Now().UnixMilli(), base, ext)

	ref, err := up.store.Save(ctx.Request().Context(), name, content, ctype)
	if err != nil {
		return nil, errors.Wrapf(err, "storing %s upload", field)
	}
	return &ref, nil
}

// discard removes stored uploads whose submission could not be created.
func (up uploader) discard(ctx echo.Context, refs ...*string) {
	for _, ref := range refs {
		if ref != nil {
			if err := up.store.Delete(ctx.Request().Context(), *ref); err != nil {
				ctx.Logger().Warnf("deleting upload %s: %v", *ref, err)
			}
		}
	}
}
