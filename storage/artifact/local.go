package artifact

import (
	"context"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

// LocalStore keeps artifacts under a directory served at baseURL.
type LocalStore struct {
	dir     string
	baseURL string
}

var _ core.ArtifactStore = (*LocalStore)(nil)

func NewLocalStore(dir, baseURL string) *LocalStore {
	return &LocalStore{dir: dir, baseURL: strings.TrimRight(baseURL, "/")}
}

// Dir is the directory served under the store's base URL.
func (s *LocalStore) Dir() string { return s.dir }

// resolve maps a name or a reference to a file path inside the store directory.
func (s *LocalStore) resolve(ref string) (string, error) {
	name := strings.TrimPrefix(ref, s.baseURL+"/")
	name = path.Clean("/" + name)[1:]
	if name == "" || name == "." {
		return "", ErrInvalidRef
	}
	return filepath.Join(s.dir, filepath.FromSlash(name)), nil
}

func (s *LocalStore) Save(_ context.Context, name string, content []byte, _ string) (string, error) {
	p, err := s.resolve(name)
	if err != nil {
		return "", err
	}
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return "", errors.Wrap(err, "creating artifact directory")
	}
	if err = os.WriteFile(p, content, 0o644); err != nil {
		return "", errors.Wrap(err, "writing artifact")
	}
	rel, _ := filepath.Rel(s.dir, p)
	return s.baseURL + "/" + filepath.ToSlash(rel), nil
}

func (s *LocalStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	if !strings.HasPrefix(ref, s.baseURL+"/") {
		return nil, ErrInvalidRef
	}
	p, err := s.resolve(ref)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	return f, errors.Wrap(err, "opening artifact")
}

// Delete removes the artifact at ref. A missing artifact is not an error.
func (s *LocalStore) Delete(_ context.Context, ref string) error {
	if !strings.HasPrefix(ref, s.baseURL+"/") {
		return ErrInvalidRef
	}
	p, err := s.resolve(ref)
	if err != nil {
		return err
	}
	if err = os.Remove(p); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "removing artifact")
	}
	return nil
}
