// Package artifact stores generated certificates and uploaded submission files.
package artifact

import (
	"github.com/pkg/errors"

	"github.com/campusmentor/campusmentor/core"
)

const (
	BackendLocal    = "local"
	BackendSupabase = "supabase"
)

var ErrInvalidRef = errors.New("artifact reference does not belong to this store")

// New returns the store selected by conf.Storage.Backend.
func New(conf *core.Config) (core.ArtifactStore, error) {
	switch conf.Storage.Backend {
	case BackendLocal, "":
		return NewLocalStore(conf.Storage.LocalDir, conf.Storage.BaseURL), nil
	case BackendSupabase:
		return NewSupabaseStore(conf.Storage.SupabaseURL, conf.Storage.SupabaseKey, conf.Storage.SupabaseBucket), nil
	}
	return nil, errors.Errorf("unsupported storage backend %q", conf.Storage.Backend)
}
