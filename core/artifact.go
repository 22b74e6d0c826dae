package core

import (
	"context"
	"io"
)

// ArtifactStore persists generated and uploaded files.
// Save returns a URL-like reference that Open and Delete accept.
type ArtifactStore interface {
	Save(ctx context.Context, name string, content []byte, contentType string) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, error)
	Delete(ctx context.Context, ref string) error
}
