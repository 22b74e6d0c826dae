package artifact

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
	storage "github.com/supabase-community/storage-go"

	"github.com/campusmentor/campusmentor/core"
)

// SupabaseStore keeps artifacts in a public Supabase Storage bucket.
// References are the public URLs of the objects.
type SupabaseStore struct {
	client *storage.Client
	url    string
	bucket string
}

var _ core.ArtifactStore = (*SupabaseStore)(nil)

func NewSupabaseStore(supabaseURL, key, bucket string) *SupabaseStore {
	supabaseURL = strings.TrimRight(supabaseURL, "/")
	return &SupabaseStore{
		client: storage.NewClient(supabaseURL+"/storage/v1", key, nil),
		url:    supabaseURL,
		bucket: bucket,
	}
}

func (s *SupabaseStore) publicPrefix() string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/", s.url, s.bucket)
}

func (s *SupabaseStore) objectPath(ref string) (string, error) {
	if !strings.HasPrefix(ref, s.publicPrefix()) {
		return "", ErrInvalidRef
	}
	p := strings.TrimPrefix(ref, s.publicPrefix())
	if i := strings.Index(p, "?"); i != -1 {
		p = p[:i]
	}
	return p, nil
}

func (s *SupabaseStore) Save(_ context.Context, name string, content []byte, contentType string) (string, error) {
	name = strings.TrimLeft(name, "/")
	_, err := s.client.UploadFile(s.bucket, name, bytes.NewReader(content), storage.FileOptions{ContentType: &contentType})
	if err != nil {
		return "", errors.Wrap(err, "uploading artifact to supabase")
	}
	return s.publicPrefix() + name, nil
}

func (s *SupabaseStore) Open(_ context.Context, ref string) (io.ReadCloser, error) {
	p, err := s.objectPath(ref)
	if err != nil {
		return nil, err
	}
	content, err := s.client.DownloadFile(s.bucket, p)
	if err != nil {
		return nil, errors.Wrap(err, "downloading artifact from supabase")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *SupabaseStore) Delete(_ context.Context, ref string) error {
	p, err := s.objectPath(ref)
	if err != nil {
		return err
	}
	_, err = s.client.RemoveFile(s.bucket, []string{p})
	return errors.Wrap(err, "removing artifact from supabase")
}
