package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/gcerrors"
)

// Name is the key the manifest is stored under in the save directory.
const Name = ".hfdl-manifest.json"

// ErrNotFound is returned by Store.Load when no manifest exists.
var ErrNotFound = errors.New("manifest: not found")

// FileEntry describes one downloadable file of a repository. Filename may
// contain forward-slash separated subdirectories, mirroring the repository
// tree.
type FileEntry struct {
	Filename string `json:"filename"`
	URL      string `json:"url"`
	Size     int64  `json:"size"`
}

// Manifest records an in-flight batch download so an interrupted run can be
// resumed later. Byte offsets are deliberately absent: resume progress is
// re-derived from the files on disk, never trusted from a snapshot.
type Manifest struct {
	ID            string      `json:"id"`
	OriginalURL   string      `json:"original_url"`
	SaveDirectory string      `json:"save_directory"`
	Files         []FileEntry `json:"files"`
	CreatedAt     time.Time   `json:"created_at"`
}

// New creates a manifest for a fresh batch.
func New(originalURL, dir string, files []FileEntry) *Manifest {
	return &Manifest{
		ID:            uuid.NewString(),
		OriginalURL:   originalURL,
		SaveDirectory: dir,
		Files:         files,
		CreatedAt:     time.Now().UTC(),
	}
}

// Store reads and writes the manifest of one save directory through a
// blob bucket.
type Store struct {
	bucket *blob.Bucket
}

// NewStore creates a store on an already-open bucket. The caller keeps
// ownership of the bucket.
func NewStore(bucket *blob.Bucket) *Store {
	return &Store{bucket: bucket}
}

// OpenDir opens a store backed by dir on the local filesystem, creating
// dir if needed. Sidecar metadata files are disabled so the only thing the
// store ever puts next to the downloads is the manifest itself. Close the
// store when done.
func OpenDir(dir string) (*Store, error) {
	bucket, err := fileblob.OpenBucket(dir, &fileblob.Options{
		CreateDir: true,
		Metadata:  fileblob.MetadataDontWrite,
	})
	if err != nil {
		return nil, fmt.Errorf("manifest: open %s: %w", dir, err)
	}
	return &Store{bucket: bucket}, nil
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}

// Load reads the persisted manifest. Returns ErrNotFound when none exists.
func (s *Store) Load(ctx context.Context) (*Manifest, error) {
	data, err := s.bucket.ReadAll(ctx, Name)
	if err != nil {
		if isNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("manifest: read: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("manifest: unmarshal: %w", err)
	}
	return &m, nil
}

// Save persists m, replacing any previous manifest.
func (s *Store) Save(ctx context.Context, m *Manifest) error {
	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("manifest: marshal: %w", err)
	}
	if err := s.bucket.WriteAll(ctx, Name, data, nil); err != nil {
		return fmt.Errorf("manifest: write: %w", err)
	}
	return nil
}

// Clear removes the manifest. Clearing a store that has no manifest is
// not an error.
func (s *Store) Clear(ctx context.Context) error {
	if err := s.bucket.Delete(ctx, Name); err != nil && !isNotExist(err) {
		return fmt.Errorf("manifest: delete: %w", err)
	}
	return nil
}

func isNotExist(err error) bool {
	return gcerrors.Code(err) == gcerrors.NotFound
}
