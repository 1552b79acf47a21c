// Package gcs implements the archive store on a Google Cloud Storage bucket.
// Folders are object-name prefixes marked by an empty placeholder object.
package gcs

import (
	"context"
	"errors"
	"fmt"
	"path"
	"strings"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/archive"
)

// FolderMarker is the placeholder object written inside every folder prefix.
const FolderMarker = ".folder"

const descriptionKey = "description"

// Config captures the parameters required to write to GCS.
type Config struct {
	Bucket string `mapstructure:"bucket"`
	Prefix string `mapstructure:"prefix"`
}

// Store implements archive.Store; ids are object names or folder prefixes.
type Store struct {
	bucket *storage.BucketHandle
	name   string
	prefix string
	logger *zap.Logger
}

var _ archive.Store = (*Store)(nil)

// New creates a GCS-backed archive store.
func New(client *storage.Client, cfg Config, logger *zap.Logger) (*Store, error) {
	if client == nil {
		return nil, errors.New("storage client is required")
	}
	if strings.TrimSpace(cfg.Bucket) == "" {
		return nil, errors.New("bucket name is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		bucket: client.Bucket(cfg.Bucket),
		name:   cfg.Bucket,
		prefix: strings.Trim(cfg.Prefix, "/"),
		logger: logger,
	}, nil
}

// Check verifies the bucket exists and is reachable.
func (s *Store) Check(ctx context.Context) error {
	if _, err := s.bucket.Attrs(ctx); err != nil {
		return fmt.Errorf("get bucket %q attributes: %w", s.name, err)
	}
	return nil
}

// FindFolder reports whether the folder placeholder exists.
func (s *Store) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	folder := s.child(parentID, name)
	found, err := s.exists(ctx, path.Join(folder, FolderMarker))
	if err != nil || !found {
		return "", false, err
	}
	return folder, true, nil
}

// CreateFolder writes the folder placeholder and returns the prefix.
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	folder := s.child(parentID, name)
	if err := s.write(ctx, path.Join(folder, FolderMarker), "application/x-directory", "", nil); err != nil {
		return "", err
	}
	s.logger.Debug("created gcs folder", zap.String("prefix", folder))
	return folder, nil
}

// FindFile reports whether the object exists.
func (s *Store) FindFile(ctx context.Context, name, parentID string) (string, bool, error) {
	object := s.child(parentID, name)
	found, err := s.exists(ctx, object)
	if err != nil || !found {
		return "", false, err
	}
	return object, true, nil
}

// CreateFile uploads a new object.
func (s *Store) CreateFile(ctx context.Context, meta archive.FileMeta, content []byte) (string, error) {
	object := s.child(meta.ParentID, meta.Name)
	if err := s.write(ctx, object, meta.MimeType, meta.Description, content); err != nil {
		return "", err
	}
	return object, nil
}

// UpdateFile overwrites an existing object in place.
func (s *Store) UpdateFile(ctx context.Context, fileID string, meta archive.FileMeta, content []byte) (string, error) {
	if err := s.write(ctx, fileID, meta.MimeType, meta.Description, content); err != nil {
		return "", err
	}
	return fileID, nil
}

// URI returns the gs:// address of an id.
func (s *Store) URI(id string) string {
	return fmt.Sprintf("gs://%s/%s", s.name, id)
}

func (s *Store) child(parentID, name string) string {
	if parentID == "" {
		parentID = s.prefix
	}
	if parentID == "" {
		return name
	}
	return parentID + "/" + name
}

func (s *Store) exists(ctx context.Context, object string) (bool, error) {
	_, err := s.bucket.Object(object).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat object %s: %w", object, err)
	}
	return true, nil
}

func (s *Store) write(ctx context.Context, object, contentType, description string, content []byte) error {
	writer := s.bucket.Object(object).NewWriter(ctx)
	writer.ContentType = contentType
	if description != "" {
		writer.Metadata = map[string]string{descriptionKey: description}
	}
	if _, err := writer.Write(content); err != nil {
		if closeErr := writer.Close(); closeErr != nil {
			return fmt.Errorf("write object %s: %w (close writer: %v)", object, err, closeErr)
		}
		return fmt.Errorf("write object %s: %w", object, err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("close writer for %s: %w", object, err)
	}
	return nil
}
