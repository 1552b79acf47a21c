// Package local implements the archive store on the local filesystem.
// Folders are directories; each file has a JSON sidecar holding its metadata.
package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/JakeFAU/sitemap-archiver/internal/archive"
	"github.com/JakeFAU/sitemap-archiver/internal/hash/sha256"
)

const sidecarSuffix = ".meta.json"

// Config captures the parameters for the local filesystem store.
type Config struct {
	// BaseDir is the directory that plays the store root.
	BaseDir string `mapstructure:"base_dir" yaml:"base_dir"`
}

// Sidecar is the metadata written next to every archived file.
type Sidecar struct {
	Description string    `json:"description"`
	MimeType    string    `json:"mime_type"`
	Digest      string    `json:"digest"`
	Size        int       `json:"size"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Store writes artifacts under BaseDir. Ids are slash-separated paths relative to it.
type Store struct {
	baseDir string
	now     func() time.Time
}

var _ archive.Store = (*Store)(nil)

// New creates a local filesystem store, creating BaseDir when needed.
func New(cfg Config) (*Store, error) {
	if strings.TrimSpace(cfg.BaseDir) == "" {
		return nil, errors.New("base directory is required")
	}

	info, err := os.Stat(cfg.BaseDir)
	switch {
	case os.IsNotExist(err):
		if mkErr := os.MkdirAll(cfg.BaseDir, 0o750); mkErr != nil {
			return nil, fmt.Errorf("create base directory: %w", mkErr)
		}
	case err != nil:
		return nil, fmt.Errorf("stat base directory: %w", err)
	case !info.IsDir():
		return nil, errors.New("base directory path is not a directory")
	}

	return &Store{baseDir: filepath.Clean(cfg.BaseDir), now: func() time.Time { return time.Now().UTC() }}, nil
}

// FindFolder reports whether a directory named name exists under parentID.
func (s *Store) FindFolder(_ context.Context, name, parentID string) (string, bool, error) {
	id, full, err := s.resolve(parentID, name)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat folder %s: %w", id, err)
	}
	if !info.IsDir() {
		return "", false, nil
	}
	return id, true, nil
}

// CreateFolder creates the directory.
func (s *Store) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	id, full, err := s.resolve(parentID, name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(full, 0o750); err != nil {
		return "", fmt.Errorf("create folder %s: %w", id, err)
	}
	return id, nil
}

// FindFile reports whether a regular file named name exists under parentID.
func (s *Store) FindFile(_ context.Context, name, parentID string) (string, bool, error) {
	id, full, err := s.resolve(parentID, name)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(full)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("stat file %s: %w", id, err)
	}
	if !info.Mode().IsRegular() {
		return "", false, nil
	}
	return id, true, nil
}

// CreateFile writes a new file and its sidecar.
func (s *Store) CreateFile(_ context.Context, meta archive.FileMeta, content []byte) (string, error) {
	id, full, err := s.resolve(meta.ParentID, meta.Name)
	if err != nil {
		return "", err
	}
	if err := s.write(full, meta, content); err != nil {
		return "", fmt.Errorf("create file %s: %w", id, err)
	}
	return id, nil
}

// UpdateFile overwrites an existing file and its sidecar.
func (s *Store) UpdateFile(_ context.Context, fileID string, meta archive.FileMeta, content []byte) (string, error) {
	full, err := s.path(fileID)
	if err != nil {
		return "", err
	}
	if _, err := os.Stat(full); err != nil {
		return "", fmt.Errorf("update file %s: %w", fileID, err)
	}
	if err := s.write(full, meta, content); err != nil {
		return "", fmt.Errorf("update file %s: %w", fileID, err)
	}
	return fileID, nil
}

// ReadSidecar loads the metadata recorded for fileID.
func (s *Store) ReadSidecar(fileID string) (Sidecar, error) {
	full, err := s.path(fileID)
	if err != nil {
		return Sidecar{}, err
	}
	// #nosec G304 -- path is confined to baseDir by s.path.
	data, err := os.ReadFile(full + sidecarSuffix)
	if err != nil {
		return Sidecar{}, fmt.Errorf("read sidecar for %s: %w", fileID, err)
	}
	var sc Sidecar
	if err := json.Unmarshal(data, &sc); err != nil {
		return Sidecar{}, fmt.Errorf("decode sidecar for %s: %w", fileID, err)
	}
	return sc, nil
}

func (s *Store) write(full string, meta archive.FileMeta, content []byte) error {
	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return fmt.Errorf("create parent directories: %w", err)
	}
	if err := os.WriteFile(full, content, 0o600); err != nil {
		return fmt.Errorf("write content: %w", err)
	}
	sc := Sidecar{
		Description: meta.Description,
		MimeType:    meta.MimeType,
		Digest:      sha256.Sum(content),
		Size:        len(content),
		UpdatedAt:   s.now(),
	}
	data, err := json.MarshalIndent(sc, "", "  ")
	if err != nil {
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := os.WriteFile(full+sidecarSuffix, data, 0o600); err != nil {
		return fmt.Errorf("write sidecar: %w", err)
	}
	return nil
}

func (s *Store) resolve(parentID, name string) (string, string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || name == "." || name == ".." {
		return "", "", fmt.Errorf("invalid name %q", name)
	}
	id := name
	if parentID != "" {
		id = parentID + "/" + name
	}
	full, err := s.path(id)
	if err != nil {
		return "", "", err
	}
	return id, full, nil
}

// path maps an id to a filesystem path inside baseDir.
func (s *Store) path(id string) (string, error) {
	if strings.TrimSpace(id) == "" {
		return "", errors.New("path is required")
	}
	full := filepath.Clean(filepath.Join(s.baseDir, filepath.FromSlash(id)))
	if !strings.HasPrefix(full, s.baseDir+string(filepath.Separator)) {
		return "", errors.New("path traversal detected")
	}
	return full, nil
}
