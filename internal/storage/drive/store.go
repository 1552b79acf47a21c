// Package drive implements the archive store on Google Drive.
package drive

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/api/drive/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/JakeFAU/sitemap-archiver/internal/archive"
	"github.com/JakeFAU/sitemap-archiver/internal/auth"
)

// FolderMimeType marks Drive folders.
const FolderMimeType = "application/vnd.google-apps.folder"

// Config captures Drive connection settings.
type Config struct {
	Auth         auth.Config `mapstructure:",squash"`
	QuotaProject string      `mapstructure:"quota_project"`
}

// Store implements archive.Store on top of the Drive v3 files API.
type Store struct {
	svc    *drive.Service
	logger *zap.Logger
}

var _ archive.Store = (*Store)(nil)

// Open authenticates and builds a Store.
func Open(ctx context.Context, cfg Config, logger *zap.Logger, opts ...option.ClientOption) (*Store, error) {
	if len(opts) == 0 {
		ts, err := auth.TokenSource(ctx, cfg.Auth)
		if err != nil {
			return nil, fmt.Errorf("drive credentials: %w", err)
		}
		opts = append(opts, option.WithTokenSource(ts))
	}
	if cfg.QuotaProject != "" {
		opts = append(opts, option.WithQuotaProject(cfg.QuotaProject))
	}
	svc, err := drive.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating Drive service: %w", err)
	}
	return New(svc, logger), nil
}

// New wraps an existing Drive service.
func New(svc *drive.Service, logger *zap.Logger) *Store {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{svc: svc, logger: logger}
}

// FindFolder returns the id of the first non-trashed folder named name under parentID.
func (s *Store) FindFolder(ctx context.Context, name, parentID string) (string, bool, error) {
	return s.find(ctx, query(name, parentID, true))
}

// FindFile returns the id of the first non-trashed, non-folder file named name under parentID.
func (s *Store) FindFile(ctx context.Context, name, parentID string) (string, bool, error) {
	return s.find(ctx, query(name, parentID, false))
}

func (s *Store) find(ctx context.Context, q string) (string, bool, error) {
	resp, err := s.svc.Files.List().
		Q(q).
		Fields("files(id, name)").
		PageSize(1).
		SupportsAllDrives(true).
		IncludeItemsFromAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", false, apiError("search files", err)
	}
	if len(resp.Files) == 0 {
		return "", false, nil
	}
	return resp.Files[0].Id, true, nil
}

// CreateFolder creates a folder and returns its id.
func (s *Store) CreateFolder(ctx context.Context, name, parentID string) (string, error) {
	folder := &drive.File{Name: name, MimeType: FolderMimeType}
	if parentID != "" {
		folder.Parents = []string{parentID}
	}
	created, err := s.svc.Files.Create(folder).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", apiError("create folder "+name, err)
	}
	s.logger.Debug("created drive folder", zap.String("name", name), zap.String("id", created.Id))
	return created.Id, nil
}

// CreateFile uploads a new file with its metadata.
func (s *Store) CreateFile(ctx context.Context, meta archive.FileMeta, content []byte) (string, error) {
	file := &drive.File{
		Name:        meta.Name,
		Description: meta.Description,
		MimeType:    meta.MimeType,
	}
	if meta.ParentID != "" {
		file.Parents = []string{meta.ParentID}
	}
	created, err := s.svc.Files.Create(file).
		Media(bytes.NewReader(content), googleapi.ContentType(meta.MimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", apiError("create file "+meta.Name, err)
	}
	return created.Id, nil
}

// UpdateFile replaces the content and description of an existing file.
// Parents are not writable through update and are left untouched.
func (s *Store) UpdateFile(ctx context.Context, fileID string, meta archive.FileMeta, content []byte) (string, error) {
	patch := &drive.File{Description: meta.Description}
	updated, err := s.svc.Files.Update(fileID, patch).
		Media(bytes.NewReader(content), googleapi.ContentType(meta.MimeType)).
		Fields("id").
		SupportsAllDrives(true).
		Context(ctx).
		Do()
	if err != nil {
		return "", apiError("update file "+fileID, err)
	}
	return updated.Id, nil
}

// query builds a Drive search expression. An empty parentID searches My Drive's root.
func query(name, parentID string, folder bool) string {
	if parentID == "" {
		parentID = "root"
	}
	op := "!="
	if folder {
		op = "="
	}
	return fmt.Sprintf("name = '%s' and '%s' in parents and mimeType %s '%s' and trashed = false",
		escape(name), escape(parentID), op, FolderMimeType)
}

func escape(value string) string {
	value = strings.ReplaceAll(value, `\`, `\\`)
	return strings.ReplaceAll(value, `'`, `\'`)
}

func apiError(op string, err error) error {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return fmt.Errorf("%s: drive status %d: %w", op, gerr.Code, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}
