package archive

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/sitemap-archiver/internal/crawler"
)

// Default names used when the configuration leaves them empty.
const (
	DefaultRootFolderName = "scraped_hospital_data"
	DefaultUploadedBy     = "Hospital Crawler"
)

// Config controls where artifacts land.
type Config struct {
	// RootFolderID is used as-is when set; otherwise RootFolderName is
	// resolved or created at the store root by EnsureRoot.
	RootFolderID   string
	RootFolderName string
	UploadedBy     string
}

// Upserter uploads artifacts into per-category folders, updating files that
// already exist by name instead of creating duplicates.
type Upserter struct {
	store   Store
	folders *FolderCache
	logger  *zap.Logger

	rootID     string
	rootName   string
	uploadedBy string
}

// NewUpserter wires an Upserter over store.
func NewUpserter(store Store, cfg Config, logger *zap.Logger) *Upserter {
	if logger == nil {
		logger = zap.NewNop()
	}
	rootName := cfg.RootFolderName
	if rootName == "" {
		rootName = DefaultRootFolderName
	}
	uploadedBy := cfg.UploadedBy
	if uploadedBy == "" {
		uploadedBy = DefaultUploadedBy
	}
	return &Upserter{
		store:      store,
		folders:    NewFolderCache(store, logger.Named("folders")),
		logger:     logger,
		rootID:     cfg.RootFolderID,
		rootName:   rootName,
		uploadedBy: uploadedBy,
	}
}

// EnsureRoot resolves the run root folder when no id was configured.
func (u *Upserter) EnsureRoot(ctx context.Context) (string, error) {
	if u.rootID != "" {
		return u.rootID, nil
	}
	id, err := u.folders.Resolve(ctx, u.rootName, "")
	if err != nil {
		return "", fmt.Errorf("resolve root folder: %w", err)
	}
	u.rootID = id
	u.logger.Info("using root folder", zap.String("folder", u.rootName), zap.String("id", id))
	return id, nil
}

// Upload implements crawler.Archiver. The destination folder is the item's
// category under the root folder.
func (u *Upserter) Upload(ctx context.Context, item crawler.ArchiveItem) (string, error) {
	if u.rootID == "" {
		return "", fmt.Errorf("%w: root folder not resolved", ErrFolderResolution)
	}
	folderID, err := u.folders.Resolve(ctx, item.Category, u.rootID)
	if err != nil {
		return "", err
	}

	existingID, found, err := u.store.FindFile(ctx, item.Filename, folderID)
	if err != nil {
		u.logger.Warn("file existence check failed; creating",
			zap.String("file", item.Filename),
			zap.String("folder", item.Category),
			zap.Error(err),
		)
		found = false
	}

	if found {
		meta := FileMeta{
			Name:        item.Filename,
			ParentID:    folderID,
			Description: fmt.Sprintf("Scraped from: %s\nLast updated by: %s", item.SourceURL, u.uploadedBy),
			MimeType:    item.MimeType,
		}
		id, err := u.store.UpdateFile(ctx, existingID, meta, item.Content)
		if err != nil {
			return "", fmt.Errorf("%w: update %s/%s: %w", ErrUpload, item.Category, item.Filename, err)
		}
		u.logger.Debug("updated file", zap.String("file", item.Filename), zap.String("id", id))
		return id, nil
	}

	meta := FileMeta{
		Name:     item.Filename,
		ParentID: folderID,
		Description: fmt.Sprintf("Scraped from: %s\nCategory: %s\nUploaded by: %s",
			item.SourceURL, item.Category, u.uploadedBy),
		MimeType: item.MimeType,
	}
	id, err := u.store.CreateFile(ctx, meta, item.Content)
	if err != nil {
		return "", fmt.Errorf("%w: create %s/%s: %w", ErrUpload, item.Category, item.Filename, err)
	}
	u.logger.Debug("created file", zap.String("file", item.Filename), zap.String("id", id))
	return id, nil
}

// FolderNames implements crawler.FolderCounter.
func (u *Upserter) FolderNames() []string {
	return u.folders.Names()
}

// Folders exposes the underlying cache.
func (u *Upserter) Folders() *FolderCache {
	return u.folders
}
