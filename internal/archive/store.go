// Package archive maps the dynamically discovered category taxonomy onto a
// remote folder hierarchy and upserts artifacts into it.
package archive

import (
	"context"
	"errors"
)

var (
	// ErrFolderResolution reports a failed folder lookup or creation.
	ErrFolderResolution = errors.New("folder resolution failed")
	// ErrUpload reports a failed file create or update.
	ErrUpload = errors.New("upload failed")
)

// FileMeta describes a remote file. ParentID "" means the store root.
type FileMeta struct {
	Name        string
	ParentID    string
	Description string
	MimeType    string
}

// Store is the remote hierarchical object store surface used by the archiver.
// An empty parentID addresses the store root. Lookups match the exact name and
// ignore trashed entries.
type Store interface {
	FindFolder(ctx context.Context, name, parentID string) (string, bool, error)
	CreateFolder(ctx context.Context, name, parentID string) (string, error)
	FindFile(ctx context.Context, name, parentID string) (string, bool, error)
	CreateFile(ctx context.Context, meta FileMeta, content []byte) (string, error)
	UpdateFile(ctx context.Context, fileID string, meta FileMeta, content []byte) (string, error)
}
