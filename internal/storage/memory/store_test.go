package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitemap-archiver/internal/archive"
)

func TestStoreFolderLookupIsScopedToParent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()

	root, err := store.CreateFolder(ctx, "root", "")
	require.NoError(t, err)
	benh, err := store.CreateFolder(ctx, "benh", root)
	require.NoError(t, err)

	id, found, err := store.FindFolder(ctx, "benh", root)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, benh, id)

	_, found, err = store.FindFolder(ctx, "benh", "")
	require.NoError(t, err)
	require.False(t, found)

	_, found, err = store.FindFile(ctx, "benh", root)
	require.NoError(t, err)
	require.False(t, found, "folders must not match file lookups")
}

func TestStoreCreateAndUpdateFileCopiesContent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	store := NewStore()
	folder, err := store.CreateFolder(ctx, "benh", "")
	require.NoError(t, err)

	payload := []byte("content")
	id, err := store.CreateFile(ctx, archive.FileMeta{Name: "a.html", ParentID: folder, MimeType: "text/html"}, payload)
	require.NoError(t, err)
	payload[0] = 'C'

	obj, ok := store.Object(id)
	require.True(t, ok)
	require.Equal(t, "content", string(obj.Content))
	require.Equal(t, 1, obj.Version)

	updated, err := store.UpdateFile(ctx, id, archive.FileMeta{Description: "again"}, []byte("v2"))
	require.NoError(t, err)
	require.Equal(t, id, updated)

	obj, _ = store.Object(id)
	require.Equal(t, "v2", string(obj.Content))
	require.Equal(t, "again", obj.Description)
	require.Equal(t, "text/html", obj.MimeType)
	require.Equal(t, 2, obj.Version)
	require.Equal(t, Calls{CreateFolder: 1, CreateFile: 1, UpdateFile: 1}, store.Calls())
}

func TestStoreRejectsUnknownParent(t *testing.T) {
	t.Parallel()
	store := NewStore()
	_, err := store.CreateFile(context.Background(), archive.FileMeta{Name: "a", ParentID: "missing"}, nil)
	require.Error(t, err)
	_, err = store.UpdateFile(context.Background(), "missing", archive.FileMeta{}, nil)
	require.Error(t, err)
}
