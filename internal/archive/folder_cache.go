package archive

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/JakeFAU/sitemap-archiver/internal/metrics"
)

type folderKey struct {
	parentID string
	name     string
}

func (k folderKey) String() string {
	return k.parentID + "_" + k.name
}

// FolderCache resolves (parent, name) pairs to folder ids, creating missing
// folders. Each key is looked up and created at most once per cache lifetime,
// including under concurrent callers.
type FolderCache struct {
	store  Store
	logger *zap.Logger

	mu      sync.RWMutex
	entries map[folderKey]string
	group   singleflight.Group
}

// NewFolderCache builds an empty cache over store.
func NewFolderCache(store Store, logger *zap.Logger) *FolderCache {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FolderCache{
		store:   store,
		logger:  logger,
		entries: make(map[folderKey]string),
	}
}

// Resolve returns the id of folder name under parentID ("" = store root).
// The shared lookup for a key is detached from any one caller's cancellation;
// a caller whose ctx ends stops waiting without failing the other waiters.
func (c *FolderCache) Resolve(ctx context.Context, name, parentID string) (string, error) {
	key := folderKey{parentID: parentID, name: name}
	if id, ok := c.lookup(key); ok {
		return id, nil
	}
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.String(), func() (any, error) {
		if id, ok := c.lookup(key); ok {
			return id, nil
		}
		id, err := c.findOrCreate(shared, name, parentID)
		if err != nil {
			return "", err
		}
		c.mu.Lock()
		c.entries[key] = id
		c.mu.Unlock()
		return id, nil
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return "", res.Err
		}
		id, _ := res.Val.(string)
		return id, nil
	case <-ctx.Done():
		return "", fmt.Errorf("%w: resolve folder %q: %w", ErrFolderResolution, name, ctx.Err())
	}
}

func (c *FolderCache) lookup(key folderKey) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	id, ok := c.entries[key]
	return id, ok
}

func (c *FolderCache) findOrCreate(ctx context.Context, name, parentID string) (string, error) {
	id, found, err := c.store.FindFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("%w: find folder %q: %w", ErrFolderResolution, name, err)
	}
	if found {
		c.logger.Debug("found existing folder", zap.String("folder", name), zap.String("id", id))
		return id, nil
	}
	id, err = c.store.CreateFolder(ctx, name, parentID)
	if err != nil {
		return "", fmt.Errorf("%w: create folder %q: %w", ErrFolderResolution, name, err)
	}
	metrics.ObserveFolderCreated()
	c.logger.Info("created folder", zap.String("folder", name), zap.String("parent_id", parentID), zap.String("id", id))
	return id, nil
}

// Len reports the number of cached folders.
func (c *FolderCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Names returns the cached folder names, sorted.
func (c *FolderCache) Names() []string {
	c.mu.RLock()
	names := make([]string, 0, len(c.entries))
	for key := range c.entries {
		names = append(names, key.name)
	}
	c.mu.RUnlock()
	sort.Strings(names)
	return names
}
