// Package memory implements an in-memory archive store for development and tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/JakeFAU/sitemap-archiver/internal/archive"
)

// Object is a stored folder or file.
type Object struct {
	ID          string
	Name        string
	ParentID    string
	Description string
	MimeType    string
	Folder      bool
	Content     []byte
	Version     int
}

// Calls counts remote-style operations, letting tests assert idempotence.
type Calls struct {
	FindFolder   int
	CreateFolder int
	FindFile     int
	CreateFile   int
	UpdateFile   int
}

// Store keeps a folder/file tree in memory.
type Store struct {
	mu      sync.Mutex
	seq     int
	objects map[string]*Object
	calls   Calls
}

var _ archive.Store = (*Store)(nil)

// NewStore creates an empty in-memory store.
func NewStore() *Store {
	return &Store{objects: make(map[string]*Object)}
}

// FindFolder looks up a folder by exact name under parentID.
func (s *Store) FindFolder(_ context.Context, name, parentID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.FindFolder++
	id, ok := s.find(name, parentID, true)
	return id, ok, nil
}

// CreateFolder adds a folder under parentID.
func (s *Store) CreateFolder(_ context.Context, name, parentID string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.CreateFolder++
	if err := s.checkParent(parentID); err != nil {
		return "", err
	}
	obj := s.add(Object{Name: name, ParentID: parentID, Folder: true, MimeType: "folder"})
	return obj.ID, nil
}

// FindFile looks up a file by exact name under parentID.
func (s *Store) FindFile(_ context.Context, name, parentID string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.FindFile++
	id, ok := s.find(name, parentID, false)
	return id, ok, nil
}

// CreateFile stores a copy of content as a new file.
func (s *Store) CreateFile(_ context.Context, meta archive.FileMeta, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.CreateFile++
	if err := s.checkParent(meta.ParentID); err != nil {
		return "", err
	}
	obj := s.add(Object{
		Name:        meta.Name,
		ParentID:    meta.ParentID,
		Description: meta.Description,
		MimeType:    meta.MimeType,
		Content:     append([]byte(nil), content...),
		Version:     1,
	})
	return obj.ID, nil
}

// UpdateFile replaces the content and description of an existing file.
func (s *Store) UpdateFile(_ context.Context, fileID string, meta archive.FileMeta, content []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls.UpdateFile++
	obj, ok := s.objects[fileID]
	if !ok || obj.Folder {
		return "", fmt.Errorf("file %q not found", fileID)
	}
	obj.Content = append([]byte(nil), content...)
	obj.Description = meta.Description
	if meta.MimeType != "" {
		obj.MimeType = meta.MimeType
	}
	obj.Version++
	return obj.ID, nil
}

// Calls returns a snapshot of the operation counters.
func (s *Store) Calls() Calls {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

// Object returns a copy of the object with the given id.
func (s *Store) Object(id string) (Object, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	obj, ok := s.objects[id]
	if !ok {
		return Object{}, false
	}
	cp := *obj
	cp.Content = append([]byte(nil), obj.Content...)
	return cp, true
}

// Children lists the objects directly under parentID, sorted by name.
func (s *Store) Children(parentID string) []Object {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Object
	for _, obj := range s.objects {
		if obj.ParentID == parentID {
			out = append(out, *obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func (s *Store) find(name, parentID string, folder bool) (string, bool) {
	for _, obj := range s.objects {
		if obj.Name == name && obj.ParentID == parentID && obj.Folder == folder {
			return obj.ID, true
		}
	}
	return "", false
}

func (s *Store) checkParent(parentID string) error {
	if parentID == "" {
		return nil
	}
	parent, ok := s.objects[parentID]
	if !ok || !parent.Folder {
		return fmt.Errorf("parent folder %q not found", parentID)
	}
	return nil
}

func (s *Store) add(obj Object) *Object {
	s.seq++
	obj.ID = fmt.Sprintf("mem-%d", s.seq)
	stored := obj
	s.objects[obj.ID] = &stored
	return &stored
}
