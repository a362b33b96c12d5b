// Package memory provides an in-memory blob store used by tests and the
// "memory" development backend.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pubfiles/pubfiles/internal/blob"
)

type object struct {
	content     []byte
	contentType string
	uploadedAt  time.Time
}

// Store holds objects in a mutex-guarded map. Locators use the scheme
// mem://<bucket>/<key>.
type Store struct {
	mu      sync.RWMutex
	bucket  string
	objects map[string]object
	now     func() time.Time
}

// New creates an empty store.
func New(bucket string) *Store {
	if bucket == "" {
		bucket = "pubfiles"
	}
	return &Store{
		bucket:  bucket,
		objects: make(map[string]object),
		now:     time.Now,
	}
}

// SetClock overrides the upload timestamp source. Tests only.
func (s *Store) SetClock(now func() time.Time) { s.now = now }

func (s *Store) locator(pathname string) string {
	return "mem://" + s.bucket + "/" + pathname
}

// Pathname derives the store key from a locator.
func (s *Store) Pathname(locator string) (string, error) {
	prefix := "mem://" + s.bucket + "/"
	if !strings.HasPrefix(locator, prefix) {
		return "", fmt.Errorf("locator %q not in bucket %q", locator, s.bucket)
	}
	return strings.TrimPrefix(locator, prefix), nil
}

// List returns all objects sorted by pathname.
func (s *Store) List(ctx context.Context) ([]blob.ObjectInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]blob.ObjectInfo, 0, len(s.objects))
	for pathname, obj := range s.objects {
		infos = append(infos, blob.ObjectInfo{
			Pathname:   pathname,
			Locator:    s.locator(pathname),
			Size:       int64(len(obj.content)),
			UploadedAt: obj.uploadedAt,
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Pathname < infos[j].Pathname })
	return infos, nil
}

// Get returns the content at locator, or *blob.NotFoundError.
func (s *Store) Get(ctx context.Context, locator string) ([]byte, error) {
	pathname, err := s.Pathname(locator)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	obj, ok := s.objects[pathname]
	if !ok {
		return nil, &blob.NotFoundError{Locator: locator}
	}
	out := make([]byte, len(obj.content))
	copy(out, obj.content)
	return out, nil
}

// Put stores content under pathname, overwriting any existing object.
func (s *Store) Put(ctx context.Context, pathname string, content []byte, contentType string) (blob.PutResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(content))
	copy(stored, content)
	s.objects[pathname] = object{
		content:     stored,
		contentType: contentType,
		uploadedAt:  s.now(),
	}
	return blob.PutResult{Pathname: pathname, Locator: s.locator(pathname)}, nil
}

// Delete removes the object at locator. Deleting a missing object
// succeeds.
func (s *Store) Delete(ctx context.Context, locator string) error {
	pathname, err := s.Pathname(locator)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.objects, pathname)
	return nil
}

// ContentType returns the stored content type for pathname. Tests only.
func (s *Store) ContentType(pathname string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.objects[pathname].contentType
}

var _ blob.Store = (*Store)(nil)
