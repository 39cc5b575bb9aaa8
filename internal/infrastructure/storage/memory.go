package storage

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fieldops/backend/internal/application/settlement"
)

var _ settlement.ProofStorage = (*MemoryStorage)(nil)

// MemoryStorage keeps objects in process memory. Used for local development
// when no storage endpoint is configured, and by handler tests.
type MemoryStorage struct {
	mu      sync.RWMutex
	baseURL string
	objects map[string]memoryObject
	now     func() time.Time
}

type memoryObject struct {
	contentType string
	data        []byte
	modified    time.Time
}

// NewMemoryStorage creates an empty store serving URLs under baseURL
func NewMemoryStorage(baseURL string) *MemoryStorage {
	if baseURL == "" {
		baseURL = "http://localhost/receipts"
	}
	return &MemoryStorage{
		baseURL: strings.TrimRight(baseURL, "/"),
		objects: make(map[string]memoryObject),
		now:     time.Now,
	}
}

func (s *MemoryStorage) Upload(_ context.Context, key, contentType string, body io.Reader, _ int64) (string, error) {
	if key == "" {
		return "", errors.New("storage key is required")
	}
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[key] = memoryObject{contentType: contentType, data: data, modified: s.now()}
	s.mu.Unlock()
	return s.PublicURL(key), nil
}

func (s *MemoryStorage) List(_ context.Context, prefix string) ([]settlement.StoredObject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]settlement.StoredObject, 0, len(s.objects))
	for key, obj := range s.objects {
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		out = append(out, settlement.StoredObject{
			Key:          key,
			URL:          s.PublicURL(key),
			Size:         int64(len(obj.data)),
			LastModified: obj.modified,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func (s *MemoryStorage) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	delete(s.objects, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryStorage) PublicURL(key string) string {
	return s.baseURL + "/" + key
}

// Object returns a stored object's bytes and content type
func (s *MemoryStorage) Object(key string) ([]byte, string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	obj, ok := s.objects[key]
	return obj.data, obj.contentType, ok
}

// Touch backdates an object, used to exercise the orphan grace period
func (s *MemoryStorage) Touch(key string, modified time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if obj, ok := s.objects[key]; ok {
		obj.modified = modified
		s.objects[key] = obj
	}
}
