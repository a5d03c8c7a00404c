// Package blob stores uploaded images (poem backgrounds) and lists the gallery.
package blob

import (
	"context"
	"fmt"
	"io"
	"path"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sakif/poetry-studio/internal/apperror"
)

const (
	// MaxUploadSize is the largest accepted upload, checked before any network call.
	MaxUploadSize = 5 << 20

	// BackgroundPrefix is where gallery images live inside the bucket.
	BackgroundPrefix = "background/"
)

// Store is implemented by s3blob.Store and Memory.
type Store interface {
	// Put uploads body under key and returns its public URL.
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
	// List returns the public URLs of every object under prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]string, error)
	Delete(ctx context.Context, key string) error
}

// CheckSize rejects empty and oversized uploads.
func CheckSize(size int64) error {
	if size <= 0 {
		return apperror.ValidationFailed("file", "file is empty")
	}
	if size > MaxUploadSize {
		return apperror.ValidationFailed("file",
			fmt.Sprintf("file must be %d MB or smaller", MaxUploadSize>>20))
	}
	return nil
}

// NewKey names an upload with a random UUID, keeping the original extension.
func NewKey(prefix, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	return prefix + uuid.NewString() + ext
}

// KeyFromURL returns the object key for a public URL produced by a store
// whose public base is base. ok is false for URLs outside base.
func KeyFromURL(base, publicURL string) (string, bool) {
	base = strings.TrimRight(base, "/") + "/"
	if !strings.HasPrefix(publicURL, base) {
		return "", false
	}
	return strings.TrimPrefix(publicURL, base), true
}

// Memory keeps objects in process. Used in development and tests.
type Memory struct {
	mu      sync.Mutex
	base    string
	objects map[string][]byte
}

var _ Store = (*Memory)(nil)

func NewMemory(publicBase string) *Memory {
	return &Memory{
		base:    strings.TrimRight(publicBase, "/"),
		objects: make(map[string][]byte),
	}
}

func (m *Memory) Put(_ context.Context, key, _ string, body io.Reader, _ int64) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", fmt.Errorf("blob: reading upload: %w", err)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = data
	return m.base + "/" + key, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	keys := make([]string, 0, len(m.objects))
	for k := range m.objects {
		if strings.HasPrefix(k, prefix) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	urls := make([]string, len(keys))
	for i, k := range keys {
		urls[i] = m.base + "/" + k
	}
	return urls, nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) PublicBaseURL() string { return m.base }
