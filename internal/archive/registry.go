package archive

import (
	"fmt"
	"sync"

	"github.com/gabriel-vasile/mimetype"
)

const (
	MediaTypeZip      = "application/zip"
	MediaTypeSevenZip = "application/x-7z-compressed"
	MediaTypeRar      = "application/x-rar-compressed"
)

// Registry maps media types to iterator factories.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	order     []string
}

func NewRegistry() *Registry {
	return &Registry{
		factories: make(map[string]Factory),
	}
}

// DefaultRegistry returns a registry with the zip, 7z and rar backends.
func DefaultRegistry(opts ...Option) *Registry {
	o := buildOptions(opts)
	r := NewRegistry()
	r.Register(MediaTypeZip, func() Iterator { return newZipIterator(o) })
	r.Register(MediaTypeSevenZip, func() Iterator { return newSevenZipIterator() })
	r.Register(MediaTypeRar, func() Iterator { return newRarIterator() })
	return r
}

// Register binds f to mediaType. The first registration for a key wins;
// later ones are ignored and Register reports false.
func (r *Registry) Register(mediaType string, f Factory) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.factories[mediaType]; exists {
		return false
	}
	r.factories[mediaType] = f
	r.order = append(r.order, mediaType)
	return true
}

// Detect resolves the media type of the file at path from its content.
func (r *Registry) Detect(path string) (*mimetype.MIME, error) {
	m, err := mimetype.DetectFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: detect %s: %w", ErrArchiveRead, path, err)
	}
	return m, nil
}

// Lookup returns the factory for the file at path along with the registry key
// that matched. The detected type is tried first, then its parents.
func (r *Registry) Lookup(path string) (Factory, string, error) {
	m, err := r.Detect(path)
	if err != nil {
		return nil, "", err
	}
	f, key, ok := r.match(m)
	if !ok {
		return nil, "", fmt.Errorf("%w: %s (%s)", ErrUnsupportedMediaType, m.String(), path)
	}
	return f, key, nil
}

// Supports reports whether a factory is registered for mediaType or one of
// its aliases.
func (r *Registry) Supports(mediaType string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if _, ok := r.factories[mediaType]; ok {
		return true
	}
	if m := mimetype.Lookup(mediaType); m != nil {
		for _, key := range r.order {
			if m.Is(key) {
				return true
			}
		}
	}
	return false
}

// Iterator returns a fresh iterator opened on path.
func (r *Registry) Iterator(path string) (Iterator, error) {
	f, _, err := r.Lookup(path)
	if err != nil {
		return nil, err
	}
	it := f()
	if err := it.Open(path); err != nil {
		_ = it.Close()
		return nil, err
	}
	return it, nil
}

func (r *Registry) match(m *mimetype.MIME) (Factory, string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for t := m; t != nil; t = t.Parent() {
		if f, ok := r.factories[t.String()]; ok {
			return f, t.String(), true
		}
		for _, key := range r.order {
			if t.Is(key) {
				return r.factories[key], key, true
			}
		}
	}
	return nil, "", false
}
