package storage

import (
	"context"
	"errors"
	"sync"
)

// MemoryStore keeps blobs in process memory. FailNext makes the next n
// Store calls fail.
type MemoryStore struct {
	mu        sync.Mutex
	objects   map[string][]byte
	baseURL   string
	thumbBase string
	failNext  int
}

func NewMemoryStore(baseURL, thumbBase string) *MemoryStore {
	return &MemoryStore{
		objects:   make(map[string][]byte),
		baseURL:   baseURL,
		thumbBase: thumbBase,
	}
}

func (m *MemoryStore) FailNext(n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext = n
}

func (m *MemoryStore) Store(ctx context.Context, upload Upload) (StoredObject, error) {
	if err := ctx.Err(); err != nil {
		return StoredObject{}, uploadFailed(upload.FileName, err)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failNext > 0 {
		m.failNext--
		return StoredObject{}, uploadFailed(upload.FileName, errors.New("injected failure"))
	}

	key := ObjectKey(upload.FileName)
	m.objects[key] = append([]byte(nil), upload.Data...)
	contentType := DetectType(upload.Data, upload.DeclaredType)

	obj := StoredObject{
		Key:          key,
		FileURL:      m.baseURL + "/" + key,
		ThumbnailURL: thumbnailURL(m.thumbBase, m.baseURL, key, contentType),
		FileType:     contentType,
		FileSize:     int64(len(upload.Data)),
	}
	return obj, nil
}

func (m *MemoryStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}
