package adapter

import (
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"

	"cloud.google.com/go/storage"
	"github.com/m-mizutani/goerr/v2"
	"google.golang.org/api/iterator"
)

// ErrObjectNotFound is returned when the requested object does not exist
var ErrObjectNotFound = goerr.New("object not found")

// Storage is the blob store for agent workspace files and step audit
// logs. Objects are text; keys are slash-separated paths scoped by the
// caller (typically "sessions/<id>/...").
type Storage interface {
	// Write stores text under key, replacing any existing object
	Write(ctx context.Context, key string, text string) error
	// Read loads the text stored under key
	Read(ctx context.Context, key string) (string, error)
	// Delete removes the object under key; deleting a missing object
	// is not an error
	Delete(ctx context.Context, key string) error
	// List returns the keys under the given prefix in sorted order
	List(ctx context.Context, prefix string) ([]string, error)
}

// storageClient implements Storage using Cloud Storage
type storageClient struct {
	bucketName string
	client     *storage.Client
}

// NewStorage creates a new Cloud Storage client
func NewStorage(ctx context.Context, bucketName string) (Storage, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client")
	}

	return &storageClient{
		bucketName: bucketName,
		client:     client,
	}, nil
}

func (s *storageClient) Write(ctx context.Context, key string, text string) error {
	obj := s.client.Bucket(s.bucketName).Object(key)
	w := obj.NewWriter(ctx)
	w.ContentType = "text/plain"

	if _, err := io.WriteString(w, text); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write object", goerr.V("key", key))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize object", goerr.V("key", key))
	}

	return nil
}

func (s *storageClient) Read(ctx context.Context, key string) (string, error) {
	obj := s.client.Bucket(s.bucketName).Object(key)
	r, err := obj.NewReader(ctx)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return "", goerr.Wrap(ErrObjectNotFound, "no such object", goerr.V("key", key))
		}
		return "", goerr.Wrap(err, "failed to open object", goerr.V("key", key))
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return "", goerr.Wrap(err, "failed to read object", goerr.V("key", key))
	}

	return string(data), nil
}

func (s *storageClient) Delete(ctx context.Context, key string) error {
	obj := s.client.Bucket(s.bucketName).Object(key)
	if err := obj.Delete(ctx); err != nil {
		if errors.Is(err, storage.ErrObjectNotExist) {
			return nil
		}
		return goerr.Wrap(err, "failed to delete object", goerr.V("key", key))
	}
	return nil
}

func (s *storageClient) List(ctx context.Context, prefix string) ([]string, error) {
	it := s.client.Bucket(s.bucketName).Objects(ctx, &storage.Query{Prefix: prefix})

	var keys []string
	for {
		attrs, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, goerr.Wrap(err, "failed to list objects", goerr.V("prefix", prefix))
		}
		keys = append(keys, attrs.Name)
	}

	return keys, nil
}

// MemoryStorage is an in-memory Storage for local runs and tests
type MemoryStorage struct {
	mu      sync.RWMutex
	objects map[string]string
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		objects: make(map[string]string),
	}
}

func (s *MemoryStorage) Write(ctx context.Context, key string, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = text
	return nil
}

func (s *MemoryStorage) Read(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	text, ok := s.objects[key]
	if !ok {
		return "", goerr.Wrap(ErrObjectNotFound, "no such object", goerr.V("key", key))
	}
	return text, nil
}

func (s *MemoryStorage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *MemoryStorage) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var keys []string
	for key := range s.objects {
		if strings.HasPrefix(key, prefix) {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}
