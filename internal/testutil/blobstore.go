package testutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rohits-web03/peerlink/internal/repositories"
)

type Object struct {
	Data        []byte
	ContentType string
}

// MemoryBlobStore is an in-memory object store whose presigned URLs are
// served by a local HTTP server and expire like real ones.
type MemoryBlobStore struct {
	mu      sync.Mutex
	objects map[string]Object
	server  *httptest.Server

	// Now is used for presign expiry; defaults to time.Now.
	Now func() time.Time

	PutErr    error
	DeleteErr error
	PutCalls  int
	// BeforeDelete, when set, runs before each Delete without the store lock held.
	BeforeDelete func(key string)
}

func NewMemoryBlobStore(t *testing.T) *MemoryBlobStore {
	t.Helper()
	s := &MemoryBlobStore{
		objects: make(map[string]Object),
		Now:     time.Now,
	}
	s.server = httptest.NewServer(http.HandlerFunc(s.serve))
	t.Cleanup(s.server.Close)
	return s
}

func (s *MemoryBlobStore) Put(_ context.Context, key string, body io.Reader, size int64, contentType string) error {
	s.mu.Lock()
	s.PutCalls++
	putErr := s.PutErr
	s.mu.Unlock()
	if putErr != nil {
		return putErr
	}

	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	if int64(len(data)) != size {
		return fmt.Errorf("size mismatch: declared %d, got %d", size, len(data))
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = Object{Data: data, ContentType: contentType}
	return nil
}

func (s *MemoryBlobStore) Delete(_ context.Context, key string) error {
	s.mu.Lock()
	hook := s.BeforeDelete
	s.mu.Unlock()
	if hook != nil {
		hook(key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.DeleteErr != nil {
		return s.DeleteErr
	}
	delete(s.objects, key)
	return nil
}

func (s *MemoryBlobStore) PresignDownload(_ context.Context, key, filename string, expires time.Duration) (string, error) {
	if expires <= 0 {
		return "", errors.New("expires must be positive")
	}
	q := url.Values{}
	q.Set("expires", strconv.FormatInt(s.Now().Add(expires).Unix(), 10))
	q.Set("ttl", strconv.FormatInt(int64(expires/time.Second), 10))
	q.Set("response-content-disposition", repositories.ContentDisposition(filename))
	q.Set("response-content-type", "application/octet-stream")
	return s.server.URL + "/" + url.PathEscape(key) + "?" + q.Encode(), nil
}

func (s *MemoryBlobStore) Has(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[key]
	return ok
}

func (s *MemoryBlobStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

func (s *MemoryBlobStore) serve(w http.ResponseWriter, r *http.Request) {
	exp, err := strconv.ParseInt(r.URL.Query().Get("expires"), 10, 64)
	if err != nil || s.Now().Unix() > exp {
		http.Error(w, "Request has expired", http.StatusForbidden)
		return
	}

	key := strings.TrimPrefix(r.URL.Path, "/")
	s.mu.Lock()
	obj, ok := s.objects[key]
	s.mu.Unlock()
	if !ok {
		http.Error(w, "NoSuchKey", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", r.URL.Query().Get("response-content-type"))
	w.Header().Set("Content-Disposition", r.URL.Query().Get("response-content-disposition"))
	_, _ = w.Write(obj.Data)
}
