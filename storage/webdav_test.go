package storage

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/webdav"
)

func newTestWebDAV(t *testing.T) *WebDAVStorage {
	t.Helper()
	srv := httptest.NewServer(&webdav.Handler{
		FileSystem: webdav.NewMemFS(),
		LockSystem: webdav.NewMemLS(),
	})
	t.Cleanup(srv.Close)

	s, err := NewWebDAVStorage(WebDAVConfig{URL: srv.URL, RootPath: "/annotator/", Timeout: 5 * time.Second})
	require.NoError(t, err)
	return s
}

func TestWebDAVStorageValidation(t *testing.T) {
	_, err := NewWebDAVStorage(WebDAVConfig{URL: ""})
	assert.Error(t, err)

	_, err = NewWebDAVStorage(WebDAVConfig{URL: "http://127.0.0.1:1", Timeout: time.Second})
	assert.Error(t, err)
}

func TestWebDAVStorage_FullPath(t *testing.T) {
	s, err := newWebDAVClient(WebDAVConfig{URL: "https://dav.example.com/", RootPath: "/data/"})
	require.NoError(t, err)
	assert.Equal(t, "/data/images/a.jpg", s.fullPath("images/a.jpg"))
	assert.Equal(t, "webdav:https://dav.example.com/data", s.Name())

	s, err = newWebDAVClient(WebDAVConfig{URL: "https://dav.example.com"})
	require.NoError(t, err)
	assert.Equal(t, "/images/a.jpg", s.fullPath("/images/a.jpg"))
}

func TestWebDAVStorage_RoundTrip(t *testing.T) {
	s := newTestWebDAV(t)
	ctx := context.Background()

	require.NoError(t, s.SaveWithContext(ctx, "images/p1/a.jpg", strings.NewReader("jpeg")))
	require.NoError(t, s.SaveWithContext(ctx, "images/p2/b.png", strings.NewReader("png")))

	exists, err := s.Exists(ctx, "images/p1/a.jpg")
	require.NoError(t, err)
	assert.True(t, exists)

	r, err := s.GetWithContext(ctx, "images/p1/a.jpg")
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "jpeg", string(data))

	var keys []string
	require.NoError(t, s.List(ctx, "", func(id string) error {
		keys = append(keys, id)
		return nil
	}))
	sort.Strings(keys)
	assert.Equal(t, []string{"images/p1/a.jpg", "images/p2/b.png"}, keys)

	require.NoError(t, s.DeleteWithContext(ctx, "images/p1/a.jpg"))
	err = s.DeleteWithContext(ctx, "images/p1/a.jpg")
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.GetWithContext(ctx, "images/p1/a.jpg")
	assert.True(t, errors.Is(err, ErrNotFound))

	assert.NoError(t, s.Health(ctx))
}

func TestWebDAVStorage_ContextCancelled(t *testing.T) {
	s := newTestWebDAV(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := s.SaveWithContext(ctx, "images/a.jpg", strings.NewReader("x"))
	assert.ErrorIs(t, err, context.Canceled)
}
