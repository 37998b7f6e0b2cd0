package dbview

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileStorage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "views.json")
	fs := NewFileStorage(path)

	_, ok := fs.Get("dbview:a")
	assert.False(t, ok)

	require.NoError(t, fs.Set("dbview:a", `{"view":"list"}`))
	require.NoError(t, fs.Set("dbview:b", `{"view":"board"}`))

	v, ok := NewFileStorage(path).Get("dbview:a")
	require.True(t, ok)
	assert.Equal(t, `{"view":"list"}`, v)

	t.Run("corrupt file is replaced on write", func(t *testing.T) {
		require.NoError(t, os.WriteFile(path, []byte("{garbage"), 0o644))
		_, ok := fs.Get("dbview:a")
		assert.False(t, ok)
		require.NoError(t, fs.Set("dbview:c", "x"))
		v, ok := fs.Get("dbview:c")
		require.True(t, ok)
		assert.Equal(t, "x", v)
	})
}

func TestHTTPStorage(t *testing.T) {
	var mu sync.Mutex
	data := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := strings.TrimPrefix(r.URL.Path, "/api/view-configs/")
		mu.Lock()
		defer mu.Unlock()
		switch r.Method {
		case http.MethodGet:
			v, ok := data[key]
			if !ok {
				http.NotFound(w, r)
				return
			}
			_, _ = io.WriteString(w, v)
		case http.MethodPut:
			body, _ := io.ReadAll(r.Body)
			data[key] = string(body)
			w.WriteHeader(http.StatusNoContent)
		}
	}))
	defer srv.Close()

	hs := NewHTTPStorage(srv.URL)
	_, ok := hs.Get("dbview:tasks")
	assert.False(t, ok)

	s := NewStateStore("tasks", hs, cols("a", "b"), nil)
	s.SetView(ViewGallery)
	s.MoveColumn("b", "a")

	cfg, ok := LoadViewConfig(hs, "tasks", []string{"a", "b"})
	require.True(t, ok)
	assert.Equal(t, ViewGallery, cfg.View)
	assert.Equal(t, []string{"b", "a"}, cfg.ColOrder)
}
