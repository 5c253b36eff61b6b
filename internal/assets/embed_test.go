// ABOUTME: Tests for the embedded static file server
// ABOUTME: Verifies content types and cache headers on served assets

package assets

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMimeFromExt(t *testing.T) {
	tests := []struct {
		ext  string
		want string
	}{
		{".js", "application/javascript"},
		{".mjs", "application/javascript"},
		{".css", "text/css; charset=utf-8"},
		{".svg", "image/svg+xml"},
		{".zzz", "application/octet-stream"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, mimeFromExt(tt.ext), "ext %s", tt.ext)
	}
}

func TestFileServer_ServesIndex(t *testing.T) {
	server := httptest.NewServer(FileServer())
	defer server.Close()

	resp, err := http.Get(server.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "no-cache", resp.Header.Get("Cache-Control"))
}

func TestFileServer_ContentTypes(t *testing.T) {
	server := httptest.NewServer(FileServer())
	defer server.Close()

	tests := []struct {
		path string
		want string
	}{
		{"/app.js", "application/javascript"},
		{"/app.css", "text/css; charset=utf-8"},
	}

	for _, tt := range tests {
		resp, err := http.Get(server.URL + tt.path)
		require.NoError(t, err)
		resp.Body.Close()

		assert.Equal(t, http.StatusOK, resp.StatusCode, "path %s", tt.path)
		assert.Equal(t, tt.want, resp.Header.Get("Content-Type"), "path %s", tt.path)
	}
}
