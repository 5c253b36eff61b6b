// Package assets serves the embedded visitor chat page.
// Files live under static/ and are compiled into the binary via go:embed,
// so the deployable artifact stays a single file.
package assets

import (
	"embed"
	"io/fs"
	"mime"
	"net/http"
	"path"
	"strings"
)

//go:embed static
var staticFS embed.FS

// mimeFromExt returns the MIME type for a file extension.
// Falls back to the Go standard library's MIME type database,
// then to "application/octet-stream" if unknown.
func mimeFromExt(ext string) string {
	switch ext {
	case ".js", ".mjs":
		return "application/javascript"
	case ".css":
		return "text/css; charset=utf-8"
	case ".svg":
		return "image/svg+xml"
	default:
		if ct := mime.TypeByExtension(ext); ct != "" {
			return ct
		}
		return "application/octet-stream"
	}
}

// FileServer returns an http.Handler that serves the embedded chat UI.
// Assets are unhashed, so everything gets no-cache headers; the files are
// tiny and this keeps deploys simple.
func FileServer() http.Handler {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic("assets: failed to create sub filesystem: " + err.Error())
	}
	fileServer := http.FileServer(http.FS(sub))

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ext := strings.ToLower(path.Ext(r.URL.Path))
		if ext != "" {
			w.Header().Set("Content-Type", mimeFromExt(ext))
		}
		w.Header().Set("Cache-Control", "no-cache")

		fileServer.ServeHTTP(w, r)
	})
}
