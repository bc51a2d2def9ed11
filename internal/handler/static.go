package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
)

// SPAHandler serves a single-page app build: real files when they
// exist, index.html for client-routed paths, and a hard 404 for API
// paths that fell through the router.
type SPAHandler struct {
	staticDir string
	prefix    string
	indexFile string
}

func NewSPAHandler(staticDir, prefix string) *SPAHandler {
	return &SPAHandler{
		staticDir: staticDir,
		prefix:    prefix,
		indexFile: "index.html",
	}
}

func (h *SPAHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := chi.URLParam(r, "*")
	if path == "" {
		path = strings.TrimPrefix(r.URL.Path, h.prefix)
	}
	path = strings.TrimPrefix(path, "/")

	if path == "api" || strings.HasPrefix(path, "api/") {
		http.NotFound(w, r)
		return
	}

	// ServeFile refuses any URL still containing "..", so serve under
	// the cleaned path. Cleaning rooted at "/" also keeps traversal
	// attempts inside the static dir.
	clean := filepath.Clean("/" + path)
	r.URL.Path = clean

	filePath := filepath.Join(h.staticDir, clean)

	info, err := os.Stat(filePath)
	if err == nil && !info.IsDir() {
		http.ServeFile(w, r, filePath)
		return
	}

	indexPath := filepath.Join(h.staticDir, h.indexFile)
	if _, err := os.Stat(indexPath); err != nil {
		http.NotFound(w, r)
		return
	}

	r.URL.Path = "/"
	http.ServeFile(w, r, indexPath)
}

func StaticFileServer(staticDir, prefix string) http.Handler {
	return NewSPAHandler(staticDir, prefix)
}
