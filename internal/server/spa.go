package server

import (
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"

	"github.com/rs/zerolog"
)

var mimeTypes = map[string]string{
	".html":  "text/html",
	".js":    "application/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
}

// spaHandler serves built frontend files and falls back to index.html for client-side routes.
type spaHandler struct {
	dir   string
	index []byte
	log   zerolog.Logger
}

// newSPAHandler reads index.html once; later edits to it need a restart.
func newSPAHandler(dir string, log zerolog.Logger) (*spaHandler, error) {
	index, err := os.ReadFile(filepath.Join(dir, "index.html"))
	if err != nil {
		return nil, fmt.Errorf("failed to read index.html: %w", err)
	}
	return &spaHandler{dir: dir, index: index, log: log}, nil
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	// Clean against root so ".." can never leave dir.
	clean := path.Clean("/" + r.URL.Path)
	ext := path.Ext(clean)

	if clean != "/" && ext != "" && h.serveFile(w, r, clean, ext) {
		return
	}

	w.Header().Set("Content-Type", "text/html")
	if _, err := w.Write(h.index); err != nil {
		h.log.Error().Err(err).Msg("Failed to write index.html response")
	}
}

func (h *spaHandler) serveFile(w http.ResponseWriter, r *http.Request, clean, ext string) bool {
	full := filepath.Join(h.dir, filepath.FromSlash(clean))

	f, err := os.Open(full)
	if err != nil {
		return false
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil || info.IsDir() {
		return false
	}

	contentType, ok := mimeTypes[ext]
	if !ok {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
	return true
}
