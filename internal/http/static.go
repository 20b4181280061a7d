package http

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"path"
	"path/filepath"
)

// spaHandler serves files from a built single-page app and falls back to
// index.html so client-side routes resolve.
type spaHandler struct {
	root       http.Dir
	index      string
	fileServer http.Handler
}

func newSPAHandler(dir string) *spaHandler {
	return &spaHandler{
		root:       http.Dir(dir),
		index:      filepath.Join(dir, "index.html"),
		fileServer: http.FileServer(http.Dir(dir)),
	}
}

func (h *spaHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := path.Clean("/" + r.URL.Path)

	f, err := h.root.Open(name)
	if err == nil {
		stat, statErr := f.Stat()
		f.Close()
		if statErr == nil && !stat.IsDir() {
			h.fileServer.ServeHTTP(w, r)
			return
		}
	} else if !errors.Is(err, fs.ErrNotExist) && !errors.Is(err, os.ErrPermission) {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	http.ServeFile(w, r, h.index)
}
