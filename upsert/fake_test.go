package upsert

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"
	"testing"
)

// fileServer serves fixed files and counts GETs per path.
type fileServer struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string][]byte
	gets  map[string]int
}

func newFileServer(t *testing.T, files map[string][]byte) *fileServer {
	t.Helper()
	fs := &fileServer{files: files, gets: map[string]int{}}
	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fs.mu.Lock()
		body, ok := fs.files[r.URL.Path]
		if r.Method == http.MethodGet {
			fs.gets[r.URL.Path]++
		}
		fs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Length", fmt.Sprint(len(body)))
		if path.Ext(r.URL.Path) == ".svg" {
			w.Header().Set("Content-Type", "image/svg+xml")
		} else {
			w.Header().Set("Content-Type", "image/jpeg")
		}
		if r.Method == http.MethodHead {
			return
		}
		w.Write(body)
	}))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fileServer) getCount(p string) int {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return fs.gets[p]
}

// sizeOf answers the processed size of an upload URL served by fs.
func (fs *fileServer) sizeOf(upload string) int64 {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	for p, body := range fs.files {
		if upload == fs.URL+p {
			return int64(len(body))
		}
	}
	return 0
}

func discardLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}
