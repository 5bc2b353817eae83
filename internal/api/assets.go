package api

import (
	"io/fs"
	"log"
	"net/http"
	"os"
	"path"
	"strings"
)

// registerAssets serves the web UI from assetsPath. Unknown extension-less
// paths fall back to index.html so client-side routing works after reload.
func registerAssets(mux *http.ServeMux, assetsPath string) {
	if assetsPath == "" {
		return
	}
	if info, err := os.Stat(assetsPath); err != nil || !info.IsDir() {
		log.Printf("[api] assets disabled: %q is not a directory", assetsPath)
		return
	}
	mux.Handle("/", newAssetsHandler(os.DirFS(assetsPath)))
}

func newAssetsHandler(assets fs.FS) http.Handler {
	fileServer := http.FileServerFS(assets)
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet && r.Method != http.MethodHead {
			http.NotFound(w, r)
			return
		}

		assetPath := strings.TrimPrefix(path.Clean("/"+r.URL.Path), "/")
		if assetPath == "" || assetPath == "." {
			assetPath = "index.html"
		}

		if info, err := fs.Stat(assets, assetPath); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, r)
			return
		}

		// Missing requests with file-like paths should remain 404.
		if path.Ext(assetPath) != "" {
			http.NotFound(w, r)
			return
		}

		http.ServeFileFS(w, r, assets, "index.html")
	})
}
