package http

import (
	"io"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/medrevise/medrevise/internal/storage"
)

// UploadAssetHandler accepts one image, multipart field "file" or the raw
// request body, and returns the generated key plus its serving URL. Type
// and size policing live in the store.
func UploadAssetHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var src io.Reader = r.Body
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			f, _, err := r.FormFile("file")
			if err != nil {
				http.Error(w, "file field required", 400)
				return
			}
			defer f.Close()
			src = f
		}
		key, err := store.Put(src)
		if err != nil {
			fail(w, err)
			return
		}
		writeJSON(w, 201, map[string]string{"key": key, "url": "/assets/" + key})
	}
}

// ServeAssetHandler streams a stored image. Keys are never reused, so
// responses cache forever.
func ServeAssetHandler(store storage.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rc, ctype, err := store.Open(chi.URLParam(r, "*"))
		if err != nil {
			fail(w, err)
			return
		}
		defer rc.Close()
		w.Header().Set("Content-Type", ctype)
		w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		_, _ = io.Copy(w, rc)
	}
}
