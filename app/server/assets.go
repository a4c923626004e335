package server

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
)

// AssetFS serves embedded static files. URLs produced by URL carry a content
// hash so they can be cached forever.
type AssetFS struct {
	serv   http.Handler
	hashes map[string]string
}

func NewAssetFS(fsys fs.FS) (*AssetFS, error) {
	a := &AssetFS{
		serv:   http.FileServer(http.FS(fsys)),
		hashes: map[string]string{},
	}
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		f, err := fsys.Open(p)
		if err != nil {
			return err
		}
		defer f.Close()

		h := sha256.New()
		if _, err := io.Copy(h, f); err != nil {
			return err
		}
		a.hashes[p] = hex.EncodeToString(h.Sum(nil))[:12]
		slog.Debug("static asset", "path", p, "hash", a.hashes[p])
		return nil
	})
	return a, err
}

// URL returns the public path of an asset, eg: /static/app.js?v=1a2b3c4d5e6f
func (a *AssetFS) URL(p string) string {
	if h, ok := a.hashes[p]; ok {
		return "/static/" + p + "?v=" + h
	}
	return "/static/" + p
}

func (a *AssetFS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h, ok := a.hashes[r.URL.Path]; ok {
		w.Header().Set("ETag", `"`+h+`"`)
		if r.URL.Query().Get("v") == h {
			w.Header().Set("Cache-Control", "public, max-age=31536000, immutable")
		}
	}
	a.serv.ServeHTTP(w, r)
}
