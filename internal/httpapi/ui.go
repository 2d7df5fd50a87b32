package httpapi

import (
	"embed"
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
)

//go:embed reference/*
var referenceEmbedFS embed.FS

var referenceFS fs.FS

func init() {
	sub, err := fs.Sub(referenceEmbedFS, "reference")
	if err != nil {
		referenceFS = nil
		return
	}
	referenceFS = sub
}

// registerReference serves the API reference page and its OpenAPI document.
func (s *Server) registerReference(r chi.Router) {
	if referenceFS == nil {
		return
	}
	files := http.StripPrefix("/reference/", http.FileServer(http.FS(referenceFS)))

	r.Get("/reference", func(w http.ResponseWriter, req *http.Request) {
		page, err := fs.ReadFile(referenceFS, "index.html")
		if err != nil {
			respondError(w, req, err)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(page)
	})
	r.Get("/reference/*", files.ServeHTTP)
}
