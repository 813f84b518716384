package routes

import (
	"net/http"
	"path"
	"strings"

	"gitlab.com/ellera/guildhall/internal/graph"
)

var allowedImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// PostImage accepts a single multipart image, bounded by the configured
// max size, and returns the durable URL the GraphQL mutations take as
// imageUrl.
func (routes *Routes) PostImage(w http.ResponseWriter, r *http.Request) *AppError {
	if _, ok := graph.IdentityFromContext(r.Context()); !ok {
		return &AppError{Code: http.StatusUnauthorized, Message: "Not authorized"}
	}

	r.Body = http.MaxBytesReader(w, r.Body, routes.envConfig.UploadMaxBytes)
	if err := r.ParseMultipartForm(routes.envConfig.UploadMaxBytes); err != nil {
		return &AppError{Code: http.StatusRequestEntityTooLarge, Message: "Image too large", Cause: err}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		return &AppError{Code: http.StatusBadRequest, Message: "Image is required", Cause: err}
	}
	defer file.Close()

	contentType := strings.TrimSpace(strings.Split(header.Header.Get("Content-Type"), ";")[0])
	if !allowedImageTypes[contentType] {
		return &AppError{Code: http.StatusBadRequest, Message: "Unsupported image type"}
	}

	url, err := routes.images.Store(r.Context(), header.Filename, file)
	if err != nil {
		return &AppError{Cause: err}
	}

	renderJSON(w, http.StatusCreated, map[string]string{"url": url})
	return nil
}

// GetImage serves stored images. Only flat filenames are accepted;
// anything that still contains a separator after cleaning is rejected.
func (routes *Routes) GetImage(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimPrefix(r.URL.Path, "/images/")
	name = path.Clean(name)
	if name == "." || strings.ContainsAny(name, "/\\") {
		http.NotFound(w, r)
		return
	}
	http.StripPrefix("/images/", http.FileServer(http.Dir(routes.envConfig.UploadDir))).ServeHTTP(w, r)
}
