package http

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/akozyreva/cloudkeep/internal/middleware"
	"github.com/akozyreva/cloudkeep/internal/models"
	"github.com/akozyreva/cloudkeep/internal/notify"
	"github.com/akozyreva/cloudkeep/internal/service"
	"github.com/akozyreva/cloudkeep/internal/session"
)

// maxUploadMemory bounds how much of a multipart upload is buffered in
// memory before spilling to disk.
const maxUploadMemory = 32 << 20

// Uploader pushes a batch of files into the object store.
type Uploader interface {
	UploadBatch(ctx context.Context, files []service.File) (int, error)
}

// CatalogView is the file catalog surface the handlers consume.
type CatalogView interface {
	Refresh(ctx context.Context) error
	Total() int
	CountByCategory() map[models.Category]int
	Filtered(cat models.Category) []models.StoredObject
	OpenURL(ctx context.Context, key string) (string, error)
	Download(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
}

// FilesHandler serves the file dashboard: upload, categorized listing,
// signed-URL open, download, and delete.
type FilesHandler struct {
	Uploads  Uploader
	Catalog  CatalogView
	Notifier *notify.Hub
}

// Upload handles POST /api/files with a multipart form carrying one or more
// "files" parts.
func (h *FilesHandler) Upload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		http.Error(w, "invalid multipart form", http.StatusBadRequest)
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		http.Error(w, "no files submitted", http.StatusBadRequest)
		return
	}

	files := make([]service.File, 0, len(headers))
	var open []io.Closer
	defer func() {
		for _, c := range open {
			_ = c.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			http.Error(w, "unreadable file part", http.StatusBadRequest)
			return
		}
		open = append(open, f)
		files = append(files, service.File{
			Name:        fh.Filename,
			Content:     f,
			Size:        fh.Size,
			ContentType: fh.Header.Get("Content-Type"),
		})
	}

	n, err := h.Uploads.UploadBatch(r.Context(), files)
	if err != nil {
		h.fail(w, err, "upload failed")
		return
	}

	h.Notifier.Success(fmt.Sprintf("%d file(s) uploaded", n))
	writeJSON(w, http.StatusCreated, map[string]int{"uploaded": n})
}

// List handles GET /api/files?category=... and returns the filtered listing
// together with total and per-category counts.
func (h *FilesHandler) List(w http.ResponseWriter, r *http.Request) {
	cat, err := models.ParseCategory(r.URL.Query().Get("category"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"total":  h.Catalog.Total(),
		"counts": h.Catalog.CountByCategory(),
		"files":  h.Catalog.Filtered(cat),
	})
}

// RefreshList handles POST /api/files/refresh: an explicit re-fetch of the
// authoritative listing, used when the dashboard view mounts.
func (h *FilesHandler) RefreshList(w http.ResponseWriter, r *http.Request) {
	if err := h.Catalog.Refresh(r.Context()); err != nil {
		h.fail(w, err, "refresh failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"total": h.Catalog.Total()})
}

// Open handles GET /api/files/open?key=... and returns a signed URL the
// dashboard opens in a new browsing context.
func (h *FilesHandler) Open(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownKey(w, r)
	if !ok {
		return
	}
	url, err := h.Catalog.OpenURL(r.Context(), key)
	if err != nil {
		h.fail(w, err, "open failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"url": url})
}

// Download handles GET /api/files/download?key=... and streams the object as
// a browser-native attachment save.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownKey(w, r)
	if !ok {
		return
	}
	rc, err := h.Catalog.Download(r.Context(), key)
	if err != nil {
		h.fail(w, err, "download failed")
		return
	}
	defer rc.Close()

	name := key
	if i := strings.LastIndex(name, "/"); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.Index(name, "-"); i >= 0 {
		name = name[i+1:]
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name}))
	_, _ = io.Copy(w, rc)
}

// Delete handles DELETE /api/files?key=....
func (h *FilesHandler) Delete(w http.ResponseWriter, r *http.Request) {
	key, ok := h.ownKey(w, r)
	if !ok {
		return
	}
	if err := h.Catalog.Delete(r.Context(), key); err != nil {
		h.fail(w, err, "delete failed")
		return
	}
	h.Notifier.Success("file deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// ownKey extracts the key parameter and rejects keys outside the requesting
// principal's namespace.
func (h *FilesHandler) ownKey(w http.ResponseWriter, r *http.Request) (string, bool) {
	key := r.URL.Query().Get("key")
	if key == "" {
		http.Error(w, "key is required", http.StatusBadRequest)
		return "", false
	}
	p := middleware.GetPrincipalFromContext(r.Context())
	if p == nil || !strings.HasPrefix(key, p.ID+"/") {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", false
	}
	return key, true
}

// fail converts an action failure into its single terminal notification and
// HTTP status.
func (h *FilesHandler) fail(w http.ResponseWriter, err error, prefix string) {
	if errors.Is(err, session.ErrAuthenticationRequired) {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	h.Notifier.Error(prefix + ": " + err.Error())
	http.Error(w, err.Error(), http.StatusBadGateway)
}
