package internal

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"shareboard/internal/logging"
	"shareboard/internal/storage"
)

// uploadsURLPrefix is where stored files are served from.
const uploadsURLPrefix = "/uploads/"

// HandleAddImage accepts a multipart image, stores the file, and appends an
// image content item referencing it.
func (s *Server) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	storedName, originalName, _, err := s.saveMultipartFile(w, r, "image")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	item, err := s.store.AddContent(r.Context(), storage.KindImage, originalName, uploadsURLPrefix+storedName)
	if err != nil {
		// keep disk and store consistent when the append is rejected.
		_ = os.Remove(filepath.Join(s.opts.UploadDir, storedName))
		s.storeError(w, err)
		return
	}
	s.metrics.ContentOps.WithLabelValues("add").Inc()
	s.hub.BroadcastAll(EventSyncUpdate, item)
	writeJSON(w, http.StatusCreated, item)
}

// HandleUploadFile accepts a multipart file and tracks it in the upload
// record collection, independent of the content log.
func (s *Server) HandleUploadFile(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	storedName, originalName, size, err := s.saveMultipartFile(w, r, "file")
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	record, err := s.store.AddUpload(r.Context(), uploadsURLPrefix+storedName, originalName, size)
	if err != nil {
		_ = os.Remove(filepath.Join(s.opts.UploadDir, storedName))
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (s *Server) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListUploads(r.Context())
	if err != nil {
		s.storeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// HandleDeleteUpload removes the record and its backing file. The url path
// variable arrives percent-encoded from the frontend.
func (s *Server) HandleDeleteUpload(w http.ResponseWriter, r *http.Request) {
	if !s.allowWrite(w, r) {
		return
	}
	raw := pathVar(r, "url")
	fileURL, err := url.PathUnescape(raw)
	if err != nil {
		fileURL = raw
	}
	if !strings.HasPrefix(fileURL, "/") {
		fileURL = "/" + fileURL
	}
	deleted, err := s.store.DeleteUpload(r.Context(), fileURL)
	if err != nil {
		s.storeError(w, err)
		return
	}
	if !deleted {
		writeError(w, http.StatusNotFound, errors.New("upload not found"))
		return
	}
	path := filepath.Join(s.opts.UploadDir, filepath.Base(fileURL))
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		logging.Log.Warn("remove uploaded file", "path", path, "err", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "upload deleted"})
}

// saveMultipartFile streams the named form field to the upload directory
// under a collision-proof name and returns the stored name, the original
// name, and the byte count.
func (s *Server) saveMultipartFile(w http.ResponseWriter, r *http.Request, field string) (string, string, int64, error) {
	r.Body = http.MaxBytesReader(w, r.Body, s.opts.MaxFileSize)
	if err := r.ParseMultipartForm(s.opts.MaxFileSize); err != nil {
		return "", "", 0, fmt.Errorf("file too large or malformed form: %w", err)
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return "", "", 0, fmt.Errorf("form field %q is required", field)
	}
	defer file.Close()

	safeName := sanitizeFileName(header.Filename)
	storedName := uuid.NewString() + "-" + safeName
	if err := os.MkdirAll(s.opts.UploadDir, 0o755); err != nil {
		return "", "", 0, fmt.Errorf("create upload dir: %w", err)
	}
	dest, err := os.Create(filepath.Join(s.opts.UploadDir, storedName))
	if err != nil {
		return "", "", 0, fmt.Errorf("create file: %w", err)
	}
	defer dest.Close()
	written, err := io.Copy(dest, file)
	if err != nil {
		os.Remove(dest.Name())
		return "", "", 0, fmt.Errorf("save file: %w", err)
	}
	return storedName, header.Filename, written, nil
}

// sanitizeFileName strips path separators and other hostile characters from
// a client-supplied name.
func sanitizeFileName(name string) string {
	name = filepath.Base(name)
	name = strings.ReplaceAll(name, "/", "_")
	name = strings.ReplaceAll(name, "\\", "_")
	name = strings.ReplaceAll(name, "\x00", "")
	name = strings.TrimSpace(name)
	if name == "" || name == "." || name == ".." {
		return "unnamed"
	}
	return name
}
