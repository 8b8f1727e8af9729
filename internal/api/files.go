package api

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/erazemk/idear/internal/access"
	"github.com/erazemk/idear/internal/backup"
	"github.com/erazemk/idear/internal/store"
)

type fileKind string

const (
	kindGeneral    fileKind = "items"
	kindElectrical fileKind = "electrical"
)

// maxUploadSize limits multipart CSV uploads.
const maxUploadSize = 10 << 20

// FilesHandler serves CSV backups, restores and the server log.
type FilesHandler struct {
	authenticator
	BackupDir string
	LogPath   string
}

func (h *FilesHandler) admin(w http.ResponseWriter, r *http.Request) bool {
	if h.BackupDir == "" {
		jsonError(w, http.StatusNotFound, "file storage is disabled")
		return false
	}
	_, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelAdmin)
	return ok
}

// prefix is the file name prefix of backups of a kind.
func (k fileKind) prefix() string { return string(k) + "-" }

// export writes the current table contents as CSV.
func (h *FilesHandler) export(r *http.Request, kind fileKind, w io.Writer) error {
	if kind == kindElectrical {
		active, err := store.ListActive(r.Context(), h.DB, false)
		if err != nil {
			return err
		}
		assemblies, err := store.ListActive(r.Context(), h.DB, true)
		if err != nil {
			return err
		}
		passive, err := store.ListPassive(r.Context(), h.DB, "")
		if err != nil {
			return err
		}
		all := append(active, assemblies...)
		for _, p := range passive {
			all = append(all, p)
		}
		return backup.WriteElectrical(w, all)
	}

	items, err := store.ListItems(r.Context(), h.DB)
	if err != nil {
		return err
	}
	return backup.WriteItems(w, items)
}

// load parses CSV and imports it, replacing the table when replace is set.
func (h *FilesHandler) load(r *http.Request, kind fileKind, src io.Reader, replace bool) (int, error) {
	if kind == kindElectrical {
		items, err := backup.ReadElectrical(src)
		if err != nil {
			return 0, err
		}
		return len(items), store.ImportElectrical(r.Context(), h.DB, items, replace)
	}
	items, err := backup.ReadItems(src)
	if err != nil {
		return 0, err
	}
	return len(items), store.ImportItems(r.Context(), h.DB, items, replace)
}

// Backup returns a handler that snapshots one table into BackupDir.
func (h *FilesHandler) Backup(kind fileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.admin(w, r) {
			return
		}

		var buf bytes.Buffer
		if err := h.export(r, kind, &buf); err != nil {
			slog.Error("failed to export table", "kind", kind, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to create backup")
			return
		}

		name := kind.prefix() + time.Now().UTC().Format("20060102-150405") + ".csv"
		if err := os.MkdirAll(h.BackupDir, 0o755); err != nil {
			jsonError(w, http.StatusInternalServerError, "failed to create backup")
			return
		}
		if err := os.WriteFile(filepath.Join(h.BackupDir, name), buf.Bytes(), 0o644); err != nil {
			slog.Error("failed to write backup", "file", name, "error", err)
			jsonError(w, http.StatusInternalServerError, "failed to create backup")
			return
		}

		slog.Info("backup created", "file", name)
		jsonResponse(w, http.StatusOK, map[string]string{"message": "backup created", "file": name})
	}
}

// List returns a handler listing backups of one kind, newest first.
func (h *FilesHandler) List(kind fileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.admin(w, r) {
			return
		}

		entries, err := os.ReadDir(h.BackupDir)
		if err != nil && !os.IsNotExist(err) {
			jsonError(w, http.StatusInternalServerError, "failed to list files")
			return
		}
		files := []string{}
		for _, e := range entries {
			if !e.IsDir() && strings.HasPrefix(e.Name(), kind.prefix()) && strings.HasSuffix(e.Name(), ".csv") {
				files = append(files, e.Name())
			}
		}
		// Timestamps in the names sort lexically.
		sort.Sort(sort.Reverse(sort.StringSlice(files)))
		jsonResponse(w, http.StatusOK, map[string][]string{"files": files})
	}
}

// backupPath resolves a client supplied file name inside BackupDir.
func (h *FilesHandler) backupPath(name string) (string, error) {
	base := filepath.Base(name)
	if name == "" || base != name || base == "." || base == ".." {
		return "", fmt.Errorf("invalid file name %q", name)
	}
	return filepath.Join(h.BackupDir, base), nil
}

// Restore returns a handler that replaces one table with a stored backup.
func (h *FilesHandler) Restore(kind fileKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.admin(w, r) {
			return
		}

		name := r.URL.Query().Get("file")
		path, err := h.backupPath(name)
		if err != nil || !strings.HasPrefix(name, kind.prefix()) {
			jsonError(w, http.StatusBadRequest, "invalid file name")
			return
		}
		f, err := os.Open(path)
		if err != nil {
			jsonError(w, http.StatusNotFound, "file not found")
			return
		}
		defer f.Close()

		n, err := h.load(r, kind, f, true)
		if err != nil {
			slog.Error("failed to restore backup", "file", name, "error", err)
			jsonError(w, http.StatusBadRequest, "failed to restore backup: "+err.Error())
			return
		}

		slog.Info("backup restored", "file", name, "items", n)
		jsonMessage(w, fmt.Sprintf("restored %d items", n))
	}
}

// Import returns a handler that loads an uploaded CSV file. With replace
// the table is emptied first, otherwise rows are appended.
func (h *FilesHandler) Import(kind fileKind, replace bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !h.admin(w, r) {
			return
		}

		if err := r.ParseMultipartForm(maxUploadSize); err != nil {
			jsonError(w, http.StatusBadRequest, "invalid multipart form")
			return
		}
		f, header, err := r.FormFile("file")
		if err != nil {
			jsonError(w, http.StatusBadRequest, "file is required")
			return
		}
		defer f.Close()

		n, err := h.load(r, kind, f, replace)
		if err != nil {
			slog.Error("failed to import file", "file", header.Filename, "error", err)
			jsonError(w, http.StatusBadRequest, "failed to import file: "+err.Error())
			return
		}

		slog.Info("file imported", "kind", kind, "file", header.Filename, "items", n, "replace", replace)
		jsonMessage(w, fmt.Sprintf("imported %d items", n))
	}
}

// Download streams a stored backup.
func (h *FilesHandler) Download(w http.ResponseWriter, r *http.Request) {
	if !h.admin(w, r) {
		return
	}

	name := r.URL.Query().Get("fileName")
	path, err := h.backupPath(name)
	if err != nil {
		jsonError(w, http.StatusBadRequest, "invalid file name")
		return
	}
	f, err := os.Open(path)
	if err != nil {
		jsonError(w, http.StatusNotFound, "file not found")
		return
	}
	defer f.Close()

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	if _, err := io.Copy(w, f); err != nil {
		slog.Error("failed to stream file", "file", name, "error", err)
	}
}

// Log returns the server log.
func (h *FilesHandler) Log(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.requireLevel(w, tokenFrom(r, ""), access.LevelAdmin); !ok {
		return
	}
	if h.LogPath == "" {
		jsonResponse(w, http.StatusOK, map[string]string{"log": ""})
		return
	}
	data, err := os.ReadFile(h.LogPath)
	if err != nil && !os.IsNotExist(err) {
		jsonError(w, http.StatusInternalServerError, "failed to read log")
		return
	}
	jsonResponse(w, http.StatusOK, map[string]string{"log": string(data)})
}
