package server

import (
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"github.com/DekelUsach/Loomi-backend/internal/models"
)

func (s *Server) handleDirectoriesList(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		s.respondError(w, http.StatusNotImplemented, "library watcher not enabled")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"directories": nonNil(s.watcher.Directories())})
}

type directoryAddRequest struct {
	models.DirectoryRequest
	Sync *bool `json:"sync,omitempty"`
}

func (s *Server) handleDirectoriesAdd(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		s.respondError(w, http.StatusNotImplemented, "library watcher not enabled")
		return
	}
	var req directoryAddRequest
	if !s.decodeValid(w, r, &req, nil) {
		return
	}
	abs, err := filepath.Abs(req.Path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	info, err := os.Stat(abs)
	if err != nil {
		if os.IsNotExist(err) {
			s.respondError(w, http.StatusNotFound, "directory not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if !info.IsDir() {
		s.respondError(w, http.StatusBadRequest, "path is not a directory")
		return
	}
	syncExisting := true
	if req.Sync != nil {
		syncExisting = *req.Sync
	}
	s.logger.Debug("library add directory request", zap.String("path", abs), zap.Bool("sync_existing", syncExisting))
	if err := s.watcher.AddDirectory(abs, syncExisting); err != nil {
		s.logger.Error("library add directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusCreated, map[string]string{"path": abs, "status": "added"})
}

func (s *Server) handleDirectoriesRemove(w http.ResponseWriter, r *http.Request) {
	if s.watcher == nil {
		s.respondError(w, http.StatusNotImplemented, "library watcher not enabled")
		return
	}
	path := r.URL.Query().Get("path")
	if path == "" {
		var body models.DirectoryRequest
		if err := json.NewDecoder(r.Body).Decode(&body); err == nil {
			path = body.Path
		}
	}
	if path == "" {
		s.respondError(w, http.StatusBadRequest, "path is required (query or body)")
		return
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid path")
		return
	}
	s.logger.Debug("library remove directory request", zap.String("path", abs))
	if err := s.watcher.RemoveDirectory(abs); err != nil {
		s.logger.Error("library remove directory failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.persistDirectories()
	s.respondJSON(w, http.StatusOK, map[string]string{"path": abs, "status": "removed"})
}

// persistDirectories writes the current directory list back to the config file.
func (s *Server) persistDirectories() {
	if s.configPath == "" {
		return
	}
	s.cfgMu.Lock()
	defer s.cfgMu.Unlock()
	s.cfg.Library.Directories = s.watcher.Directories()
	if err := config.Save(s.configPath, s.cfg); err != nil {
		s.logger.Warn("failed to persist library directories", zap.Error(err))
	}
}
