package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/ingest"
	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/internal/qa"
	"github.com/DekelUsach/Loomi-backend/internal/storage"
	"github.com/DekelUsach/Loomi-backend/pkg/utils"
)

// User-facing messages for input errors.
const (
	msgMissingFile       = `Archivo requerido en el campo "file"`
	msgUnsupportedFormat = "Formato no soportado. Use .pdf o .docx"
	msgInsufficientText  = "No se pudo extraer texto suficiente del archivo."
	msgUploadFailed      = "No se pudo guardar el texto"
)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	if s.images == nil {
		http.NotFound(w, r)
		return
	}
	path, err := s.images.Open("/images/" + chi.URLParam(r, "name"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	http.ServeFile(w, r, path)
}

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	maxBytes := int64(s.cfg.Server.MaxUploadMB) << 20
	if maxBytes <= 0 {
		maxBytes = 25 << 20
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxBytes+1<<20)
	if err := r.ParseMultipartForm(8 << 20); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			s.respondError(w, http.StatusRequestEntityTooLarge, "archivo demasiado grande")
			return
		}
		s.respondError(w, http.StatusBadRequest, msgMissingFile)
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.respondError(w, http.StatusBadRequest, msgMissingFile)
		return
	}
	defer file.Close()
	if header.Size > maxBytes {
		s.respondError(w, http.StatusRequestEntityTooLarge, "archivo demasiado grande")
		return
	}
	content, err := io.ReadAll(file)
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "no se pudo leer el archivo")
		return
	}

	token := strings.TrimSpace(r.FormValue("progress_token"))
	if token == "" {
		token = strings.TrimSpace(r.FormValue("progressToken"))
	}
	if token == "" {
		token = progress.NewToken()
	}
	s.logger.Debug("upload request",
		zap.String("file", header.Filename),
		zap.Int("size", len(content)),
		zap.String("progress_token", token))

	res, err := s.uploader.Upload(r.Context(), ingest.Upload{
		Content:       content,
		FileName:      header.Filename,
		Title:         r.FormValue("title"),
		OwnerID:       ownerFrom(r.Context()),
		ProgressToken: token,
	})
	switch {
	case errors.Is(err, ingest.ErrMissingFile):
		s.respondError(w, http.StatusBadRequest, msgMissingFile)
		return
	case errors.Is(err, ingest.ErrUnsupportedFormat):
		s.respondError(w, http.StatusBadRequest, msgUnsupportedFormat)
		return
	case errors.Is(err, ingest.ErrInsufficientText):
		s.respondError(w, http.StatusUnprocessableEntity, msgInsufficientText)
		return
	case err != nil:
		s.logger.Error("upload failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, msgUploadFailed)
		return
	}

	s.respondJSON(w, http.StatusCreated, models.UploadResponse{
		Message:         "Texto cargado e indexado",
		TextID:          res.DocumentID,
		Library:         res.UserTextID == 0,
		LibraryTextID:   res.LibraryTextID,
		Title:           res.Title,
		ParagraphsCount: res.ParagraphCount,
		Indexed:         res.Indexed,
		ProgressToken:   token,
	})
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	var req models.AskRequest
	if !s.decodeValid(w, r, &req, req.Normalize) {
		return
	}
	story := req.StoryID()
	s.logger.Debug("ask request", zap.String("story_id", story), zap.String("question", utils.Truncate(req.Question, 120)))
	ans := s.answerer.Ask(r.Context(), story, req.Question)
	if ans.Degraded {
		s.logger.Info("degraded answer", zap.String("story_id", story), zap.String("reason", ans.Reason))
	}
	s.respondJSON(w, http.StatusOK, models.AskResponse{Answer: ans.Text, Degraded: ans.Degraded})
}

func (s *Server) handleQuiz(w http.ResponseWriter, r *http.Request) {
	var req models.QuizRequest
	if !s.decodeValid(w, r, &req, req.Normalize) {
		return
	}
	quiz, err := s.answerer.GenerateQuiz(r.Context(), qa.QuizRequest{DocumentID: req.StoryID(), Text: req.Text})
	switch {
	case errors.Is(err, qa.ErrNoText):
		s.respondError(w, http.StatusBadRequest, "no hay texto para generar el cuestionario")
		return
	case err != nil:
		s.logger.Warn("quiz generation failed", zap.Error(err))
		s.respondError(w, http.StatusBadGateway, "no se pudo generar el cuestionario")
		return
	}
	s.respondJSON(w, http.StatusOK, models.QuizResponse{Quiz: quiz})
}

func (s *Server) handleProgress(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		s.respondError(w, http.StatusNotFound, "progress token not found")
		return
	}
	rec, err := s.tracker.Read(chi.URLParam(r, "token"))
	if err != nil {
		s.respondError(w, http.StatusNotFound, "progress token not found")
		return
	}
	s.respondJSON(w, http.StatusOK, rec)
}

func (s *Server) handleListUserTexts(w http.ResponseWriter, r *http.Request) {
	owner := ownerFrom(r.Context())
	if owner == "" {
		s.respondError(w, http.StatusUnauthorized, "No autenticado")
		return
	}
	texts, err := s.store.ListUserTexts(r.Context(), owner)
	if err != nil {
		s.logger.Error("list user texts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"texts": nonNil(texts)})
}

func (s *Server) handleUserParagraphs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	text, err := s.store.GetUserText(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "text not found")
		return
	}
	if owner := ownerFrom(r.Context()); s.auth.enabled() && text.OwnerID != owner {
		s.respondError(w, http.StatusNotFound, "text not found")
		return
	}
	ps, err := s.store.ListUserParagraphs(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "text not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"text": text, "paragraphs": nonNil(ps)})
}

func (s *Server) handleListLibrary(w http.ResponseWriter, r *http.Request) {
	texts, err := s.store.ListLibraryTexts(r.Context())
	if err != nil {
		s.logger.Error("list library failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"texts": nonNil(texts)})
}

func (s *Server) handleLibraryParagraphs(w http.ResponseWriter, r *http.Request) {
	id, ok := s.pathID(w, r)
	if !ok {
		return
	}
	text, err := s.store.GetLibraryText(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "text not found")
		return
	}
	ps, err := s.store.ListLibraryParagraphs(r.Context(), id)
	if err != nil {
		s.respondStoreError(w, err, "text not found")
		return
	}
	s.respondJSON(w, http.StatusOK, map[string]any{"text": text, "paragraphs": nonNil(ps)})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	counts, err := s.store.Counts(r.Context())
	if err != nil {
		s.logger.Error("status: counts failed", zap.Error(err))
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	resp := map[string]any{
		"counts": counts,
		"config": map[string]any{
			"llm_provider":         s.cfg.LLM.Provider,
			"llm_model":            s.cfg.LLM.Model,
			"embedding_provider":   s.cfg.Embedding.Provider,
			"embedding_dimensions": s.cfg.Embedding.Dimensions,
			"chunk_size":           s.cfg.Retrieval.ChunkSize,
			"chunk_overlap":        s.cfg.Retrieval.ChunkOverlap,
			"illustration_enabled": s.cfg.Illustration.Enabled,
			"postgres":             s.cfg.Storage.DatabaseURL != "",
			"auth_enabled":         s.auth.enabled(),
		},
	}
	if s.index != nil {
		resp["index"] = s.index.Stats()
	}
	if s.tracker != nil {
		resp["active_uploads"] = s.tracker.Len()
	}
	dbPath := s.cfg.Storage.DatabasePath
	if s.cfg.Storage.DatabaseURL != "" {
		dbPath = ""
	}
	if usage, err := storage.MeasureUsage(dbPath, s.cfg.Storage.BlobDir, s.cfg.Storage.SpillDir); err == nil {
		resp["disk_usage"] = usage
		resp["disk_usage_bytes"] = usage.Total()
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// decodeValid decodes the JSON body into v, runs normalize and validates v.
// It writes a 400 and returns false on failure.
func (s *Server) decodeValid(w http.ResponseWriter, r *http.Request, v any, normalize func()) bool {
	dec := json.NewDecoder(r.Body)
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	if normalize != nil {
		normalize()
	}
	if err := s.validate.Struct(v); err != nil {
		s.respondError(w, http.StatusBadRequest, validationMessage(err))
		return false
	}
	return true
}

func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return "invalid request"
	}
	parts := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		parts = append(parts, fe.Field()+" "+fe.Tag())
	}
	return "invalid request: " + strings.Join(parts, ", ")
}

func (s *Server) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		s.respondError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}

func (s *Server) respondStoreError(w http.ResponseWriter, err error, notFound string) {
	if errors.Is(err, storage.ErrNotFound) {
		s.respondError(w, http.StatusNotFound, notFound)
		return
	}
	s.logger.Error("store read failed", zap.Error(err))
	s.respondError(w, http.StatusInternalServerError, err.Error())
}

func nonNil[T any](xs []T) []T {
	if xs == nil {
		return []T{}
	}
	return xs
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data any) {
	respondJSON(w, status, data)
}

func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
