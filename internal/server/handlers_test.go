package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/config"
	"github.com/DekelUsach/Loomi-backend/internal/ingest"
	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/internal/qa"
	"github.com/DekelUsach/Loomi-backend/internal/storage"
	"github.com/DekelUsach/Loomi-backend/internal/vector"
)

type mockWatchService struct {
	dirs []string
}

func (m *mockWatchService) Directories() []string {
	return append([]string(nil), m.dirs...)
}

func (m *mockWatchService) AddDirectory(path string, _ bool) error {
	for _, d := range m.dirs {
		if d == path {
			return nil
		}
	}
	m.dirs = append(m.dirs, path)
	return nil
}

func (m *mockWatchService) RemoveDirectory(path string) error {
	for i, d := range m.dirs {
		if d == path {
			m.dirs = append(m.dirs[:i], m.dirs[i+1:]...)
			return nil
		}
	}
	return nil
}

type mockUploader struct {
	last ingest.Upload
	res  *ingest.Result
	err  error
}

func (m *mockUploader) Upload(_ context.Context, up ingest.Upload) (*ingest.Result, error) {
	m.last = up
	if m.err != nil {
		return nil, m.err
	}
	return m.res, nil
}

type mockAnswerer struct {
	lastID       string
	lastQuestion string
	lastQuiz     qa.QuizRequest
	answer       qa.Answer
	quiz         string
	quizErr      error
}

func (m *mockAnswerer) Ask(_ context.Context, id, question string) qa.Answer {
	m.lastID, m.lastQuestion = id, question
	return m.answer
}

func (m *mockAnswerer) GenerateQuiz(_ context.Context, req qa.QuizRequest) (string, error) {
	m.lastQuiz = req
	return m.quiz, m.quizErr
}

type fixedStats struct{ st vector.Stats }

func (f fixedStats) Stats() vector.Stats { return f.st }

type testEnv struct {
	srv      *Server
	store    *storage.SQLiteStore
	uploader *mockUploader
	answerer *mockAnswerer
	tracker  *progress.Tracker
}

func newTestEnv(t *testing.T, mutate func(*config.Config), opts ...Option) *testEnv {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStore(filepath.Join(dir, "loomi.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	cfg := &config.Config{}
	cfg.Server.Port = 3000
	cfg.Server.MaxUploadMB = 1
	cfg.Storage.DatabasePath = filepath.Join(dir, "loomi.db")
	cfg.Storage.BlobDir = filepath.Join(dir, "images")
	if mutate != nil {
		mutate(cfg)
	}
	env := &testEnv{
		store: store,
		uploader: &mockUploader{res: &ingest.Result{
			DocumentID: 7, LibraryTextID: 3, UserTextID: 7, StoryID: "7", Title: "El zorro", ParagraphCount: 4, Indexed: true,
		}},
		answerer: &mockAnswerer{answer: qa.Answer{Text: "Porque llovía."}, quiz: "1. ¿Quién?"},
		tracker:  progress.NewTracker(),
	}
	env.srv = NewServer(env.uploader, env.answerer, env.tracker, store, cfg, zap.NewNop(), opts...)
	return env
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, r)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode body %q: %v", w.Body.String(), err)
	}
}

func errorMessage(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var out map[string]string
	decodeBody(t, w, &out)
	return out["error"]
}

func multipartUpload(t *testing.T, fileName string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if fileName != "" {
		fw, err := mw.CreateFormFile("file", fileName)
		if err != nil {
			t.Fatal(err)
		}
		fw.Write(content)
	}
	for k, v := range fields {
		mw.WriteField(k, v)
	}
	mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &buf)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func jsonRequest(method, path string, body any) *http.Request {
	data, _ := json.Marshal(body)
	r := httptest.NewRequest(method, path, bytes.NewReader(data))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestHandleHealth(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/health", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestHandleUpload(t *testing.T) {
	env := newTestEnv(t, nil)
	r := multipartUpload(t, "cuento.pdf", []byte("%PDF-1.4 fake"), map[string]string{
		"title":          "Mi cuento",
		"progress_token": "tok-1",
	})
	r.Header.Set(OwnerHeader, "user-9")
	w := env.do(r)
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var out models.UploadResponse
	decodeBody(t, w, &out)
	if out.TextID != 7 || out.LibraryTextID != 3 || out.ParagraphsCount != 4 || !out.Indexed || out.Library {
		t.Errorf("response: %+v", out)
	}
	if out.ProgressToken != "tok-1" {
		t.Errorf("progress token: got %q", out.ProgressToken)
	}
	if out.Message != "Texto cargado e indexado" {
		t.Errorf("message: got %q", out.Message)
	}
	up := env.uploader.last
	if up.FileName != "cuento.pdf" || up.Title != "Mi cuento" || up.OwnerID != "user-9" {
		t.Errorf("upload: %+v", up)
	}
	if string(up.Content) != "%PDF-1.4 fake" {
		t.Errorf("content: got %q", up.Content)
	}
}

func TestHandleUpload_generatesToken(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(multipartUpload(t, "a.docx", []byte("PK"), nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.UploadResponse
	decodeBody(t, w, &out)
	if out.ProgressToken == "" || out.ProgressToken != env.uploader.last.ProgressToken {
		t.Errorf("token: response %q upload %q", out.ProgressToken, env.uploader.last.ProgressToken)
	}
}

func TestHandleUpload_missingFile(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(multipartUpload(t, "", nil, map[string]string{"title": "x"}))
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status: got %d", w.Code)
	}
	if got := errorMessage(t, w); got != msgMissingFile {
		t.Errorf("error: got %q", got)
	}
}

func TestHandleUpload_errorMapping(t *testing.T) {
	tests := []struct {
		err    error
		status int
		msg    string
	}{
		{fmt.Errorf("%w: .txt", ingest.ErrUnsupportedFormat), http.StatusBadRequest, msgUnsupportedFormat},
		{ingest.ErrInsufficientText, http.StatusUnprocessableEntity, msgInsufficientText},
		{ingest.ErrMissingFile, http.StatusBadRequest, msgMissingFile},
		{errors.New("disk full"), http.StatusInternalServerError, msgUploadFailed},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.uploader.err = tt.err
			w := env.do(multipartUpload(t, "a.pdf", []byte("x"), nil))
			if w.Code != tt.status {
				t.Fatalf("status: got %d, want %d", w.Code, tt.status)
			}
			if got := errorMessage(t, w); got != tt.msg {
				t.Errorf("error: got %q, want %q", got, tt.msg)
			}
		})
	}
}

func TestHandleUpload_tooLarge(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(multipartUpload(t, "big.pdf", bytes.Repeat([]byte("a"), 3<<20), nil))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("status: got %d", w.Code)
	}
}

func TestHandleAsk(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/ask", map[string]any{"textId": 12, "question": "  ¿Por qué?  "}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var out models.AskResponse
	decodeBody(t, w, &out)
	if out.Answer != "Porque llovía." || out.Degraded {
		t.Errorf("response: %+v", out)
	}
	if env.answerer.lastID != "12" || env.answerer.lastQuestion != "¿Por qué?" {
		t.Errorf("ask args: %q %q", env.answerer.lastID, env.answerer.lastQuestion)
	}
}

func TestHandleUpload_libraryOnly(t *testing.T) {
	env := newTestEnv(t, nil)
	env.uploader.res = &ingest.Result{DocumentID: 4, LibraryTextID: 4, StoryID: "lib:4", Title: "El zorro", ParagraphCount: 1}
	w := env.do(multipartUpload(t, "cuento.pdf", []byte("%PDF-1.4 fake"), nil))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var out models.UploadResponse
	decodeBody(t, w, &out)
	if out.TextID != 4 || !out.Library {
		t.Errorf("response: %+v", out)
	}
}

func TestHandleAsk_library(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/ask", map[string]any{"textId": 4, "library": true, "question": "hola"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	if env.answerer.lastID != "lib:4" {
		t.Errorf("id: got %q", env.answerer.lastID)
	}

	w = env.do(jsonRequest(http.MethodPost, "/api/v1/quiz", map[string]any{"textId": "4", "library": true}))
	if w.Code != http.StatusOK {
		t.Fatalf("quiz status: got %d body %s", w.Code, w.Body.String())
	}
	if env.answerer.lastQuiz.DocumentID != "lib:4" {
		t.Errorf("quiz id: got %q", env.answerer.lastQuiz.DocumentID)
	}
}

func TestHandleAsk_stringID(t *testing.T) {
	env := newTestEnv(t, nil)
	env.answerer.answer = qa.Answer{Text: qa.FallbackAnswer, Degraded: true, Reason: qa.ReasonLLMFailed}
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/ask", map[string]any{"textId": "5", "question": "hola"}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out models.AskResponse
	decodeBody(t, w, &out)
	if !out.Degraded || out.Answer != qa.FallbackAnswer {
		t.Errorf("response: %+v", out)
	}
	if env.answerer.lastID != "5" {
		t.Errorf("id: got %q", env.answerer.lastID)
	}
}

func TestHandleAsk_invalid(t *testing.T) {
	bodies := []string{
		`{"textId": 1}`,
		`{"textId": 1, "question": "   "}`,
		`{"question": "hola"}`,
		`{"textId": "abc", "question": "hola"}`,
		`not json`,
	}
	for _, body := range bodies {
		env := newTestEnv(t, nil)
		r := httptest.NewRequest(http.MethodPost, "/api/v1/ask", strings.NewReader(body))
		w := env.do(r)
		if w.Code != http.StatusBadRequest {
			t.Errorf("%s: status got %d", body, w.Code)
		}
		if env.answerer.lastQuestion != "" {
			t.Errorf("%s: answerer should not be called", body)
		}
	}
}

func TestHandleQuiz(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(jsonRequest(http.MethodPost, "/api/v1/quiz", map[string]any{"text": " Había una vez "}))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	var out models.QuizResponse
	decodeBody(t, w, &out)
	if out.Quiz != "1. ¿Quién?" {
		t.Errorf("quiz: got %q", out.Quiz)
	}
	if env.answerer.lastQuiz.Text != "Había una vez" {
		t.Errorf("quiz text: got %q", env.answerer.lastQuiz.Text)
	}
}

func TestHandleQuiz_errors(t *testing.T) {
	tests := []struct {
		name   string
		body   any
		err    error
		status int
	}{
		{"no input", map[string]any{}, nil, http.StatusBadRequest},
		{"no text", map[string]any{"textId": 4}, qa.ErrNoText, http.StatusBadRequest},
		{"generation", map[string]any{"textId": 4}, fmt.Errorf("%w: boom", qa.ErrGeneration), http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, nil)
			env.answerer.quizErr = tt.err
			w := env.do(jsonRequest(http.MethodPost, "/api/v1/quiz", tt.body))
			if w.Code != tt.status {
				t.Errorf("status: got %d, want %d", w.Code, tt.status)
			}
		})
	}
}

func TestHandleProgress(t *testing.T) {
	env := newTestEnv(t, nil)
	env.tracker.Init("tok")
	env.tracker.SetPercent("tok", 40)
	env.tracker.Log("tok", "Extrayendo texto")

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/progress/tok", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var rec progress.Record
	decodeBody(t, w, &rec)
	if rec.Percent != 40 || len(rec.Logs) != 1 || rec.Done {
		t.Errorf("record: %+v", rec)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/progress/missing", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("unknown token: got %d", w.Code)
	}
}

func seedLibrary(t *testing.T, store storage.Store) int64 {
	t.Helper()
	ctx := context.Background()
	text := &models.LibraryText{Title: "Caperucita"}
	if err := store.CreateLibraryText(ctx, text); err != nil {
		t.Fatal(err)
	}
	ps := models.NewParagraphs([]string{"Había una vez.", "Fin."}, nil)
	if err := store.InsertLibraryParagraphs(ctx, text.ID, ps); err != nil {
		t.Fatal(err)
	}
	return text.ID
}

func TestHandleLibrary(t *testing.T) {
	env := newTestEnv(t, nil)
	id := seedLibrary(t, env.store)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/library", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var list struct {
		Texts []models.LibraryText `json:"texts"`
	}
	decodeBody(t, w, &list)
	if len(list.Texts) != 1 || list.Texts[0].Title != "Caperucita" {
		t.Errorf("list: %+v", list.Texts)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/library/%d/paragraphs", id), nil))
	if w.Code != http.StatusOK {
		t.Fatalf("paragraphs status: got %d", w.Code)
	}
	var out struct {
		Paragraphs []models.Paragraph `json:"paragraphs"`
	}
	decodeBody(t, w, &out)
	if len(out.Paragraphs) != 2 || out.Paragraphs[0].Position != 1 || out.Paragraphs[1].Content != "Fin." {
		t.Errorf("paragraphs: %+v", out.Paragraphs)
	}

	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/library/999/paragraphs", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing text: got %d", w.Code)
	}
	w = env.do(httptest.NewRequest(http.MethodGet, "/api/v1/library/abc/paragraphs", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("bad id: got %d", w.Code)
	}
}

func TestHandleLibrary_empty(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/library", nil))
	if !strings.Contains(w.Body.String(), `"texts":[]`) {
		t.Errorf("empty list should encode as []: %s", w.Body.String())
	}
}

func TestHandleUserTexts(t *testing.T) {
	env := newTestEnv(t, nil)
	libID := seedLibrary(t, env.store)
	ctx := context.Background()
	ut := &models.UserText{OwnerID: "ana", Title: "Caperucita", LibraryTextID: libID}
	if err := env.store.CreateUserText(ctx, ut); err != nil {
		t.Fatal(err)
	}
	if err := env.store.InsertUserParagraphs(ctx, ut.ID, models.NewParagraphs([]string{"Uno."}, nil)); err != nil {
		t.Fatal(err)
	}

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/texts", nil))
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no owner: got %d", w.Code)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/texts", nil)
	r.Header.Set(OwnerHeader, "ana")
	w = env.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var list struct {
		Texts []models.UserText `json:"texts"`
	}
	decodeBody(t, w, &list)
	if len(list.Texts) != 1 || list.Texts[0].ID != ut.ID {
		t.Errorf("texts: %+v", list.Texts)
	}

	r = httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/texts/%d/paragraphs", ut.ID), nil)
	r.Header.Set(OwnerHeader, "ana")
	w = env.do(r)
	if w.Code != http.StatusOK {
		t.Fatalf("paragraphs status: got %d", w.Code)
	}
}

func signToken(t *testing.T, secret, subject string) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   subject,
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	})
	s, err := tok.SignedString([]byte(secret))
	if err != nil {
		t.Fatal(err)
	}
	return s
}

func TestAuth(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Auth.JWTSecret = "s3cret" })

	r := multipartUpload(t, "a.pdf", []byte("x"), nil)
	r.Header.Set(OwnerHeader, "spoofed")
	if w := env.do(r); w.Code != http.StatusUnauthorized {
		t.Fatalf("missing token: got %d", w.Code)
	}

	r = multipartUpload(t, "a.pdf", []byte("x"), nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "other", "ana"))
	if w := env.do(r); w.Code != http.StatusUnauthorized {
		t.Fatalf("wrong secret: got %d", w.Code)
	}

	r = multipartUpload(t, "a.pdf", []byte("x"), nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "ana"))
	r.Header.Set(OwnerHeader, "spoofed")
	w := env.do(r)
	if w.Code != http.StatusCreated {
		t.Fatalf("valid token: got %d body %s", w.Code, w.Body.String())
	}
	if env.uploader.last.OwnerID != "ana" {
		t.Errorf("owner: got %q, want subject", env.uploader.last.OwnerID)
	}

	// Public routes stay open.
	if w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)); w.Code != http.StatusOK {
		t.Errorf("status route: got %d", w.Code)
	}
}

func TestAuth_userParagraphsOwnerCheck(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) { c.Auth.JWTSecret = "s3cret" })
	libID := seedLibrary(t, env.store)
	ut := &models.UserText{OwnerID: "ana", Title: "t", LibraryTextID: libID}
	if err := env.store.CreateUserText(context.Background(), ut); err != nil {
		t.Fatal(err)
	}
	r := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/texts/%d/paragraphs", ut.ID), nil)
	r.Header.Set("Authorization", "Bearer "+signToken(t, "s3cret", "bruno"))
	if w := env.do(r); w.Code != http.StatusNotFound {
		t.Errorf("foreign text: got %d", w.Code)
	}
}

func TestHandleDirectoriesList(t *testing.T) {
	mock := &mockWatchService{dirs: []string{"/tmp/cuentos"}}
	env := newTestEnv(t, nil, WithLibraryWatcher(mock, ""))
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/library/directories", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Directories []string `json:"directories"`
	}
	decodeBody(t, w, &out)
	if len(out.Directories) != 1 || out.Directories[0] != "/tmp/cuentos" {
		t.Errorf("directories: got %v", out.Directories)
	}
}

func TestHandleDirectoriesList_NotEnabled(t *testing.T) {
	env := newTestEnv(t, nil)
	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/library/directories", nil))
	if w.Code != http.StatusNotImplemented {
		t.Errorf("status: got %d", w.Code)
	}
}

func TestHandleDirectoriesAdd(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(t.TempDir(), "config.yaml")
	mock := &mockWatchService{}
	env := newTestEnv(t, nil, WithLibraryWatcher(mock, cfgPath))

	w := env.do(jsonRequest(http.MethodPost, "/api/v1/library/directories", map[string]any{"path": dir, "sync": false}))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d body %s", w.Code, w.Body.String())
	}
	if len(mock.dirs) != 1 || mock.dirs[0] != dir {
		t.Errorf("watcher dirs: %v", mock.dirs)
	}
	saved, err := config.Load(cfgPath)
	if err != nil {
		t.Fatal(err)
	}
	if len(saved.Library.Directories) != 1 || saved.Library.Directories[0] != dir {
		t.Errorf("persisted directories: %v", saved.Library.Directories)
	}
}

func TestHandleDirectoriesAdd_InvalidPath(t *testing.T) {
	mock := &mockWatchService{}
	env := newTestEnv(t, nil, WithLibraryWatcher(mock, ""))

	w := env.do(jsonRequest(http.MethodPost, "/api/v1/library/directories", map[string]any{"path": "/nonexistent/loomi/xyz"}))
	if w.Code != http.StatusNotFound {
		t.Errorf("missing dir: got %d", w.Code)
	}

	file := filepath.Join(t.TempDir(), "f.pdf")
	if err := os.WriteFile(file, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	w = env.do(jsonRequest(http.MethodPost, "/api/v1/library/directories", map[string]any{"path": file}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("file path: got %d", w.Code)
	}

	w = env.do(jsonRequest(http.MethodPost, "/api/v1/library/directories", map[string]any{}))
	if w.Code != http.StatusBadRequest {
		t.Errorf("empty path: got %d", w.Code)
	}
	if len(mock.dirs) != 0 {
		t.Errorf("watcher should be untouched: %v", mock.dirs)
	}
}

func TestHandleDirectoriesRemove(t *testing.T) {
	dir := t.TempDir()
	mock := &mockWatchService{dirs: []string{dir}}
	env := newTestEnv(t, nil, WithLibraryWatcher(mock, ""))

	w := env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/library/directories?path="+dir, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if len(mock.dirs) != 0 {
		t.Errorf("dirs after remove: %v", mock.dirs)
	}

	w = env.do(httptest.NewRequest(http.MethodDelete, "/api/v1/library/directories", nil))
	if w.Code != http.StatusBadRequest {
		t.Errorf("no path: got %d", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	stats := vector.Stats{Stories: 1, Chunks: 3}
	env := newTestEnv(t, nil, WithIndexStats(fixedStats{stats}))
	seedLibrary(t, env.store)

	w := env.do(httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out struct {
		Counts         models.Counts  `json:"counts"`
		Index          vector.Stats   `json:"index"`
		Config         map[string]any `json:"config"`
		DiskUsageBytes int64          `json:"disk_usage_bytes"`
	}
	decodeBody(t, w, &out)
	if out.Counts.LibraryTexts != 1 || out.Counts.LibraryParagraphs != 2 {
		t.Errorf("counts: %+v", out.Counts)
	}
	if out.Index.Chunks != 3 {
		t.Errorf("index stats: %+v", out.Index)
	}
	if out.DiskUsageBytes <= 0 {
		t.Errorf("disk usage: got %d", out.DiskUsageBytes)
	}
	if out.Config["auth_enabled"] != false {
		t.Errorf("auth_enabled: got %v", out.Config["auth_enabled"])
	}
}

func TestHandleImage(t *testing.T) {
	blobs, err := storage.NewBlobStore(t.TempDir(), "")
	if err != nil {
		t.Fatal(err)
	}
	png := []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR\x00\x00\x00\x01\x00\x00\x00\x01\x08\x02\x00\x00\x00")
	ref, err := blobs.Put(png)
	if err != nil {
		t.Fatal(err)
	}
	env := newTestEnv(t, nil, WithImages(blobs))

	w := env.do(httptest.NewRequest(http.MethodGet, ref, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	if !bytes.Equal(w.Body.Bytes(), png) {
		t.Errorf("body mismatch")
	}
	if w := env.do(httptest.NewRequest(http.MethodGet, "/images/missing.png", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing image: got %d", w.Code)
	}
}
