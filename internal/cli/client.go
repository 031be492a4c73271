package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
)

// OwnerHeader mirrors the server's owner header for unauthenticated deployments.
const OwnerHeader = "X-Owner-ID"

// APIError is a non-2xx response from the server.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server returned %d", e.Status)
	}
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

// Client talks to a running Loomi server.
type Client struct {
	BaseURL string
	// Token is sent as a bearer token when set.
	Token string
	// Owner is sent in OwnerHeader when set.
	Owner string
	HTTP  *http.Client
}

// NewClient returns a client for baseURL with a generous timeout, since
// uploads wait for the whole pipeline.
func NewClient(baseURL string) *Client {
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 10 * time.Minute},
	}
}

// Ask posts a question about a text.
func (c *Client) Ask(ctx context.Context, textID int64, library bool, question string) (*models.AskResponse, error) {
	body := map[string]any{"textId": textID, "question": question}
	if library {
		body["library"] = true
	}
	var out models.AskResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/ask", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Quiz asks for a quiz over a stored text or raw text.
func (c *Client) Quiz(ctx context.Context, textID int64, library bool, text string) (*models.QuizResponse, error) {
	body := map[string]any{}
	if text != "" {
		body["text"] = text
	}
	if textID > 0 {
		body["textId"] = textID
		if library {
			body["library"] = true
		}
	}
	var out models.QuizResponse
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/quiz", body, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Upload sends a local file through the upload pipeline.
func (c *Client) Upload(ctx context.Context, path, title, progressToken string) (*models.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(fw, f); err != nil {
		return nil, err
	}
	if title != "" {
		_ = mw.WriteField("title", title)
	}
	if progressToken != "" {
		_ = mw.WriteField("progress_token", progressToken)
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, "/api/v1/documents", &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	var out models.UploadResponse
	if err := c.do(req, http.StatusCreated, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Progress reads the state of an upload token.
func (c *Client) Progress(ctx context.Context, token string) (*progress.Record, error) {
	var out progress.Record
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/progress/"+url.PathEscape(token), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Status returns the server status document.
func (c *Client) Status(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/status", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Directories lists watched library directories.
func (c *Client) Directories(ctx context.Context) ([]string, error) {
	var out struct {
		Directories []string `json:"directories"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/library/directories", nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out.Directories, nil
}

// AddDirectory starts watching path on the server.
func (c *Client) AddDirectory(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/library/directories", models.DirectoryRequest{Path: path}, http.StatusCreated, nil)
}

// RemoveDirectory stops watching path on the server.
func (c *Client) RemoveDirectory(ctx context.Context, path string) error {
	return c.doJSON(ctx, http.MethodDelete, "/api/v1/library/directories?path="+url.QueryEscape(path), nil, http.StatusOK, nil)
}

func (c *Client) doJSON(ctx context.Context, method, path string, body any, want int, out any) error {
	var r io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		r = bytes.NewReader(data)
	}
	req, err := c.newRequest(ctx, method, path, r)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, want, out)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	if c.Owner != "" {
		req.Header.Set(OwnerHeader, c.Owner)
	}
	return req, nil
}

func (c *Client) do(req *http.Request, want int, out any) error {
	hc := c.HTTP
	if hc == nil {
		hc = http.DefaultClient
	}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != want {
		var body struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&body)
		return &APIError{Status: resp.StatusCode, Message: body.Error}
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
