package models

import (
	"encoding/json"
	"strings"
)

// AskRequest is the body of POST /api/v1/ask. textId may be sent as a number
// or a numeric string. It names a user text unless Library is set.
type AskRequest struct {
	TextID   json.Number `json:"textId" validate:"required,numeric"`
	Question string      `json:"question" validate:"required,max=2000"`
	Library  bool        `json:"library"`
}

// StoryID is the index story the request asks about.
func (r *AskRequest) StoryID() string {
	return storyID(r.TextID, r.Library)
}

func storyID(textID json.Number, library bool) string {
	if textID == "" {
		return ""
	}
	if library {
		return LibraryStoryPrefix + textID.String()
	}
	return textID.String()
}

// Normalize trims the question.
func (r *AskRequest) Normalize() {
	r.Question = strings.TrimSpace(r.Question)
}

// AskResponse carries the answer; Degraded marks a fallback answer.
type AskResponse struct {
	Answer   string `json:"answer"`
	Degraded bool   `json:"degraded"`
}

// QuizRequest is the body of POST /api/v1/quiz. Text wins over TextID when
// both are set. Library selects a library text as for AskRequest.
type QuizRequest struct {
	TextID  json.Number `json:"textId" validate:"omitempty,numeric"`
	Text    string      `json:"text" validate:"required_without=TextID,max=200000"`
	Library bool        `json:"library"`
}

// StoryID is the stored text the quiz is about, or "" for raw text.
func (r *QuizRequest) StoryID() string {
	return storyID(r.TextID, r.Library)
}

// Normalize trims the raw text.
func (r *QuizRequest) Normalize() {
	r.Text = strings.TrimSpace(r.Text)
}

// QuizResponse carries the generated quiz.
type QuizResponse struct {
	Quiz string `json:"quiz"`
}

// UploadResponse is returned with 201 after an upload. Library is set when
// TextID names the library text because no user copy was made.
type UploadResponse struct {
	Message         string `json:"message"`
	TextID          int64  `json:"textId"`
	Library         bool   `json:"library"`
	LibraryTextID   int64  `json:"libraryTextId"`
	Title           string `json:"title"`
	ParagraphsCount int    `json:"paragraphsCount"`
	Indexed         bool   `json:"indexed"`
	ProgressToken   string `json:"progressToken,omitempty"`
}

// DirectoryRequest names a library directory to watch or unwatch.
type DirectoryRequest struct {
	Path string `json:"path" validate:"required"`
}
