package models

import (
	"encoding/json"
	"testing"
)

func TestAskRequest_AcceptsNumberOrString(t *testing.T) {
	for _, body := range []string{`{"textId": 12, "question": " ¿Quién? "}`, `{"textId": "12", "question": "¿Quién?"}`} {
		var req AskRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			t.Fatalf("%s: %v", body, err)
		}
		req.Normalize()
		id, err := req.TextID.Int64()
		if err != nil || id != 12 {
			t.Errorf("%s: TextID = %v, %v", body, req.TextID, err)
		}
		if req.Question != "¿Quién?" {
			t.Errorf("%s: Question = %q", body, req.Question)
		}
	}
}

func TestNewParagraphs(t *testing.T) {
	ps := NewParagraphs([]string{"a", "b", "c"}, []string{"img1", ""})
	if len(ps) != 3 {
		t.Fatalf("got %d paragraphs", len(ps))
	}
	for i, p := range ps {
		if p.Position != i+1 {
			t.Errorf("paragraph %d has position %d", i, p.Position)
		}
	}
	if ps[0].ImageURL != "img1" || ps[1].ImageURL != "" || ps[2].ImageURL != "" {
		t.Errorf("unexpected images %+v", ps)
	}
}

func TestFullText(t *testing.T) {
	ps := NewParagraphs([]string{" Uno. ", "", "Dos.\n"}, nil)
	if got := FullText(ps); got != "Uno.\n\nDos." {
		t.Errorf("FullText() = %q", got)
	}
	if got := FullText(nil); got != "" {
		t.Errorf("FullText(nil) = %q", got)
	}
}

func TestStoryIDs(t *testing.T) {
	if got := UserStoryID(12); got != "12" {
		t.Errorf("UserStoryID = %q", got)
	}
	if got := LibraryStoryID(12); got != "lib:12" {
		t.Errorf("LibraryStoryID = %q", got)
	}

	tests := []struct {
		in      string
		id      int64
		library bool
		wantErr bool
	}{
		{"12", 12, false, false},
		{" lib:12 ", 12, true, false},
		{"lib:", 0, false, true},
		{"abc", 0, false, true},
		{"0", 0, false, true},
		{"lib:-3", 0, false, true},
	}
	for _, tt := range tests {
		id, library, err := ParseStoryID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseStoryID(%q) err = %v", tt.in, err)
			continue
		}
		if id != tt.id || library != tt.library {
			t.Errorf("ParseStoryID(%q) = %d, %v", tt.in, id, library)
		}
	}
}

func TestRequestStoryID(t *testing.T) {
	var ask AskRequest
	if err := json.Unmarshal([]byte(`{"textId": 4, "library": true, "question": "hola"}`), &ask); err != nil {
		t.Fatal(err)
	}
	if got := ask.StoryID(); got != "lib:4" {
		t.Errorf("library ask StoryID = %q", got)
	}
	ask.Library = false
	if got := ask.StoryID(); got != "4" {
		t.Errorf("user ask StoryID = %q", got)
	}
	if got := (&QuizRequest{Text: "x", Library: true}).StoryID(); got != "" {
		t.Errorf("raw text quiz StoryID = %q", got)
	}
}

func TestStoryTextDropsEmphasis(t *testing.T) {
	ps := NewParagraphs([]string{"Había un <b>zorro</b> sabio.", "Vivía junto al <b>río</b>."}, nil)
	if got := StoryText(ps); got != "Había un zorro sabio.\n\nVivía junto al río." {
		t.Errorf("StoryText() = %q", got)
	}
	plain := NewParagraphs([]string{"Uno.", "Dos."}, nil)
	if got := StoryText(plain); got != FullText(plain) {
		t.Errorf("StoryText() = %q, want %q", got, FullText(plain))
	}
}
