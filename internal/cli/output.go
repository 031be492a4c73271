// Package cli holds the Loomi command-line client and its output helpers.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"

	"github.com/DekelUsach/Loomi-backend/internal/models"
	"github.com/DekelUsach/Loomi-backend/internal/progress"
	"github.com/DekelUsach/Loomi-backend/pkg/utils"
)

// OutputFormat selects human or machine output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is indented JSON for scripts.
	OutputJSON OutputFormat = "json"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteAnswer writes an answer. Degraded answers are marked in text mode.
func WriteAnswer(w io.Writer, resp *models.AskResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Answer)
	if resp.Degraded {
		fmt.Fprintln(w, "(respuesta sin contexto del texto)")
	}
	return nil
}

// WriteQuiz writes a generated quiz.
func WriteQuiz(w io.Writer, resp *models.QuizResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintln(w, resp.Quiz)
	return nil
}

// WriteUpload writes the result of an upload.
func WriteUpload(w io.Writer, resp *models.UploadResponse, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, resp)
	}
	fmt.Fprintf(w, "%s\n", resp.Message)
	if resp.Library {
		fmt.Fprintf(w, "Library ID: %d (ask with -library)\n", resp.LibraryTextID)
	} else {
		fmt.Fprintf(w, "Text ID:    %d\n", resp.TextID)
		fmt.Fprintf(w, "Library ID: %d\n", resp.LibraryTextID)
	}
	fmt.Fprintf(w, "Title:      %s\n", resp.Title)
	fmt.Fprintf(w, "Paragraphs: %d\n", resp.ParagraphsCount)
	if !resp.Indexed {
		fmt.Fprintln(w, "Index:      not indexed, questions will rebuild it")
	}
	return nil
}

// WriteProgress writes a progress record with its most recent logs.
func WriteProgress(w io.Writer, rec *progress.Record, format OutputFormat, lastLogs int) error {
	if format == OutputJSON {
		return writeJSON(w, rec)
	}
	state := "running"
	switch {
	case rec.Error != "":
		state = "failed: " + rec.Error
	case rec.Done:
		state = "done"
	}
	fmt.Fprintf(w, "[%3d%%] %s\n", rec.Percent, state)
	logs := rec.Logs
	if lastLogs > 0 && len(logs) > lastLogs {
		logs = logs[len(logs)-lastLogs:]
	}
	for _, l := range logs {
		fmt.Fprintf(w, "  %s  %s\n", l.Time.Format("15:04:05"), utils.Truncate(l.Message, 120))
	}
	if rec.Result != nil {
		fmt.Fprintf(w, "Text %d: %s\n", rec.Result.ID, rec.Result.Title)
	}
	return nil
}

// WriteStatus writes the server status document with sorted keys.
func WriteStatus(w io.Writer, status map[string]any, format OutputFormat) error {
	if format == OutputJSON {
		return writeJSON(w, status)
	}
	writeMap(w, status, "")
	return nil
}

func writeMap(w io.Writer, m map[string]any, indent string) {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if sub, ok := m[k].(map[string]any); ok {
			fmt.Fprintf(w, "%s%s:\n", indent, k)
			writeMap(w, sub, indent+"  ")
			continue
		}
		fmt.Fprintf(w, "%s%s: %v\n", indent, k, m[k])
	}
}
