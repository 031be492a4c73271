package qa

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/DekelUsach/Loomi-backend/internal/llm"
	"github.com/DekelUsach/Loomi-backend/pkg/utils"
)

var (
	// ErrNoText is returned when a quiz has neither raw text nor a document with paragraphs.
	ErrNoText = errors.New("no text to build a quiz from")
	// ErrGeneration is returned when the quiz could not be generated.
	ErrGeneration = errors.New("quiz generation failed")
)

// QuizQuestions is the number of questions per quiz.
const QuizQuestions = 5

// maxQuizRunes bounds the source text sent for a quiz.
const maxQuizRunes = 60000

// QuizRequest names either raw Text or a stored DocumentID. Text wins when both are set.
type QuizRequest struct {
	DocumentID string
	Text       string
}

// GenerateQuiz writes a multiple choice quiz about the request's text.
func (s *Service) GenerateQuiz(ctx context.Context, req QuizRequest) (string, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" && strings.TrimSpace(req.DocumentID) != "" {
		st, err := s.loadText(ctx, req.DocumentID)
		if err != nil {
			s.warn("quiz text load failed", zap.String("story_id", req.DocumentID), zap.Error(err))
		}
		text = st.text
	}
	if text == "" {
		return "", ErrNoText
	}
	if s.gen == nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, llm.ErrNotConfigured)
	}

	quiz, err := s.gen.Generate(ctx, quizPrompt(utils.Truncate(text, maxQuizRunes)), llm.WithTemperature(0.4))
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrGeneration, err)
	}
	quiz = strings.TrimSpace(quiz)
	if quiz == "" {
		return "", fmt.Errorf("%w: empty response", ErrGeneration)
	}
	return quiz, nil
}

func quizPrompt(text string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Crea un cuestionario de %d preguntas de opción múltiple sobre el siguiente texto.\n\n", QuizQuestions)
	b.WriteString("Formato obligatorio para cada pregunta:\n")
	b.WriteString("N. Pregunta\n")
	b.WriteString("A) opción\nB) opción\nC) opción\nD) opción\n\n")
	b.WriteString("Reglas:\n")
	b.WriteString("1. Una sola opción correcta por pregunta, basada solo en el texto.\n")
	b.WriteString("2. No indiques cuál es la respuesta correcta ni agregues soluciones.\n")
	b.WriteString("3. Escribe en el idioma del texto y devuelve solo el cuestionario.\n\n")
	b.WriteString("Texto:\n")
	b.WriteString(text)
	return b.String()
}
