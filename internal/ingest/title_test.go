package ingest

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name     string
		declared string
		text     string
		want     string
	}{
		{"declared wins", "  Mi   cuento ", "Otra cosa. Más.", "Mi cuento"},
		{"first sentence", "", "El zorro y el gato. Eran amigos.", "El zorro y el gato"},
		{"question mark", "", "¿Quién vive aquí? Nadie.", "¿Quién vive aquí"},
		{"no punctuation", "", "Un texto sin puntos", "Un texto sin puntos"},
		{"leading dot", "", ". Empieza raro", ". Empieza raro"},
		{"empty", "", "   ", UntitledTitle},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.declared, tt.text))
		})
	}
}

func TestDeriveTitleCapped(t *testing.T) {
	long := strings.Repeat("á", 300)
	got := DeriveTitle("", long)
	assert.Equal(t, 120, len([]rune(got)))
	assert.Equal(t, 120, len([]rune(DeriveTitle(long, ""))))
}

func TestTitleFromFileName(t *testing.T) {
	assert.Equal(t, "el zorro y el gato", titleFromFileName("el_zorro-y-el_gato.pdf"))
	assert.Equal(t, "Pinocho", titleFromFileName("Pinocho.docx"))
}
