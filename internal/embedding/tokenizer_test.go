package embedding

import (
	"reflect"
	"testing"
)

func TestHashTokenizer_Tokenize(t *testing.T) {
	tok := &HashTokenizer{}
	ids, attn, types := tok.Tokenize("Hola mundo", 10)
	if len(ids) != 10 || len(attn) != 10 || len(types) != 10 {
		t.Fatalf("lengths %d %d %d", len(ids), len(attn), len(types))
	}
	if ids[0] != clsToken || ids[3] != sepToken {
		t.Errorf("unexpected special tokens: %v", ids)
	}
	if attn[3] != 1 || attn[4] != 0 {
		t.Errorf("unexpected attention mask: %v", attn)
	}
	for _, id := range ids[1:3] {
		if id < 1000 || id >= vocabSize {
			t.Errorf("word id %d out of range", id)
		}
	}
}

func TestHashTokenizer_Truncates(t *testing.T) {
	ids, _, _ := (&HashTokenizer{}).Tokenize("a b c d e f g h", 4)
	if len(ids) != 4 || ids[0] != clsToken || ids[3] != sepToken {
		t.Errorf("got %v", ids)
	}
}

func TestWords(t *testing.T) {
	got := Words("¡Hola, Mundo! Año 2024... ")
	want := []string{"hola", "mundo", "año", "2024"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Words = %v, want %v", got, want)
	}
	if len(Words("  ... ")) != 0 {
		t.Error("expected no words")
	}
}
