package tokenizer

import (
	"strings"
	"testing"
)

func TestTokenize(t *testing.T) {
	tokens := Tokenize("The Quick brown foxes, running to Alice!")
	got := make([]string, len(tokens))
	for i, tok := range tokens {
		got[i] = tok.Term
	}
	want := []string{"quick", "brown", "fox", "runn", "alice"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("terms = %v, want %v", got, want)
	}
	for i, tok := range tokens {
		if tok.Position != i {
			t.Errorf("token %q position = %d, want %d", tok.Term, tok.Position, i)
		}
	}
	if tokens[3].Surface != "running" {
		t.Errorf("surface = %q, want running", tokens[3].Surface)
	}
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		word   string
		want   string
		wantOK bool
	}{
		{"the", "", false},
		{"x", "", false},
		{"tasks", "task", true},
		{"stories", "story", true},
		{"alice", "alice", true},
		{"42", "42", true},
	}
	for _, tt := range tests {
		got, ok := Normalize(tt.word)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("Normalize(%q) = %q, %v; want %q, %v", tt.word, got, ok, tt.want, tt.wantOK)
		}
	}
}

func TestWordsKeepsStopWords(t *testing.T) {
	words := Words("To-do: the Big one")
	want := []string{"to", "do", "the", "big", "one"}
	if strings.Join(words, " ") != strings.Join(want, " ") {
		t.Fatalf("Words = %v, want %v", words, want)
	}
}

func BenchmarkTokenize(b *testing.B) {
	text := strings.Repeat(`Information retrieval systems combine tokenization, stemming, and stop word
        removal to normalize text into searchable terms. `, 20)
	b.ReportAllocs()
	b.SetBytes(int64(len(text)))
	for i := 0; i < b.N; i++ {
		_ = Tokenize(text)
	}
}
