package index

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/tokenizer"
)

func add(m *MemoryIndex, id, text string) {
	m.AddDocument(id, tokenizer.Tokenize(text))
}

func TestAddAndSearch(t *testing.T) {
	m := NewMemoryIndex()
	add(m, "2", "search engines search fast")
	add(m, "1", "search playground")

	postings := m.Search("search")
	if len(postings) != 2 {
		t.Fatalf("got %d postings, want 2", len(postings))
	}
	if postings[0].DocID != "1" || postings[1].DocID != "2" {
		t.Errorf("postings not ordered by doc id: %+v", postings)
	}
	if postings[1].Frequency != 2 {
		t.Errorf("frequency = %d, want 2", postings[1].Frequency)
	}
	if m.DocCount() != 2 {
		t.Errorf("doc count = %d", m.DocCount())
	}
	if got := m.AvgDocLength(); got != 3 {
		t.Errorf("avg doc length = %v, want 3", got)
	}
}

func TestReplaceDropsOldPostings(t *testing.T) {
	m := NewMemoryIndex()
	add(m, "1", "alice wonderland")
	add(m, "1", "bob builder")

	if got := m.Search("alice"); len(got) != 0 {
		t.Errorf("stale postings for alice: %+v", got)
	}
	if got := m.Search("bob"); len(got) != 1 {
		t.Errorf("bob postings = %+v", got)
	}
	if m.DocCount() != 1 {
		t.Errorf("doc count = %d, want 1", m.DocCount())
	}
	if terms := m.TermsWithPrefix("ali"); len(terms) != 0 {
		t.Errorf("prefix still sees replaced surface: %v", terms)
	}
}

func TestTermsWithPrefix(t *testing.T) {
	m := NewMemoryIndex()
	add(m, "1", "running runner")
	add(m, "2", "rust")

	terms := m.TermsWithPrefix("runni")
	if len(terms) != 1 || terms[0] != "runn" {
		t.Errorf("TermsWithPrefix(runni) = %v, want [runn]", terms)
	}
	terms = m.TermsWithPrefix("ru")
	if len(terms) != 2 || terms[0] != "runn" || terms[1] != "rust" {
		t.Errorf("TermsWithPrefix(ru) = %v, want [runn rust]", terms)
	}
}

func TestMerge(t *testing.T) {
	a := PostingList{{DocID: "1", Frequency: 1}, {DocID: "3", Frequency: 2}}
	b := PostingList{{DocID: "2", Frequency: 1}, {DocID: "3", Frequency: 1}}
	merged := Merge(a, b)
	if len(merged) != 3 {
		t.Fatalf("merged = %+v", merged)
	}
	if merged[2].DocID != "3" || merged[2].Frequency != 3 {
		t.Errorf("doc 3 = %+v, want frequency 3", merged[2])
	}
}
