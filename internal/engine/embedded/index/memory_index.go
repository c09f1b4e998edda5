// Package index holds the in-memory inverted index behind one embedded
// collection. Documents can be replaced in place: re-adding a document id
// drops its old postings first.
package index

import (
	"sort"
	"strings"
	"sync"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/tokenizer"
)

type MemoryIndex struct {
	mu sync.RWMutex
	// term -> docID -> posting
	index map[string]map[string]*Posting
	// surface word -> terms it was stemmed to, for prefix lookups
	surfaces    map[string]map[string]int
	docTerms    map[string][]string
	docSurfaces map[string][]string
	docLengths  map[string]int
	totalTokens int64
}

func NewMemoryIndex() *MemoryIndex {
	return &MemoryIndex{
		index:       make(map[string]map[string]*Posting),
		surfaces:    make(map[string]map[string]int),
		docTerms:    make(map[string][]string),
		docSurfaces: make(map[string][]string),
		docLengths:  make(map[string]int),
	}
}

// AddDocument indexes tokens under docID, replacing anything previously
// indexed for the same id.
func (m *MemoryIndex) AddDocument(docID string, tokens []tokenizer.Token) {
	termData := make(map[string]*Posting)
	surfaceData := make(map[string]string)
	for _, token := range tokens {
		p, exists := termData[token.Term]
		if !exists {
			p = &Posting{
				DocID:     docID,
				Positions: make([]int, 0, 4),
			}
			termData[token.Term] = p
		}
		p.Frequency++
		p.Positions = append(p.Positions, token.Position)
		surfaceData[token.Surface] = token.Term
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.removeLocked(docID)

	terms := make([]string, 0, len(termData))
	for term, posting := range termData {
		if _, exists := m.index[term]; !exists {
			m.index[term] = make(map[string]*Posting)
		}
		m.index[term][docID] = posting
		terms = append(terms, term)
	}
	surfaces := make([]string, 0, len(surfaceData))
	for surface, term := range surfaceData {
		if _, exists := m.surfaces[surface]; !exists {
			m.surfaces[surface] = make(map[string]int)
		}
		m.surfaces[surface][term]++
		surfaces = append(surfaces, surface)
	}
	m.docTerms[docID] = terms
	m.docSurfaces[docID] = surfaces
	m.docLengths[docID] = len(tokens)
	m.totalTokens += int64(len(tokens))
}

func (m *MemoryIndex) removeLocked(docID string) {
	length, exists := m.docLengths[docID]
	if !exists {
		return
	}
	for _, term := range m.docTerms[docID] {
		docs := m.index[term]
		delete(docs, docID)
		if len(docs) == 0 {
			delete(m.index, term)
		}
	}
	for _, surface := range m.docSurfaces[docID] {
		for term, refs := range m.surfaces[surface] {
			if refs <= 1 {
				delete(m.surfaces[surface], term)
			} else {
				m.surfaces[surface][term] = refs - 1
			}
		}
		if len(m.surfaces[surface]) == 0 {
			delete(m.surfaces, surface)
		}
	}
	delete(m.docTerms, docID)
	delete(m.docSurfaces, docID)
	delete(m.docLengths, docID)
	m.totalTokens -= int64(length)
}

// Search returns the postings for an exact term, ordered by DocID.
func (m *MemoryIndex) Search(term string) PostingList {
	m.mu.RLock()
	defer m.mu.RUnlock()
	docs, exists := m.index[term]
	if !exists {
		return nil
	}
	result := make(PostingList, 0, len(docs))
	for _, posting := range docs {
		result = append(result, *posting)
	}
	sortByDocID(result)
	return result
}

// TermsWithPrefix returns the sorted index terms whose surface word starts
// with prefix.
func (m *MemoryIndex) TermsWithPrefix(prefix string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := make(map[string]struct{})
	for surface, terms := range m.surfaces {
		if !strings.HasPrefix(surface, prefix) {
			continue
		}
		for term := range terms {
			set[term] = struct{}{}
		}
	}
	result := make([]string, 0, len(set))
	for term := range set {
		result = append(result, term)
	}
	sort.Strings(result)
	return result
}

func (m *MemoryIndex) DocLength(docID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.docLengths[docID]
}

func (m *MemoryIndex) DocCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.docLengths)
}

func (m *MemoryIndex) AvgDocLength() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if len(m.docLengths) == 0 {
		return 0
	}
	return float64(m.totalTokens) / float64(len(m.docLengths))
}

// Terms returns the number of distinct terms in the index.
func (m *MemoryIndex) Terms() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.index)
}

func sortByDocID(list PostingList) {
	sort.Slice(list, func(i, j int) bool {
		return list[i].DocID < list[j].DocID
	})
}
