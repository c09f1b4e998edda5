// Package parser turns a free-text query into a QueryPlan for the embedded
// engine. Words are ANDed by default; the AND, OR and NOT keywords switch
// the combination mode or exclude the following word. The final word of a
// query that does not end in whitespace is kept apart as a prefix so
// partially typed words still match.
package parser

import (
	"strings"
	"unicode"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/tokenizer"
)

type QueryType int

const (
	QueryAND QueryType = iota
	QueryOR
)

type QueryPlan struct {
	Terms        []string
	Type         QueryType
	ExcludeTerms []string
	// Prefix is the lower-cased last word when it may be incomplete;
	// PrefixTerms are its normalised terms, kept out of Terms.
	Prefix      string
	PrefixTerms []string
	RawQuery    string
}

// Placeholder reports whether the query is blank and should return the
// engine's default result set.
func (p *QueryPlan) Placeholder() bool {
	return strings.TrimSpace(p.RawQuery) == ""
}

// Empty reports whether nothing in the query can match a document.
func (p *QueryPlan) Empty() bool {
	return len(p.Terms) == 0 && p.Prefix == ""
}

func Parse(query string) *QueryPlan {
	plan := &QueryPlan{
		Terms:        make([]string, 0),
		ExcludeTerms: make([]string, 0),
		Type:         QueryAND,
		RawQuery:     query,
	}
	if strings.TrimSpace(query) == "" {
		return plan
	}
	trailingSpace := unicode.IsSpace(rune(query[len(query)-1]))
	words := strings.Fields(query)
	excludeNext := false
	for i, word := range words {
		switch strings.ToUpper(word) {
		case "AND":
			plan.Type = QueryAND
			continue
		case "OR":
			plan.Type = QueryOR
			continue
		case "NOT":
			excludeNext = true
			continue
		}
		terms := termsOf(word)
		if excludeNext {
			plan.ExcludeTerms = append(plan.ExcludeTerms, terms...)
			excludeNext = false
			continue
		}
		if i == len(words)-1 && !trailingSpace {
			parts := tokenizer.Words(word)
			if len(parts) > 0 {
				// earlier parts of a hyphenated last word are complete
				for _, part := range parts[:len(parts)-1] {
					if term, ok := tokenizer.Normalize(part); ok {
						plan.Terms = append(plan.Terms, term)
					}
				}
				last := parts[len(parts)-1]
				plan.Prefix = last
				if term, ok := tokenizer.Normalize(last); ok {
					plan.PrefixTerms = append(plan.PrefixTerms, term)
				}
			}
			continue
		}
		plan.Terms = append(plan.Terms, terms...)
	}
	return plan
}

func termsOf(word string) []string {
	tokens := tokenizer.Tokenize(word)
	terms := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		terms = append(terms, tok.Term)
	}
	return terms
}
