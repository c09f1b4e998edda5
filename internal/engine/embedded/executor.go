package embedded

import (
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/index"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/parser"
	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/ranker"
)

// execute returns the ids for the requested window and the number of
// matching documents. Callers hold c.mu.
func (c *collection) execute(req engine.SearchRequest) ([]string, int) {
	plan := parser.Parse(req.Query)
	if plan.Placeholder() {
		return window(c.order, req.Offset, req.Limit), len(c.order)
	}
	if plan.Empty() {
		return []string{}, 0
	}

	slots := make([]index.PostingList, 0, len(plan.Terms)+1)
	for _, term := range plan.Terms {
		slots = append(slots, c.index.Search(term))
	}
	if plan.Prefix != "" {
		slots = append(slots, c.prefixPostings(plan))
	}

	var candidates map[string]struct{}
	switch plan.Type {
	case parser.QueryOR:
		candidates = unionPostings(slots)
	default:
		candidates = intersectPostings(slots)
	}
	for _, term := range plan.ExcludeTerms {
		for _, p := range c.index.Search(term) {
			delete(candidates, p.DocID)
		}
	}
	if len(candidates) == 0 {
		return []string{}, 0
	}

	params := ranker.RankParams{
		TotalDocs:    int64(c.index.DocCount()),
		AvgDocLength: c.index.AvgDocLength(),
	}
	getDocInfo := func(docID string) ranker.DocInfo {
		return ranker.DocInfo{
			DocLength: c.index.DocLength(docID),
			Seq:       c.seq[docID],
		}
	}
	ranked := ranker.Top(ranker.Rank(slots, candidates, params, getDocInfo), req.Offset, req.Limit)
	ids := make([]string, len(ranked))
	for i, doc := range ranked {
		ids[i] = doc.DocID
	}
	return ids, len(candidates)
}

// prefixPostings matches the trailing word either exactly or as the start
// of any indexed word.
func (c *collection) prefixPostings(plan *parser.QueryPlan) index.PostingList {
	terms := make(map[string]struct{})
	for _, term := range plan.PrefixTerms {
		terms[term] = struct{}{}
	}
	for _, term := range c.index.TermsWithPrefix(plan.Prefix) {
		terms[term] = struct{}{}
	}
	lists := make([]index.PostingList, 0, len(terms))
	for term := range terms {
		lists = append(lists, c.index.Search(term))
	}
	if len(lists) == 0 {
		return nil
	}
	return index.Merge(lists...)
}

func window(ids []string, offset, limit int) []string {
	if offset >= len(ids) {
		return []string{}
	}
	end := offset + limit
	if end > len(ids) {
		end = len(ids)
	}
	out := make([]string, end-offset)
	copy(out, ids[offset:end])
	return out
}

// intersectPostings keeps documents present in every slot. A slot with no
// postings empties the result.
func intersectPostings(slots []index.PostingList) map[string]struct{} {
	candidates := make(map[string]struct{})
	if len(slots) == 0 {
		return candidates
	}
	shortest := 0
	for i, postings := range slots {
		if len(postings) < len(slots[shortest]) {
			shortest = i
		}
	}
	for _, p := range slots[shortest] {
		candidates[p.DocID] = struct{}{}
	}
	for i, postings := range slots {
		if i == shortest {
			continue
		}
		docSet := make(map[string]struct{}, len(postings))
		for _, p := range postings {
			docSet[p.DocID] = struct{}{}
		}
		for docID := range candidates {
			if _, exists := docSet[docID]; !exists {
				delete(candidates, docID)
			}
		}
	}
	return candidates
}

func unionPostings(slots []index.PostingList) map[string]struct{} {
	result := make(map[string]struct{})
	for _, postings := range slots {
		for _, p := range postings {
			result[p.DocID] = struct{}{}
		}
	}
	return result
}
