// Package ranker scores candidate documents with BM25 and selects the top
// results. Equal scores fall back to insertion order so results are stable
// across runs.
package ranker

import (
	"container/heap"
	"math"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/index"
)

const (
	k1 = 1.2
	b  = 0.75
)

type ScoredDoc struct {
	DocID string  `json:"doc_id"`
	Score float64 `json:"score"`
	Seq   int64   `json:"-"`
}

type RankParams struct {
	TotalDocs    int64
	AvgDocLength float64
}

type DocInfo struct {
	DocLength int
	Seq       int64
}

// Rank scores every document in candidates against the postings of each
// query slot. Only candidates are returned, even if a posting list
// mentions other documents.
func Rank(
	postingsPerSlot []index.PostingList,
	candidates map[string]struct{},
	params RankParams,
	getDocInfo func(docID string) DocInfo,
) []ScoredDoc {
	scores := make(map[string]float64, len(candidates))
	for id := range candidates {
		scores[id] = 0
	}
	for _, postings := range postingsPerSlot {
		idf := computeIDF(params.TotalDocs, int64(len(postings)))
		for _, posting := range postings {
			if _, ok := candidates[posting.DocID]; !ok {
				continue
			}
			info := getDocInfo(posting.DocID)
			scores[posting.DocID] += idf * computeTFNorm(
				float64(posting.Frequency),
				float64(info.DocLength),
				params.AvgDocLength,
			)
		}
	}
	result := make([]ScoredDoc, 0, len(scores))
	for docID, score := range scores {
		result = append(result, ScoredDoc{
			DocID: docID,
			Score: math.Round(score*10000) / 10000,
			Seq:   getDocInfo(docID).Seq,
		})
	}
	return result
}

// Top returns the window [offset, offset+limit) of docs ordered by score
// descending, then by insertion order.
func Top(docs []ScoredDoc, offset, limit int) []ScoredDoc {
	if limit <= 0 || offset >= len(docs) {
		return []ScoredDoc{}
	}
	keep := offset + limit
	h := &scoredDocHeap{}
	heap.Init(h)
	for _, doc := range docs {
		heap.Push(h, doc)
		if h.Len() > keep {
			heap.Pop(h)
		}
	}
	ordered := make([]ScoredDoc, h.Len())
	for i := len(ordered) - 1; i >= 0; i-- {
		ordered[i] = heap.Pop(h).(ScoredDoc)
	}
	if offset >= len(ordered) {
		return []ScoredDoc{}
	}
	return ordered[offset:]
}

func computeIDF(totalDocs int64, docFreq int64) float64 {
	numerator := float64(totalDocs) - float64(docFreq) + 0.5
	denominator := float64(docFreq) + 0.5
	return math.Log(numerator/denominator + 1)
}

func computeTFNorm(termFreq float64, docLength float64, avgDocLength float64) float64 {
	if avgDocLength == 0 {
		return 0
	}
	lengthRatio := docLength / avgDocLength
	denominator := termFreq + k1*(1-b+b*lengthRatio)
	return (termFreq * (k1 + 1)) / denominator
}

// scoredDocHeap is a min-heap on rank: the root is the worst kept result.
type scoredDocHeap []ScoredDoc

func (h scoredDocHeap) Len() int { return len(h) }

func (h scoredDocHeap) Less(i, j int) bool {
	if h[i].Score != h[j].Score {
		return h[i].Score < h[j].Score
	}
	return h[i].Seq > h[j].Seq
}

func (h scoredDocHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *scoredDocHeap) Push(x interface{}) {
	*h = append(*h, x.(ScoredDoc))
}

func (h *scoredDocHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
