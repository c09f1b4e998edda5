package ranker

import (
	"testing"

	"github.com/Adithya-Monish-Kumar-K/search-playground/internal/engine/embedded/index"
)

func TestRankPrefersHigherFrequency(t *testing.T) {
	postings := []index.PostingList{{
		{DocID: "a", Frequency: 1},
		{DocID: "b", Frequency: 3},
	}}
	candidates := map[string]struct{}{"a": {}, "b": {}}
	info := map[string]DocInfo{"a": {DocLength: 4, Seq: 0}, "b": {DocLength: 4, Seq: 1}}
	docs := Rank(postings, candidates, RankParams{TotalDocs: 3, AvgDocLength: 4}, func(id string) DocInfo {
		return info[id]
	})
	top := Top(docs, 0, 10)
	if len(top) != 2 || top[0].DocID != "b" {
		t.Fatalf("top = %+v, want b first", top)
	}
	if top[0].Score <= top[1].Score {
		t.Errorf("scores not descending: %+v", top)
	}
}

func TestRankIgnoresNonCandidates(t *testing.T) {
	postings := []index.PostingList{{{DocID: "a", Frequency: 1}, {DocID: "x", Frequency: 5}}}
	docs := Rank(postings, map[string]struct{}{"a": {}}, RankParams{TotalDocs: 2, AvgDocLength: 1}, func(string) DocInfo {
		return DocInfo{DocLength: 1}
	})
	if len(docs) != 1 || docs[0].DocID != "a" {
		t.Errorf("docs = %+v", docs)
	}
}

func TestTopTieBreaksByInsertionOrder(t *testing.T) {
	docs := []ScoredDoc{
		{DocID: "c", Score: 1, Seq: 2},
		{DocID: "a", Score: 1, Seq: 0},
		{DocID: "b", Score: 1, Seq: 1},
		{DocID: "d", Score: 2, Seq: 3},
	}
	tests := []struct {
		offset, limit int
		want          []string
	}{
		{0, 10, []string{"d", "a", "b", "c"}},
		{0, 2, []string{"d", "a"}},
		{1, 2, []string{"a", "b"}},
		{3, 5, []string{"c"}},
		{4, 5, []string{}},
		{0, 0, []string{}},
	}
	for _, tt := range tests {
		got := Top(docs, tt.offset, tt.limit)
		if len(got) != len(tt.want) {
			t.Errorf("Top(%d,%d) = %+v, want %v", tt.offset, tt.limit, got, tt.want)
			continue
		}
		for i := range got {
			if got[i].DocID != tt.want[i] {
				t.Errorf("Top(%d,%d)[%d] = %s, want %s", tt.offset, tt.limit, i, got[i].DocID, tt.want[i])
			}
		}
	}
}
