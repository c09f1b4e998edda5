package index

type Posting struct {
	DocID     string
	Frequency int
	Positions []int
}

type PostingList []Posting

// Merge folds several posting lists for alternative terms into one list with
// per-document frequencies summed. The result is ordered by DocID.
func Merge(lists ...PostingList) PostingList {
	if len(lists) == 1 {
		return lists[0]
	}
	byDoc := make(map[string]*Posting)
	order := make([]string, 0)
	for _, list := range lists {
		for _, p := range list {
			acc, ok := byDoc[p.DocID]
			if !ok {
				acc = &Posting{DocID: p.DocID}
				byDoc[p.DocID] = acc
				order = append(order, p.DocID)
			}
			acc.Frequency += p.Frequency
			acc.Positions = append(acc.Positions, p.Positions...)
		}
	}
	result := make(PostingList, 0, len(order))
	for _, id := range order {
		result = append(result, *byDoc[id])
	}
	sortByDocID(result)
	return result
}
