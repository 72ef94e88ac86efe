package draw

import "sort"

// SortAscending sorts in place by round and returns the same slice.
func SortAscending(items []Result) []Result {
	sort.SliceStable(items, func(i, j int) bool { return items[i].Round < items[j].Round })
	return items
}

// DedupeLastSeen keeps the last occurrence of every round. Output is ascending.
func DedupeLastSeen(items []Result) []Result {
	byRound := make(map[int]Result, len(items))
	for _, item := range items {
		byRound[item.Round] = item
	}
	return fromMap(byRound)
}

// MergeByPrecedence folds the layers in order. For a round present in several
// layers the row with the higher source precedence wins; on equal precedence
// the later layer wins. Output is ascending with one row per round.
func MergeByPrecedence(layers ...[]Result) []Result {
	size := 0
	for _, layer := range layers {
		size += len(layer)
	}

	byRound := make(map[int]Result, size)
	for _, layer := range layers {
		for _, item := range layer {
			current, ok := byRound[item.Round]
			if ok && current.Source.Precedence() > item.Source.Precedence() {
				continue
			}
			byRound[item.Round] = item
		}
	}

	return fromMap(byRound)
}

// Range derives the round range of an ascending, deduplicated series.
func Range(items []Result) RoundRange {
	if len(items) == 0 {
		return RoundRange{}
	}
	return RoundRange{
		LatestRound: items[len(items)-1].Round,
		OldestRound: items[0].Round,
		TotalCount:  len(items),
	}
}

// Missing lists rounds in [from, to] absent from the series.
func Missing(items []Result, from, to int) []int {
	if from < 1 {
		from = 1
	}
	if to < from {
		return nil
	}

	present := make(map[int]struct{}, len(items))
	for _, item := range items {
		present[item.Round] = struct{}{}
	}

	out := make([]int, 0)
	for round := from; round <= to; round++ {
		if _, ok := present[round]; !ok {
			out = append(out, round)
		}
	}
	return out
}

func CountBySource(items []Result) map[Source]int {
	out := make(map[Source]int, 4)
	for _, item := range items {
		out[item.Source]++
	}
	return out
}

// Within returns the rows whose round lies in [from, to], preserving order.
func Within(items []Result, from, to int) []Result {
	out := make([]Result, 0, len(items))
	for _, item := range items {
		if item.Round >= from && item.Round <= to {
			out = append(out, item)
		}
	}
	return out
}

func fromMap(byRound map[int]Result) []Result {
	out := make([]Result, 0, len(byRound))
	for _, item := range byRound {
		out = append(out, item)
	}
	return SortAscending(out)
}
