package strategy

import "sort"

// leastLatencyStrategy prefers the target with the lowest EWMA probe latency.
// Targets that have not been measured yet go first so they get probed by traffic.
type leastLatencyStrategy struct{}

func (l *leastLatencyStrategy) Order(candidates []Candidate) []Candidate {
	ordered := byPriority(candidates)

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i].Latency, ordered[j].Latency
		if a == 0 || b == 0 {
			return a == 0 && b != 0
		}
		return a < b
	})

	return ordered
}

func NewLeastLatencyStrategy() Strategy {
	return &leastLatencyStrategy{}
}
