package strategy

import (
	"sync/atomic"
)

// roundRobinStrategy rotates among the candidates that share the best
// priority; lower-priority candidates keep their order behind them.
type roundRobinStrategy struct {
	current uint64
}

func (rb *roundRobinStrategy) Order(candidates []Candidate) []Candidate {
	ordered := byPriority(candidates)
	if len(ordered) < 2 {
		return ordered
	}

	best := ordered[0].Target.Priority()
	group := 1
	for group < len(ordered) && ordered[group].Target.Priority() == best {
		group++
	}
	if group < 2 {
		return ordered
	}

	n := atomic.AddUint64(&rb.current, 1)
	shift := int((n - 1) % uint64(group))

	out := make([]Candidate, 0, len(ordered))
	out = append(out, ordered[shift:group]...)
	out = append(out, ordered[:shift]...)
	out = append(out, ordered[group:]...)
	return out
}

func NewRoundRobinStrategy() Strategy {
	return &roundRobinStrategy{
		current: 0,
	}
}
