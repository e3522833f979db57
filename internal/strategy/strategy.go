package strategy

import (
	"fmt"
	"time"

	"github.com/angeloszaimis/resilient-client/internal/backend"
)

const (
	NamePriority     = "priority"
	NameLeastLatency = "least-latency"
	NameRoundRobin   = "round-robin"
)

// Candidate is a target together with its measured probe latency.
type Candidate struct {
	Target  backend.Target
	Latency time.Duration
}

// Strategy orders the candidates of one health tier, most preferred first.
// Implementations must not modify the input slice.
type Strategy interface {
	Order(candidates []Candidate) []Candidate
}

// New returns the strategy registered under name.
func New(name string) (Strategy, error) {
	switch name {
	case "", NamePriority:
		return NewPriorityStrategy(), nil
	case NameLeastLatency:
		return NewLeastLatencyStrategy(), nil
	case NameRoundRobin:
		return NewRoundRobinStrategy(), nil
	default:
		return nil, fmt.Errorf("unknown selection strategy %q", name)
	}
}

func targets(candidates []Candidate) []backend.Target {
	out := make([]backend.Target, len(candidates))
	for i, c := range candidates {
		out[i] = c.Target
	}
	return out
}

func byPriority(candidates []Candidate) []Candidate {
	index := make(map[string]Candidate, len(candidates))
	for _, c := range candidates {
		index[c.Target.Name()] = c
	}

	sorted := backend.SortByPriority(targets(candidates))
	out := make([]Candidate, len(sorted))
	for i, t := range sorted {
		out[i] = index[t.Name()]
	}
	return out
}
