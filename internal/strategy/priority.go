package strategy

type priorityStrategy struct{}

func (p *priorityStrategy) Order(candidates []Candidate) []Candidate {
	return byPriority(candidates)
}

func NewPriorityStrategy() Strategy {
	return &priorityStrategy{}
}
