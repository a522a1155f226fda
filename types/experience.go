package types

// A single reward/state/action record produced by a simulation rollout
type Transition struct {
	State     []float64 `json:"state"`
	Action    int       `json:"action"`
	Reward    float64   `json:"reward"`
	NextState []float64 `json:"next_state"`
	Done      bool      `json:"done"`
}

// ExperienceBatch is the atomic unit of training data routed through the
// system. Batches are grouped by policy name, accumulated by the policy
// manager and handed to a trainer unit once the policy's update trigger
// is met. A flushed batch is moved, not copied.
type ExperienceBatch struct {
	Transitions []Transition `json:"transitions"`
}

func NewExperienceBatch(transitions ...Transition) *ExperienceBatch {
	return &ExperienceBatch{
		Transitions: transitions,
	}
}

// number of transition records in the batch
func (b *ExperienceBatch) Size() int {
	if b == nil {
		return 0
	}
	return len(b.Transitions)
}

// Extend appends the records of other to b, preserving order
func (b *ExperienceBatch) Extend(other *ExperienceBatch) {
	if other == nil {
		return
	}
	b.Transitions = append(b.Transitions, other.Transitions...)
}

func (b *ExperienceBatch) Copy() *ExperienceBatch {
	if b == nil {
		return nil
	}
	n := &ExperienceBatch{
		Transitions: make([]Transition, len(b.Transitions)),
	}
	copy(n.Transitions, b.Transitions)
	return n
}
