package types

// ExperienceStore holds the experience accumulated for a single policy.
// A store with capacity <= 0 is unbounded, otherwise the oldest records
// are evicted once the capacity is exceeded.
type ExperienceStore struct {
	capacity    int
	transitions []Transition
}

func NewExperienceStore(capacity int) *ExperienceStore {
	return &ExperienceStore{
		capacity:    capacity,
		transitions: make([]Transition, 0),
	}
}

func (s *ExperienceStore) Put(batch *ExperienceBatch) {
	if batch == nil {
		return
	}
	s.transitions = append(s.transitions, batch.Transitions...)
	if s.capacity > 0 && len(s.transitions) > s.capacity {
		overflow := len(s.transitions) - s.capacity
		s.transitions = s.transitions[overflow:]
	}
}

func (s *ExperienceStore) Size() int {
	return len(s.transitions)
}

// Transitions returns the stored records in insertion order. The caller
// must not mutate the returned slice.
func (s *ExperienceStore) Transitions() []Transition {
	return s.transitions
}
