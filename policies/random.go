package policies

import (
	"math/rand"
	"time"

	"github.com/hewudi666/maro/types"
)

// RandomPolicy picks uniformly random actions and never learns. Useful
// as a baseline and for exercising the manager's no-op update path.
type RandomPolicy struct {
	numActions int
	store      *types.ExperienceStore
	rand       *rand.Rand
}

var _ types.TrainablePolicy = &RandomPolicy{}

func NewRandomPolicy(numActions int) *RandomPolicy {
	return &RandomPolicy{
		numActions: numActions,
		store:      types.NewExperienceStore(0),
		rand:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *RandomPolicy) ChooseAction(_ []float64) int {
	return r.rand.Intn(r.numActions)
}

func (r *RandomPolicy) Learn() (bool, error) {
	return false, nil
}

func (r *RandomPolicy) GetState() (types.PolicyState, error) {
	return types.PolicyState("{}"), nil
}

func (r *RandomPolicy) SetState(_ types.PolicyState) error {
	return nil
}

func (r *RandomPolicy) Store() *types.ExperienceStore {
	return r.store
}
