package manager

import (
	"encoding/json"
	"fmt"

	"github.com/hewudi666/maro/types"
)

// a deterministic policy for exercising the manager variants
type stubPolicy struct {
	name       string
	store      *types.ExperienceStore
	learnCalls int
	learnErr   error
	// when set, Learn blocks until the gate is closed
	learnGate chan struct{}
}

var _ types.TrainablePolicy = &stubPolicy{}

func newStubPolicy(name string) *stubPolicy {
	return &stubPolicy{
		name:  name,
		store: types.NewExperienceStore(0),
	}
}

func (s *stubPolicy) ChooseAction(_ []float64) int {
	return 0
}

func (s *stubPolicy) Learn() (bool, error) {
	if s.learnGate != nil {
		<-s.learnGate
	}
	if s.learnErr != nil {
		return false, s.learnErr
	}
	s.learnCalls += 1
	return true, nil
}

func (s *stubPolicy) GetState() (types.PolicyState, error) {
	return types.PolicyState(fmt.Sprintf(`{"learn_calls":%d}`, s.learnCalls)), nil
}

func (s *stubPolicy) SetState(state types.PolicyState) error {
	parsed := struct {
		LearnCalls int `json:"learn_calls"`
	}{}
	if err := json.Unmarshal(state, &parsed); err != nil {
		return err
	}
	s.learnCalls = parsed.LearnCalls
	return nil
}

func (s *stubPolicy) Store() *types.ExperienceStore {
	return s.store
}

func learnCallsOf(state types.PolicyState) int {
	parsed := struct {
		LearnCalls int `json:"learn_calls"`
	}{}
	json.Unmarshal(state, &parsed)
	return parsed.LearnCalls
}

func batchOfSize(n int) *types.ExperienceBatch {
	transitions := make([]types.Transition, n)
	for i := range transitions {
		transitions[i] = types.Transition{
			State:     []float64{float64(i)},
			Action:    0,
			Reward:    1,
			NextState: []float64{float64(i + 1)},
		}
	}
	return types.NewExperienceBatch(transitions...)
}

func stubPolicyDict(names ...string) map[string]types.TrainablePolicy {
	out := make(map[string]types.TrainablePolicy, len(names))
	for _, name := range names {
		out[name] = newStubPolicy(name)
	}
	return out
}

func stubPolicyFuncs(names ...string) map[string]types.PolicyFunc {
	out := make(map[string]types.PolicyFunc, len(names))
	for _, name := range names {
		out[name] = func(n string) types.TrainablePolicy {
			return newStubPolicy(n)
		}
	}
	return out
}
