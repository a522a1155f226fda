package trainer

import (
	"fmt"
	"sort"
	"time"

	"github.com/hewudi666/maro/types"
	"github.com/hewudi666/maro/util"
)

// Unit hosts a disjoint subset of policies and performs the actual
// learning step on behalf of a policy manager. A unit is single-threaded:
// the manager never sends it a second request before receiving the reply
// to the prior one.
type Unit struct {
	id       string
	policies map[string]types.TrainablePolicy
	logger   *util.Logger
}

// NewUnit constructs the unit's own policy instances from the factory
// funcs and seeds them with the given initial states. Only the policies
// named in states are instantiated.
func NewUnit(
	id string,
	policyFuncs map[string]types.PolicyFunc,
	states map[string]types.PolicyState,
	logger *util.Logger,
) (*Unit, error) {
	policies := make(map[string]types.TrainablePolicy, len(states))
	for name, state := range states {
		create, ok := policyFuncs[name]
		if !ok {
			return nil, fmt.Errorf("trainer %s: no policy func for %s", id, name)
		}
		policy := create(name)
		if policy == nil {
			return nil, fmt.Errorf("trainer %s: policy func for %s returned nil", id, name)
		}
		if len(state) > 0 {
			if err := policy.SetState(state); err != nil {
				return nil, fmt.Errorf("trainer %s: initializing %s: %w", id, name, err)
			}
		}
		policies[name] = policy
	}
	return &Unit{
		id:       id,
		policies: policies,
		logger:   logger,
	}, nil
}

func (u *Unit) ID() string {
	return u.id
}

// Train applies the request's experience batches, runs one learning step
// per named policy and captures the resulting states. Policies with no
// batch in the request are left untouched and excluded from the reply.
func (u *Unit) Train(req types.TrainRequest) types.TrainResult {
	result := types.TrainResult{
		TrainerID:    u.id,
		PolicyStates: make(map[string]types.PolicyState),
		Tracker:      types.Tracker{},
	}

	names := make([]string, 0, len(req.Experiences))
	for name := range req.Experiences {
		names = append(names, name)
	}
	sort.Strings(names)

	t0 := time.Now()
	for _, name := range names {
		exp := req.Experiences[name]
		if exp.Size() == 0 {
			continue
		}
		policy, ok := u.policies[name]
		if !ok {
			result.Err = fmt.Sprintf("trainer %s does not host policy %s", u.id, name)
			return result
		}
		policy.Store().Put(exp)
		learned, err := policy.Learn()
		if err != nil {
			result.Err = fmt.Sprintf("trainer %s: learn on %s: %v", u.id, name, err)
			return result
		}
		state, err := policy.GetState()
		if err != nil {
			result.Err = fmt.Sprintf("trainer %s: state of %s: %v", u.id, name, err)
			return result
		}
		result.PolicyStates[name] = state
		result.Tracker["batches"] += 1
		result.Tracker["transitions"] += float64(exp.Size())
		if learned {
			result.Tracker["learned"] += 1
		}
	}
	result.Tracker["train_seconds"] = time.Since(t0).Seconds()

	if len(result.PolicyStates) > 0 {
		u.logger.Debugf("trainer %s trained %d policies", u.id, len(result.PolicyStates))
	}
	return result
}
