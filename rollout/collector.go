package rollout

import (
	"github.com/hewudi666/maro/types"
)

// ActionChooser is the slice of the policy capability a rollout needs.
// Rollout producers hold a stale copy of the policy for acting; learning
// happens only inside trainer units.
type ActionChooser interface {
	ChooseAction(state []float64) int
	SetState(state types.PolicyState) error
}

// Collector runs one policy against one environment and accumulates the
// resulting transitions into experience batches for the policy manager.
type Collector struct {
	policy  ActionChooser
	env     types.Environment
	horizon int

	// total reward of each completed episode
	EpisodeRewards []float64
}

func NewCollector(policy ActionChooser, environment types.Environment, horizon int) *Collector {
	return &Collector{
		policy:         policy,
		env:            environment,
		horizon:        horizon,
		EpisodeRewards: make([]float64, 0),
	}
}

// Collect runs the given number of episodes and returns all transitions
// as a single batch
func (c *Collector) Collect(episodes int) *types.ExperienceBatch {
	batch := types.NewExperienceBatch()
	for e := 0; e < episodes; e++ {
		batch.Extend(c.runEpisode())
	}
	return batch
}

func (c *Collector) runEpisode() *types.ExperienceBatch {
	batch := types.NewExperienceBatch()
	state := c.env.Reset()
	total := float64(0)

	for i := 0; i < c.horizon; i++ {
		action := c.policy.ChooseAction(state)
		next, reward, done := c.env.Step(action)
		batch.Transitions = append(batch.Transitions, types.Transition{
			State:     state,
			Action:    action,
			Reward:    reward,
			NextState: next,
			Done:      done,
		})
		total += reward
		state = next
		if done {
			break
		}
	}
	c.EpisodeRewards = append(c.EpisodeRewards, total)
	return batch
}

// Refresh installs a newer policy snapshot pulled from the manager
func (c *Collector) Refresh(state types.PolicyState) error {
	return c.policy.SetState(state)
}
