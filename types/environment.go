package types

// Environment that rollout producers run policies against. External
// collaborator of the orchestration core, specified only by what the
// experience collector needs.
type Environment interface {
	// Reset starts a new episode and returns the initial observation
	Reset() []float64
	// Step applies an action and returns the next observation, the
	// reward and whether the episode terminated
	Step(action int) ([]float64, float64, bool)
	// NumActions in the environment's discrete action space
	NumActions() int
}
