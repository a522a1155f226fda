package env

import (
	"github.com/hewudi666/maro/types"
)

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

// Actions of the grid world
const (
	MoveUp = iota
	MoveDown
	MoveLeft
	MoveRight
	numMovements
)

// GridWorld is a small deterministic environment for producing rollout
// experience: the agent starts at the origin and is rewarded for
// reaching the opposite corner. Movement off the grid is clamped.
type GridWorld struct {
	Height int
	Width  int

	StepPenalty float64
	GoalReward  float64

	i, j int
}

var _ types.Environment = &GridWorld{}

func NewGridWorld(height, width int) *GridWorld {
	return &GridWorld{
		Height:      height,
		Width:       width,
		StepPenalty: -0.01,
		GoalReward:  1,
	}
}

func (g *GridWorld) NumActions() int {
	return numMovements
}

func (g *GridWorld) Reset() []float64 {
	g.i, g.j = 0, 0
	return g.observation()
}

func (g *GridWorld) Step(action int) ([]float64, float64, bool) {
	switch action {
	case MoveUp:
		g.i = min(g.Height-1, g.i+1)
	case MoveDown:
		g.i = max(0, g.i-1)
	case MoveLeft:
		g.j = max(0, g.j-1)
	case MoveRight:
		g.j = min(g.Width-1, g.j+1)
	}
	if g.i == g.Height-1 && g.j == g.Width-1 {
		return g.observation(), g.GoalReward, true
	}
	return g.observation(), g.StepPenalty, false
}

func (g *GridWorld) observation() []float64 {
	return []float64{float64(g.i), float64(g.j)}
}
