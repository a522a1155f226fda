package rollout

import (
	"testing"

	"github.com/hewudi666/maro/env"
	"github.com/hewudi666/maro/types"
)

// walks straight to the goal corner
type goalPolicy struct {
	flip bool
}

func (g *goalPolicy) ChooseAction(_ []float64) int {
	g.flip = !g.flip
	if g.flip {
		return env.MoveUp
	}
	return env.MoveRight
}

func (g *goalPolicy) SetState(_ types.PolicyState) error { return nil }

func TestCollectorEpisodeAccounting(t *testing.T) {
	world := env.NewGridWorld(2, 2)
	c := NewCollector(&goalPolicy{}, world, 50)

	batch := c.Collect(3)
	// a 2x2 grid takes exactly two steps per episode with this policy
	if batch.Size() != 6 {
		t.Errorf("expected 6 transitions over 3 episodes, got %d", batch.Size())
	}
	if len(c.EpisodeRewards) != 3 {
		t.Errorf("expected 3 episode rewards, got %d", len(c.EpisodeRewards))
	}
	last := batch.Transitions[batch.Size()-1]
	if !last.Done {
		t.Errorf("final transition of an episode should be terminal")
	}
}

func TestCollectorHonorsHorizon(t *testing.T) {
	world := env.NewGridWorld(50, 50)
	c := NewCollector(&goalPolicy{}, world, 10)
	batch := c.Collect(1)
	if batch.Size() != 10 {
		t.Errorf("expected the horizon to cap the episode at 10 steps, got %d", batch.Size())
	}
}

func TestMovingAverage(t *testing.T) {
	got := MovingAverage([]float64{1, 1, 4, 4}, 2)
	want := []float64{1, 1, 2.5, 4}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("moving average at %d: got %f want %f", i, got[i], want[i])
		}
	}
}
