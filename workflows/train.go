package workflows

import (
	"context"
	"fmt"
	"os"
	"sort"

	"github.com/hewudi666/maro/env"
	"github.com/hewudi666/maro/manager"
	"github.com/hewudi666/maro/policies"
	"github.com/hewudi666/maro/rollout"
	"github.com/hewudi666/maro/types"
	"github.com/hewudi666/maro/util"
)

func policyName(i int) string {
	return fmt.Sprintf("POLICY.%d", i)
}

func newGridPolicy(world *env.GridWorld) *policies.QLearningPolicy {
	return policies.NewQLearningPolicy(policies.QLearningConfig{
		NumActions:  world.NumActions(),
		Alpha:       0.3,
		Gamma:       0.95,
		Temperature: 1,
	})
}

// buildTrainingSetup wires one grid world, one policy and one collector
// per policy name
func buildTrainingSetup() (map[string]types.TrainablePolicy, map[string]types.PolicyFunc, map[string]*rollout.Collector) {
	policyDict := make(map[string]types.TrainablePolicy, numPolicy)
	policyFuncs := make(map[string]types.PolicyFunc, numPolicy)
	collectors := make(map[string]*rollout.Collector, numPolicy)
	for i := 0; i < numPolicy; i++ {
		name := policyName(i)
		world := env.NewGridWorld(5, 5)
		policyDict[name] = newGridPolicy(world)
		policyFuncs[name] = func(string) types.TrainablePolicy {
			return newGridPolicy(world)
		}
		// the collector acts on its own stale copy of the policy
		collectors[name] = rollout.NewCollector(newGridPolicy(world), world, horizon)
	}
	return policyDict, policyFuncs, collectors
}

// runTrainingLoop drives the collect/update/refresh cycle against any
// policy manager variant
func runTrainingLoop(ctx context.Context, mgr manager.PolicyManager, collectors map[string]*rollout.Collector, logger *util.Logger) error {
	for r := 0; r < rounds; r++ {
		expByPolicy := make(map[string]*types.ExperienceBatch, len(collectors))
		for name, collector := range collectors {
			expByPolicy[name] = collector.Collect(episodes)
		}
		if err := mgr.Update(ctx, expByPolicy); err != nil {
			return fmt.Errorf("round %d: %w", r+1, err)
		}
		for name, state := range mgr.GetState(-1) {
			if err := collectors[name].Refresh(state); err != nil {
				return fmt.Errorf("refreshing %s: %w", name, err)
			}
		}
		logger.Infof("round %d done, version %d", r+1, mgr.Version())
	}
	return nil
}

// saveResults records reward csvs and a comparison plot for all
// collectors
func saveResults(collectors map[string]*rollout.Collector, logger *util.Logger) {
	if err := os.MkdirAll(saveDir, os.ModePerm); err != nil {
		logger.Warnf("creating save dir %s: %v", saveDir, err)
		return
	}
	names := make([]string, 0, len(collectors))
	for name := range collectors {
		names = append(names, name)
	}
	sort.Strings(names)

	rewards := make([][]float64, 0, len(collectors))
	for _, name := range names {
		collector := collectors[name]
		rewards = append(rewards, rollout.MovingAverage(collector.EpisodeRewards, 10))
		if err := rollout.RecordRewards(saveDir, name, collector.EpisodeRewards); err != nil {
			logger.Warnf("recording rewards for %s: %v", name, err)
		}
	}
	if err := rollout.RewardPlotter(saveDir)(names, rewards); err != nil {
		logger.Warnf("plotting rewards: %v", err)
	}
}
