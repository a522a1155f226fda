package manager

import (
	"context"
	"fmt"
	"os"

	"github.com/hewudi666/maro/types"
	"github.com/hewudi666/maro/util"
)

// LocalPolicyManager hosts the actual policy instances and mutates them
// in the caller's goroutine. A learn failure propagates synchronously
// and aborts the round without committing a version entry.
type LocalPolicyManager struct {
	*basePolicyManager

	policies      map[string]types.TrainablePolicy
	names         []string
	newExpCounter map[string]int

	checkpointDir   string
	checkpointEvery int
	rounds          int
}

var _ PolicyManager = &LocalPolicyManager{}

func NewLocalPolicyManager(config Config) (*LocalPolicyManager, error) {
	if err := validatePolicies(config.Policies); err != nil {
		return nil, err
	}
	names := sortedNames(config.Policies)

	m := &LocalPolicyManager{
		basePolicyManager: newBasePolicyManager(names, config),
		policies:          config.Policies,
		names:             names,
		newExpCounter:     make(map[string]int, len(names)),
		checkpointDir:     config.CheckpointDir,
		checkpointEvery:   config.CheckpointEvery,
	}

	if config.LoadDir != "" {
		m.loadCheckpoints(config.LoadDir)
	}

	states := make(map[string]types.PolicyState, len(names))
	for _, name := range names {
		state, err := m.policies[name].GetState()
		if err != nil {
			return nil, fmt.Errorf("reading initial state of %s: %w", name, err)
		}
		states[name] = state
	}
	m.seedStates(states)

	return m, nil
}

func (m *LocalPolicyManager) loadCheckpoints(dir string) {
	for _, name := range m.names {
		state, err := util.LoadPolicyState(dir, name)
		if err != nil {
			if os.IsNotExist(err) {
				m.logger.Warnf("policy %s skipped: no checkpoint file found", name)
			} else {
				m.logger.Warnf("policy %s skipped: loading checkpoint: %v", name, err)
			}
			continue
		}
		if err := m.policies[name].SetState(state); err != nil {
			m.logger.Warnf("policy %s skipped: restoring checkpoint: %v", name, err)
		}
	}
}

// Update stores the incoming experience in each policy's memory and runs
// learn on every policy whose trigger and warmup conditions are met.
func (m *LocalPolicyManager) Update(ctx context.Context, expByPolicy map[string]*types.ExperienceBatch) error {
	if err := m.checkUsable(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	for name := range expByPolicy {
		if _, ok := m.policies[name]; !ok {
			return fmt.Errorf("unknown policy in update: %s", name)
		}
	}

	updated := make(map[string]struct{})
	newStates := make(map[string]types.PolicyState)
	tracker := types.Tracker{}

	for _, name := range m.names {
		exp, ok := expByPolicy[name]
		if !ok {
			continue
		}
		policy := m.policies[name]
		policy.Store().Put(exp)
		m.newExpCounter[name] += exp.Size()
		tracker["transitions"] += float64(exp.Size())

		if m.newExpCounter[name] >= m.updateTrigger[name] && policy.Store().Size() >= m.warmup[name] {
			learned, err := policy.Learn()
			if err != nil {
				return fmt.Errorf("learn on %s: %w", name, err)
			}
			state, err := policy.GetState()
			if err != nil {
				return fmt.Errorf("state of %s: %w", name, err)
			}
			updated[name] = struct{}{}
			newStates[name] = state
			m.newExpCounter[name] = 0
			if learned {
				tracker["learned"] += 1
			}
		}
	}

	m.commitRound(updated, newStates)
	m.rounds++
	if m.checkpointEvery > 0 && m.rounds%m.checkpointEvery == 0 {
		m.saveCheckpoints(newStates)
	}

	if m.postUpdate != nil {
		m.postUpdate([]types.Tracker{tracker})
	}
	return nil
}

func (m *LocalPolicyManager) saveCheckpoints(states map[string]types.PolicyState) {
	for name, state := range states {
		if err := util.SavePolicyState(m.checkpointDir, name, state); err != nil {
			m.logger.Warnf("checkpointing %s: %v", name, err)
		}
	}
}

// Exit marks the manager closed. There are no separate trainer units to
// terminate in local mode.
func (m *LocalPolicyManager) Exit() error {
	if !m.markClosed() {
		return ErrManagerClosed
	}
	return nil
}
