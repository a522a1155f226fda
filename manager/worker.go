package manager

import (
	"context"
	"errors"
	"fmt"

	"github.com/hewudi666/maro/trainer"
	"github.com/hewudi666/maro/types"
)

// MultiWorkerPolicyManager partitions the policies over a pool of
// trainer workers, each a goroutine hosting its own policy instances.
// Every round fans out one typed request per worker and then blocks
// collecting replies in a fixed order: a full barrier. A stalled worker
// stalls the round; callers bound rounds through the context.
type MultiWorkerPolicyManager struct {
	*basePolicyManager

	trainerIDs        []string
	policyToTrainer   map[string]string
	trainerToPolicies map[string][]string
	workers           map[string]*trainer.Worker

	expCache      map[string]*types.ExperienceBatch
	numExperience map[string]int
}

var _ PolicyManager = &MultiWorkerPolicyManager{}

func NewMultiWorkerPolicyManager(config Config) (*MultiWorkerPolicyManager, error) {
	if err := validatePolicies(config.Policies); err != nil {
		return nil, err
	}
	if config.NumTrainers < 1 {
		return nil, fmt.Errorf("multi-worker manager requires at least one trainer, got %d", config.NumTrainers)
	}
	names := sortedNames(config.Policies)
	for _, name := range names {
		if _, ok := config.PolicyFuncs[name]; !ok {
			return nil, fmt.Errorf("multi-worker manager: no policy func for %s", name)
		}
	}

	numTrainers := config.NumTrainers
	if numTrainers > len(names) {
		numTrainers = len(names)
	}
	pool := trainerPool(numTrainers)
	policyToTrainer, trainerToPolicies := assignRoundRobin(names, pool)

	m := &MultiWorkerPolicyManager{
		basePolicyManager: newBasePolicyManager(names, config),
		trainerIDs:        pool,
		policyToTrainer:   policyToTrainer,
		trainerToPolicies: trainerToPolicies,
		workers:           make(map[string]*trainer.Worker, numTrainers),
		expCache:          make(map[string]*types.ExperienceBatch),
		numExperience:     make(map[string]int, len(names)),
	}

	states := make(map[string]types.PolicyState, len(names))
	for _, name := range names {
		state, err := config.Policies[name].GetState()
		if err != nil {
			return nil, fmt.Errorf("reading initial state of %s: %w", name, err)
		}
		states[name] = state
	}
	m.seedStates(states)

	for _, trainerID := range pool {
		hosted := make(map[string]types.PolicyState)
		for _, name := range trainerToPolicies[trainerID] {
			hosted[name] = states[name]
		}
		w, err := trainer.NewWorker(trainerID, config.PolicyFuncs, hosted, config.Logger)
		if err != nil {
			m.stopWorkers()
			return nil, err
		}
		m.workers[trainerID] = w
		m.logger.Infof("%s hosting policies %v", trainerID, trainerToPolicies[trainerID])
	}

	return m, nil
}

// Assignments reports the static policy-to-trainer partition
func (m *MultiWorkerPolicyManager) Assignments() map[string]string {
	out := make(map[string]string, len(m.policyToTrainer))
	for name, trainerID := range m.policyToTrainer {
		out[name] = trainerID
	}
	return out
}

// Update caches the incoming experience and flushes every policy whose
// trigger and warmup conditions are met to its assigned worker.
func (m *MultiWorkerPolicyManager) Update(ctx context.Context, expByPolicy map[string]*types.ExperienceBatch) error {
	if err := m.checkUsable(); err != nil {
		return err
	}

	toSend, updated, err := m.flushEligible(expByPolicy)
	if err != nil {
		return err
	}

	sent := 0
	for _, trainerID := range m.trainerIDs {
		req := types.TrainRequest{Experiences: make(map[string]*types.ExperienceBatch)}
		for _, name := range m.trainerToPolicies[trainerID] {
			if exp, ok := toSend[name]; ok {
				req.Experiences[name] = exp
			}
		}
		if err := m.workers[trainerID].Send(ctx, req); err != nil {
			// earlier workers already hold this round's request; their
			// replies would desync the next round's barrier
			if sent > 0 {
				m.markBroken()
			}
			return err
		}
		sent++
	}

	// the barrier: drain every worker's reply even if one reports a
	// failure, so a failed round leaves no reply queued for the next one
	newStates := make(map[string]types.PolicyState)
	trackers := make([]types.Tracker, 0, len(m.trainerIDs))
	var roundErr error
	for _, trainerID := range m.trainerIDs {
		res, err := m.workers[trainerID].Recv(ctx)
		if err != nil {
			m.markBroken()
			return err
		}
		if res.Err != "" {
			if roundErr == nil {
				roundErr = errors.New(res.Err)
			}
			continue
		}
		trackers = append(trackers, res.Tracker)
		for name, state := range res.PolicyStates {
			newStates[name] = state
		}
	}
	if roundErr != nil {
		return roundErr
	}

	m.commitRound(updated, newStates)
	if m.postUpdate != nil {
		m.postUpdate(trackers)
	}
	return nil
}

// flushEligible accumulates the round's experience into the pending
// cache and moves out the batches of every policy due for an update
func (m *MultiWorkerPolicyManager) flushEligible(
	expByPolicy map[string]*types.ExperienceBatch,
) (map[string]*types.ExperienceBatch, map[string]struct{}, error) {
	toSend := make(map[string]*types.ExperienceBatch)
	updated := make(map[string]struct{})

	// reject unknown names before touching the cache, so a corrected
	// retry does not double-count the known ones
	for name := range expByPolicy {
		if _, ok := m.policyToTrainer[name]; !ok {
			return nil, nil, fmt.Errorf("unknown policy in update: %s", name)
		}
	}

	for name, exp := range expByPolicy {
		cached, ok := m.expCache[name]
		if !ok {
			cached = types.NewExperienceBatch()
			m.expCache[name] = cached
		}
		cached.Extend(exp)
		m.numExperience[name] += exp.Size()
	}

	for name, cached := range m.expCache {
		if cached.Size() >= m.updateTrigger[name] && m.numExperience[name] >= m.warmup[name] {
			toSend[name] = cached
			updated[name] = struct{}{}
			delete(m.expCache, name)
		}
	}
	return toSend, updated, nil
}

// Exit stops every trainer worker. A second call is a caller error.
func (m *MultiWorkerPolicyManager) Exit() error {
	if !m.markClosed() {
		return ErrManagerClosed
	}
	m.stopWorkers()
	return nil
}

func (m *MultiWorkerPolicyManager) stopWorkers() {
	for _, w := range m.workers {
		w.Stop()
	}
}
