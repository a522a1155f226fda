package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/hewudi666/maro/communication"
	"github.com/hewudi666/maro/types"
)

// MultiNodePolicyManager coordinates trainer units on remote nodes
// through a manager endpoint. The round protocol is identical to the
// multi-worker variant; only the substrate differs. A network partition
// blocks the round on Receive, there is no built-in retry; callers
// bound rounds through the context.
type MultiNodePolicyManager struct {
	*basePolicyManager

	endpoint communication.ManagerEndpoint
	// every node discovered in the group, policy-hosting or not
	allWorkers        []string
	trainerIDs        []string
	policyToTrainer   map[string]string
	trainerToPolicies map[string][]string

	expCache      map[string]*types.ExperienceBatch
	numExperience map[string]int
}

var _ PolicyManager = &MultiNodePolicyManager{}

// NewMultiNodePolicyManager partitions the policies over the endpoint's
// discovered workers and performs the INIT_POLICY_STATE handshake with
// each of them before returning.
func NewMultiNodePolicyManager(ctx context.Context, config Config) (*MultiNodePolicyManager, error) {
	if err := validatePolicies(config.Policies); err != nil {
		return nil, err
	}
	if config.Endpoint == nil {
		return nil, errors.New("multi-node manager requires an endpoint")
	}
	pool := config.Endpoint.Workers()
	if len(pool) == 0 {
		return nil, errors.New("multi-node manager: endpoint discovered no workers")
	}

	names := sortedNames(config.Policies)
	policyToTrainer, trainerToPolicies := assignRoundRobin(names, pool)

	// trainers left without policies take no part in any round
	trainerIDs := make([]string, 0, len(trainerToPolicies))
	for trainerID := range trainerToPolicies {
		trainerIDs = append(trainerIDs, trainerID)
	}
	sort.Strings(trainerIDs)

	m := &MultiNodePolicyManager{
		basePolicyManager: newBasePolicyManager(names, config),
		endpoint:          config.Endpoint,
		allWorkers:        pool,
		trainerIDs:        trainerIDs,
		policyToTrainer:   policyToTrainer,
		trainerToPolicies: trainerToPolicies,
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

	if err := m.initTrainers(ctx, states); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *MultiNodePolicyManager) initTrainers(ctx context.Context, states map[string]types.PolicyState) error {
	for _, trainerID := range m.trainerIDs {
		hosted := make(map[string]types.PolicyState)
		for _, name := range m.trainerToPolicies[trainerID] {
			hosted[name] = states[name]
		}
		err := m.endpoint.Send(ctx, trainerID, communication.Envelope{
			Type:         types.MsgInitPolicyState,
			PolicyStates: hosted,
		})
		if err != nil {
			return fmt.Errorf("initializing %s: %w", trainerID, err)
		}
	}
	for range m.trainerIDs {
		env, sender, err := m.endpoint.Receive(ctx)
		if err != nil {
			return err
		}
		if env.Err != "" {
			return fmt.Errorf("initializing %s: %s", sender, env.Err)
		}
		m.logger.Infof("%s initialized policies %v", sender, m.trainerToPolicies[sender])
	}
	return nil
}

// Assignments reports the static policy-to-trainer partition
func (m *MultiNodePolicyManager) Assignments() map[string]string {
	out := make(map[string]string, len(m.policyToTrainer))
	for name, trainerID := range m.policyToTrainer {
		out[name] = trainerID
	}
	return out
}

// Update caches the incoming experience, flushes the due policies to
// their assigned nodes and blocks until every participating node has
// replied.
func (m *MultiNodePolicyManager) Update(ctx context.Context, expByPolicy map[string]*types.ExperienceBatch) error {
	if err := m.checkUsable(); err != nil {
		return err
	}

	toSend := make(map[string]*types.ExperienceBatch)
	updated := make(map[string]struct{})

	// reject unknown names before touching the cache, so a corrected
	// retry does not double-count the known ones
	for name := range expByPolicy {
		if _, ok := m.policyToTrainer[name]; !ok {
			return fmt.Errorf("unknown policy in update: %s", name)
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

	sent := 0
	for _, trainerID := range m.trainerIDs {
		experiences := make(map[string]*types.ExperienceBatch)
		for _, name := range m.trainerToPolicies[trainerID] {
			if exp, ok := toSend[name]; ok {
				experiences[name] = exp
			}
		}
		err := m.endpoint.Send(ctx, trainerID, communication.Envelope{
			Type:        types.MsgLearn,
			Experiences: experiences,
		})
		if err != nil {
			// nodes already sent to will reply into the inbox; letting
			// another round consume those replies would commit stale state
			if sent > 0 {
				m.markBroken()
			}
			return err
		}
		sent++
	}

	// the barrier: drain every node's reply even if one reports a
	// failure. An abandoned receive leaves the late reply queued for the
	// next round, so a receive error poisons the manager instead.
	newStates := make(map[string]types.PolicyState)
	trackers := make([]types.Tracker, 0, len(m.trainerIDs))
	var roundErr error
	for range m.trainerIDs {
		env, sender, err := m.endpoint.Receive(ctx)
		if err != nil {
			m.markBroken()
			return err
		}
		if env.Err != "" {
			if roundErr == nil {
				roundErr = fmt.Errorf("round failed on %s: %s", sender, env.Err)
			}
			continue
		}
		trackers = append(trackers, env.Tracker)
		for name, state := range env.PolicyStates {
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

// Exit tells every discovered node to terminate, including nodes that
// host no policies, and closes the endpoint. A second call is a caller
// error.
func (m *MultiNodePolicyManager) Exit() error {
	if !m.markClosed() {
		return ErrManagerClosed
	}
	ctx := context.Background()
	for _, workerID := range m.allWorkers {
		if err := m.endpoint.Send(ctx, workerID, communication.Envelope{Type: types.MsgExit}); err != nil {
			m.logger.Warnf("signaling exit to %s: %v", workerID, err)
		}
	}
	m.logger.Infof("exiting")
	return m.endpoint.Close()
}
