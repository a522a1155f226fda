package manager

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/hewudi666/maro/communication"
	"github.com/hewudi666/maro/types"
	"github.com/hewudi666/maro/util"
)

// Manager modes
const (
	ModeLocal       = "local"
	ModeMultiWorker = "multi-worker"
	ModeMultiNode   = "multi-node"
)

// ErrManagerClosed is returned by Update and Exit after the manager has
// been shut down. Calling into a closed manager is a caller error; it
// fails, it does not hang.
var ErrManagerClosed = errors.New("policy manager is closed")

// ErrManagerUnusable is returned by Update once a round has aborted
// between dispatch and the end of its barrier. Replies from the aborted
// round may still be in flight, and accepting another round could pair
// them with the wrong barrier and commit stale state. Only Exit is
// permitted from this point on.
var ErrManagerUnusable = errors.New("policy manager unusable after an aborted round")

// PolicyManager coordinates the training of a set of named policies.
// The actual policy instances may live in the manager itself, on worker
// goroutines or on remote nodes; the contract is the same.
//
// Update is synchronous and single-writer: concurrent Update calls on
// one manager are not supported. GetState and Version may be called
// concurrently with an in-flight Update and observe only committed
// rounds.
type PolicyManager interface {
	// Update routes one round of experience, grouped by policy name,
	// to the trainer units and advances the version by exactly one
	Update(ctx context.Context, expByPolicy map[string]*types.ExperienceBatch) error
	// GetState returns the latest state of every policy touched in
	// rounds after sinceVersion. Pass -1 for the default, which covers
	// only the most recent round. Pure read, never blocks on trainers.
	GetState(sinceVersion int) map[string]types.PolicyState
	// Version of the last completed update round
	Version() int
	// Exit tells all trainer units to terminate. Not idempotent.
	Exit() error
}

// Config carries the construction-time surface of every manager variant.
// None of it is mutated after construction.
type Config struct {
	// one of local, multi-worker, multi-node
	Mode string

	// Policies managed by the manager. Required for every mode: the
	// distributed variants use them for initial states and snapshots.
	Policies map[string]types.TrainablePolicy

	// PolicyFuncs let trainer units construct their own policy
	// instances. Required for multi-worker mode.
	PolicyFuncs map[string]types.PolicyFunc

	// UpdateTrigger maps policy name to the number of new experiences
	// required since the last update before learn fires. Missing
	// entries default to 1.
	UpdateTrigger map[string]int

	// Warmup maps policy name to the minimum total experience required
	// before the policy's first update. Missing entries default to 1.
	Warmup map[string]int

	// NumTrainers is the trainer pool size for multi-worker mode
	NumTrainers int

	// Endpoint is the group transport for multi-node mode
	Endpoint communication.ManagerEndpoint

	// PostUpdate is invoked after each round with the trackers
	// collected from all trainer units
	PostUpdate types.PostUpdateFunc

	// CheckpointDir and CheckpointEvery enable periodic state dumps in
	// local mode. LoadDir restores previously dumped states at
	// construction; missing files are skipped with a warning.
	CheckpointDir   string
	CheckpointEvery int
	LoadDir         string

	Logger *util.Logger
}

// New constructs the manager variant selected by config.Mode
func New(ctx context.Context, config Config) (PolicyManager, error) {
	switch config.Mode {
	case ModeLocal:
		return NewLocalPolicyManager(config)
	case ModeMultiWorker:
		return NewMultiWorkerPolicyManager(config)
	case ModeMultiNode:
		return NewMultiNodePolicyManager(ctx, config)
	default:
		return nil, fmt.Errorf(
			"unsupported policy manager mode: %q (supported modes: %s, %s, %s)",
			config.Mode, ModeLocal, ModeMultiWorker, ModeMultiNode,
		)
	}
}

func validatePolicies(policies map[string]types.TrainablePolicy) error {
	if len(policies) == 0 {
		return errors.New("policy manager requires at least one policy")
	}
	for name, policy := range policies {
		if policy == nil {
			return fmt.Errorf("policy %s is nil", name)
		}
		if policy.Store() == nil {
			return fmt.Errorf("policy %s has no experience store", name)
		}
	}
	return nil
}

func sortedNames(policies map[string]types.TrainablePolicy) []string {
	names := make([]string, 0, len(policies))
	for name := range policies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// basePolicyManager holds the bookkeeping shared by all variants: the
// trigger/warmup registry, the version history and the snapshot cache.
// The mutex makes end-of-round commits atomic with respect to readers.
type basePolicyManager struct {
	mu sync.RWMutex

	updateTrigger map[string]int
	warmup        map[string]int

	// one set of policy names per completed round, entry 0 is the full
	// initial set
	history []map[string]struct{}
	// latest known snapshot per policy
	states map[string]types.PolicyState

	postUpdate types.PostUpdateFunc
	logger     *util.Logger
	closed     bool
	broken     bool
}

func newBasePolicyManager(names []string, config Config) *basePolicyManager {
	trigger := make(map[string]int, len(names))
	warmup := make(map[string]int, len(names))
	initial := make(map[string]struct{}, len(names))
	for _, name := range names {
		trigger[name] = 1
		warmup[name] = 1
		if t, ok := config.UpdateTrigger[name]; ok {
			trigger[name] = t
		}
		if w, ok := config.Warmup[name]; ok {
			warmup[name] = w
		}
		initial[name] = struct{}{}
	}
	return &basePolicyManager{
		updateTrigger: trigger,
		warmup:        warmup,
		history:       []map[string]struct{}{initial},
		states:        make(map[string]types.PolicyState, len(names)),
		postUpdate:    config.PostUpdate,
		logger:        config.Logger,
	}
}

func (b *basePolicyManager) Version() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.history) - 1
}

func (b *basePolicyManager) GetState(sinceVersion int) map[string]types.PolicyState {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if sinceVersion < 0 {
		sinceVersion = len(b.history) - 2
	}
	updated := make(map[string]struct{})
	for v := sinceVersion + 1; v < len(b.history); v++ {
		for name := range b.history[v] {
			updated[name] = struct{}{}
		}
	}
	out := make(map[string]types.PolicyState, len(updated))
	for name := range updated {
		out[name] = b.states[name]
	}
	return out
}

// commitRound atomically publishes one completed round: the set of
// updated policy names and their fresh snapshots. Aborted rounds never
// reach here, so readers only ever see fully committed rounds.
func (b *basePolicyManager) commitRound(updated map[string]struct{}, newStates map[string]types.PolicyState) {
	b.mu.Lock()
	b.history = append(b.history, updated)
	for name, state := range newStates {
		b.states[name] = state
	}
	b.mu.Unlock()

	if len(updated) > 0 {
		b.logger.Infof("updated policies %v", setToSlice(updated))
	}
}

// checkUsable gates the start of an update round
func (b *basePolicyManager) checkUsable() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrManagerClosed
	}
	if b.broken {
		return ErrManagerUnusable
	}
	return nil
}

// markBroken records that a round aborted mid-barrier. The manager
// refuses further rounds; Exit still runs so trainer units get torn
// down.
func (b *basePolicyManager) markBroken() {
	b.mu.Lock()
	b.broken = true
	b.mu.Unlock()
	b.logger.Warnf("round aborted mid-barrier, refusing further rounds")
}

// markClosed flips the closed flag, reporting whether this call did the
// closing
func (b *basePolicyManager) markClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return false
	}
	b.closed = true
	return true
}

func (b *basePolicyManager) seedStates(states map[string]types.PolicyState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for name, state := range states {
		b.states[name] = state
	}
}

func setToSlice(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for name := range set {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// assignRoundRobin statically partitions the policy names over the
// trainer pool: policy i goes to pool[i mod len(pool)]. The partition is
// never rebalanced; changing the pool requires a new manager.
func assignRoundRobin(names []string, pool []string) (map[string]string, map[string][]string) {
	policyToTrainer := make(map[string]string, len(names))
	trainerToPolicies := make(map[string][]string)
	for i, name := range names {
		trainerID := pool[i%len(pool)]
		policyToTrainer[name] = trainerID
		trainerToPolicies[trainerID] = append(trainerToPolicies[trainerID], name)
	}
	return policyToTrainer, trainerToPolicies
}

// trainerPool derives worker identifiers TRAINER.0 .. TRAINER.n-1
func trainerPool(numTrainers int) []string {
	pool := make([]string, numTrainers)
	for i := range pool {
		pool[i] = fmt.Sprintf("TRAINER.%d", i)
	}
	return pool
}
