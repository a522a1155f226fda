package policies

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
	"time"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/sampleuv"

	"github.com/hewudi666/maro/types"
)

// QLearningConfig configures a QLearningPolicy. NumActions below 1 and
// Temperature at or below 0 fall back to 1: a zero temperature would
// turn the softmax weights into NaN and a zero action count would make
// sampling impossible.
type QLearningConfig struct {
	NumActions  int
	Alpha       float64
	Gamma       float64
	Temperature float64
	// experience store capacity, <= 0 for unbounded
	StoreCapacity int
}

// QLearningPolicy is a tabular Q-learning policy over discretized
// observation vectors, with softmax action sampling. Stands in for the
// external learning library; any TrainablePolicy works with the manager.
type QLearningPolicy struct {
	config QLearningConfig
	qTable map[string][]float64
	store  *types.ExperienceStore
	rand   rand.Source
	// store offset of the first transition not yet learned from
	cursor int
}

var _ types.TrainablePolicy = &QLearningPolicy{}

func NewQLearningPolicy(config QLearningConfig) *QLearningPolicy {
	if config.NumActions < 1 {
		config.NumActions = 1
	}
	if config.Temperature <= 0 {
		config.Temperature = 1
	}
	return &QLearningPolicy{
		config: config,
		qTable: make(map[string][]float64),
		store:  types.NewExperienceStore(config.StoreCapacity),
		rand:   rand.NewSource(uint64(time.Now().UnixNano())),
	}
}

func (q *QLearningPolicy) Store() *types.ExperienceStore {
	return q.store
}

func (q *QLearningPolicy) row(key string) []float64 {
	r, ok := q.qTable[key]
	if !ok {
		r = make([]float64, q.config.NumActions)
		q.qTable[key] = r
	}
	return r
}

func stateKey(state []float64) string {
	parts := make([]string, len(state))
	for i, v := range state {
		parts[i] = fmt.Sprintf("%.3f", v)
	}
	return strings.Join(parts, ",")
}

// ChooseAction samples an action from the softmax distribution over the
// state's Q values
func (q *QLearningPolicy) ChooseAction(state []float64) int {
	row := q.row(stateKey(state))

	sum := float64(0)
	weights := make([]float64, len(row))
	for i, val := range row {
		exp := math.Exp(val / q.config.Temperature)
		weights[i] = exp
		sum += exp
	}
	for i := range weights {
		weights[i] /= sum
	}
	i, ok := sampleuv.NewWeighted(weights, q.rand).Take()
	if !ok {
		return int(q.rand.Uint64() % uint64(q.config.NumActions))
	}
	return i
}

// Learn replays the transitions accumulated since the last call and
// applies the Q update to each
func (q *QLearningPolicy) Learn() (bool, error) {
	transitions := q.store.Transitions()
	if q.cursor > len(transitions) {
		// store evicted past the cursor
		q.cursor = 0
	}
	fresh := transitions[q.cursor:]
	if len(fresh) == 0 {
		return false, nil
	}

	for _, t := range fresh {
		if t.Action < 0 || t.Action >= q.config.NumActions {
			return false, fmt.Errorf("action %d out of range [0, %d)", t.Action, q.config.NumActions)
		}
		row := q.row(stateKey(t.State))
		target := t.Reward
		if !t.Done {
			next := q.row(stateKey(t.NextState))
			best := next[0]
			for _, v := range next[1:] {
				if v > best {
					best = v
				}
			}
			target += q.config.Gamma * best
		}
		row[t.Action] = (1-q.config.Alpha)*row[t.Action] + q.config.Alpha*target
	}
	q.cursor = len(transitions)
	return true, nil
}

type qLearningState struct {
	QTable map[string][]float64 `json:"q_table"`
}

func (q *QLearningPolicy) GetState() (types.PolicyState, error) {
	data, err := json.Marshal(qLearningState{QTable: q.qTable})
	if err != nil {
		return nil, err
	}
	return types.PolicyState(data), nil
}

func (q *QLearningPolicy) SetState(state types.PolicyState) error {
	parsed := qLearningState{}
	if err := json.Unmarshal(state, &parsed); err != nil {
		return err
	}
	if parsed.QTable == nil {
		parsed.QTable = make(map[string][]float64)
	}
	q.qTable = parsed.QTable
	return nil
}
