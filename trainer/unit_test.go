package trainer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/hewudi666/maro/types"
)

type fakePolicy struct {
	store      *types.ExperienceStore
	learnCalls int
	learnErr   error
	initState  types.PolicyState
}

var _ types.TrainablePolicy = &fakePolicy{}

func newFakePolicy() *fakePolicy {
	return &fakePolicy{store: types.NewExperienceStore(0)}
}

func (f *fakePolicy) ChooseAction(_ []float64) int { return 0 }

func (f *fakePolicy) Learn() (bool, error) {
	if f.learnErr != nil {
		return false, f.learnErr
	}
	f.learnCalls += 1
	return true, nil
}

func (f *fakePolicy) GetState() (types.PolicyState, error) {
	return types.PolicyState(fmt.Sprintf(`{"learn_calls":%d}`, f.learnCalls)), nil
}

func (f *fakePolicy) SetState(state types.PolicyState) error {
	f.initState = state
	parsed := struct {
		LearnCalls int `json:"learn_calls"`
	}{}
	if err := json.Unmarshal(state, &parsed); err != nil {
		return err
	}
	f.learnCalls = parsed.LearnCalls
	return nil
}

func (f *fakePolicy) Store() *types.ExperienceStore { return f.store }

func fakeFuncs(created map[string]*fakePolicy, names ...string) map[string]types.PolicyFunc {
	out := make(map[string]types.PolicyFunc, len(names))
	for _, name := range names {
		out[name] = func(n string) types.TrainablePolicy {
			p := newFakePolicy()
			created[n] = p
			return p
		}
	}
	return out
}

func batchOfSize(n int) *types.ExperienceBatch {
	transitions := make([]types.Transition, n)
	return types.NewExperienceBatch(transitions...)
}

func TestUnitTrainsOnlyNamedPolicies(t *testing.T) {
	created := map[string]*fakePolicy{}
	unit, err := NewUnit("TRAINER.0", fakeFuncs(created, "A", "B"), map[string]types.PolicyState{
		"A": types.PolicyState(`{"learn_calls":0}`),
		"B": types.PolicyState(`{"learn_calls":0}`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	result := unit.Train(types.TrainRequest{
		Experiences: map[string]*types.ExperienceBatch{"A": batchOfSize(3)},
	})
	if result.Err != "" {
		t.Fatal(result.Err)
	}
	if _, ok := result.PolicyStates["A"]; !ok {
		t.Errorf("trained policy A missing from the reply")
	}
	if _, ok := result.PolicyStates["B"]; ok {
		t.Errorf("untouched policy B must not appear in the reply")
	}
	if created["B"].learnCalls != 0 {
		t.Errorf("untouched policy B was trained")
	}
	if created["A"].store.Size() != 3 {
		t.Errorf("batch not moved into A's store, size %d", created["A"].store.Size())
	}
	if result.Tracker["transitions"] != 3 {
		t.Errorf("tracker transitions = %f", result.Tracker["transitions"])
	}
}

func TestUnitEmptyBatchesSkipped(t *testing.T) {
	created := map[string]*fakePolicy{}
	unit, err := NewUnit("TRAINER.0", fakeFuncs(created, "A"), map[string]types.PolicyState{
		"A": types.PolicyState(`{"learn_calls":0}`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := unit.Train(types.TrainRequest{
		Experiences: map[string]*types.ExperienceBatch{"A": types.NewExperienceBatch()},
	})
	if len(result.PolicyStates) != 0 {
		t.Errorf("empty batch must not produce a state, got %v", result.PolicyStates)
	}
}

func TestUnitUnknownPolicy(t *testing.T) {
	created := map[string]*fakePolicy{}
	unit, err := NewUnit("TRAINER.0", fakeFuncs(created, "A"), map[string]types.PolicyState{
		"A": types.PolicyState(`{"learn_calls":0}`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	result := unit.Train(types.TrainRequest{
		Experiences: map[string]*types.ExperienceBatch{"Z": batchOfSize(1)},
	})
	if result.Err == "" {
		t.Error("expected an error for a policy the unit does not host")
	}
}

func TestUnitLearnErrorReported(t *testing.T) {
	created := map[string]*fakePolicy{}
	unit, err := NewUnit("TRAINER.0", fakeFuncs(created, "A"), map[string]types.PolicyState{
		"A": types.PolicyState(`{"learn_calls":0}`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	created["A"].learnErr = errors.New("diverged")
	result := unit.Train(types.TrainRequest{
		Experiences: map[string]*types.ExperienceBatch{"A": batchOfSize(1)},
	})
	if result.Err == "" {
		t.Error("expected learn error in the result")
	}
}

func TestNewUnitMissingFactory(t *testing.T) {
	_, err := NewUnit("TRAINER.0", map[string]types.PolicyFunc{}, map[string]types.PolicyState{
		"A": types.PolicyState(`{}`),
	}, nil)
	if err == nil {
		t.Error("expected construction to fail without a policy func")
	}
}

func TestWorkerRequestResponse(t *testing.T) {
	created := map[string]*fakePolicy{}
	w, err := NewWorker("TRAINER.0", fakeFuncs(created, "A"), map[string]types.PolicyState{
		"A": types.PolicyState(`{"learn_calls":0}`),
	}, nil)
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	for round := 1; round <= 3; round++ {
		if err := w.Send(ctx, types.TrainRequest{
			Experiences: map[string]*types.ExperienceBatch{"A": batchOfSize(1)},
		}); err != nil {
			t.Fatal(err)
		}
		res, err := w.Recv(ctx)
		if err != nil {
			t.Fatal(err)
		}
		if res.Err != "" {
			t.Fatal(res.Err)
		}
		if created["A"].learnCalls != round {
			t.Errorf("round %d: learn calls %d", round, created["A"].learnCalls)
		}
	}

	w.Stop()
	if _, err := w.Recv(ctx); !errors.Is(err, ErrWorkerStopped) {
		t.Errorf("expected ErrWorkerStopped after stop, got %v", err)
	}
}
