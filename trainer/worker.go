package trainer

import (
	"context"
	"errors"
	"sync"

	"github.com/hewudi666/maro/types"
	"github.com/hewudi666/maro/util"
)

var ErrWorkerStopped = errors.New("trainer worker stopped")

// Worker runs a Unit on its own goroutine, speaking a strict
// request/response pair of typed channels. Closing the request channel
// is the exit signal; the worker drains nothing and closes its result
// channel on the way out. The result channel holds one reply, so a
// manager that abandons a round mid-receive cannot wedge the loop: the
// reply lands in the buffer and the worker returns to the request
// channel, where Stop can still reach it.
type Worker struct {
	unit     *Unit
	requests chan types.TrainRequest
	results  chan types.TrainResult
	stop     sync.Once
}

func NewWorker(
	id string,
	policyFuncs map[string]types.PolicyFunc,
	states map[string]types.PolicyState,
	logger *util.Logger,
) (*Worker, error) {
	unit, err := NewUnit(id, policyFuncs, states, logger)
	if err != nil {
		return nil, err
	}
	w := &Worker{
		unit:     unit,
		requests: make(chan types.TrainRequest),
		results:  make(chan types.TrainResult, 1),
	}
	go w.loop()
	return w, nil
}

func (w *Worker) ID() string {
	return w.unit.ID()
}

func (w *Worker) loop() {
	for req := range w.requests {
		w.results <- w.unit.Train(req)
	}
	close(w.results)
}

// Send dispatches one training request. Blocks while the worker is busy
// with the previous round.
func (w *Worker) Send(ctx context.Context, req types.TrainRequest) error {
	select {
	case w.requests <- req:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Recv blocks for the worker's reply to the last request
func (w *Worker) Recv(ctx context.Context) (types.TrainResult, error) {
	select {
	case res, ok := <-w.results:
		if !ok {
			return types.TrainResult{}, ErrWorkerStopped
		}
		return res, nil
	case <-ctx.Done():
		return types.TrainResult{}, ctx.Err()
	}
}

// Stop signals the worker goroutine to exit. Safe to call once the
// worker is idle; the manager guards against double stop.
func (w *Worker) Stop() {
	w.stop.Do(func() {
		close(w.requests)
	})
}
