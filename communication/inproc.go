package communication

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// InprocNetwork wires a manager endpoint to a fixed set of worker
// endpoints over buffered channels. Used for single-host runs and tests;
// same blocking semantics as the redis transport.
type InprocNetwork struct {
	managerInbox  chan Envelope
	workerInboxes map[string]chan Envelope
	workers       []string
}

func NewInprocNetwork(workerIDs ...string) *InprocNetwork {
	workers := make([]string, len(workerIDs))
	copy(workers, workerIDs)
	sort.Strings(workers)

	inboxes := make(map[string]chan Envelope, len(workers))
	for _, id := range workers {
		inboxes[id] = make(chan Envelope, 1)
	}
	return &InprocNetwork{
		managerInbox:  make(chan Envelope, len(workers)),
		workerInboxes: inboxes,
		workers:       workers,
	}
}

func (n *InprocNetwork) ManagerEndpoint() *InprocManagerEndpoint {
	return &InprocManagerEndpoint{network: n}
}

func (n *InprocNetwork) WorkerEndpoint(id string) (*InprocWorkerEndpoint, error) {
	if _, ok := n.workerInboxes[id]; !ok {
		return nil, fmt.Errorf("unknown worker id: %s", id)
	}
	return &InprocWorkerEndpoint{network: n, id: id}, nil
}

type InprocManagerEndpoint struct {
	network   *InprocNetwork
	closeOnce sync.Once
}

var _ ManagerEndpoint = &InprocManagerEndpoint{}

func (e *InprocManagerEndpoint) Workers() []string {
	out := make([]string, len(e.network.workers))
	copy(out, e.network.workers)
	return out
}

func (e *InprocManagerEndpoint) Send(ctx context.Context, dest string, env Envelope) error {
	inbox, ok := e.network.workerInboxes[dest]
	if !ok {
		return fmt.Errorf("unknown worker id: %s", dest)
	}
	env.Sender = ManagerName
	select {
	case inbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *InprocManagerEndpoint) Receive(ctx context.Context) (Envelope, string, error) {
	select {
	case env := <-e.network.managerInbox:
		return env, env.Sender, nil
	case <-ctx.Done():
		return Envelope{}, "", ctx.Err()
	}
}

func (e *InprocManagerEndpoint) Close() error {
	e.closeOnce.Do(func() {})
	return nil
}

type InprocWorkerEndpoint struct {
	network *InprocNetwork
	id      string
}

var _ WorkerEndpoint = &InprocWorkerEndpoint{}

func (e *InprocWorkerEndpoint) ID() string {
	return e.id
}

func (e *InprocWorkerEndpoint) Send(ctx context.Context, env Envelope) error {
	env.Sender = e.id
	select {
	case e.network.managerInbox <- env:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *InprocWorkerEndpoint) Receive(ctx context.Context) (Envelope, error) {
	select {
	case env := <-e.network.workerInboxes[e.id]:
		return env, nil
	case <-ctx.Done():
		return Envelope{}, ctx.Err()
	}
}

func (e *InprocWorkerEndpoint) Close() error {
	return nil
}
