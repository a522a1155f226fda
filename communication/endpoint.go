package communication

import (
	"context"

	"github.com/hewudi666/maro/types"
)

// Name under which the policy manager is addressable in a training group
const ManagerName = "POLICY_MANAGER"

// Envelope is the tagged message exchanged between the policy manager
// and its trainer nodes. Exactly one payload field is populated
// depending on the message type.
type Envelope struct {
	Sender       string                                `json:"sender"`
	Type         types.MsgType                         `json:"type"`
	PolicyStates map[string]types.PolicyState          `json:"policy_states,omitempty"`
	Experiences  map[string]*types.ExperienceBatch     `json:"experiences,omitempty"`
	Tracker      types.Tracker                         `json:"tracker,omitempty"`
	Err          string                                `json:"error,omitempty"`
}

// ManagerEndpoint is the manager-side message-passing primitive of a
// training group. Send and Receive are the only suspension points of a
// training round; Receive blocks until some trainer replies and there is
// no built-in timeout, callers impose deadlines through the context.
type ManagerEndpoint interface {
	// Workers lists the trainer identifiers discovered in the group, in
	// a fixed order
	Workers() []string
	Send(ctx context.Context, dest string, env Envelope) error
	// Receive blocks for the next inbound message and returns it along
	// with the sender's identifier
	Receive(ctx context.Context) (Envelope, string, error)
	Close() error
}

// WorkerEndpoint is the trainer-side counterpart of ManagerEndpoint.
// Send always addresses the group's manager.
type WorkerEndpoint interface {
	// ID is the trainer identifier this endpoint registered under
	ID() string
	Send(ctx context.Context, env Envelope) error
	Receive(ctx context.Context) (Envelope, error)
	Close() error
}
