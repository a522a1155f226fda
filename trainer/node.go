package trainer

import (
	"context"
	"fmt"

	"github.com/hewudi666/maro/communication"
	"github.com/hewudi666/maro/types"
	"github.com/hewudi666/maro/util"
)

// Node is a remote trainer unit driven by a worker endpoint. It waits
// for an INIT_POLICY_STATE message naming the policies assigned to it,
// then serves LEARN requests until told to exit.
type Node struct {
	endpoint    communication.WorkerEndpoint
	policyFuncs map[string]types.PolicyFunc
	logger      *util.Logger
	unit        *Unit
}

func NewNode(
	endpoint communication.WorkerEndpoint,
	policyFuncs map[string]types.PolicyFunc,
	logger *util.Logger,
) *Node {
	return &Node{
		endpoint:    endpoint,
		policyFuncs: policyFuncs,
		logger:      logger,
	}
}

// Run serves the trainer protocol until an EXIT message arrives or the
// context is canceled. The endpoint is closed on the way out.
func (n *Node) Run(ctx context.Context) error {
	for {
		env, err := n.endpoint.Receive(ctx)
		if err != nil {
			n.endpoint.Close()
			return err
		}

		switch env.Type {
		case types.MsgInitPolicyState:
			reply := communication.Envelope{Type: types.MsgInitPolicyState}
			unit, err := NewUnit(n.endpoint.ID(), n.policyFuncs, env.PolicyStates, n.logger)
			if err != nil {
				reply.Err = err.Error()
			} else {
				n.unit = unit
				n.logger.Infof("trainer %s initialized %d policies", n.endpoint.ID(), len(env.PolicyStates))
			}
			if err := n.endpoint.Send(ctx, reply); err != nil {
				n.endpoint.Close()
				return err
			}

		case types.MsgLearn:
			reply := communication.Envelope{Type: types.MsgLearn}
			if n.unit == nil {
				reply.Err = fmt.Sprintf("trainer %s received LEARN before INIT_POLICY_STATE", n.endpoint.ID())
			} else {
				result := n.unit.Train(types.TrainRequest{Experiences: env.Experiences})
				reply.PolicyStates = result.PolicyStates
				reply.Tracker = result.Tracker
				reply.Err = result.Err
			}
			if err := n.endpoint.Send(ctx, reply); err != nil {
				n.endpoint.Close()
				return err
			}

		case types.MsgExit:
			n.logger.Infof("trainer %s exiting", n.endpoint.ID())
			return n.endpoint.Close()

		default:
			n.logger.Warnf("trainer %s ignoring message of type %s", n.endpoint.ID(), env.Type)
		}
	}
}
