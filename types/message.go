package types

// MsgType tags the messages exchanged between the policy manager and its
// trainer units
type MsgType string

const (
	MsgInitPolicyState MsgType = "INIT_POLICY_STATE"
	MsgLearn           MsgType = "LEARN"
	MsgExit            MsgType = "EXIT"
)

// TrainRequest carries the flushed experience batches assigned to one
// trainer unit for a single update round. Policies hosted by the trainer
// but absent from the map are left untouched.
type TrainRequest struct {
	Experiences map[string]*ExperienceBatch `json:"experiences"`
}

// TrainResult is the trainer unit's reply to a TrainRequest. PolicyStates
// contains only the policies that were trained this round.
type TrainResult struct {
	TrainerID    string                 `json:"trainer_id"`
	PolicyStates map[string]PolicyState `json:"policy_states"`
	Tracker      Tracker                `json:"tracker"`
	Err          string                 `json:"error,omitempty"`
}
