package types

// PolicyState is an opaque serialized snapshot of a policy (weights plus
// optimizer state). The manager caches and distributes snapshots but
// never interprets them.
type PolicyState []byte

// TrainablePolicy is the capability surface a policy must expose to be
// managed by a policy manager. The policy object is owned by exactly one
// execution context (the manager itself, a worker goroutine or a remote
// node) at any time.
type TrainablePolicy interface {
	// ChooseAction picks an action for the given observation
	ChooseAction(state []float64) int
	// Learn performs one training step over the experience store and
	// reports whether an update actually occurred
	Learn() (bool, error)
	GetState() (PolicyState, error)
	SetState(state PolicyState) error
	// Store is the policy's experience memory
	Store() *ExperienceStore
}

// PolicyFunc creates a fresh policy instance for the given name. Used by
// the distributed manager variants so that trainer units can construct
// their own instances of the policies assigned to them.
type PolicyFunc func(name string) TrainablePolicy

// Tracker is the diagnostic blob a trainer unit reports after each
// training round
type Tracker map[string]float64

// PostUpdateFunc consumes the trackers collected from all trainer units
// at the end of an update round. Pass-through hook, not owned logic.
type PostUpdateFunc func(trackers []Tracker)
