package types

// State represents module lifecycle states
type State string

const (
	StateUndeployed  State = "undeployed"
	StateDeploying   State = "deploying"
	StateDeployed    State = "deployed"
	StateRedeploying State = "redeploying"
	StateUndeploying State = "undeploying"
	// StateSwapping is reserved. No transition enters it; every operation
	// attempted against a module in this state is rejected.
	StateSwapping State = "swapping"
)

// Transient reports whether the state is an in-flight transition.
func (s State) Transient() bool {
	switch s {
	case StateDeploying, StateRedeploying, StateUndeploying, StateSwapping:
		return true
	}
	return false
}

// ModuleInfo is the externally visible snapshot of one module.
type ModuleInfo struct {
	Name  string `json:"name"`
	State State  `json:"state"`
	File  string `json:"file,omitempty"`
}

// Event identifies a lifecycle notification kind
type Event string

const (
	EventDeploying   Event = "deploying"
	EventDeployed    Event = "deployed"
	EventFailed      Event = "failed"
	EventUndeploying Event = "undeploying"
	EventUndeployed  Event = "undeployed"
	EventRedeploying Event = "redeploying"
)
