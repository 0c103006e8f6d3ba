package agent

import (
	"github.com/hupe1980/agentflow/core"
)

// SequentialAgent coordinates the execution of multiple child agents in sequence.
//
// Children run strictly one after another against the same RunContext, so the
// emitted event stream is the exact concatenation of the child streams and
// each child observes the session state accumulated by its predecessors. The
// first child error stops the pipeline; later children never start.
type SequentialAgent struct {
	BaseAgent
	children []core.Agent // Child agents to execute in sequence
}

// NewSequentialAgent creates a new sequential execution coordinator.
//
// The agent will execute the provided child agents in the order they are
// specified, passing session state between each execution step.
func NewSequentialAgent(name string, children ...core.Agent) *SequentialAgent {
	s := &SequentialAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}
	_ = s.SetSubAgents(children...)
	return s
}

// Run implements core.Agent. It executes each child agent in the declared
// order; errors stop further processing immediately.
func (s *SequentialAgent) Run(rc *core.RunContext) error {
	for _, child := range s.children {
		select {
		case <-rc.Done():
			return rc.Err()
		default:
		}

		// Pass the same run context to maintain shared state
		if err := child.Run(rc); err != nil {
			return &core.CompositeChildError{Composite: s.Name(), Child: child.Name(), Err: err}
		}
	}

	return nil
}
