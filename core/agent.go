package core

// Agent is the polymorphic execution capability: given a RunContext it
// produces a stream of Events on the context's Emit channel, returning when
// the stream ends. A non-nil return value is the stream's terminal error.
//
// The variant set is closed by design: the LLM-driven leaf agent and the
// Sequential, Parallel and Loop composites in the agent package.
//
// Implementations must:
//   - Respect context cancellation at every suspension point
//   - Emit events only through the provided RunContext
//   - Never mutate the Session directly; state flows through StateDelta
type Agent interface {
	// Name returns the agent's unique, human-readable name.
	Name() string

	// Description returns a short description of the agent's purpose.
	Description() string

	// Run executes the agent, emitting events until its stream ends.
	Run(rc *RunContext) error

	// SubAgents returns the agent's direct children.
	SubAgents() []Agent

	// Parent returns the parent agent, or nil for a root.
	Parent() Agent

	// FindAgent searches the subtree rooted at this agent by name.
	FindAgent(name string) Agent

	// SetSubAgents replaces the child set, re-parenting each child.
	SetSubAgents(children ...Agent) error
}

// AgentInfo carries identifying details about an agent used in contexts and
// events. Name is the external identifier; Type categorizes implementation
// (e.g. "llm", "sequential", "parallel", "loop").
type AgentInfo struct{ Name, Type string }
