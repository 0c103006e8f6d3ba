// Package agent provides the closed set of agent variants: the model-driven
// LLMAgent leaf plus the Sequential, Parallel and Loop workflow composites.
package agent

import (
	"fmt"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// BaseAgent bundles shared hierarchy management and identity helpers. Embed
// it in concrete agent implementations and supply a Run method to satisfy
// the core.Agent interface. All exported methods are goroutine-safe unless
// otherwise documented.
type BaseAgent struct {
	name        string       // Human-readable name
	description string       // Detailed description of agent's purpose
	mu          sync.Mutex   // Protects concurrent access to agent state
	parent      core.Agent   // Parent agent in hierarchical structures
	subAgents   []core.Agent // Child agents managed by this agent
}

// NewBaseAgent constructs a BaseAgent with generated description (customizable via SetDescription).
func NewBaseAgent(name string) BaseAgent {
	return BaseAgent{
		name:        name,
		description: fmt.Sprintf("Agent %s", name),
	}
}

// Name returns the human-readable name for this agent.
func (b *BaseAgent) Name() string { return b.name }

// Description returns a detailed description of this agent's purpose.
func (b *BaseAgent) Description() string { return b.description }

// SetDescription updates the agent's description.
func (b *BaseAgent) SetDescription(desc string) { b.description = desc }

// SetSubAgents atomically replaces the child agent set, clearing any previous
// parent links then assigning this agent as the parent of each new child. It
// enforces a single-parent invariant for all managed children.
func (b *BaseAgent) SetSubAgents(children ...core.Agent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	// Clear existing relationships to prevent orphaned references
	for _, child := range b.subAgents {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			setter.setParent(nil)
		}
	}
	b.subAgents = nil

	// Establish new parent-child relationships
	for _, child := range children {
		if setter, ok := child.(interface{ setParent(core.Agent) }); ok {
			// Wrap base agent so it satisfies Agent (Run provided by wrapper)
			setter.setParent(&agentWrapper{b})
		}
		b.subAgents = append(b.subAgents, child)
	}

	return nil
}

// setParent sets the internal parent reference.
func (b *BaseAgent) setParent(p core.Agent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.parent = p
}

// Parent returns the current parent agent or nil if this agent is root.
func (b *BaseAgent) Parent() core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.parent
}

// SubAgents returns a shallow copy of current child agents for safe iteration.
func (b *BaseAgent) SubAgents() []core.Agent {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]core.Agent, len(b.subAgents))
	copy(result, b.subAgents)
	return result
}

// FindAgent performs a depth-first search over the subtree rooted at this
// agent (including itself) returning the first agent whose Name matches.
// Returns nil if no match is found.
func (b *BaseAgent) FindAgent(name string) core.Agent {
	if b.name == name {
		return &agentWrapper{b}
	}

	// Search through all child agents
	for _, child := range b.SubAgents() {
		if child.Name() == name {
			return child
		}
		// Recursively search child's sub-agents
		if found := child.FindAgent(name); found != nil {
			return found
		}
	}
	return nil
}

// agentWrapper wraps BaseAgent to satisfy Agent for hierarchy references.
type agentWrapper struct{ *BaseAgent }

// Run executes the agent's behavior within the given context.
func (w *agentWrapper) Run(_ *core.RunContext) error {
	return fmt.Errorf("cannot execute BaseAgent directly - embed it in a concrete agent with Run implementation")
}
