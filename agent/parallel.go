package agent

import (
	"context"
	"sync"

	"github.com/hupe1980/agentflow/core"
)

// ParallelAgent coordinates the concurrent execution of multiple child agents.
//
// Each child runs in its own goroutine with an isolated branch context; all
// children share the parent's emit channel, so their event streams interleave
// in completion order. Event ordering is guaranteed only within a branch,
// never across branches.
//
// By default the first child error cancels the remaining siblings and is
// returned once all goroutines have settled. WithContinueOnError lets the
// surviving siblings finish instead.
type ParallelAgent struct {
	BaseAgent
	children        []core.Agent // Child agents to execute in parallel
	continueOnError bool
}

// ParallelOption customizes ParallelAgent behavior.
type ParallelOption func(*ParallelAgent)

// WithContinueOnError lets sibling branches run to completion when one child
// fails instead of cancelling them. The first error is still returned.
func WithContinueOnError() ParallelOption {
	return func(p *ParallelAgent) { p.continueOnError = true }
}

// NewParallelAgent creates a new parallel execution coordinator.
//
// The agent will execute the provided child agents concurrently, each
// in its own isolated branch context to prevent state conflicts.
func NewParallelAgent(name string, children []core.Agent, opts ...ParallelOption) *ParallelAgent {
	p := &ParallelAgent{
		BaseAgent: NewBaseAgent(name),
		children:  children,
	}

	for _, o := range opts {
		o(p)
	}

	_ = p.SetSubAgents(children...)

	return p
}

// createBranchCtxForSubAgent clones the parent context and assigns a branch
// path for the child agent ensuring isolation of pending deltas / artifacts.
func (p *ParallelAgent) createBranchCtxForSubAgent(rc *core.RunContext, ctx context.Context, subAgent core.Agent) *core.RunContext {
	branchCtx := rc.WithBranch(buildBranchPath(rc.Branch, p.Name()+"."+subAgent.Name()))
	branchCtx.Context = ctx
	return branchCtx
}

// Run implements core.Agent launching all children concurrently. Unless
// configured otherwise, the first error cancels the remaining branches; that
// error is returned after every child goroutine has finished.
func (p *ParallelAgent) Run(rc *core.RunContext) error {
	childCtx, cancel := context.WithCancel(rc.Context)
	defer cancel()

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		firstErr error
	)

	for _, child := range p.children {
		wg.Add(1)
		go func(c core.Agent) {
			defer wg.Done()

			// Create isolated branch context for state separation
			branchCtx := p.createBranchCtxForSubAgent(rc, childCtx, c)

			if err := c.Run(branchCtx); err != nil {
				mu.Lock()
				if firstErr == nil {
					firstErr = &core.CompositeChildError{Composite: p.Name(), Child: c.Name(), Err: err}
					if !p.continueOnError {
						cancel()
					}
				}
				mu.Unlock()
			}
		}(child)
	}

	wg.Wait()

	return firstErr
}
