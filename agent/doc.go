// Package agent contains the closed set of first-class agent implementations
// used to build composable execution trees:
//
//  1. Base hierarchy plumbing (BaseAgent)
//  2. Workflow coordination patterns (SequentialAgent, ParallelAgent, LoopAgent)
//  3. Model-centric conversational / tool-calling agent (LLMAgent)
//
// Design principles:
//   - Minimal hidden global state: explicit wiring via Runner/RunContext
//   - Composability: agents can nest arbitrarily using SetSubAgents / FindAgent
//   - Observability: structured logging hooks at run boundaries
//   - Extensibility: embed BaseAgent; only implement Run plus any custom API
//
// Execution Model:
//   - An agent's Run receives a *core.RunContext (shared or cloned)
//   - Composite agents (sequential / parallel / loop) coordinate child Runs
//   - LLMAgent integrates with the model and tool packages to stream events
//
// The package intentionally keeps persistence, model specifics and tool
// registry abstractions in their respective packages to avoid cyclic deps.
package agent
