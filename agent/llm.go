package agent

import (
	"fmt"
	"time"

	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/model"
	"github.com/hupe1980/agentflow/tool"
)

// LLMAgentOptions configures an LLMAgent instance.
//
// Use functional options with NewLLMAgent to override defaults.
type LLMAgentOptions struct {
	// Instruction is the system prompt supplied to the model each turn.
	Instruction Instruction

	// MaxIterations bounds this agent's model/tool loop. Zero defers to the
	// invocation's RunConfig.
	MaxIterations int

	// OutputKey, when set, stores the final response text into session state
	// under this key via the final event's stateDelta.
	OutputKey string

	// MaxHistoryMessages limits how many conversation history events are
	// replayed to the model. Zero means unlimited.
	MaxHistoryMessages int

	// Tools available for function calling.
	Tools map[string]tool.Tool
}

// LLMAgent is the model-driven leaf agent. One Run performs a bounded loop of
// model turns: each turn sends instructions, conversation history and tool
// declarations to the model; text output is emitted as events, function calls
// are executed against registered tools and their results fed back as the
// next turn's input. The loop ends when the model produces a final response
// without function calls, or fails with ToolLoopExceededError when the
// iteration bound is hit first.
type LLMAgent struct {
	BaseAgent
	llm                model.Model
	instruction        Instruction
	tools              map[string]tool.Tool
	maxIterations      int
	outputKey          string
	maxHistoryMessages int
}

// NewLLMAgent creates a model-backed agent with sensible defaults: a generic
// helpful-assistant instruction and no registered tools.
func NewLLMAgent(name string, llm model.Model, optFns ...func(o *LLMAgentOptions)) *LLMAgent {
	opts := LLMAgentOptions{
		Instruction: NewInstructionFromText(fmt.Sprintf("You are %s, a helpful AI assistant.", name)),
		Tools:       make(map[string]tool.Tool),
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	return &LLMAgent{
		BaseAgent:          NewBaseAgent(name),
		llm:                llm,
		instruction:        opts.Instruction,
		tools:              opts.Tools,
		maxIterations:      opts.MaxIterations,
		outputKey:          opts.OutputKey,
		maxHistoryMessages: opts.MaxHistoryMessages,
	}
}

// RegisterTool adds a function tool to the agent's capability set.
func (a *LLMAgent) RegisterTool(t tool.Tool) {
	a.tools[t.Name()] = t
}

// RegisterTools adds multiple tools to the agent's capability set.
func (a *LLMAgent) RegisterTools(tools ...tool.Tool) {
	for _, t := range tools {
		a.RegisterTool(t)
	}
}

// HasTool checks if a tool is registered with the agent.
func (a *LLMAgent) HasTool(name string) bool {
	_, exists := a.tools[name]
	return exists
}

// ListTools returns the names of all registered tools.
func (a *LLMAgent) ListTools() []string {
	names := make([]string, 0, len(a.tools))
	for name := range a.tools {
		names = append(names, name)
	}
	return names
}

// Model returns the underlying language model.
func (a *LLMAgent) Model() model.Model { return a.llm }

// loopBound resolves the effective iteration limit for a run.
func (a *LLMAgent) loopBound(cfg core.RunConfig) int {
	if a.maxIterations > 0 {
		return a.maxIterations
	}
	return cfg.LoopBound()
}

// Run implements core.Agent. It drives the model/tool loop until the model
// yields a final response without pending function calls, an error occurs or
// the iteration bound is exceeded.
func (a *LLMAgent) Run(rc *core.RunContext) error {
	rc.LogDebug("agent.run.start", "agent", a.Name(), "invocation", rc.InvocationID)

	bound := a.loopBound(rc.Config)

	for i := 0; i < bound; i++ {
		select {
		case <-rc.Done():
			return rc.Err()
		default:
		}

		last, err := a.runTurn(rc)
		if err != nil {
			return fmt.Errorf("llm agent %s: %w", a.Name(), err)
		}
		if last == nil {
			// Model stream closed without output; nothing more to do.
			return nil
		}

		// A tool response means the model gets another turn.
		if len(last.GetFunctionResponses()) > 0 {
			continue
		}

		if last.IsFinalResponse() {
			rc.LogDebug("agent.run.complete", "agent", a.Name(), "iterations", i+1)
			return nil
		}
	}

	return &core.ToolLoopExceededError{Agent: a.Name(), Limit: bound}
}

// runTurn performs one model turn including any tool executions, returning
// the last emitted event. A nil event signals an empty stream.
func (a *LLMAgent) runTurn(rc *core.RunContext) (*core.Event, error) {
	// Refresh session snapshot so the request sees the latest conversation
	// (including persisted tool responses from the previous turn).
	if rc.SessionService != nil {
		if err := rc.RefreshSession(); err != nil {
			return nil, &core.SessionUnavailableError{SessionID: rc.SessionID, Err: err}
		}
	}

	req, err := a.buildRequest(rc)
	if err != nil {
		return nil, err
	}

	respCh, errCh := a.llm.Generate(rc.Context, req)

	var lastEvent *core.Event

	for {
		select {
		case resp, ok := <-respCh:
			if !ok {
				return lastEvent, nil
			}

			ev, err := a.emitResponse(rc, resp)
			if err != nil {
				return lastEvent, err
			}
			if ev == nil {
				continue
			}
			lastEvent = ev

			// Execute any function calls and feed results back.
			if fnCalls := ev.GetFunctionCalls(); len(fnCalls) > 0 {
				for _, fnCall := range fnCalls {
					respEv, err := a.executeToolCall(rc, fnCall)
					if err != nil {
						return lastEvent, err
					}
					lastEvent = respEv
				}
			}
		case llmErr, ok := <-errCh:
			if ok && llmErr != nil {
				return lastEvent, llmErr
			}
			// Drained; keep reading responses until respCh closes.
			errCh = nil
		case <-rc.Done():
			return lastEvent, rc.Err()
		}
	}
}

// buildRequest assembles the model request from instructions, history and
// tool declarations.
func (a *LLMAgent) buildRequest(rc *core.RunContext) (model.Request, error) {
	instructions, err := a.instruction.Resolve(rc)
	if err != nil {
		return model.Request{}, fmt.Errorf("resolve instructions: %w", err)
	}

	history := rc.Session.GetConversationHistory()
	if a.maxHistoryMessages > 0 && len(history) > a.maxHistoryMessages {
		history = history[len(history)-a.maxHistoryMessages:]
	}

	contents := make([]core.Content, 0, len(history)+1)
	for _, ev := range history {
		contents = append(contents, *ev.Content)
	}
	if len(contents) == 0 {
		contents = append(contents, rc.UserContent)
	}

	req := model.Request{
		Instructions: instructions,
		Contents:     contents,
		Stream:       rc.Config.Streaming,
	}

	if len(a.tools) > 0 {
		defs := make([]model.ToolDefinition, 0, len(a.tools))
		for _, t := range a.tools {
			defs = append(defs, model.ToolDefinition{
				Type: "function",
				Function: model.FunctionDefinition{
					Name:        t.Name(),
					Description: t.Description(),
					Parameters:  t.Parameters(),
				},
			})
		}
		req.Tools = defs
	}

	return req, nil
}

// emitResponse converts a model response chunk into an event and emits it.
// Partial chunks are forwarded only when streaming is enabled; non-partial
// events wait for persistence before returning.
func (a *LLMAgent) emitResponse(rc *core.RunContext, resp model.Response) (*core.Event, error) {
	if resp.Partial && !rc.Config.Streaming {
		return nil, nil
	}

	ev := core.NewEvent(rc.InvocationID, a.Name())
	content := resp.Content
	ev.Content = &content
	ev.Partial = resp.Partial

	// Final model answer (no pending calls) closes the turn.
	if !resp.Partial && len(ev.GetFunctionCalls()) == 0 {
		ev.TurnComplete = true

		if a.outputKey != "" {
			rc.SetState(a.outputKey, content.Text())
		}
	}

	if err := rc.EmitEvent(ev); err != nil {
		return nil, err
	}

	if !ev.Partial {
		if err := rc.WaitForResume(); err != nil {
			return nil, err
		}
	}

	return &ev, nil
}

// executeToolCall runs one tool invocation and emits the function response
// event. Tool failures surface as response data, not stream errors.
func (a *LLMAgent) executeToolCall(rc *core.RunContext, fnCall core.FunctionCall) (*core.Event, error) {
	toolCtx := core.NewToolContext(rc, fnCall.ID)

	start := time.Now()
	result, toolErr := a.executeTool(toolCtx, fnCall.Name, fnCall.Args)
	rc.LogInfo(
		"agent.tool.executed",
		"agent", a.Name(),
		"tool", fnCall.Name,
		"duration_ms", time.Since(start).Milliseconds(),
		"error", toolErr != nil,
	)

	respEv := core.NewFunctionResponseEvent(rc.InvocationID, a.Name(), fnCall.ID, fnCall.Name, result, toolErr)
	toolCtx.InternalApplyActions(&respEv)

	if err := rc.EmitEvent(respEv); err != nil {
		return nil, err
	}
	if err := rc.WaitForResume(); err != nil {
		return nil, err
	}

	return &respEv, nil
}

// executeTool invokes the named tool with already-decoded arguments.
func (a *LLMAgent) executeTool(toolCtx *core.ToolContext, name string, args map[string]any) (any, error) {
	t, exists := a.tools[name]
	if !exists {
		return nil, fmt.Errorf("tool %s not found", name)
	}
	if args == nil {
		args = map[string]any{}
	}
	return t.Call(toolCtx, args)
}
