package agent

import (
	"github.com/hupe1980/agentflow/core"
	"github.com/hupe1980/agentflow/internal/util"
)

// Provider supplies instruction text at resolve time, letting instructions
// depend on session state or anything else reachable from the run context.
type Provider interface {
	Instruction(*core.RunContext) (string, error)
}

// Func adapts an ordinary function into a Provider.
type Func func(*core.RunContext) (string, error)

// Instruction implements Provider.
func (f Func) Instruction(rc *core.RunContext) (string, error) { return f(rc) }

// Instruction is either a fixed string or a dynamic Provider, resolved once
// per model call.
type Instruction struct {
	text     string
	provider Provider
}

// NewInstructionFromText wraps a fixed instruction string.
func NewInstructionFromText(text string) Instruction { return Instruction{text: text} }

// NewInstructionFromProvider wraps a dynamic provider.
func NewInstructionFromProvider(p Provider) Instruction { return Instruction{provider: p} }

// NewInstructionFromFunc wraps a plain function.
func NewInstructionFromFunc(f func(*core.RunContext) (string, error)) Instruction {
	return Instruction{provider: Func(f)}
}

// NewInstructionFromTemplate renders a text/template against the session state
// on every resolve, e.g. "Answer as {{.persona}}.".
func NewInstructionFromTemplate(tmpl string) Instruction {
	return Instruction{provider: Func(func(rc *core.RunContext) (string, error) {
		state := map[string]any{}
		if rc.Session != nil {
			state = rc.Session.Clone().State
		}
		// Staged (not yet persisted) mutations win over persisted state.
		for k, v := range rc.StateDelta {
			state[k] = v
		}
		return util.RenderTemplate(tmpl, state)
	})}
}

// IsStatic reports whether the instruction is a fixed string.
func (i Instruction) IsStatic() bool { return i.provider == nil }

// Resolve returns the instruction text, consulting the provider when set.
func (i Instruction) Resolve(rc *core.RunContext) (string, error) {
	if i.provider != nil {
		return i.provider.Instruction(rc)
	}

	return i.text, nil
}
