package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	statex "github.com/oakline/supportflow/agent/state"
)

var (
	ErrUnknownWorkflow = errors.New("workflow is not registered")
	ErrUnknownStep     = errors.New("workflow step is not defined")
)

// TurnContext is the input to one workflow step: the conversation state, the
// latest customer message, and the turn's tool gateway and trace log.
type TurnContext struct {
	Conv    *statex.Conversation
	Message contractx.Message
	Now     time.Time
	Tools   *gatewayx.Gateway
	Traces  *gatewayx.TraceLog
}

// Invoke runs one tool call through the gateway, recording its trace into the
// turn's trace log.
func (tc *TurnContext) Invoke(ctx context.Context, tool string, args map[string]any) gatewayx.Result {
	return tc.Tools.Invoke(ctx, tc.Traces, tool, args)
}

// Transition is the deterministic outcome of one step. When Escalation is set
// or Terminal is true the workflow ends this turn; otherwise Next (or the
// current step, when Next is empty) runs on the following turn.
type Transition struct {
	Next       string
	Delta      map[string]any
	Reply      string
	Terminal   bool
	Escalation *contractx.EscalationSummary
}

// StepFunc is one deterministic step: state plus latest message in, transition
// out. Steps branch only on tool-sourced domain data, never on free-form model
// output.
type StepFunc func(ctx context.Context, tc *TurnContext) (Transition, error)

// Definition is one workflow's explicit finite state machine.
type Definition struct {
	Workflow contractx.Workflow
	Initial  string
	Steps    map[string]StepFunc
}

// Engine dispatches exactly one step per turn for the bound workflow and
// applies the cross-cutting rules shared by every workflow: the identity
// precondition on the initial step and escalation on an explicit request for a
// human.
type Engine struct {
	defs map[contractx.Workflow]Definition
}

func NewEngine() *Engine {
	e := &Engine{defs: make(map[contractx.Workflow]Definition, 8)}
	e.register(shippingDelayDefinition())
	e.register(wrongOrMissingItemDefinition())
	e.register(productIssueDefinition())
	e.register(refundRequestDefinition())
	e.register(orderModificationDefinition())
	e.register(positiveFeedbackDefinition())
	e.register(subscriptionIssueDefinition())
	e.register(discountRequestDefinition())
	return e
}

func (e *Engine) register(def Definition) {
	e.defs[def.Workflow] = def
}

// Definitions returns the registered workflow set.
func (e *Engine) Definitions() map[contractx.Workflow]Definition {
	return e.defs
}

// InitialStep returns the initial step for a workflow, used at binding time.
func (e *Engine) InitialStep(w contractx.Workflow) (string, error) {
	def, ok := e.defs[w]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownWorkflow, w)
	}
	return def.Initial, nil
}

// Execute runs exactly one step for the conversation's bound workflow.
func (e *Engine) Execute(ctx context.Context, tc *TurnContext) (Transition, error) {
	if tc == nil || tc.Conv == nil {
		return Transition{}, fmt.Errorf("%w: turn context is incomplete", contractx.ErrValidation)
	}

	def, ok := e.defs[tc.Conv.Workflow]
	if !ok {
		return Transition{}, fmt.Errorf("%w: %s", ErrUnknownWorkflow, tc.Conv.Workflow)
	}

	step := tc.Conv.Step
	if step == "" {
		step = def.Initial
	}

	if wantsHuman(tc.Message.Content) {
		return escalateWith(contractx.ReasonCustomerRequestedHuman,
			"customer explicitly asked for a person",
			map[string]any{"workflow": string(def.Workflow), "step": step},
			""), nil
	}

	if step == def.Initial && !tc.Conv.HasIdentity() {
		return escalateWith(contractx.ReasonMissingIdentity,
			"no email or customer id on record",
			map[string]any{"workflow": string(def.Workflow)},
			"I couldn't find an account for you. Could you share the email address on your order? A teammate will pick this up with you."), nil
	}

	fn, ok := def.Steps[step]
	if !ok {
		return Transition{}, fmt.Errorf("%w: workflow=%s step=%s", ErrUnknownStep, def.Workflow, step)
	}

	t, err := fn(ctx, tc)
	if err != nil {
		return Transition{}, err
	}

	log.Debug().
		Str("workflow", string(def.Workflow)).
		Str("step", step).
		Str("next", t.Next).
		Bool("terminal", t.Terminal).
		Bool("escalated", t.Escalation != nil).
		Msg("workflow step executed")

	return t, nil
}

/* --------------------------- Transition helpers -------------------------- */

// Stay keeps the conversation in the current step and replies.
func Stay(reply string) Transition {
	return Transition{Reply: reply}
}

// Advance moves to the next step with an optional state delta.
func Advance(next, reply string, delta map[string]any) Transition {
	return Transition{Next: next, Reply: reply, Delta: delta}
}

// Done ends the workflow; the conversation unbinds so an unrelated follow-up
// routes again.
func Done(reply string) Transition {
	return Transition{Reply: reply, Terminal: true}
}

func escalateWith(reason contractx.EscalationReason, note string, ctxMap map[string]any, reply string) Transition {
	return Transition{
		Reply: reply,
		Escalation: &contractx.EscalationSummary{
			Reason:  reason,
			Note:    note,
			Context: ctxMap,
		},
	}
}

// escalateToolFailure is the uniform tool-failure policy: no in-turn retry,
// escalate carrying the tool name and error.
func escalateToolFailure(res gatewayx.Result) Transition {
	return escalateWith(contractx.ReasonToolFailure,
		"required tool call failed",
		map[string]any{"tool": res.Tool, "error": res.Err},
		"")
}

func wantsHuman(text string) bool {
	t := strings.ToLower(text)
	for _, phrase := range []string{
		"talk to a human", "speak to a human", "real person",
		"talk to a person", "speak to someone", "human agent",
		"talk to an agent", "speak to an agent", "representative",
	} {
		if strings.Contains(t, phrase) {
			return true
		}
	}
	return false
}
