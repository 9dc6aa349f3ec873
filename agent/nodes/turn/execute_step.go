package turnnode

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	workflowx "github.com/oakline/supportflow/agent/workflow"
)

// ExecuteStep runs exactly one workflow step for the bound workflow. An
// unbound conversation (unresolved routing) skips the engine; the turn answers
// with a clarification request and the conversation stays unbound.
func ExecuteStep(ctx context.Context, in *GraphState, engine *workflowx.Engine, tools *gatewayx.Gateway) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if in.Blocked {
		return in, nil
	}
	if !in.Conv.Bound() {
		return in, nil
	}

	in.WorkflowRun = in.Conv.Workflow
	in.StepRun = in.Conv.Step

	trans, err := engine.Execute(ctx, &workflowx.TurnContext{
		Conv:    in.Conv,
		Message: in.Inbound,
		Now:     in.Now,
		Tools:   tools,
		Traces:  in.Traces,
	})
	if err != nil {
		return nil, err
	}

	in.Stepped = true
	in.Trans = trans
	return in, nil
}
