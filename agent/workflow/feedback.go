package workflow

import (
	"context"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// positive_feedback steps.
const (
	stepFeedbackRecord = "record_thanks"
)

func positiveFeedbackDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowPositiveFeedback,
		Initial:  stepFeedbackRecord,
		Steps: map[string]StepFunc{
			stepFeedbackRecord: feedbackRecord,
		},
	}
}

func feedbackRecord(ctx context.Context, tc *TurnContext) (Transition, error) {
	res := tc.Invoke(ctx, gatewayx.ToolFeedbackRecord, map[string]any{
		"email":       tc.Conv.Email,
		"customer_id": tc.Conv.CustomerID,
		"message":     tc.Message.Content,
	})
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	return Done("Thank you so much — I've passed your note along to the team. It genuinely makes their day!"), nil
}
