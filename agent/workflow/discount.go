package workflow

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// discount_request steps.
const (
	stepDiscountIssueCode = "issue_code"
)

func discountRequestDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowDiscountRequest,
		Initial:  stepDiscountIssueCode,
		Steps: map[string]StepFunc{
			stepDiscountIssueCode: discountIssueCode,
		},
	}
}

// discountIssueCode issues one code per conversation. The code_created flag in
// working data survives unbinding, so re-asking later in the same conversation
// returns the original code instead of minting a second one.
func discountIssueCode(ctx context.Context, tc *TurnContext) (Transition, error) {
	if created, _ := tc.Conv.WorkingValue(keyCodeCreated); created == true {
		code := tc.Conv.WorkingString(keyCode)
		return Done(fmt.Sprintf(
			"You already have an active code for this conversation: %s. It's single-use, so hold onto it until checkout!",
			code)), nil
	}

	res := tc.Invoke(ctx, gatewayx.ToolDiscountCreate, map[string]any{
		"email":       tc.Conv.Email,
		"customer_id": tc.Conv.CustomerID,
		"percent":     10,
	})
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	code := res.String("code")
	return Transition{
		Reply: fmt.Sprintf(
			"Of course — here's a 10%% code just for you: %s. It works on your next order within 30 days.",
			code),
		Terminal: true,
		Delta: map[string]any{
			keyCodeCreated: true,
			keyCode:        code,
		},
	}, nil
}
