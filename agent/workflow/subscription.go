package workflow

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// subscription_issue steps.
const (
	stepSubReviewAccount = "review_account"
)

func subscriptionIssueDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowSubscriptionIssue,
		Initial:  stepSubReviewAccount,
		Steps: map[string]StepFunc{
			stepSubReviewAccount: subReviewAccount,
		},
	}
}

// subReviewAccount checks the subscription and branches on its status and on
// the customer's explicit ask. Cancellations are a billing decision reserved
// for a person.
func subReviewAccount(ctx context.Context, tc *TurnContext) (Transition, error) {
	if containsAny(tc.Message.Content, "cancel") {
		return escalateWith(contractx.ReasonPolicyRequiredHuman,
			"subscription cancellation request",
			map[string]any{"customer_id": tc.Conv.CustomerID, "email": tc.Conv.Email},
			""), nil
	}

	res := tc.Invoke(ctx, gatewayx.ToolSubscriptionStatus, map[string]any{
		"email":       tc.Conv.Email,
		"customer_id": tc.Conv.CustomerID,
	})
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	status := res.String("status")
	if status == "past_due" {
		return Done("Your subscription payment didn't go through, which is why service paused. " +
			"Updating your card under Account > Billing restarts it immediately — no other action needed."), nil
	}

	if containsAny(tc.Message.Content, "pause", "hold", "skip") {
		pause := tc.Invoke(ctx, gatewayx.ToolSubscriptionPause, map[string]any{
			"email":       tc.Conv.Email,
			"customer_id": tc.Conv.CustomerID,
		})
		if !pause.OK {
			return escalateToolFailure(pause), nil
		}
		return Done("Done — your subscription is paused. It won't bill again until you resume it from your account page."), nil
	}

	return Done(fmt.Sprintf(
		"Your subscription is currently %q with the next renewal on %s. Let me know if you'd like to pause it or change anything.",
		status, res.String("renews_at"))), nil
}
