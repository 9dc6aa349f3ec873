package workflow

import (
	"context"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// product_issue steps.
const (
	stepProductReportDefect = "report_defect"
)

func productIssueDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowProductIssue,
		Initial:  stepProductReportDefect,
		Steps: map[string]StepFunc{
			stepProductReportDefect: productReportDefect,
		},
	}
}

// productReportDefect files the defect report. Anything hinting at a safety
// problem goes straight to a person.
func productReportDefect(ctx context.Context, tc *TurnContext) (Transition, error) {
	if containsAny(tc.Message.Content, "fire", "burn", "smoke", "shock", "injury", "injured", "unsafe") {
		return escalateWith(contractx.ReasonPolicyRequiredHuman,
			"possible product safety issue",
			map[string]any{"message": tc.Message.Content},
			""), nil
	}

	res := tc.Invoke(ctx, gatewayx.ToolDefectReport, map[string]any{
		"email":       tc.Conv.Email,
		"customer_id": tc.Conv.CustomerID,
		"description": tc.Message.Content,
	})
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	return Done("Thanks for flagging this — I've logged the defect with our quality team. " +
		"They'll review it and a replacement or refund offer will follow by email within two business days."), nil
}
