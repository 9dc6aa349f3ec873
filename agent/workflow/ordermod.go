package workflow

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// order_modification steps.
const (
	stepModLocateOrder = "locate_order"
	stepModApplyChange = "apply_change"
)

func orderModificationDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowOrderModification,
		Initial:  stepModLocateOrder,
		Steps: map[string]StepFunc{
			stepModLocateOrder: modLocateOrder,
			stepModApplyChange: modApplyChange,
		},
	}
}

func modLocateOrder(ctx context.Context, tc *TurnContext) (Transition, error) {
	orderID := extractOrderID(tc)
	if orderID == "" {
		return Stay("Happy to change that for you. Which order number should I update?"), nil
	}

	res := lookupOrder(ctx, tc, orderID)
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	if res.String("fulfillment_status") != statusUnfulfilled {
		return Done(fmt.Sprintf(
			"Order #%s has already left the warehouse, so it can't be changed anymore. If it doesn't suit once it arrives, you can return it for a refund.",
			orderID)), nil
	}

	return Advance(stepModApplyChange,
		fmt.Sprintf("Order #%s hasn't shipped yet, so there's still time. What would you like changed — for example the delivery address?", orderID),
		map[string]any{keyOrderID: orderID}), nil
}

// modApplyChange applies the requested change. Address updates are automated;
// anything else (items, payment) is reserved for a person.
func modApplyChange(ctx context.Context, tc *TurnContext) (Transition, error) {
	orderID := tc.Conv.WorkingString(keyOrderID)

	if !containsAny(tc.Message.Content, "address", "deliver to", "ship to") {
		return escalateWith(contractx.ReasonPolicyRequiredHuman,
			"order change other than delivery address",
			map[string]any{"order_id": orderID, "request": tc.Message.Content},
			""), nil
	}

	res := tc.Invoke(ctx, gatewayx.ToolOrderUpdateAddress, map[string]any{
		"order_id": orderID,
		"address":  tc.Message.Content,
	})
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	return Done(fmt.Sprintf("All set — the delivery address on order #%s has been updated.", orderID)), nil
}
