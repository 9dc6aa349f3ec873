package workflow

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// wrong_or_missing_item steps.
const (
	stepItemsCollectOrder = "collect_order"
)

func wrongOrMissingItemDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowWrongOrMissingItem,
		Initial:  stepItemsCollectOrder,
		Steps: map[string]StepFunc{
			stepItemsCollectOrder: itemsCollectOrder,
		},
	}
}

// itemsCollectOrder verifies the order was delivered and arranges a reship of
// the missing or incorrect item.
func itemsCollectOrder(ctx context.Context, tc *TurnContext) (Transition, error) {
	orderID := extractOrderID(tc)
	if orderID == "" {
		return Stay("I'm sorry about that. Which order number is this about? I'll sort it out."), nil
	}

	res := lookupOrder(ctx, tc, orderID)
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	if res.String("fulfillment_status") != statusDelivered {
		return Stay(fmt.Sprintf(
			"Order #%s hasn't finished delivering yet, so the rest of it may still be on the way. If something's wrong once it arrives, tell me here and I'll fix it.",
			orderID)), nil
	}

	reship := tc.Invoke(ctx, gatewayx.ToolOrderReship, map[string]any{
		"order_id": orderID,
		"reason":   "wrong_or_missing_item",
		"details":  tc.Message.Content,
	})
	if !reship.OK {
		return escalateToolFailure(reship), nil
	}

	return Done(fmt.Sprintf(
		"I'm sorry about the mix-up with order #%s. A replacement shipment is on its way at no charge — you'll get tracking by email shortly.",
		orderID)), nil
}
