package workflow

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

// refund_request steps.
const (
	stepRefundReviewOrder = "review_order"
)

func refundRequestDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowRefundRequest,
		Initial:  stepRefundReviewOrder,
		Steps: map[string]StepFunc{
			stepRefundReviewOrder: refundReviewOrder,
		},
	}
}

// refundReviewOrder branches on the order's fulfillment status: unshipped
// orders refund immediately, in-transit ones wait, delivered ones are a
// billing dispute that policy reserves for a person.
func refundReviewOrder(ctx context.Context, tc *TurnContext) (Transition, error) {
	orderID := extractOrderID(tc)
	if orderID == "" {
		return Stay("I can help with a refund. Which order number would you like refunded?"), nil
	}

	res := lookupOrder(ctx, tc, orderID)
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	switch res.String("fulfillment_status") {
	case statusUnfulfilled:
		refund := tc.Invoke(ctx, gatewayx.ToolRefundCreate, map[string]any{
			"order_id": orderID,
			"reason":   "customer_request_before_shipment",
		})
		if !refund.OK {
			return escalateToolFailure(refund), nil
		}
		return Done(fmt.Sprintf(
			"Done — order #%s was cancelled before shipping and a full refund is on its way back to your original payment method (3-5 business days).",
			orderID)), nil
	case statusInTransit:
		return Done(fmt.Sprintf(
			"Order #%s is already in transit, so I can't pull it back mid-route. Once it arrives you can refuse the package or start a return, and the refund goes out as soon as the carrier scans it.",
			orderID)), nil
	default:
		return escalateWith(contractx.ReasonPolicyRequiredHuman,
			"refund on a delivered order needs human review",
			map[string]any{"order_id": orderID, "fulfillment_status": res.String("fulfillment_status")},
			""), nil
	}
}
