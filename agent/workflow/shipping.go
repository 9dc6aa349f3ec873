package workflow

import (
	"context"
	"fmt"
	"time"

	contractx "github.com/oakline/supportflow/agent/contract"
)

// shipping_delay steps.
const (
	stepShippingCheckStatus   = "check_status"
	stepShippingAwaitDelivery = "await_delivery"
)

func shippingDelayDefinition() Definition {
	return Definition{
		Workflow: contractx.WorkflowShippingDelay,
		Initial:  stepShippingCheckStatus,
		Steps: map[string]StepFunc{
			stepShippingCheckStatus:   shippingCheckStatus,
			stepShippingAwaitDelivery: shippingAwaitDelivery,
		},
	}
}

// shippingCheckStatus looks the order up and branches purely on the
// fulfillment status the tool returns.
func shippingCheckStatus(ctx context.Context, tc *TurnContext) (Transition, error) {
	orderID := extractOrderID(tc)
	if orderID == "" {
		return Stay("I can check on that right away — what's your order number?"), nil
	}

	res := lookupOrder(ctx, tc, orderID)
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	switch res.String("fulfillment_status") {
	case statusUnfulfilled:
		return Done(fmt.Sprintf(
			"Order #%s hasn't shipped yet. Our warehouse is still preparing it, and you'll get a tracking email the moment it leaves.",
			orderID)), nil
	case statusDelivered:
		return Done(fmt.Sprintf(
			"Our carrier marked order #%s as delivered. If it isn't with you, please check with neighbors or your mail room and let us know.",
			orderID)), nil
	case statusInTransit:
		promise := promiseDate(tc.Now)
		return Advance(stepShippingAwaitDelivery,
			fmt.Sprintf(
				"Order #%s is on its way. Based on the carrier's schedule it should arrive by %s — if it hasn't landed by then, message me again and I'll dig deeper.",
				orderID, promise.Format("Monday, January 2")),
			map[string]any{
				keyOrderID:     orderID,
				keyPromiseDate: promise.Format(time.RFC3339),
			}), nil
	default:
		return escalateWith(contractx.ReasonOther,
			"order lookup returned an unrecognized fulfillment status",
			map[string]any{"order_id": orderID, "fulfillment_status": res.String("fulfillment_status")},
			""), nil
	}
}

// shippingAwaitDelivery re-checks the order on a later turn and compares now
// against the stored promise date.
func shippingAwaitDelivery(ctx context.Context, tc *TurnContext) (Transition, error) {
	orderID := tc.Conv.WorkingString(keyOrderID)
	rawPromise := tc.Conv.WorkingString(keyPromiseDate)
	promise, err := time.Parse(time.RFC3339, rawPromise)
	if err != nil {
		return Transition{}, fmt.Errorf("%w: stored promise date %q is unreadable", contractx.ErrValidation, rawPromise)
	}

	res := lookupOrder(ctx, tc, orderID)
	if !res.OK {
		return escalateToolFailure(res), nil
	}

	if res.String("fulfillment_status") == statusDelivered {
		return Done(fmt.Sprintf("Good news — order #%s has been delivered. Anything else I can help with?", orderID)), nil
	}

	if pastPromise(tc.Now, promise) {
		return escalateWith(contractx.ReasonMissedPromise,
			"order still in transit past the promised date",
			map[string]any{
				"order_id":     orderID,
				"promise_date": rawPromise,
				"status":       res.String("fulfillment_status"),
			},
			""), nil
	}

	return Stay(fmt.Sprintf(
		"Order #%s is still in transit and inside the %s window I mentioned. Hang tight — and if it misses that date, I'll get a person involved.",
		orderID, promise.Format("Monday, January 2"))), nil
}
