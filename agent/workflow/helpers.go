package workflow

import (
	"context"
	"regexp"
	"strings"
	"time"

	gatewayx "github.com/oakline/supportflow/agent/gateway"
)

var orderIDPattern = regexp.MustCompile(`#?(\d{4,})`)

// extractOrderID pulls an order number from free text, falling back to the
// workflow's stored working value.
func extractOrderID(tc *TurnContext) string {
	if m := orderIDPattern.FindStringSubmatch(tc.Message.Content); len(m) == 2 {
		return m[1]
	}
	return tc.Conv.WorkingString(keyOrderID)
}

// lookupOrder runs the order lookup tool with the identity on record.
func lookupOrder(ctx context.Context, tc *TurnContext, orderID string) gatewayx.Result {
	return tc.Invoke(ctx, gatewayx.ToolOrderLookup, map[string]any{
		"order_id":    orderID,
		"email":       tc.Conv.Email,
		"customer_id": tc.Conv.CustomerID,
	})
}

// Shared working-data keys. Keys live inside a workflow's own scope, so the
// same name in two workflows never collides.
const (
	keyOrderID     = "order_id"
	keyPromiseDate = "promise_date"
	keyCodeCreated = "code_created"
	keyCode        = "discount_code"
)

// Fulfillment statuses returned by order.lookup.
const (
	statusUnfulfilled = "UNFULFILLED"
	statusInTransit   = "IN_TRANSIT"
	statusDelivered   = "DELIVERED"
)

// promiseDate computes the delivery promise from the weekday the order was
// found in transit: Monday through Wednesday promise the upcoming Friday,
// Thursday through Sunday the following Monday. The promise is the day at
// midnight UTC; a turn "misses" it once its date is strictly later.
func promiseDate(now time.Time) time.Time {
	now = now.UTC()
	day := now.Weekday()

	var target time.Weekday
	switch day {
	case time.Monday, time.Tuesday, time.Wednesday:
		target = time.Friday
	default:
		target = time.Monday
	}

	days := (int(target) - int(day) + 7) % 7
	if days == 0 {
		days = 7
	}
	promised := now.AddDate(0, 0, days)
	return time.Date(promised.Year(), promised.Month(), promised.Day(), 0, 0, 0, 0, time.UTC)
}

// pastPromise reports whether now's date is strictly after the promised date.
func pastPromise(now, promise time.Time) bool {
	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return today.After(promise)
}

func containsAny(text string, phrases ...string) bool {
	t := strings.ToLower(text)
	for _, p := range phrases {
		if strings.Contains(t, p) {
			return true
		}
	}
	return false
}
