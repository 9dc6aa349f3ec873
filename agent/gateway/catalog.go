package gateway

import (
	"context"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	toolhttpx "github.com/oakline/supportflow/pkg/toolhttp"
)

// Tool names used by the workflow step machines.
const (
	ToolOrderLookup        = "order.lookup"
	ToolOrderReship        = "order.reship"
	ToolOrderUpdateAddress = "order.update_address"
	ToolRefundCreate       = "refund.create"
	ToolDiscountCreate     = "discount.create"
	ToolSubscriptionStatus = "subscription.status"
	ToolSubscriptionPause  = "subscription.pause"
	ToolFeedbackRecord     = "feedback.record"
	ToolDefectReport       = "defect.report"
)

// endpointPaths maps each catalog tool to its capability-endpoint path.
var endpointPaths = map[string]string{
	ToolOrderLookup:        "/orders/lookup",
	ToolOrderReship:        "/orders/reship",
	ToolOrderUpdateAddress: "/orders/update-address",
	ToolRefundCreate:       "/refunds",
	ToolDiscountCreate:     "/discounts",
	ToolSubscriptionStatus: "/subscriptions/status",
	ToolSubscriptionPause:  "/subscriptions/pause",
	ToolFeedbackRecord:     "/feedback",
	ToolDefectReport:       "/defects",
}

// CatalogOptions builds the full builtin tool set as gateway options. With a
// client, every tool posts to its capability endpoint; without one, every call
// fails as unavailable so workflows escalate instead of guessing.
func CatalogOptions(client *toolhttpx.Client) []Option {
	opts := make([]Option, 0, len(endpointPaths))
	for name, path := range endpointPaths {
		opts = append(opts, WithTool(name, endpointTool(client, name, path)))
	}
	return opts
}

func endpointTool(client *toolhttpx.Client, name, path string) contractx.ToolFunc {
	return func(ctx context.Context, args map[string]any) (map[string]any, error) {
		if client == nil {
			return nil, fmt.Errorf("tool %s has no configured endpoint", name)
		}
		return client.Call(ctx, path, args)
	}
}
