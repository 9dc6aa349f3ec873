package workflow

import (
	"context"
	"errors"
	"testing"
	"time"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	statex "github.com/oakline/supportflow/agent/state"
)

// 2025-03-03 is a Monday.
var (
	monday   = time.Date(2025, 3, 3, 9, 0, 0, 0, time.UTC)
	tuesday  = monday.AddDate(0, 0, 1)
	saturday = monday.AddDate(0, 0, 5)
)

func TestPromiseDate(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"monday promises upcoming friday", monday, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"tuesday promises upcoming friday", tuesday, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"wednesday promises upcoming friday", monday.AddDate(0, 0, 2), time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC)},
		{"thursday promises following monday", monday.AddDate(0, 0, 3), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"friday promises following monday", monday.AddDate(0, 0, 4), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"saturday promises following monday", saturday, time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
		{"sunday promises following monday", monday.AddDate(0, 0, 6), time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := promiseDate(tc.now); !got.Equal(tc.want) {
				t.Fatalf("promiseDate(%s) = %s, want %s", tc.now.Weekday(), got, tc.want)
			}
		})
	}
}

func shippingConv(t *testing.T, step string) *statex.Conversation {
	t.Helper()
	conv := statex.NewConversation("c-1", monday)
	conv.Email = "jo@example.com"
	if err := conv.Bind(contractx.WorkflowShippingDelay, step, monday); err != nil {
		t.Fatalf("Bind() error = %v", err)
	}
	return conv
}

func orderLookupGateway(status string) *gatewayx.Gateway {
	return gatewayx.New(gatewayx.WithTool(gatewayx.ToolOrderLookup,
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"fulfillment_status": status}, nil
		}))
}

func runStep(t *testing.T, e *Engine, conv *statex.Conversation, text string, now time.Time, g *gatewayx.Gateway) Transition {
	t.Helper()
	traces := &gatewayx.TraceLog{}
	trans, err := e.Execute(context.Background(), &TurnContext{
		Conv: conv,
		Message: contractx.Message{
			Role:      contractx.RoleCustomer,
			Content:   text,
			Direction: contractx.DirectionInbound,
			Timestamp: now,
		},
		Now:    now,
		Tools:  g,
		Traces: traces,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	return trans
}

func TestShippingUnfulfilledIsTerminal(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	conv := shippingConv(t, stepShippingCheckStatus)
	trans := runStep(t, e, conv, "Where is my order #12345?", monday, orderLookupGateway(statusUnfulfilled))

	if !trans.Terminal {
		t.Fatal("Terminal = false, want unfulfilled reply to end the workflow")
	}
	if trans.Escalation != nil {
		t.Fatalf("Escalation = %+v, want none", trans.Escalation)
	}
}

func TestShippingInTransitMovesToWaitingWithFridayPromise(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	conv := shippingConv(t, stepShippingCheckStatus)
	trans := runStep(t, e, conv, "Where is my order #12345?", monday, orderLookupGateway(statusInTransit))

	if trans.Terminal || trans.Escalation != nil {
		t.Fatalf("transition = %+v, want a non-terminal move to the waiting step", trans)
	}
	if trans.Next != stepShippingAwaitDelivery {
		t.Fatalf("Next = %q, want %q", trans.Next, stepShippingAwaitDelivery)
	}
	wantPromise := time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC).Format(time.RFC3339)
	if got := trans.Delta[keyPromiseDate]; got != wantPromise {
		t.Fatalf("promise_date delta = %v, want %v", got, wantPromise)
	}
}

func TestShippingMissedPromiseEscalates(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	conv := shippingConv(t, stepShippingAwaitDelivery)
	conv.SetWorking(keyOrderID, "12345")
	conv.SetWorking(keyPromiseDate, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC).Format(time.RFC3339))

	afterPromise := time.Date(2025, 3, 8, 9, 0, 0, 0, time.UTC)
	trans := runStep(t, e, conv, "It still hasn't arrived", afterPromise, orderLookupGateway(statusInTransit))

	if trans.Escalation == nil || trans.Escalation.Reason != contractx.ReasonMissedPromise {
		t.Fatalf("Escalation = %+v, want missed_promise", trans.Escalation)
	}
}

func TestShippingWithinPromiseStaysWaiting(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	conv := shippingConv(t, stepShippingAwaitDelivery)
	conv.SetWorking(keyOrderID, "12345")
	conv.SetWorking(keyPromiseDate, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC).Format(time.RFC3339))

	trans := runStep(t, e, conv, "Any update?", tuesday, orderLookupGateway(statusInTransit))

	if trans.Terminal || trans.Escalation != nil || trans.Next != "" {
		t.Fatalf("transition = %+v, want to stay in the waiting step", trans)
	}
}

func TestShippingDeliveredWhileWaitingIsTerminal(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	conv := shippingConv(t, stepShippingAwaitDelivery)
	conv.SetWorking(keyOrderID, "12345")
	conv.SetWorking(keyPromiseDate, time.Date(2025, 3, 7, 0, 0, 0, 0, time.UTC).Format(time.RFC3339))

	trans := runStep(t, e, conv, "Checking in", tuesday, orderLookupGateway(statusDelivered))
	if !trans.Terminal {
		t.Fatal("Terminal = false, want delivery to end the workflow")
	}
}

func TestShippingToolFailureEscalates(t *testing.T) {
	t.Parallel()

	g := gatewayx.New(gatewayx.WithTool(gatewayx.ToolOrderLookup,
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, errors.New("timeout")
		}))

	e := NewEngine()
	conv := shippingConv(t, stepShippingCheckStatus)
	traces := &gatewayx.TraceLog{}
	trans, err := e.Execute(context.Background(), &TurnContext{
		Conv:    conv,
		Message: contractx.Message{Role: contractx.RoleCustomer, Content: "order #12345?"},
		Now:     monday,
		Tools:   g,
		Traces:  traces,
	})
	if err != nil {
		t.Fatalf("Execute() error = %v", err)
	}

	if trans.Escalation == nil || trans.Escalation.Reason != contractx.ReasonToolFailure {
		t.Fatalf("Escalation = %+v, want tool_failure", trans.Escalation)
	}
	if got := trans.Escalation.Context["tool"]; got != gatewayx.ToolOrderLookup {
		t.Fatalf("escalation context tool = %v, want %s", got, gatewayx.ToolOrderLookup)
	}
	entries := traces.Entries()
	if len(entries) != 1 || entries[0].Success {
		t.Fatalf("traces = %+v, want one failed order.lookup entry", entries)
	}
}

func TestShippingAsksForOrderIDWhenMissing(t *testing.T) {
	t.Parallel()

	e := NewEngine()
	conv := shippingConv(t, stepShippingCheckStatus)
	trans := runStep(t, e, conv, "where is my stuff", monday, orderLookupGateway(statusInTransit))

	if trans.Terminal || trans.Escalation != nil || trans.Next != "" {
		t.Fatalf("transition = %+v, want a clarifying stay", trans)
	}
	if trans.Reply == "" {
		t.Fatal("Reply is empty, want a question about the order number")
	}
}
