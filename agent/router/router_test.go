package router

import (
	"context"
	"testing"

	contractx "github.com/oakline/supportflow/agent/contract"
)

func TestSanitizeFoldsUnknownLabelsToUnresolved(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		in   classifierLLMOutput
		want contractx.Workflow
	}{
		{"known workflow passes through", classifierLLMOutput{Workflow: "refund_request", Intent: "refund"}, contractx.WorkflowRefundRequest},
		{"case and whitespace are normalized", classifierLLMOutput{Workflow: "  Shipping_Delay "}, contractx.WorkflowShippingDelay},
		{"invented label folds to unresolved", classifierLLMOutput{Workflow: "angry_customer"}, contractx.WorkflowUnresolved},
		{"unresolved stays unresolved", classifierLLMOutput{Workflow: "unresolved"}, contractx.WorkflowUnresolved},
		{"empty folds to unresolved", classifierLLMOutput{}, contractx.WorkflowUnresolved},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := sanitize(tc.in).Workflow; got != tc.want {
				t.Fatalf("sanitize(%q).Workflow = %q, want %q", tc.in.Workflow, got, tc.want)
			}
		})
	}
}

func TestKeywordRouterMatchesRules(t *testing.T) {
	t.Parallel()

	cases := []struct {
		text string
		want contractx.Workflow
	}{
		{"do you have any discount codes?", contractx.WorkflowDiscountRequest},
		{"I want my money back", contractx.WorkflowRefundRequest},
		{"why was I charged twice this month", contractx.WorkflowSubscriptionIssue},
		{"I put the wrong address on my order", contractx.WorkflowOrderModification},
		{"you sent the wrong item", contractx.WorkflowWrongOrMissingItem},
		{"the blender arrived broken", contractx.WorkflowProductIssue},
		{"where is my order??", contractx.WorkflowShippingDelay},
		{"thank you, great service!", contractx.WorkflowPositiveFeedback},
	}
	for _, tc := range cases {
		got, err := KeywordRouter{}.Classify(context.Background(), tc.text, nil)
		if err != nil {
			t.Fatalf("Classify(%q) error = %v", tc.text, err)
		}
		if got.Workflow != tc.want {
			t.Fatalf("Classify(%q) = %q, want %q", tc.text, got.Workflow, tc.want)
		}
	}
}

func TestKeywordRouterDefaultsToUnresolved(t *testing.T) {
	t.Parallel()

	got, err := KeywordRouter{}.Classify(context.Background(), "hello there", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Workflow != contractx.WorkflowUnresolved {
		t.Fatalf("Classify(small talk) = %q, want unresolved", got.Workflow)
	}
}

func TestKeywordRouterFirstRuleWins(t *testing.T) {
	t.Parallel()

	// "refund" outranks "shipping" in the rule order, so a message mentioning
	// both binds the refund workflow.
	got, err := KeywordRouter{}.Classify(context.Background(), "the shipping took forever, I want a refund", nil)
	if err != nil {
		t.Fatalf("Classify() error = %v", err)
	}
	if got.Workflow != contractx.WorkflowRefundRequest {
		t.Fatalf("Classify() = %q, want refund_request by rule priority", got.Workflow)
	}
}
