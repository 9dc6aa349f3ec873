package router

import (
	"context"
	"strings"

	contractx "github.com/oakline/supportflow/agent/contract"
)

// KeywordRouter is a deterministic fallback classifier for deployments without
// a model key. First matching rule wins.
type KeywordRouter struct{}

var _ contractx.Classifier = KeywordRouter{}

type keywordRule struct {
	workflow contractx.Workflow
	intent   string
	keywords []string
}

var keywordRules = []keywordRule{
	{contractx.WorkflowDiscountRequest, "discount_code", []string{"discount", "promo", "coupon", "voucher"}},
	{contractx.WorkflowRefundRequest, "refund", []string{"refund", "money back", "chargeback"}},
	{contractx.WorkflowSubscriptionIssue, "subscription", []string{"subscription", "billing", "charged", "cancel my plan"}},
	{contractx.WorkflowOrderModification, "modify_order", []string{"change my order", "update my order", "wrong address", "change the address", "update the address"}},
	{contractx.WorkflowWrongOrMissingItem, "wrong_item", []string{"wrong item", "missing item", "didn't receive", "not what i ordered"}},
	{contractx.WorkflowProductIssue, "defect", []string{"broken", "defective", "damaged", "doesn't work", "not working"}},
	{contractx.WorkflowShippingDelay, "where_is_order", []string{"where is my order", "hasn't arrived", "still waiting", "shipping", "delivery", "late"}},
	{contractx.WorkflowPositiveFeedback, "praise", []string{"thank you", "love it", "great service", "awesome"}},
}

func (KeywordRouter) Classify(ctx context.Context, latest string, history []string) (contractx.Classification, error) {
	text := strings.ToLower(latest)
	for _, rule := range keywordRules {
		for _, kw := range rule.keywords {
			if strings.Contains(text, kw) {
				return contractx.Classification{Workflow: rule.workflow, Intent: rule.intent}, nil
			}
		}
	}
	return contractx.Classification{Workflow: contractx.WorkflowUnresolved, Intent: "unclear"}, nil
}
