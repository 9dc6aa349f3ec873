package contract

import "time"

// Workflow identifies one of the specialist conversation workflows. A
// conversation is bound to at most one workflow at a time; WorkflowUnresolved is
// a router outcome only and is never bound.
type Workflow string

const (
	WorkflowShippingDelay      Workflow = "shipping_delay"
	WorkflowWrongOrMissingItem Workflow = "wrong_or_missing_item"
	WorkflowProductIssue       Workflow = "product_issue"
	WorkflowRefundRequest      Workflow = "refund_request"
	WorkflowOrderModification  Workflow = "order_modification"
	WorkflowPositiveFeedback   Workflow = "positive_feedback"
	WorkflowSubscriptionIssue  Workflow = "subscription_issue"
	WorkflowDiscountRequest    Workflow = "discount_request"
	WorkflowUnresolved         Workflow = "unresolved"
)

// KnownWorkflows lists every bindable workflow.
var KnownWorkflows = []Workflow{
	WorkflowShippingDelay,
	WorkflowWrongOrMissingItem,
	WorkflowProductIssue,
	WorkflowRefundRequest,
	WorkflowOrderModification,
	WorkflowPositiveFeedback,
	WorkflowSubscriptionIssue,
	WorkflowDiscountRequest,
}

// IsBindable reports whether w is a workflow a conversation may be bound to.
func (w Workflow) IsBindable() bool {
	for _, known := range KnownWorkflows {
		if w == known {
			return true
		}
	}
	return false
}

type EscalationReason string

const (
	ReasonMissingIdentity        EscalationReason = "missing_identity"
	ReasonToolFailure            EscalationReason = "tool_failure"
	ReasonMissedPromise          EscalationReason = "missed_promise"
	ReasonPolicyRequiredHuman    EscalationReason = "policy_required_human"
	ReasonCustomerRequestedHuman EscalationReason = "customer_requested_human"
	ReasonOther                  EscalationReason = "other"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleAgent    Role = "agent"
)

type Direction string

const (
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

type Attachment struct {
	URL      string            `json:"url"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

// Message is immutable once appended; log insertion order is the source of
// truth for "latest customer message".
type Message struct {
	Role        Role         `json:"role"`
	Content     string       `json:"content"`
	Direction   Direction    `json:"direction"`
	Attachments []Attachment `json:"attachments,omitempty"`
	Timestamp   time.Time    `json:"timestamp"`
}

// ToolTrace records one tool invocation, success or failure. Created once,
// never mutated.
type ToolTrace struct {
	Tool      string         `json:"tool"`
	Input     map[string]any `json:"input,omitempty"`
	Output    map[string]any `json:"output,omitempty"`
	Error     string         `json:"error,omitempty"`
	Success   bool           `json:"success"`
	Timestamp time.Time      `json:"timestamp"`
	Duration  time.Duration  `json:"duration"`
}

// EscalationSummary is created at most once per conversation; the first
// escalation wins.
type EscalationSummary struct {
	Reason  EscalationReason `json:"reason"`
	Note    string           `json:"note,omitempty"`
	Context map[string]any   `json:"context,omitempty"`
}

// TurnRecord is one append-only agent-turn history entry: which workflow and
// step ran, and every tool call the step made.
type TurnRecord struct {
	Seq      int         `json:"seq"`
	Workflow Workflow    `json:"workflow,omitempty"`
	Step     string      `json:"step,omitempty"`
	Traces   []ToolTrace `json:"traces,omitempty"`
	At       time.Time   `json:"at"`
}

// Classification is the router's verdict for one turn.
type Classification struct {
	Workflow Workflow `json:"workflow"`
	Intent   string   `json:"intent"`
}

// TurnRequest is one fully-formed inbound turn from the API layer.
type TurnRequest struct {
	ConversationID string       `json:"conversation_id"`
	Email          string       `json:"email,omitempty"`
	Name           string       `json:"name,omitempty"`
	CustomerID     string       `json:"customer_id,omitempty"`
	Text           string       `json:"text"`
	Attachments    []Attachment `json:"attachments,omitempty"`
}

// TurnResponse carries the outbound message plus the updated workflow and
// escalation flags and the turn's tool-trace list.
type TurnResponse struct {
	Reply     string      `json:"reply"`
	Workflow  Workflow    `json:"workflow,omitempty"`
	Step      string      `json:"step,omitempty"`
	Escalated bool        `json:"escalated"`
	Intent    string      `json:"intent,omitempty"`
	Traces    []ToolTrace `json:"traces,omitempty"`
}
