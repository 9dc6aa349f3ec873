package turnnode

import (
	"errors"
	"strings"
	"time"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	statex "github.com/oakline/supportflow/agent/state"
	workflowx "github.com/oakline/supportflow/agent/workflow"
)

var (
	ErrInvalidMessage = errors.New("message is empty")
	ErrInvalidConvID  = errors.New("conversation id is empty")
)

// Fixed user-visible replies for the turns where no workflow step speaks.
const (
	EscalationAck = "A member of our team is personally handling this conversation now. " +
		"They have the full history and will follow up with you directly."
	EscalationHandoff = "I've looped in a member of our support team — a person will take it from here. " +
		"They'll reply to you shortly with the full context."
	ClarificationReply = "I want to make sure I route this to the right place. " +
		"Could you tell me a little more about what you need help with — for example an order issue, a refund, or your subscription?"
)

type GraphInput = contractx.TurnRequest

type GraphOutput = contractx.TurnResponse

// GraphState threads one turn through the pipeline.
type GraphState struct {
	Req     contractx.TurnRequest
	Now     time.Time
	Inbound contractx.Message

	Conv   *statex.Conversation
	Traces *gatewayx.TraceLog

	// Blocked is set by the gate; when true no router or workflow node runs.
	Blocked bool

	Class  contractx.Classification
	Routed bool

	Stepped     bool
	WorkflowRun contractx.Workflow
	StepRun     string
	Trans       workflowx.Transition

	Reply string
}

func ValidateRequest(in GraphInput, nowFn func() time.Time) (*GraphState, error) {
	conversationID := strings.TrimSpace(in.ConversationID)
	if conversationID == "" {
		return nil, ErrInvalidConvID
	}

	text := strings.TrimSpace(in.Text)
	if text == "" {
		return nil, ErrInvalidMessage
	}

	now := nowFn().UTC()
	in.ConversationID = conversationID
	in.Text = text

	return &GraphState{
		Req: in,
		Now: now,
		Inbound: contractx.Message{
			Role:        contractx.RoleCustomer,
			Content:     text,
			Direction:   contractx.DirectionInbound,
			Attachments: in.Attachments,
			Timestamp:   now,
		},
		Traces: &gatewayx.TraceLog{},
	}, nil
}
