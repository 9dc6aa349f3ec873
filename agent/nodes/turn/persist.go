package turnnode

import (
	"context"
	"fmt"
	"strings"

	contractx "github.com/oakline/supportflow/agent/contract"
	statex "github.com/oakline/supportflow/agent/state"
)

// PersistTurn applies the step's transition to the conversation, appends the
// inbound and outbound messages and the turn record, and commits everything in
// one Save. A failed Save is fatal for the turn: no reply claims success for
// state that was never committed.
func PersistTurn(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	conv := in.Conv
	conv.AppendMessage(in.Inbound)

	if !in.Blocked {
		in.Reply = resolveReply(in)

		if in.Stepped {
			// Delta first: terminal transitions still write into the bound
			// workflow's scope before it unbinds.
			conv.ApplyDelta(in.Trans.Delta)
			switch {
			case in.Trans.Escalation != nil:
				conv.Escalate(*in.Trans.Escalation, in.Now)
			case in.Trans.Terminal:
				conv.Unbind(in.Now)
			case in.Trans.Next != "":
				conv.Step = in.Trans.Next
			}
		}

		conv.AppendMessage(contractx.Message{
			Role:      contractx.RoleAgent,
			Content:   in.Reply,
			Direction: contractx.DirectionOutbound,
			Timestamp: in.Now,
		})
		conv.AppendTurn(in.WorkflowRun, in.StepRun, in.Traces.Entries(), in.Now)
	}

	conv.Touch(in.Now)
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("conversation validation failed: %w", err)
	}
	if err := store.Save(ctx, conv); err != nil {
		return nil, fmt.Errorf("%w: %v", contractx.ErrPersistence, err)
	}
	return in, nil
}

func resolveReply(in *GraphState) string {
	if !in.Stepped {
		return ClarificationReply
	}
	if in.Trans.Escalation != nil {
		if reply := strings.TrimSpace(in.Trans.Reply); reply != "" {
			return reply
		}
		return EscalationHandoff
	}
	return in.Trans.Reply
}
