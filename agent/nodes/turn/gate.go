package turnnode

import (
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/oakline/supportflow/agent/contract"
)

// CheckGate enforces the escalation invariant. A blocked conversation gets the
// fixed acknowledgement and no router or workflow node does anything this turn.
// The gate runs here, immediately before dispatch, rather than trusting callers
// to have checked.
func CheckGate(in *GraphState) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}

	if in.Conv.Escalated {
		in.Blocked = true
		in.Reply = EscalationAck
		log.Debug().
			Str("conversation_id", in.Conv.ConversationID).
			Msg("turn blocked by escalation gate")
	}
	return in, nil
}
