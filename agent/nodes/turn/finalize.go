package turnnode

import (
	"fmt"
	"strings"

	contractx "github.com/oakline/supportflow/agent/contract"
)

func FinalizeReply(in *GraphState) (GraphOutput, error) {
	if in == nil || in.Conv == nil {
		return GraphOutput{}, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	reply := strings.TrimSpace(in.Reply)
	if reply == "" {
		return GraphOutput{}, fmt.Errorf("%w: turn produced an empty reply", contractx.ErrValidation)
	}

	return GraphOutput{
		Reply:     reply,
		Workflow:  in.Conv.Workflow,
		Step:      in.Conv.Step,
		Escalated: in.Conv.Escalated,
		Intent:    in.Class.Intent,
		Traces:    in.Traces.Entries(),
	}, nil
}
