package turnnode

import (
	"context"
	"errors"
	"fmt"

	contractx "github.com/oakline/supportflow/agent/contract"
	statex "github.com/oakline/supportflow/agent/state"
)

func LoadOrCreateState(ctx context.Context, in *GraphState, store statex.Store) (*GraphState, error) {
	if in == nil {
		return nil, fmt.Errorf("%w: graph state is nil", contractx.ErrValidation)
	}

	conv, err := store.Load(ctx, in.Req.ConversationID)
	if err != nil {
		if !errors.Is(err, statex.ErrStateNotFound) {
			return nil, err
		}
		conv = statex.NewConversation(in.Req.ConversationID, in.Now)
	}

	conv.AbsorbIdentity(in.Req.Email, in.Req.Name, in.Req.CustomerID)
	in.Conv = conv
	return in, nil
}
