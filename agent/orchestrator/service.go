package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cloudwego/eino/compose"
	"github.com/rs/zerolog/log"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	turnnode "github.com/oakline/supportflow/agent/nodes/turn"
	statex "github.com/oakline/supportflow/agent/state"
	workflowx "github.com/oakline/supportflow/agent/workflow"
)

var (
	ErrInvalidMessage = turnnode.ErrInvalidMessage
	ErrInvalidConvID  = turnnode.ErrInvalidConvID
)

// Orchestrator drives one turn per inbound message: load state, check the
// escalation gate, route if unbound, run exactly one workflow step, persist.
// Turns for the same conversation id are serialized; distinct ids run fully in
// parallel.
type Orchestrator struct {
	store      statex.Store
	classifier contractx.Classifier
	tools      *gatewayx.Gateway
	engine     *workflowx.Engine

	graphRunner compose.Runnable[turnnode.GraphInput, turnnode.GraphOutput]
	locks       *convLocks

	now func() time.Time
}

func New(
	store statex.Store,
	classifier contractx.Classifier,
	tools *gatewayx.Gateway,
	engine *workflowx.Engine,
) (*Orchestrator, error) {
	if store == nil {
		return nil, errors.New("state store is required")
	}
	if classifier == nil {
		return nil, errors.New("classifier is required")
	}
	if tools == nil {
		return nil, errors.New("tool gateway is required")
	}
	if engine == nil {
		engine = workflowx.NewEngine()
	}

	o := &Orchestrator{
		store:      store,
		classifier: classifier,
		tools:      tools,
		engine:     engine,
		locks:      newConvLocks(),
		now:        time.Now,
	}

	graphRunner, err := o.compileTurnGraph(context.Background())
	if err != nil {
		return nil, err
	}
	o.graphRunner = graphRunner

	return o, nil
}

// HandleTurn processes one inbound message and returns the outbound reply with
// the updated workflow and escalation flags and the turn's tool traces.
func (o *Orchestrator) HandleTurn(ctx context.Context, req contractx.TurnRequest) (contractx.TurnResponse, error) {
	unlock := o.locks.acquire(req.ConversationID)
	defer unlock()

	out, err := o.graphRunner.Invoke(ctx, req)
	if err != nil {
		log.Error().
			Err(err).
			Str("conversation_id", req.ConversationID).
			Msg("turn failed")
		return contractx.TurnResponse{}, err
	}

	log.Info().
		Str("conversation_id", req.ConversationID).
		Str("workflow", string(out.Workflow)).
		Str("step", out.Step).
		Bool("escalated", out.Escalated).
		Int("tool_calls", len(out.Traces)).
		Msg("turn completed")

	return out, nil
}
