package turnnode

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"

	contractx "github.com/oakline/supportflow/agent/contract"
	workflowx "github.com/oakline/supportflow/agent/workflow"
)

// RouteIntent consults the classifier once, and only when the conversation is
// not already bound. A classifier error is an unresolved routing, never fatal.
// A resolved classification binds the workflow and resets the step to its
// initial state.
func RouteIntent(ctx context.Context, in *GraphState, classifier contractx.Classifier, engine *workflowx.Engine) (*GraphState, error) {
	if in == nil || in.Conv == nil {
		return nil, fmt.Errorf("%w: graph conversation is nil", contractx.ErrValidation)
	}
	if in.Blocked || in.Conv.Bound() {
		return in, nil
	}

	class, err := classifier.Classify(ctx, in.Req.Text, in.Conv.RecentHistory(6))
	if err != nil {
		log.Warn().
			Err(err).
			Str("conversation_id", in.Conv.ConversationID).
			Msg("classification failed, treating as unresolved")
		class = contractx.Classification{Workflow: contractx.WorkflowUnresolved}
	}

	in.Class = class
	in.Routed = true

	if !class.Workflow.IsBindable() {
		return in, nil
	}

	initial, err := engine.InitialStep(class.Workflow)
	if err != nil {
		return nil, err
	}
	if err := in.Conv.Bind(class.Workflow, initial, in.Now); err != nil {
		return nil, err
	}
	return in, nil
}
