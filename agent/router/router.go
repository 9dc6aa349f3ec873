package router

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	einomodel "github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/compose"

	contractx "github.com/oakline/supportflow/agent/contract"
	promptx "github.com/oakline/supportflow/agent/prompt"
	openrouterx "github.com/oakline/supportflow/pkg/openrouter"
)

// Router classifies the newest customer message into a workflow. It is
// consulted once per turn and only while the conversation is unbound; its
// output is consumed at a single point (workflow binding) and never re-read
// mid-workflow.
type Router struct {
	runner compose.Runnable[map[string]any, classifierLLMOutput]
}

var _ contractx.Classifier = (*Router)(nil)

type classifierLLMOutput struct {
	Workflow string `json:"workflow"`
	Intent   string `json:"intent"`
}

// New builds an LLM-backed router from an OpenRouter model config.
func New(ctx context.Context, builder openrouterx.LLMBuilder) (*Router, error) {
	chatModel, err := builder.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: create classifier model: %v", contractx.ErrModelInvoke, err)
	}
	return newWithModel(ctx, chatModel)
}

func newWithModel(ctx context.Context, chatModel einomodel.BaseChatModel) (*Router, error) {
	prompts := promptx.LoadPromptSet()
	runner, err := compileClassifierGraph(ctx, chatModel, prompts.Classifier)
	if err != nil {
		return nil, err
	}
	return &Router{runner: runner}, nil
}

func (r *Router) Classify(ctx context.Context, latest string, history []string) (contractx.Classification, error) {
	latest = strings.TrimSpace(latest)
	if latest == "" {
		return contractx.Classification{}, fmt.Errorf("%w: latest message is required", contractx.ErrValidation)
	}

	payload := map[string]any{
		"latest_message": latest,
		"recent_history": history,
	}
	inputBytes, err := json.Marshal(payload)
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: marshal classifier payload: %v", contractx.ErrValidation, err)
	}

	out, err := r.runner.Invoke(ctx, map[string]any{
		"input": string(inputBytes),
	})
	if err != nil {
		return contractx.Classification{}, fmt.Errorf("%w: classifier invoke: %v", contractx.ErrModelInvoke, err)
	}

	return sanitize(out), nil
}

// sanitize folds anything outside the fixed enum back to unresolved; the step
// machines must never see a free-form workflow label.
func sanitize(out classifierLLMOutput) contractx.Classification {
	workflow := contractx.Workflow(strings.TrimSpace(strings.ToLower(out.Workflow)))
	if !workflow.IsBindable() {
		workflow = contractx.WorkflowUnresolved
	}
	return contractx.Classification{
		Workflow: workflow,
		Intent:   strings.TrimSpace(out.Intent),
	}
}
