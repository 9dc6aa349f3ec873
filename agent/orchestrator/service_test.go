package orchestrator

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	contractx "github.com/oakline/supportflow/agent/contract"
	gatewayx "github.com/oakline/supportflow/agent/gateway"
	turnnode "github.com/oakline/supportflow/agent/nodes/turn"
	statex "github.com/oakline/supportflow/agent/state"
	workflowx "github.com/oakline/supportflow/agent/workflow"
)

type fakeClassifier struct {
	calls  atomic.Int64
	result contractx.Classification
	err    error
}

func (f *fakeClassifier) Classify(ctx context.Context, latest string, history []string) (contractx.Classification, error) {
	f.calls.Add(1)
	return f.result, f.err
}

type failingStore struct {
	*statex.MemoryStore
	saveErr error
}

func (s *failingStore) Save(ctx context.Context, conv *statex.Conversation) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	return s.MemoryStore.Save(ctx, conv)
}

func newTestOrchestrator(t *testing.T, store statex.Store, classifier contractx.Classifier, tools *gatewayx.Gateway) *Orchestrator {
	t.Helper()
	o, err := New(store, classifier, tools, workflowx.NewEngine())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func discountTools(calls *atomic.Int64) *gatewayx.Gateway {
	return gatewayx.New(gatewayx.WithTool(gatewayx.ToolDiscountCreate,
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			calls.Add(1)
			return map[string]any{"code": "SAVE10-ABC"}, nil
		}))
}

func turnReq(convID, text string) contractx.TurnRequest {
	return contractx.TurnRequest{
		ConversationID: convID,
		Email:          "jo@example.com",
		Text:           text,
	}
}

func TestHandleTurnRejectsEmptyInput(t *testing.T) {
	t.Parallel()

	o := newTestOrchestrator(t, statex.NewMemoryStore(), &fakeClassifier{}, gatewayx.New())

	if _, err := o.HandleTurn(context.Background(), turnReq("", "hi")); !errors.Is(err, ErrInvalidConvID) {
		t.Fatalf("HandleTurn(no id) error = %v, want ErrInvalidConvID", err)
	}
	if _, err := o.HandleTurn(context.Background(), turnReq("c-1", "   ")); !errors.Is(err, ErrInvalidMessage) {
		t.Fatalf("HandleTurn(blank text) error = %v, want ErrInvalidMessage", err)
	}
}

func TestHandleTurnUnresolvedAsksForClarification(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	classifier := &fakeClassifier{result: contractx.Classification{Workflow: contractx.WorkflowUnresolved, Intent: "unclear"}}
	o := newTestOrchestrator(t, store, classifier, gatewayx.New())

	resp, err := o.HandleTurn(context.Background(), turnReq("c-1", "hello?"))
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if resp.Reply != turnnode.ClarificationReply {
		t.Fatalf("Reply = %q, want the clarification request", resp.Reply)
	}
	if resp.Workflow != "" || resp.Escalated {
		t.Fatalf("response = %+v, want unbound and not escalated", resp)
	}

	conv, err := store.Load(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if conv.Bound() {
		t.Fatalf("conversation bound to %s after unresolved routing, want unbound", conv.Workflow)
	}
	if len(conv.Messages) != 2 {
		t.Fatalf("len(Messages) = %d, want inbound + clarification", len(conv.Messages))
	}
	if len(conv.Turns) != 1 || conv.Turns[0].Workflow != "" {
		t.Fatalf("turns = %+v, want one record with no workflow", conv.Turns)
	}
}

func TestHandleTurnBindsAndCompletesWorkflow(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	classifier := &fakeClassifier{result: contractx.Classification{Workflow: contractx.WorkflowDiscountRequest, Intent: "discount_code"}}
	var createCalls atomic.Int64
	o := newTestOrchestrator(t, store, classifier, discountTools(&createCalls))

	resp, err := o.HandleTurn(context.Background(), turnReq("c-1", "got any promo codes?"))
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}

	if !strings.Contains(resp.Reply, "SAVE10-ABC") {
		t.Fatalf("Reply = %q, want the issued code", resp.Reply)
	}
	if resp.Workflow != "" {
		t.Fatalf("Workflow = %q after a terminal step, want unbound", resp.Workflow)
	}
	if len(resp.Traces) != 1 || resp.Traces[0].Tool != gatewayx.ToolDiscountCreate {
		t.Fatalf("Traces = %+v, want one discount.create call", resp.Traces)
	}

	// Asking again later in the same conversation routes again but never mints
	// a second code.
	resp2, err := o.HandleTurn(context.Background(), turnReq("c-1", "one more promo code please"))
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if createCalls.Load() != 1 {
		t.Fatalf("discount.create called %d times, want exactly once", createCalls.Load())
	}
	if !strings.Contains(resp2.Reply, "SAVE10-ABC") {
		t.Fatalf("second reply %q does not repeat the original code", resp2.Reply)
	}
	if classifier.calls.Load() != 2 {
		t.Fatalf("classifier called %d times, want once per unbound turn", classifier.calls.Load())
	}
}

func TestEscalationGateBlocksSubsequentTurns(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	classifier := &fakeClassifier{result: contractx.Classification{Workflow: contractx.WorkflowShippingDelay, Intent: "where_is_order"}}
	tools := gatewayx.New(gatewayx.WithTool(gatewayx.ToolOrderLookup,
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return nil, errors.New("upstream 500")
		}))
	o := newTestOrchestrator(t, store, classifier, tools)

	resp, err := o.HandleTurn(context.Background(), turnReq("c-1", "where is my order #12345"))
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if !resp.Escalated {
		t.Fatal("Escalated = false after a tool failure, want true")
	}
	if resp.Reply != turnnode.EscalationHandoff {
		t.Fatalf("Reply = %q, want the handoff message", resp.Reply)
	}
	if len(resp.Traces) != 1 {
		t.Fatalf("len(Traces) = %d, want the failed lookup traced", len(resp.Traces))
	}

	callsBefore := classifier.calls.Load()
	resp2, err := o.HandleTurn(context.Background(), turnReq("c-1", "hello? anyone?"))
	if err != nil {
		t.Fatalf("HandleTurn() error = %v", err)
	}
	if resp2.Reply != turnnode.EscalationAck {
		t.Fatalf("Reply = %q, want the fixed escalation acknowledgement", resp2.Reply)
	}
	if !resp2.Escalated {
		t.Fatal("Escalated = false on a gated turn, want true")
	}
	if classifier.calls.Load() != callsBefore {
		t.Fatal("classifier ran on a gated turn, want the gate to skip routing")
	}
	if len(resp2.Traces) != 0 {
		t.Fatalf("len(Traces) = %d on a gated turn, want no tool calls", len(resp2.Traces))
	}

	// The workflow binding is frozen, not cleared, so a human sees where the
	// conversation stopped.
	conv, err := store.Load(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if conv.Workflow != contractx.WorkflowShippingDelay {
		t.Fatalf("Workflow = %q after escalation, want shipping_delay kept", conv.Workflow)
	}
	if conv.Escalation == nil || conv.Escalation.Reason != contractx.ReasonToolFailure {
		t.Fatalf("Escalation = %+v, want tool_failure recorded", conv.Escalation)
	}
	// Gated turns append the inbound message only: no turn record.
	if len(conv.Turns) != 1 {
		t.Fatalf("len(Turns) = %d, want only the first turn recorded", len(conv.Turns))
	}
}

func TestPersistenceFailureIsFatal(t *testing.T) {
	t.Parallel()

	store := &failingStore{MemoryStore: statex.NewMemoryStore(), saveErr: errors.New("disk full")}
	classifier := &fakeClassifier{result: contractx.Classification{Workflow: contractx.WorkflowUnresolved}}
	o := newTestOrchestrator(t, store, classifier, gatewayx.New())

	_, err := o.HandleTurn(context.Background(), turnReq("c-1", "hello"))
	if !errors.Is(err, contractx.ErrPersistence) {
		t.Fatalf("HandleTurn() error = %v, want ErrPersistence", err)
	}
}

func TestClassifierErrorFallsBackToClarification(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	classifier := &fakeClassifier{err: errors.New("model timeout")}
	o := newTestOrchestrator(t, store, classifier, gatewayx.New())

	resp, err := o.HandleTurn(context.Background(), turnReq("c-1", "hi"))
	if err != nil {
		t.Fatalf("HandleTurn() error = %v, want classifier errors absorbed", err)
	}
	if resp.Reply != turnnode.ClarificationReply {
		t.Fatalf("Reply = %q, want the clarification request", resp.Reply)
	}
}

func TestConcurrentTurnsOnOneConversationBindOnce(t *testing.T) {
	t.Parallel()

	store := statex.NewMemoryStore()
	classifier := &fakeClassifier{result: contractx.Classification{Workflow: contractx.WorkflowShippingDelay, Intent: "where_is_order"}}
	// No order id in either message, so the workflow stays in its first step
	// and the binding is the only state both turns contend for.
	tools := gatewayx.New(gatewayx.WithTool(gatewayx.ToolOrderLookup,
		func(ctx context.Context, args map[string]any) (map[string]any, error) {
			return map[string]any{"fulfillment_status": "IN_TRANSIT"}, nil
		}))
	o := newTestOrchestrator(t, store, classifier, tools)

	var wg sync.WaitGroup
	for range 2 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.HandleTurn(context.Background(), turnReq("c-1", "my delivery is late")); err != nil {
				t.Errorf("HandleTurn() error = %v", err)
			}
		}()
	}
	wg.Wait()

	// The second turn saw the binding made by the first and skipped routing.
	if got := classifier.calls.Load(); got != 1 {
		t.Fatalf("classifier called %d times across concurrent turns, want 1", got)
	}

	conv, err := store.Load(context.Background(), "c-1")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if conv.Workflow != contractx.WorkflowShippingDelay {
		t.Fatalf("Workflow = %q, want shipping_delay", conv.Workflow)
	}
	if len(conv.Turns) != 2 {
		t.Fatalf("len(Turns) = %d, want both turns recorded", len(conv.Turns))
	}
}
