package contract

import "context"

// Classifier selects a workflow for the newest customer message. Callers treat
// any error as an unresolved classification; it is never fatal for the turn.
type Classifier interface {
	Classify(ctx context.Context, latest string, history []string) (Classification, error)
}

// ToolFunc executes one external capability call. A returned error means the
// call failed in transport or at the remote end; the gateway converts it into a
// failed result, it never propagates.
type ToolFunc func(ctx context.Context, args map[string]any) (map[string]any, error)
