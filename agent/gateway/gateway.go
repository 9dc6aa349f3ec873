package gateway

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	contractx "github.com/oakline/supportflow/agent/contract"
)

// TraceLog collects the tool traces of one in-flight turn. Entries are appended
// in invocation order and never mutated or reordered.
type TraceLog struct {
	entries []contractx.ToolTrace
}

func (l *TraceLog) append(t contractx.ToolTrace) {
	l.entries = append(l.entries, t)
}

// Entries returns the recorded traces in invocation order.
func (l *TraceLog) Entries() []contractx.ToolTrace {
	return l.entries
}

// Result is the uniform outcome of one tool invocation. Remote failures are
// values, not errors, so workflow steps branch on OK explicitly.
type Result struct {
	Tool     string
	OK       bool
	Output   map[string]any
	Err      string
	Duration time.Duration
}

// String reads a string field from the tool output; missing or non-string
// yields "".
func (r Result) String(key string) string {
	if r.Output == nil {
		return ""
	}
	s, _ := r.Output[key].(string)
	return s
}

// Option configures a Gateway.
type Option func(*Gateway)

// WithTool registers or overrides one tool implementation.
func WithTool(name string, fn contractx.ToolFunc) Option {
	return func(g *Gateway) {
		if name != "" && fn != nil {
			g.tools[name] = fn
		}
	}
}

// WithClock overrides the gateway clock.
func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

// Gateway wraps every external capability call: it runs the registered tool
// function, converts transport and remote errors into a failed Result, and
// records exactly one ToolTrace into the turn's trace log before returning.
type Gateway struct {
	tools map[string]contractx.ToolFunc
	now   func() time.Time
}

func New(opts ...Option) *Gateway {
	g := &Gateway{
		tools: make(map[string]contractx.ToolFunc, 16),
		now:   time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Invoke executes one tool call. It never returns an error for ordinary remote
// failures; the caller inspects Result.OK.
func (g *Gateway) Invoke(ctx context.Context, traces *TraceLog, tool string, args map[string]any) Result {
	started := g.now()

	fn, ok := g.tools[tool]
	var (
		output  map[string]any
		callErr error
	)
	if !ok {
		callErr = fmt.Errorf("tool %q is not registered", tool)
	} else {
		output, callErr = g.call(ctx, fn, args)
	}

	duration := g.now().Sub(started)
	res := Result{
		Tool:     tool,
		OK:       callErr == nil,
		Output:   output,
		Duration: duration,
	}
	if callErr != nil {
		res.Err = callErr.Error()
	}

	trace := contractx.ToolTrace{
		Tool:      tool,
		Input:     args,
		Output:    output,
		Success:   res.OK,
		Error:     res.Err,
		Timestamp: started.UTC(),
		Duration:  duration,
	}
	if traces != nil {
		traces.append(trace)
	}

	log.Debug().
		Str("tool", tool).
		Bool("success", res.OK).
		Dur("duration", duration).
		Msg("tool invoked")

	return res
}

// call shields the gateway from panicking tool implementations; a panic
// surfaces as a failed result like any other remote error.
func (g *Gateway) call(ctx context.Context, fn contractx.ToolFunc, args map[string]any) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("tool panicked: %v", r)
		}
	}()
	return fn(ctx, args)
}
