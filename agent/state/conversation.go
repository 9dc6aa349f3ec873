package state

import (
	"errors"
	"fmt"
	"strings"
	"time"

	contractx "github.com/oakline/supportflow/agent/contract"
)

// Conversation is the persistent source-of-truth for one support conversation.
// - Routing: Workflow + Step (empty Workflow means unbound, router runs next turn)
// - Escalation: Escalated is monotonic; no code path clears it
// - Working data is scoped per workflow name so switching workflows never reuses
//   a previous workflow's keys for decisions
type Conversation struct {
	// Identity
	ConversationID string `json:"conversation_id"`
	Email          string `json:"email,omitempty"`
	Name           string `json:"name,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`

	// Routing
	Workflow contractx.Workflow `json:"workflow,omitempty"`
	Step     string             `json:"step,omitempty"`

	// Escalation
	Escalated   bool                         `json:"escalated"`
	EscalatedAt *time.Time                   `json:"escalated_at,omitempty"`
	Escalation  *contractx.EscalationSummary `json:"escalation,omitempty"`

	// Working holds workflow-scoped internal data: workflow name -> key -> value.
	Working map[string]map[string]any `json:"working,omitempty"`

	// Append-only logs
	Messages []contractx.Message    `json:"messages,omitempty"`
	Turns    []contractx.TurnRecord `json:"turns,omitempty"`
	TurnSeq  int                    `json:"turn_seq"`

	UpdatedAt time.Time `json:"updated_at"`
}

var (
	ErrNilConversation = errors.New("conversation is nil")
	ErrInvalidConvID   = errors.New("conversation id is empty")
	ErrNotBindable     = errors.New("workflow is not bindable")
)

func NewConversation(conversationID string, now time.Time) *Conversation {
	return &Conversation{
		ConversationID: conversationID,
		Working:        make(map[string]map[string]any, 2),
		UpdatedAt:      now.UTC(),
	}
}

func (c *Conversation) Touch(now time.Time) {
	c.UpdatedAt = now.UTC()
}

// HasIdentity reports whether a workflow's identity precondition is satisfied.
func (c *Conversation) HasIdentity() bool {
	return strings.TrimSpace(c.Email) != "" || strings.TrimSpace(c.CustomerID) != ""
}

// AbsorbIdentity fills identity fields from a turn request without overwriting
// values already on record.
func (c *Conversation) AbsorbIdentity(email, name, customerID string) {
	if c.Email == "" {
		c.Email = strings.TrimSpace(email)
	}
	if c.Name == "" {
		c.Name = strings.TrimSpace(name)
	}
	if c.CustomerID == "" {
		c.CustomerID = strings.TrimSpace(customerID)
	}
}

// Bound reports whether the conversation is currently owned by a workflow.
func (c *Conversation) Bound() bool {
	return c.Workflow != ""
}

// Bind binds a workflow and resets the step to that workflow's initial state.
func (c *Conversation) Bind(w contractx.Workflow, initialStep string, now time.Time) error {
	if !w.IsBindable() {
		return fmt.Errorf("%w: %s", ErrNotBindable, w)
	}
	c.Workflow = w
	c.Step = initialStep
	c.Touch(now)
	return nil
}

// Unbind releases the workflow so an unrelated follow-up message routes again.
// Workflow-scoped working data survives, which keeps terminal actions such as
// discount issuance idempotent across rebinding.
func (c *Conversation) Unbind(now time.Time) {
	c.Workflow = ""
	c.Step = ""
	c.Touch(now)
}

// Escalate sets the escalation flag. The transition is one-way and the first
// summary wins; calls on an already-escalated conversation are no-ops.
func (c *Conversation) Escalate(summary contractx.EscalationSummary, now time.Time) {
	if c.Escalated {
		return
	}
	at := now.UTC()
	c.Escalated = true
	c.EscalatedAt = &at
	c.Escalation = &summary
	c.Touch(now)
}

/* ---------------------------- Working data ---------------------------- */

func (c *Conversation) ensureWorking(scope string) map[string]any {
	if c.Working == nil {
		c.Working = make(map[string]map[string]any, 2)
	}
	m, ok := c.Working[scope]
	if !ok {
		m = make(map[string]any, 8)
		c.Working[scope] = m
	}
	return m
}

// WorkingValue reads a key from the bound workflow's scope.
func (c *Conversation) WorkingValue(key string) (any, bool) {
	if c.Working == nil || c.Workflow == "" {
		return nil, false
	}
	m, ok := c.Working[string(c.Workflow)]
	if !ok {
		return nil, false
	}
	v, ok := m[key]
	return v, ok
}

// WorkingString reads a key as a string; missing or non-string yields "".
func (c *Conversation) WorkingString(key string) string {
	v, ok := c.WorkingValue(key)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

// SetWorking writes a key into the bound workflow's scope.
func (c *Conversation) SetWorking(key string, val any) {
	if c.Workflow == "" {
		return
	}
	c.ensureWorking(string(c.Workflow))[key] = val
}

// ApplyDelta merges a step's state delta into the bound workflow's scope.
func (c *Conversation) ApplyDelta(delta map[string]any) {
	for k, v := range delta {
		c.SetWorking(k, v)
	}
}

/* ------------------------------- Logs ---------------------------------- */

func (c *Conversation) AppendMessage(msg contractx.Message) {
	c.Messages = append(c.Messages, msg)
}

// LatestCustomerMessage returns the newest inbound customer message.
func (c *Conversation) LatestCustomerMessage() (contractx.Message, bool) {
	for i := len(c.Messages) - 1; i >= 0; i-- {
		if c.Messages[i].Role == contractx.RoleCustomer {
			return c.Messages[i], true
		}
	}
	return contractx.Message{}, false
}

// RecentHistory returns up to n most recent message contents, oldest first.
func (c *Conversation) RecentHistory(n int) []string {
	if n <= 0 || len(c.Messages) == 0 {
		return nil
	}
	start := len(c.Messages) - n
	if start < 0 {
		start = 0
	}
	out := make([]string, 0, len(c.Messages)-start)
	for _, m := range c.Messages[start:] {
		out = append(out, fmt.Sprintf("%s: %s", m.Role, m.Content))
	}
	return out
}

// AppendTurn records one agent turn (workflow, step, traces) and advances the
// turn sequence.
func (c *Conversation) AppendTurn(workflow contractx.Workflow, step string, traces []contractx.ToolTrace, now time.Time) {
	c.TurnSeq++
	c.Turns = append(c.Turns, contractx.TurnRecord{
		Seq:      c.TurnSeq,
		Workflow: workflow,
		Step:     step,
		Traces:   traces,
		At:       now.UTC(),
	})
}

func (c *Conversation) Validate() error {
	if strings.TrimSpace(c.ConversationID) == "" {
		return ErrInvalidConvID
	}
	if c.Escalated && c.Escalation == nil {
		return fmt.Errorf("escalated conversation %s has no escalation summary", c.ConversationID)
	}
	if !c.Escalated && c.Escalation != nil {
		return fmt.Errorf("conversation %s carries an escalation summary without the flag", c.ConversationID)
	}
	if c.Workflow == "" && c.Step != "" {
		return fmt.Errorf("conversation %s has step %q without a bound workflow", c.ConversationID, c.Step)
	}
	if c.Workflow != "" && !c.Workflow.IsBindable() {
		return fmt.Errorf("%w: %s", ErrNotBindable, c.Workflow)
	}
	return nil
}
