package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrStateNotFound = errors.New("conversation state not found")
)

// Store is the persistence contract used by the orchestrator. Save replaces the
// full conversation snapshot, including its appended message and turn logs,
// atomically relative to concurrent turns on the same conversation id; after
// Save returns, a subsequent Load observes the update.
type Store interface {
	Load(ctx context.Context, conversationID string) (*Conversation, error)
	Save(ctx context.Context, conv *Conversation) error
	Delete(ctx context.Context, conversationID string) error
}

func validateForSave(conv *Conversation) error {
	if conv == nil {
		return ErrNilConversation
	}
	if err := conv.Validate(); err != nil {
		return err
	}
	if conv.UpdatedAt.IsZero() {
		conv.UpdatedAt = time.Now().UTC()
	}
	return nil
}

// MemoryStore keeps conversation snapshots in process memory. It is the default
// wiring when no durable backend is configured, and the store used in tests.
type MemoryStore struct {
	mu    sync.RWMutex
	convs map[string][]byte
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{convs: make(map[string][]byte)}
}

func (s *MemoryStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	s.mu.RLock()
	raw, ok := s.convs[conversationID]
	s.mu.RUnlock()
	if !ok {
		return nil, ErrStateNotFound
	}
	var conv Conversation
	if err := json.Unmarshal(raw, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	return &conv, nil
}

func (s *MemoryStore) Save(ctx context.Context, conv *Conversation) error {
	if err := validateForSave(conv); err != nil {
		return err
	}
	raw, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}
	s.mu.Lock()
	s.convs[conv.ConversationID] = raw
	s.mu.Unlock()
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, conversationID string) error {
	s.mu.Lock()
	delete(s.convs, conversationID)
	s.mu.Unlock()
	return nil
}
