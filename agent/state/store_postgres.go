package state

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	contractx "github.com/oakline/supportflow/agent/contract"
)

type PostgresConfig struct {
	DSN string `envconfig:"DSN" split_words:"true" required:"true"`
}

// PostgresStore persists the conversation snapshot plus append-only message and
// turn tables. Save runs in one transaction so the state delta and the log
// appends commit together or not at all.
type PostgresStore struct {
	db *bun.DB
}

type conversationRow struct {
	bun.BaseModel `bun:"table:conversations,alias:c"`

	ConversationID string    `bun:"conversation_id,pk"`
	Payload        []byte    `bun:"payload,type:jsonb,notnull"`
	Escalated      bool      `bun:"escalated,notnull"`
	UpdatedAt      time.Time `bun:"updated_at,notnull"`
}

type messageRow struct {
	bun.BaseModel `bun:"table:conversation_messages,alias:m"`

	ConversationID string    `bun:"conversation_id,pk"`
	Idx            int       `bun:"idx,pk"`
	Role           string    `bun:"role,notnull"`
	Direction      string    `bun:"direction,notnull"`
	Content        string    `bun:"content,notnull"`
	Timestamp      time.Time `bun:"ts,notnull"`
}

type turnRow struct {
	bun.BaseModel `bun:"table:conversation_turns,alias:t"`

	ConversationID string    `bun:"conversation_id,pk"`
	Seq            int       `bun:"seq,pk"`
	Workflow       string    `bun:"workflow"`
	Step           string    `bun:"step"`
	Traces         []byte    `bun:"traces,type:jsonb"`
	At             time.Time `bun:"at,notnull"`
}

func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, errors.New("postgres dsn is required")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())

	store := &PostgresStore{db: db}
	if err := store.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	models := []any{
		(*conversationRow)(nil),
		(*messageRow)(nil),
		(*turnRow)(nil),
	}
	for _, model := range models {
		if _, err := s.db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("create table for %T: %w", model, err)
		}
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

func (s *PostgresStore) Load(ctx context.Context, conversationID string) (*Conversation, error) {
	if strings.TrimSpace(conversationID) == "" {
		return nil, ErrInvalidConvID
	}

	var row conversationRow
	err := s.db.NewSelect().
		Model(&row).
		Where("conversation_id = ?", conversationID).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrStateNotFound
		}
		return nil, fmt.Errorf("select conversation: %w", err)
	}

	var conv Conversation
	if err := json.Unmarshal(row.Payload, &conv); err != nil {
		return nil, fmt.Errorf("unmarshal conversation: %w", err)
	}
	if err := conv.Validate(); err != nil {
		return nil, fmt.Errorf("invalid conversation loaded from store: %w", err)
	}
	return &conv, nil
}

func (s *PostgresStore) Save(ctx context.Context, conv *Conversation) error {
	if err := validateForSave(conv); err != nil {
		return err
	}

	payload, err := json.Marshal(conv)
	if err != nil {
		return fmt.Errorf("marshal conversation: %w", err)
	}

	row := conversationRow{
		ConversationID: conv.ConversationID,
		Payload:        payload,
		Escalated:      conv.Escalated,
		UpdatedAt:      conv.UpdatedAt,
	}

	msgRows := make([]messageRow, 0, len(conv.Messages))
	for i, m := range conv.Messages {
		msgRows = append(msgRows, messageRow{
			ConversationID: conv.ConversationID,
			Idx:            i,
			Role:           string(m.Role),
			Direction:      string(m.Direction),
			Content:        m.Content,
			Timestamp:      m.Timestamp,
		})
	}

	turnRows := make([]turnRow, 0, len(conv.Turns))
	for _, t := range conv.Turns {
		traces, err := json.Marshal(t.Traces)
		if err != nil {
			return fmt.Errorf("marshal turn traces: %w", err)
		}
		turnRows = append(turnRows, turnRow{
			ConversationID: conv.ConversationID,
			Seq:            t.Seq,
			Workflow:       string(t.Workflow),
			Step:           t.Step,
			Traces:         traces,
			At:             t.At,
		})
	}

	err = s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().
			Model(&row).
			On("CONFLICT (conversation_id) DO UPDATE").
			Set("payload = EXCLUDED.payload").
			Set("escalated = EXCLUDED.escalated").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx); err != nil {
			return fmt.Errorf("upsert conversation: %w", err)
		}

		// Logs are append-only; rows already persisted from prior turns are
		// left untouched.
		if len(msgRows) > 0 {
			if _, err := tx.NewInsert().
				Model(&msgRows).
				On("CONFLICT (conversation_id, idx) DO NOTHING").
				Exec(ctx); err != nil {
				return fmt.Errorf("append messages: %w", err)
			}
		}
		if len(turnRows) > 0 {
			if _, err := tx.NewInsert().
				Model(&turnRows).
				On("CONFLICT (conversation_id, seq) DO NOTHING").
				Exec(ctx); err != nil {
				return fmt.Errorf("append turns: %w", err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("%w: %v", contractx.ErrPersistence, err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, conversationID string) error {
	if strings.TrimSpace(conversationID) == "" {
		return ErrInvalidConvID
	}
	return s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewDelete().Model((*turnRow)(nil)).Where("conversation_id = ?", conversationID).Exec(ctx); err != nil {
			return err
		}
		if _, err := tx.NewDelete().Model((*messageRow)(nil)).Where("conversation_id = ?", conversationID).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewDelete().Model((*conversationRow)(nil)).Where("conversation_id = ?", conversationID).Exec(ctx)
		return err
	})
}
