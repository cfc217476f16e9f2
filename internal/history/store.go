// Package history keeps an append-only log of answered questions.
package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/reiness/edos-jls-chatbot/internal/db"
	"github.com/reiness/edos-jls-chatbot/internal/domain"
)

// ErrNotFound is returned by Get for an unknown turn ID.
var ErrNotFound = errors.New("conversation turn not found")

// Store appends and lists conversation turns.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Append records a turn. An empty ID gets a UUID and a zero AskedAt gets the
// current time; the stored turn is returned.
func (s *Store) Append(ctx context.Context, turn domain.ConversationTurn) (domain.ConversationTurn, error) {
	if turn.ID == "" {
		turn.ID = uuid.New().String()
	}
	if turn.AskedAt.IsZero() {
		turn.AskedAt = time.Now()
	}
	turn.AskedAt = turn.AskedAt.UTC()
	if turn.Sources == nil {
		turn.Sources = []domain.SourceCitation{}
	}

	sources, err := json.Marshal(turn.Sources)
	if err != nil {
		return turn, fmt.Errorf("marshalling sources: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO conversation_turns (
			id, session_id, query, answer, sources, context_tokens, policy, asked_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		turn.ID,
		turn.SessionID,
		turn.Query,
		turn.Answer,
		string(sources),
		turn.ContextTokens,
		turn.Policy,
		turn.AskedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return turn, fmt.Errorf("inserting conversation turn: %w", err)
	}
	return turn, nil
}

// Get retrieves a single turn.
func (s *Store) Get(ctx context.Context, id string) (domain.ConversationTurn, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, query, answer, sources, context_tokens, policy, asked_at
		FROM conversation_turns WHERE id = ?`, id)
	turn, err := scanTurn(row)
	if errors.Is(err, sql.ErrNoRows) {
		return turn, ErrNotFound
	}
	return turn, err
}

// Filter narrows List.
type Filter struct {
	SessionID string
	// Limit keeps only the most recent turns; 0 means all.
	Limit int
}

// List returns turns in the order they were appended.
func (s *Store) List(ctx context.Context, f Filter) ([]domain.ConversationTurn, error) {
	query := "SELECT id, session_id, query, answer, sources, context_tokens, policy, asked_at FROM conversation_turns"
	var args []any
	if f.SessionID != "" {
		query += " WHERE session_id = ?"
		args = append(args, f.SessionID)
	}
	query += " ORDER BY seq DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying conversation turns: %w", err)
	}
	defer rows.Close()

	turns := []domain.ConversationTurn{}
	for rows.Next() {
		t, err := scanTurn(rows)
		if err != nil {
			return nil, err
		}
		turns = append(turns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	slices.Reverse(turns)
	return turns, nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(sc scanner) (domain.ConversationTurn, error) {
	var (
		t       domain.ConversationTurn
		sources string
		askedAt string
	)
	if err := sc.Scan(&t.ID, &t.SessionID, &t.Query, &t.Answer, &sources, &t.ContextTokens, &t.Policy, &askedAt); err != nil {
		return t, err
	}
	if err := json.Unmarshal([]byte(sources), &t.Sources); err != nil {
		return t, fmt.Errorf("decoding sources of turn %s: %w", t.ID, err)
	}
	ts, err := time.Parse(time.RFC3339Nano, askedAt)
	if err != nil {
		return t, fmt.Errorf("parsing asked_at of turn %s: %w", t.ID, err)
	}
	t.AskedAt = ts
	return t, nil
}
