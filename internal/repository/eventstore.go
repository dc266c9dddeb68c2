package repository

import (
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game"
)

const eventSchema = `
CREATE TABLE IF NOT EXISTS game_events (
    game_id    TEXT        NOT NULL,
    seq        BIGINT      NOT NULL,
    event_type TEXT        NOT NULL,
    payload    JSONB,
    created_at TIMESTAMPTZ NOT NULL,
    PRIMARY KEY (game_id, seq)
);`

// EventStore persists game event logs keyed by (game_id, seq).
type EventStore struct {
	db     *DB
	logger *zap.Logger
}

var (
	_ game.EventSink      = (*EventStore)(nil)
	_ game.EventTruncater = (*EventStore)(nil)
)

// NewEventStore returns a store backed by db. Call EnsureSchema
// before first use.
func NewEventStore(db *DB, logger *zap.Logger) *EventStore {
	return &EventStore{db: db, logger: logger}
}

// EnsureSchema creates the event table if it does not exist.
func (s *EventStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.db.Pool.Exec(ctx, eventSchema); err != nil {
		return fmt.Errorf("create game_events table: %w", err)
	}
	return nil
}

// AppendEvent inserts one event. The primary key rejects duplicate
// sequence numbers, so a concurrent writer loses cleanly.
func (s *EventStore) AppendEvent(ctx context.Context, gameID string, evt game.Event) error {
	_, err := s.db.Pool.Exec(ctx,
		`INSERT INTO game_events (game_id, seq, event_type, payload, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		gameID, evt.Seq, string(evt.Type), []byte(evt.Payload), evt.Timestamp,
	)
	if err != nil {
		return fmt.Errorf("append event %d for game %s: %w", evt.Seq, gameID, err)
	}
	return nil
}

// LoadEvents returns the full log for a game in sequence order.
func (s *EventStore) LoadEvents(ctx context.Context, gameID string) ([]game.Event, error) {
	rows, err := s.db.Pool.Query(ctx,
		`SELECT seq, event_type, payload, created_at
		 FROM game_events WHERE game_id = $1 ORDER BY seq`,
		gameID,
	)
	if err != nil {
		return nil, fmt.Errorf("load events for game %s: %w", gameID, err)
	}
	defer rows.Close()

	var events []game.Event
	for rows.Next() {
		var evt game.Event
		var eventType string
		var payload []byte
		if err := rows.Scan(&evt.Seq, &eventType, &payload, &evt.Timestamp); err != nil {
			return nil, fmt.Errorf("scan event for game %s: %w", gameID, err)
		}
		evt.Type = game.EventType(eventType)
		evt.Payload = json.RawMessage(payload)
		events = append(events, evt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events for game %s: %w", gameID, err)
	}
	return events, nil
}

// TruncateEvents drops every event after afterSeq. Rollbacks use this
// so the persisted log matches the rewound state before new events
// reuse the dropped sequence numbers.
func (s *EventStore) TruncateEvents(ctx context.Context, gameID string, afterSeq int64) error {
	tag, err := s.db.Pool.Exec(ctx,
		`DELETE FROM game_events WHERE game_id = $1 AND seq > $2`,
		gameID, afterSeq,
	)
	if err != nil {
		return fmt.Errorf("truncate events for game %s: %w", gameID, err)
	}
	s.logger.Info("truncated event log",
		zap.String("game_id", gameID),
		zap.Int64("after_seq", afterSeq),
		zap.Int64("deleted", tag.RowsAffected()),
	)
	return nil
}

// GameIDs lists every game with at least one persisted event.
func (s *EventStore) GameIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.Pool.Query(ctx, `SELECT DISTINCT game_id FROM game_events ORDER BY game_id`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan game id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
