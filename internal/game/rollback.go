package game

import (
	"context"

	"go.uber.org/zap"

	"github.com/A2152225/MTGEDH-sub013/internal/game/rules"
)

// EventTruncater is an optional sink capability: dropping the
// persisted tail of a log after a rollback. Sinks without it keep the
// orphaned tail, so the engine warns and carries on in memory only.
type EventTruncater interface {
	TruncateEvents(ctx context.Context, gameID string, afterSeq int64) error
}

// RollbackToTurn rewinds the game to the start of the given turn by
// replaying the event log up to the moment that turn began. Turn 1
// rewinds to the beginning of the game.
func (e *Engine) RollbackToTurn(gameID string, turn int) error {
	return e.withGame(gameID, func(entry *gameEntry) error {
		s := entry.state
		if turn < 1 || turn > s.Turn.TurnNumber() {
			return newEngineError(ErrCodeProtocolViolation,
				"cannot roll back to turn %d from turn %d", turn, s.Turn.TurnNumber())
		}
		if e.rollbackDepth > 0 && s.Turn.TurnNumber()-turn > e.rollbackDepth {
			return newEngineError(ErrCodeProtocolViolation,
				"rollback to turn %d exceeds the %d turn limit", turn, e.rollbackDepth)
		}
		cut := rollbackCut(s.Log(), turn)
		if cut < 0 {
			return newEngineError(ErrCodeNotFound, "turn %d not found in the event log", turn)
		}
		events := append([]Event(nil), s.Log()[:cut]...)

		restored := Replay(gameID, events, e.logger)
		cutSeq := restored.Seq

		// Drop the persisted tail before any fresh event reuses its
		// sequence numbers.
		if e.sink != nil {
			if truncater, ok := e.sink.(EventTruncater); ok {
				if err := truncater.TruncateEvents(context.Background(), gameID, cutSeq); err != nil && e.logger != nil {
					e.logger.Warn("failed to truncate persisted events after rollback",
						zap.String("game_id", gameID),
						zap.Int64("after_seq", cutSeq),
						zap.Error(err))
				}
			} else if e.logger != nil {
				e.logger.Warn("sink cannot truncate; persisted log diverges from rollback",
					zap.String("game_id", gameID),
					zap.Int64("after_seq", cutSeq))
			}
		}

		entry.state = restored
		entry.pendingTriggers = nil
		entry.triggerEffects = make(map[string]EffectSpec)
		entry.combat = nil
		entry.triggers = rules.NewTriggerManager()
		for _, perm := range restored.Battlefield() {
			e.registerPermanentAbilities(entry, perm)
		}

		// The cut lands on a turn boundary, which grants no priority;
		// re-run the turn-based actions into the rolled-back turn.
		if !restored.Finished && !rules.GrantsPriority(restored.Turn.CurrentStep()) {
			if err := e.advanceStep(entry); err != nil {
				return err
			}
			if err := e.afterMutation(entry); err != nil {
				return err
			}
		}

		if e.logger != nil {
			e.logger.Info("game rolled back",
				zap.String("game_id", gameID),
				zap.Int("turn", turn),
				zap.Int64("seq", cutSeq))
		}
		return nil
	})
}

// rollbackCut returns the log index of the event that begins the given
// turn: everything before it replays to the turn's start. Turn 1 cuts
// at the first step advance.
func rollbackCut(events []Event, turn int) int {
	for i, evt := range events {
		if evt.Type != EventStepAdvanced {
			continue
		}
		payload, err := decodePayload[stepAdvancedPayload](evt)
		if err != nil {
			continue
		}
		if payload.Turn >= turn {
			return i
		}
	}
	return -1
}
