package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/duelforge/arena-server-go/internal/actionlog"
	"github.com/duelforge/arena-server-go/internal/room"
)

// GameLogRepository persists finished match logs. It implements
// room.LogStore.
type GameLogRepository struct {
	db     *DB
	logger *zap.Logger
}

// NewGameLogRepository creates a game log repository.
func NewGameLogRepository(db *DB, logger *zap.Logger) *GameLogRepository {
	return &GameLogRepository{db: db, logger: logger}
}

// SaveGameLog writes a finished log and its action forest in one
// transaction. Saving is idempotent by match id: finalizing the same
// completed match twice is a no-op, so the caller may retry safely.
func (r *GameLogRepository) SaveGameLog(ctx context.Context, log *actionlog.Log, result room.MatchResult) error {
	tx, err := r.db.Pool().Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	tag, err := tx.Exec(ctx, `
		INSERT INTO game_logs (match_id, log_id, label, turns, winner_id, loser_id, reason, finished_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now())
		ON CONFLICT (match_id) DO NOTHING`,
		log.MatchID, log.ID, log.Label, log.Turn,
		result.WinnerID, result.LoserID, result.Reason.String(),
	)
	if err != nil {
		return fmt.Errorf("inserting game log %s: %w", log.MatchID, err)
	}
	if tag.RowsAffected() == 0 {
		// Already persisted by an earlier attempt.
		r.logger.Debug("game log already persisted", zap.String("match_id", log.MatchID))
		return nil
	}

	rows := make([][]interface{}, 0, log.Len())
	position := 0
	for node := range log.Walk() {
		var parentID interface{}
		if node.ParentID != "" {
			parentID = node.ParentID
		}
		rows = append(rows, []interface{}{
			node.ID, log.MatchID, parentID, node.Description, position, node.CreatedAt,
		})
		position++
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"game_log_actions"},
		[]string{"id", "match_id", "parent_id", "description", "position", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("inserting %d action nodes for %s: %w", len(rows), log.MatchID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing game log %s: %w", log.MatchID, err)
	}

	r.logger.Info("game log persisted",
		zap.String("match_id", log.MatchID),
		zap.Int("nodes", len(rows)),
		zap.String("winner", result.WinnerID),
	)
	return nil
}
