// internal/httpserver/history.go
//
// Best-effort persistence of game history.
// Running games live only in memory; the database gets one row per game
// (inserted at start, completed at the end), the owner's stats, and the
// daily result for daily games. Failures are logged, never surfaced.

package httpserver

import (
	"context"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordchain/internal/daily"
	"github.com/robalobadob/wordchain/internal/game"
	"github.com/robalobadob/wordchain/internal/store"
)

// finishedGame is the data needed to record a game after the store lock is released.
type finishedGame struct {
	ID       string
	UserID   string
	AnonID   string
	Daily    string
	Snapshot game.Snapshot
	EndedAt  time.Time
}

// takeFinished returns the record for a newly finished session exactly once.
func (s *Server) takeFinished(sess *store.Session) *finishedGame {
	if !sess.Game.Finished() || sess.Recorded {
		return nil
	}
	sess.Recorded = true
	return &finishedGame{
		ID:       sess.ID,
		UserID:   sess.UserID,
		AnonID:   sess.AnonID,
		Daily:    sess.Daily,
		Snapshot: sess.Game.Snapshot(),
		EndedAt:  sess.EndedAt,
	}
}

// recordStart inserts the "playing" row for a new session.
func (s *Server) recordStart(ctx context.Context, sess *store.Session) {
	if s.db == nil {
		return
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO games (id, user_id, anonymous_id, players, start_word, status, started_at)
		VALUES (?, NULLIF(?, ''), NULLIF(?, ''), ?, ?, 'playing', ?)`,
		sess.ID, sess.UserID, sess.AnonID, len(sess.Game.Roster()), sess.Game.Chain()[0],
		sess.StartedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		log.Warn().Err(err).Str("gameId", sess.ID).Msg("insert game row")
	}
}

// recordFinish completes the game row and updates stats and the daily board.
func (s *Server) recordFinish(ctx context.Context, f *finishedGame) {
	if f == nil {
		return
	}
	snap := f.Snapshot
	var loser, reason string
	if snap.Result != nil {
		loser, reason = snap.Result.Loser.Name, string(snap.Result.Reason)
	}
	log.Info().
		Str("gameId", f.ID).
		Str("player", loser).
		Str("reason", reason).
		Int("chain", len(snap.Chain)).
		Msg("game over")

	if s.db == nil {
		return
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Warn().Err(err).Msg("begin record tx")
		return
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		UPDATE games SET status='finished', chain_length=?, turns=?, loser=?, reason=?, finished_at=?
		WHERE id=?`,
		len(snap.Chain), snap.Turns, loser, reason, f.EndedAt.UTC().Format(time.RFC3339), f.ID,
	); err != nil {
		log.Warn().Err(err).Str("gameId", f.ID).Msg("finish game row")
	}
	if f.UserID != "" {
		if _, err := tx.ExecContext(ctx, `
			UPDATE users SET games_played = games_played + 1, longest_chain = MAX(longest_chain, ?)
			WHERE id=?`, len(snap.Chain), f.UserID,
		); err != nil {
			log.Warn().Err(err).Str("user", f.UserID).Msg("bump stats")
		}
	}
	if err := tx.Commit(); err != nil {
		log.Warn().Err(err).Str("gameId", f.ID).Msg("commit record tx")
	}

	if f.Daily != "" {
		err := s.dailyStore.InsertResult(ctx, daily.Result{
			UserID:      firstNonEmpty(f.UserID, f.AnonID),
			Date:        f.Daily,
			StartWord:   snap.Chain[0],
			ChainLength: len(snap.Chain),
			Turns:       snap.Turns,
			Reason:      reason,
		})
		if err != nil {
			log.Warn().Err(err).Str("gameId", f.ID).Msg("insert daily result")
		}
	}
}
