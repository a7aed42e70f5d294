package daily

import (
	"context"
	"database/sql"
)

// Result is one player's finished daily chain.
type Result struct {
	UserID      string `json:"userId"`
	Date        string `json:"date"`
	StartWord   string `json:"startWord"`
	ChainLength int    `json:"chainLength"`
	Turns       int    `json:"turns"`
	Reason      string `json:"reason"`
}

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

func (s *Store) AlreadyPlayed(ctx context.Context, userID, date string) (bool, error) {
	var cnt int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM daily_results WHERE user_id=? AND date=?`,
		userID, date,
	).Scan(&cnt)
	return cnt > 0, err
}

// InsertResult records a result; a second result for the same user and date is ignored.
func (s *Store) InsertResult(ctx context.Context, r Result) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO daily_results(user_id, date, start_word, chain_length, turns, reason)
		 VALUES(?,?,?,?,?,?)`,
		r.UserID, r.Date, r.StartWord, r.ChainLength, r.Turns, r.Reason,
	)
	return err
}

type LBRow struct {
	UserID      string `json:"userId"`
	ChainLength int    `json:"chainLength"`
	Turns       int    `json:"turns"`
}

// Leaderboard returns the longest chains for a date; earlier results win ties.
func (s *Store) Leaderboard(ctx context.Context, date string, limit int) ([]LBRow, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, chain_length, turns
		 FROM daily_results
		 WHERE date=?
		 ORDER BY chain_length DESC, created_at ASC
		 LIMIT ?`, date, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []LBRow{}
	for rows.Next() {
		var r LBRow
		if err := rows.Scan(&r.UserID, &r.ChainLength, &r.Turns); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
