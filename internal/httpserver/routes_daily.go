// internal/httpserver/routes_daily.go
//
// HTTP routes for the "Daily Chain" mode.
// Exposes three endpoints under /daily:
//   - POST /daily/new         → start today's chain against the computer (creates or reuses session)
//   - POST /daily/turn        → submit a word in the daily game
//   - GET  /daily/leaderboard → longest chains for today (or ?date=YYYY-MM-DD)
//
// Everyone gets the same starting word for a date (HMAC of date + salt).
// Each owner can finish one daily chain per date (enforced by the DB
// unique key + in-memory session map).

package httpserver

import (
	"net/http"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordchain/internal/daily"
	"github.com/robalobadob/wordchain/internal/game"
	"github.com/robalobadob/wordchain/internal/store"
)

// dailyServer wraps dependencies for /daily endpoints.
type dailyServer struct {
	srv      *Server
	sessions map[string]string // owner|date → game ID
	mu       sync.Mutex        // guards sessions
}

// mountDaily registers all /daily routes.
func (s *Server) mountDaily(r chi.Router) {
	dd := &dailyServer{srv: s, sessions: make(map[string]string)}
	r.Post("/daily/new", dd.handleNew)
	r.Post("/daily/turn", s.handleTurn)
	r.Get("/daily/leaderboard", dd.handleLeaderboard)
}

// dailyNewRes is returned by POST /daily/new.
type dailyNewRes struct {
	Date   string   `json:"date"`
	Played bool     `json:"played,omitempty"`
	Start  string   `json:"start,omitempty"`
	Result *gameRes `json:"result,omitempty"`
}

// handleNew starts (or resumes) the caller's chain for today.
func (d *dailyServer) handleNew(w http.ResponseWriter, r *http.Request) {
	s := d.srv
	now := s.now().UTC()
	date := daily.DateKey(now)
	start := daily.StartWord(now, s.cfg.DailySalt, s.dict.StartCandidates(game.StartWordMinLength))
	if start == "" {
		writeError(w, http.StatusServiceUnavailable, "no_starting_word")
		return
	}

	userID, anonID := s.owner(w, r)
	owner := firstNonEmpty(userID, anonID)

	if s.dailyStore != nil {
		played, err := s.dailyStore.AlreadyPlayed(r.Context(), owner, date)
		if err != nil {
			log.Error().Err(err).Msg("daily already played")
			writeError(w, http.StatusInternalServerError, "db_error")
			return
		}
		if played {
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: true, Start: start})
			return
		}
	}

	key := owner + "|" + date
	d.mu.Lock()
	defer d.mu.Unlock()

	if id, ok := d.sessions[key]; ok {
		var res gameRes
		var done *finishedGame
		err := s.store.Update(r.Context(), id, func(sess *store.Session) error {
			s.expire(sess)
			res = gameRes{ComputerMoves: []game.Verdict{}, Game: s.view(sess)}
			done = s.takeFinished(sess)
			return nil
		})
		if err == nil {
			s.recordFinish(r.Context(), done)
			writeJSON(w, http.StatusOK, dailyNewRes{Date: date, Played: res.Game.Finished, Start: start, Result: &res})
			return
		}
		delete(d.sessions, key)
	}

	name := "You"
	if me := currentUser(r); me != nil {
		name = me.Username
	}
	roster := game.NewRoster(1, []string{name}, true)
	sess, moves, err := s.startSession(r.Context(), roster, userID, anonID, date, game.WithStartWord(start))
	if err != nil {
		s.writeStartError(w, err)
		return
	}
	d.sessions[key] = sess.ID
	writeJSON(w, http.StatusOK, dailyNewRes{
		Date:   date,
		Start:  start,
		Result: &gameRes{ComputerMoves: moves, Game: s.view(sess)},
	})
}

// handleLeaderboard returns the top 20 chains for a date.
func (d *dailyServer) handleLeaderboard(w http.ResponseWriter, r *http.Request) {
	s := d.srv
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if date == "" {
		date = daily.DateKey(s.now())
	}
	if s.dailyStore == nil {
		writeJSON(w, http.StatusOK, map[string]any{"date": date, "rows": []daily.LBRow{}})
		return
	}
	rows, err := s.dailyStore.Leaderboard(r.Context(), date, 20)
	if err != nil {
		log.Error().Err(err).Msg("daily leaderboard")
		writeError(w, http.StatusInternalServerError, "db_error")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "rows": rows})
}
