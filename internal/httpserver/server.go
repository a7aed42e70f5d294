// internal/httpserver/server.go
//
// HTTP server wiring for the word chain backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs, access log).
//   - Public endpoints: "/", "/health", "/debug/words".
//   - Game endpoints (optional auth): POST /game/new, POST /game/turn,
//     POST /game/timeout, GET /game/{id}.
//   - Daily chain endpoints (optional auth): mounted under /daily.
//   - Auth + profile/stat endpoints: /auth/*, /stats/me, /games/mine.
//
// Notes:
//   - This layer owns the turn timer. Each session carries a wall-clock
//     deadline; a request arriving after it forwards the timeout to the
//     engine before anything else.
//   - All engine calls for one game go through store.Update, which
//     serializes submissions, timeouts and computer moves.

package httpserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordchain/internal/bot"
	"github.com/robalobadob/wordchain/internal/config"
	"github.com/robalobadob/wordchain/internal/daily"
	"github.com/robalobadob/wordchain/internal/game"
	"github.com/robalobadob/wordchain/internal/store"
	"github.com/robalobadob/wordchain/internal/words"
)

// finished sessions are dropped from memory after this long
const sessionRetention = time.Hour

var errForbidden = errors.New("forbidden")

// Server bundles router, session store, DB handle and dictionary.
type Server struct {
	r     *chi.Mux
	cfg   config.Config
	store store.Store
	db    *sql.DB
	dict  *words.Dictionary
	now   func() time.Time

	dailyStore *daily.Store

	seedMu sync.Mutex
	seeds  *rand.Rand
}

// Option customizes a Server.
type Option func(*Server)

// WithClock replaces time.Now for turn deadlines.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithSeed makes starting words and computer moves reproducible.
func WithSeed(seed uint64) Option {
	return func(s *Server) { s.seeds = rand.New(rand.NewPCG(seed, seed)) }
}

// New constructs a Server, installs middleware, and registers routes.
func New(cfg config.Config, st store.Store, db *sql.DB, dict *words.Dictionary, opts ...Option) *Server {
	s := &Server{
		r:     chi.NewRouter(),
		cfg:   cfg,
		store: st,
		db:    db,
		dict:  dict,
		now:   time.Now,
		seeds: rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
	}
	for _, o := range opts {
		o(s)
	}
	if db != nil {
		s.dailyStore = daily.NewStore(db)
	}

	// --- middleware ---
	s.r.Use(chimw.RequestID)                 // add X-Request-ID
	s.r.Use(chimw.RealIP)                    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(accessLog)                       // zerolog line per request
	s.r.Use(chimw.Recoverer)                 // recover from panics
	s.r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
	s.r.Use(jsonContentType)                 // default JSON responses
	s.r.Use(s.cors)                          // credentials-friendly CORS

	// --- diagnostics ---
	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"service":   "wordchain-go",
			"endpoints": []string{"/health", "POST /game/new", "POST /game/turn", "POST /game/timeout", "GET /game/{id}", "/daily/*", "/auth/*"},
		})
	})
	s.r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
	})
	s.r.Get("/debug/words", func(w http.ResponseWriter, r *http.Request) {
		c, a := s.dict.Stats()
		writeJSON(w, http.StatusOK, map[string]int{
			"common": c, "all": a, "startCandidates": len(s.dict.StartCandidates(game.StartWordMinLength)),
		})
	})

	// Game endpoints: OPTIONAL AUTH (guests can play)
	s.r.Group(func(r chi.Router) {
		r.Use(s.withOptionalAuth())
		r.Post("/game/new", s.handleNewGame)
		r.Post("/game/turn", s.handleTurn)
		r.Post("/game/timeout", s.handleTimeout)
		r.Get("/game/{id}", s.handleGetGame)
	})

	// Daily chain: OPTIONAL AUTH (results persisted on finish)
	s.mountDaily(s.r.With(s.withOptionalAuth()))

	// Auth + profile/stats
	s.mountAuthRoutes()

	s.r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "not_found", "path": r.URL.Path})
	})

	return s
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured client origin.
func (s *Server) cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", s.cfg.ClientOrigin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one zerolog line per request.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		log.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("dur", time.Since(start)).
			Str("requestId", chimw.GetReqID(r.Context())).
			Msg("http")
	})
}

// ------------------------------- helpers -----------------------------------

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string) {
	writeJSON(w, status, map[string]string{"error": code})
}

// decodeBody decodes a JSON body; an empty body leaves v untouched.
func decodeBody(r *http.Request, v any) error {
	err := json.NewDecoder(r.Body).Decode(v)
	if errors.Is(err, io.EOF) {
		return nil
	}
	return err
}

// nextRNG derives a per-game random source from the server seed.
func (s *Server) nextRNG() *rand.Rand {
	s.seedMu.Lock()
	defer s.seedMu.Unlock()
	return rand.New(rand.NewPCG(s.seeds.Uint64(), s.seeds.Uint64()))
}

// ------------------------------ GAME ---------------------------------------

// gameView is the game snapshot plus presentation state.
type gameView struct {
	game.Snapshot
	Deadline *time.Time `json:"deadline,omitempty"`
	Daily    string     `json:"daily,omitempty"`
}

func (s *Server) view(sess *store.Session) gameView {
	v := gameView{Snapshot: sess.Game.Snapshot(), Daily: sess.Daily}
	if !sess.Deadline.IsZero() {
		d := sess.Deadline
		v.Deadline = &d
	}
	return v
}

// newGameReq is the payload for POST /game/new.
type newGameReq struct {
	Players  int      `json:"players"`  // total, computer included; default 2
	Names    []string `json:"names"`    // optional human display names
	Computer bool     `json:"computer"` // add the computer player last
	Start    string   `json:"start"`    // forced start word (ALLOW_FORCED_START only)
}

// gameRes is returned by every game endpoint.
type gameRes struct {
	Verdict       *game.Verdict  `json:"verdict,omitempty"`
	ComputerMoves []game.Verdict `json:"computerMoves"`
	Game          gameView       `json:"game"`
}

// handleNewGame builds the roster, starts an engine and stores the session.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	total := req.Players
	if total == 0 {
		total = len(req.Names)
		if req.Computer {
			total++
		}
		total = max(total, 2)
	}
	humans := total
	if req.Computer {
		humans--
	}
	if total < 2 || total > s.cfg.MaxPlayers || humans < 1 {
		writeError(w, http.StatusBadRequest, "invalid_players")
		return
	}

	var opts []game.Option
	if req.Start != "" {
		if !s.cfg.AllowForcedStart {
			writeError(w, http.StatusBadRequest, "forced_start_disabled")
			return
		}
		opts = append(opts, game.WithStartWord(req.Start))
	}

	userID, anonID := s.owner(w, r)
	sess, moves, err := s.startSession(r.Context(), game.NewRoster(humans, req.Names, req.Computer), userID, anonID, "", opts...)
	if err != nil {
		s.writeStartError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, gameRes{ComputerMoves: moves, Game: s.view(sess)})
}

func (s *Server) writeStartError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, game.ErrNoStartingWord):
		writeError(w, http.StatusServiceUnavailable, "no_starting_word")
	case errors.Is(err, game.ErrInvalidStartWord), errors.Is(err, game.ErrTooFewPlayers):
		writeError(w, http.StatusBadRequest, "invalid_game")
	default:
		log.Error().Err(err).Msg("start game")
		writeError(w, http.StatusInternalServerError, "start_failed")
	}
}

// startSession creates the engine, plays any opening computer turns and saves the session.
func (s *Server) startSession(ctx context.Context, roster game.Roster, userID, anonID, daily string, opts ...game.Option) (*store.Session, []game.Verdict, error) {
	s.store.Prune(ctx, s.now().Add(-sessionRetention))

	rng := s.nextRNG()
	g, err := game.New(roster, s.dict, rng, opts...)
	if err != nil {
		return nil, nil, err
	}
	sess := &store.Session{
		ID:        g.ID(),
		Game:      g,
		UserID:    userID,
		AnonID:    anonID,
		Daily:     daily,
		StartedAt: s.now(),
	}
	for _, p := range roster {
		if p.Computer {
			sess.Bot = bot.NewRandom(s.dict, rng)
			break
		}
	}
	moves := s.advance(sess)
	done := s.takeFinished(sess)
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, nil, err
	}
	s.recordStart(ctx, sess)
	log.Info().Str("gameId", sess.ID).Int("players", len(roster)).Str("start", g.Chain()[0]).Msg("game started")
	s.recordFinish(ctx, done)
	return sess, moves, nil
}

// advance plays computer turns until a human is to move or the game ends,
// then resets the turn deadline.
func (s *Server) advance(sess *store.Session) []game.Verdict {
	moves := []game.Verdict{}
	g := sess.Game
	for !g.Finished() && g.CurrentPlayer().Computer && sess.Bot != nil {
		v, err := bot.Play(g, sess.Bot)
		if err != nil {
			// a computer that cannot move concedes
			log.Error().Err(err).Str("gameId", sess.ID).Msg("computer move")
			p := g.CurrentPlayer()
			res, err := g.NoLegalMove()
			if err != nil {
				break
			}
			v = game.Verdict{Player: p, Violations: []game.Reason{game.ReasonNoLegalMove}, Result: &res}
		}
		moves = append(moves, v)
	}
	s.resetDeadline(sess)
	return moves
}

// resetDeadline starts the timer for the player to move, or stops it once the game ended.
func (s *Server) resetDeadline(sess *store.Session) {
	now := s.now()
	if sess.Game.Finished() {
		sess.Deadline = time.Time{}
		if sess.EndedAt.IsZero() {
			sess.EndedAt = now
		}
		return
	}
	if limit := s.cfg.TurnLimit(); limit > 0 {
		sess.Deadline = now.Add(limit)
	}
}

// expire forwards the timeout event if the current turn's deadline has passed.
func (s *Server) expire(sess *store.Session) bool {
	if sess.Game.Finished() || sess.Deadline.IsZero() || !s.now().After(sess.Deadline) {
		return false
	}
	if _, err := sess.Game.Timeout(); err != nil {
		return false
	}
	s.resetDeadline(sess)
	return true
}

// turnReq is the payload for POST /game/turn and POST /daily/turn.
type turnReq struct {
	GameID string `json:"gameId"`
	Word   string `json:"word"`
}

// handleTurn submits a word for the player to move. Computer replies are
// played immediately. A submission after the deadline is a timeout loss.
func (s *Server) handleTurn(w http.ResponseWriter, r *http.Request) {
	var req turnReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	userID, anonID := s.owner(w, r)

	var res gameRes
	var done *finishedGame
	err := s.store.Update(r.Context(), req.GameID, func(sess *store.Session) error {
		if !ownsDaily(sess, userID, anonID) {
			return errForbidden
		}
		res.ComputerMoves = []game.Verdict{}
		if !s.expire(sess) {
			v, err := sess.Game.ProcessTurn(req.Word)
			if err != nil {
				return err
			}
			res.Verdict = &v
			if v.Accepted {
				res.ComputerMoves = s.advance(sess)
			} else {
				s.resetDeadline(sess)
			}
		}
		res.Game = s.view(sess)
		done = s.takeFinished(sess)
		return nil
	})
	if err != nil {
		s.writeUpdateError(w, err)
		return
	}
	s.recordFinish(r.Context(), done)
	writeJSON(w, http.StatusOK, res)
}

// timeoutReq is the payload for POST /game/timeout.
type timeoutReq struct {
	GameID string `json:"gameId"`
}

// handleTimeout reports that the current player's timer ran out.
func (s *Server) handleTimeout(w http.ResponseWriter, r *http.Request) {
	var req timeoutReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.GameID == "" {
		writeError(w, http.StatusBadRequest, "bad_request")
		return
	}
	userID, anonID := s.owner(w, r)

	var res gameRes
	var done *finishedGame
	err := s.store.Update(r.Context(), req.GameID, func(sess *store.Session) error {
		if !ownsDaily(sess, userID, anonID) {
			return errForbidden
		}
		if !s.expire(sess) {
			if _, err := sess.Game.Timeout(); err != nil {
				return err
			}
			s.resetDeadline(sess)
		}
		res = gameRes{ComputerMoves: []game.Verdict{}, Game: s.view(sess)}
		done = s.takeFinished(sess)
		return nil
	})
	if err != nil {
		s.writeUpdateError(w, err)
		return
	}
	s.recordFinish(r.Context(), done)
	writeJSON(w, http.StatusOK, res)
}

// handleGetGame returns the current state, applying an expired deadline first.
func (s *Server) handleGetGame(w http.ResponseWriter, r *http.Request) {
	var res gameRes
	var done *finishedGame
	err := s.store.Update(r.Context(), chi.URLParam(r, "id"), func(sess *store.Session) error {
		s.expire(sess)
		res = gameRes{ComputerMoves: []game.Verdict{}, Game: s.view(sess)}
		done = s.takeFinished(sess)
		return nil
	})
	if err != nil {
		s.writeUpdateError(w, err)
		return
	}
	s.recordFinish(r.Context(), done)
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) writeUpdateError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, "not_found")
	case errors.Is(err, game.ErrGameOver):
		writeError(w, http.StatusConflict, "game_over")
	case errors.Is(err, errForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	default:
		log.Error().Err(err).Msg("update game")
		writeError(w, http.StatusInternalServerError, "server_error")
	}
}

// ownsDaily reports whether the caller may act on sess. Only daily games are owner-bound.
func ownsDaily(sess *store.Session, userID, anonID string) bool {
	return sess.Daily == "" || sess.OwnerID() == firstNonEmpty(userID, anonID)
}

func firstNonEmpty(a, b string) string {
	if a != "" {
		return a
	}
	return b
}
