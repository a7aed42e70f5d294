package httpserver

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/robalobadob/wordchain/internal/config"
	"github.com/robalobadob/wordchain/internal/database"
	"github.com/robalobadob/wordchain/internal/game"
	"github.com/robalobadob/wordchain/internal/store"
	"github.com/robalobadob/wordchain/internal/words"
)

// testDict always starts with "apple". The only line of play is
// apple → elephant → tiger → rabbit, after which nothing starts with "t".
func testDict() *words.Dictionary {
	return words.New(
		words.Set{"apple": {}},
		words.Set{"elephant": {}, "tiger": {}, "rabbit": {}},
	)
}

func testConfig() config.Config {
	return config.Config{
		TurnSeconds:      10,
		MaxPlayers:       4,
		AllowForcedStart: true,
		DailySalt:        "salt",
		JWTSecret:        "test_secret",
		JWTExpiresDays:   1,
		CookieName:       "wordchain_token",
		ClientOrigin:     "http://localhost:5173",
	}
}

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time { return c.t }

func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

type env struct {
	srv   *Server
	db    *sql.DB
	clock *fakeClock
}

func newEnv(t *testing.T, cfg config.Config, dict *words.Dictionary) *env {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	clock := &fakeClock{t: time.Date(2026, 10, 18, 12, 0, 0, 0, time.UTC)}
	srv := New(cfg, store.NewMemoryStore(), db, dict, WithClock(clock.Now), WithSeed(7))
	return &env{srv: srv, db: db, clock: clock}
}

// client keeps cookies between requests like a browser would.
type client struct {
	t       *testing.T
	h       http.Handler
	cookies map[string]*http.Cookie
}

func (e *env) client(t *testing.T) *client {
	return &client{t: t, h: e.srv.Router(), cookies: map[string]*http.Cookie{}}
}

func (c *client) do(method, path string, body any) *httptest.ResponseRecorder {
	c.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			c.t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range c.cookies {
		req.AddCookie(ck)
	}
	rec := httptest.NewRecorder()
	c.h.ServeHTTP(rec, req)
	for _, ck := range rec.Result().Cookies() {
		if ck.MaxAge < 0 || ck.Value == "" {
			delete(c.cookies, ck.Name)
			continue
		}
		c.cookies[ck.Name] = ck
	}
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("expected %d, got %d: %s", want, rec.Code, rec.Body.String())
	}
}

func (c *client) newGame(body any) gameRes {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/game/new", body)
	expectStatus(c.t, rec, http.StatusOK)
	return decode[gameRes](c.t, rec)
}

func (c *client) turn(id, word string) gameRes {
	c.t.Helper()
	rec := c.do(http.MethodPost, "/game/turn", turnReq{GameID: id, Word: word})
	expectStatus(c.t, rec, http.StatusOK)
	return decode[gameRes](c.t, rec)
}

func TestHealth(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	rec := e.client(t).do(http.MethodGet, "/health", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("unexpected body %s", rec.Body.String())
	}
}

func TestNewGameAndAcceptedTurn(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)

	res := c.newGame(map[string]any{"players": 2})
	g := res.Game
	if len(g.Chain) != 1 || g.Chain[0] != "apple" || g.RequiredLetter != "e" {
		t.Fatalf("unexpected opening state %+v", g)
	}
	if g.CurrentPlayer.ID != "p1" || g.MinLength != game.DefaultBaseMinLength {
		t.Fatalf("unexpected first player or threshold %+v", g)
	}
	if g.Deadline == nil || !g.Deadline.Equal(e.clock.Now().Add(10*time.Second)) {
		t.Fatalf("expected a 10s deadline, got %v", g.Deadline)
	}

	e.clock.Advance(3 * time.Second)
	res = c.turn(g.ID, "  Elephant ")
	if res.Verdict == nil || !res.Verdict.Accepted || res.Verdict.Word != "elephant" {
		t.Fatalf("expected elephant accepted, got %+v", res.Verdict)
	}
	if res.Game.CurrentIndex != 1 || res.Game.RequiredLetter != "t" || len(res.Game.Chain) != 2 {
		t.Fatalf("unexpected state after turn %+v", res.Game)
	}
	if !res.Game.Deadline.Equal(e.clock.Now().Add(10 * time.Second)) {
		t.Fatal("deadline should restart for the next player")
	}
}

func TestRejectedWordEndsGame(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	id := c.newGame(map[string]any{"names": []string{"A", "B"}}).Game.ID

	res := c.turn(id, "eagle")
	v := res.Verdict
	if v == nil || v.Accepted || v.Result == nil {
		t.Fatalf("expected a losing verdict, got %+v", v)
	}
	if len(v.Violations) != 1 || v.Violations[0] != game.ReasonNotInDictionary {
		t.Fatalf("unexpected violations %v", v.Violations)
	}
	if v.Result.Message != "Word not in dictionary. A loses!" {
		t.Fatalf("unexpected message %q", v.Result.Message)
	}
	if !res.Game.Finished || len(res.Game.Chain) != 1 || res.Game.Deadline != nil {
		t.Fatalf("expected finished game with unchanged chain, got %+v", res.Game)
	}

	rec := c.do(http.MethodPost, "/game/turn", turnReq{GameID: id, Word: "elephant"})
	expectStatus(t, rec, http.StatusConflict)
}

func TestLateSubmissionIsTimeout(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	id := c.newGame(map[string]any{"names": []string{"A", "B"}}).Game.ID

	e.clock.Advance(11 * time.Second)
	res := c.turn(id, "elephant")
	if res.Verdict != nil {
		t.Fatalf("late word should not be judged, got %+v", res.Verdict)
	}
	r := res.Game.Result
	if r == nil || r.Reason != game.ReasonTimeout || r.Loser.Name != "A" {
		t.Fatalf("expected A to lose on time, got %+v", r)
	}
	if r.Message != "Time ran out. A loses!" {
		t.Fatalf("unexpected message %q", r.Message)
	}
}

func TestGetGameAppliesExpiredDeadline(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	id := c.newGame(nil).Game.ID

	rec := c.do(http.MethodGet, "/game/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	if decode[gameRes](t, rec).Game.Finished {
		t.Fatal("game should still be running")
	}

	e.clock.Advance(time.Minute)
	rec = c.do(http.MethodGet, "/game/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	g := decode[gameRes](t, rec).Game
	if !g.Finished || g.Result.Reason != game.ReasonTimeout {
		t.Fatalf("expected timeout after the deadline, got %+v", g.Result)
	}

	rec = c.do(http.MethodPost, "/game/timeout", timeoutReq{GameID: id})
	expectStatus(t, rec, http.StatusConflict)
}

func TestExplicitTimeout(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	id := c.newGame(map[string]any{"names": []string{"A", "B"}}).Game.ID
	c.turn(id, "elephant")

	rec := c.do(http.MethodPost, "/game/timeout", timeoutReq{GameID: id})
	expectStatus(t, rec, http.StatusOK)
	r := decode[gameRes](t, rec).Game.Result
	if r == nil || r.Loser.Name != "B" || r.LoserIndex != 1 {
		t.Fatalf("expected B to lose, got %+v", r)
	}
}

func TestTimerDisabled(t *testing.T) {
	cfg := testConfig()
	cfg.TurnSeconds = 0
	e := newEnv(t, cfg, testDict())
	c := e.client(t)
	g := c.newGame(nil).Game
	if g.Deadline != nil {
		t.Fatalf("expected no deadline, got %v", g.Deadline)
	}
	e.clock.Advance(time.Hour)
	if res := c.turn(g.ID, "elephant"); !res.Verdict.Accepted {
		t.Fatalf("expected acceptance without a timer, got %+v", res.Verdict)
	}
}

func TestComputerRepliesAndConcedes(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	res := c.newGame(map[string]any{"names": []string{"Ann"}, "computer": true})
	players := res.Game.Players
	if len(players) != 2 || !players[1].Computer || players[1].Name != game.ComputerName {
		t.Fatalf("expected Ann vs Computer, got %+v", players)
	}
	id := res.Game.ID

	res = c.turn(id, "elephant")
	if len(res.ComputerMoves) != 1 || res.ComputerMoves[0].Word != "tiger" || !res.ComputerMoves[0].Accepted {
		t.Fatalf("expected the computer to answer tiger, got %+v", res.ComputerMoves)
	}
	if res.Game.CurrentPlayer.Name != "Ann" || res.Game.RequiredLetter != "r" {
		t.Fatalf("turn should be back with Ann, got %+v", res.Game)
	}

	res = c.turn(id, "rabbit")
	if len(res.ComputerMoves) != 1 {
		t.Fatalf("expected one computer move, got %+v", res.ComputerMoves)
	}
	r := res.Game.Result
	if r == nil || r.Reason != game.ReasonNoLegalMove || !r.Loser.Computer {
		t.Fatalf("expected the computer to concede, got %+v", r)
	}

	var status, loser, reason string
	var chain int
	err := e.db.QueryRow(`SELECT status, chain_length, loser, reason FROM games WHERE id=?`, id).
		Scan(&status, &chain, &loser, &reason)
	if err != nil {
		t.Fatalf("query game row: %v", err)
	}
	if status != "finished" || chain != 4 || loser != game.ComputerName || reason != string(game.ReasonNoLegalMove) {
		t.Fatalf("unexpected history row: %s %d %s %s", status, chain, loser, reason)
	}
}

func TestNewGameValidation(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	for _, tc := range []struct {
		name string
		body any
		code string
	}{
		{"one player", map[string]any{"players": 1}, "invalid_players"},
		{"too many", map[string]any{"players": 5}, "invalid_players"},
		{"computer only", map[string]any{"players": 1, "computer": true}, "invalid_players"},
		{"bad json", "{", "bad_json"},
		{"blank start", map[string]any{"start": "   "}, "invalid_game"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			rec := c.do(http.MethodPost, "/game/new", tc.body)
			expectStatus(t, rec, http.StatusBadRequest)
			if got := decode[map[string]string](t, rec)["error"]; got != tc.code {
				t.Fatalf("expected %s, got %s", tc.code, got)
			}
		})
	}
}

func TestForcedStart(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	g := c.newGame(map[string]any{"start": "Tiger"}).Game
	if g.Chain[0] != "tiger" || g.RequiredLetter != "r" {
		t.Fatalf("expected forced start tiger, got %+v", g.Chain)
	}

	cfg := testConfig()
	cfg.AllowForcedStart = false
	rec := newEnv(t, cfg, testDict()).client(t).do(http.MethodPost, "/game/new", map[string]any{"start": "tiger"})
	expectStatus(t, rec, http.StatusBadRequest)
}

func TestNoStartingWord(t *testing.T) {
	dict := words.New(words.Set{"ox": {}}, words.Set{"elephant": {}})
	e := newEnv(t, testConfig(), dict)
	c := e.client(t)
	expectStatus(t, c.do(http.MethodPost, "/game/new", nil), http.StatusServiceUnavailable)
	expectStatus(t, c.do(http.MethodPost, "/daily/new", nil), http.StatusServiceUnavailable)
}

func TestUnknownGame(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)
	expectStatus(t, c.do(http.MethodGet, "/game/nope", nil), http.StatusNotFound)
	expectStatus(t, c.do(http.MethodPost, "/game/turn", turnReq{GameID: "nope", Word: "x"}), http.StatusNotFound)
	expectStatus(t, c.do(http.MethodPost, "/game/turn", map[string]string{}), http.StatusBadRequest)
}

func TestDebugWords(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	rec := e.client(t).do(http.MethodGet, "/debug/words", nil)
	expectStatus(t, rec, http.StatusOK)
	got := decode[map[string]int](t, rec)
	if got["common"] != 1 || got["all"] != 4 || got["startCandidates"] != 1 {
		t.Fatalf("unexpected stats %v", got)
	}
}

type dailyRes struct {
	Date   string   `json:"date"`
	Played bool     `json:"played"`
	Start  string   `json:"start"`
	Result *gameRes `json:"result"`
}

func TestDailyFlow(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)

	rec := c.do(http.MethodPost, "/daily/new", nil)
	expectStatus(t, rec, http.StatusOK)
	d := decode[dailyRes](t, rec)
	if d.Date != "2026-10-18" || d.Start != "apple" || d.Played || d.Result == nil {
		t.Fatalf("unexpected daily start %+v", d)
	}
	id := d.Result.Game.ID
	if d.Result.Game.Daily != d.Date || d.Result.Game.Players[0].Name != "You" {
		t.Fatalf("unexpected daily game %+v", d.Result.Game)
	}

	// a second call resumes the same game
	again := decode[dailyRes](t, c.do(http.MethodPost, "/daily/new", nil))
	if again.Result == nil || again.Result.Game.ID != id {
		t.Fatalf("expected the running game to be reused, got %+v", again)
	}

	// someone else cannot play it
	other := e.client(t)
	expectStatus(t, other.do(http.MethodPost, "/daily/turn", turnReq{GameID: id, Word: "elephant"}), http.StatusForbidden)
	expectStatus(t, other.do(http.MethodPost, "/game/timeout", timeoutReq{GameID: id}), http.StatusForbidden)
	rec = c.do(http.MethodGet, "/game/"+id, nil)
	expectStatus(t, rec, http.StatusOK)
	if decode[gameRes](t, rec).Game.Finished {
		t.Fatal("a stranger's timeout must not end the owner's daily game")
	}

	for _, w := range []string{"elephant", "rabbit"} {
		rec := c.do(http.MethodPost, "/daily/turn", turnReq{GameID: id, Word: w})
		expectStatus(t, rec, http.StatusOK)
	}

	rec = c.do(http.MethodPost, "/daily/new", nil)
	expectStatus(t, rec, http.StatusOK)
	if !decode[dailyRes](t, rec).Played {
		t.Fatal("expected played=true after finishing today's chain")
	}

	rec = c.do(http.MethodGet, "/daily/leaderboard", nil)
	expectStatus(t, rec, http.StatusOK)
	lb := decode[struct {
		Date string `json:"date"`
		Rows []struct {
			ChainLength int `json:"chainLength"`
		} `json:"rows"`
	}](t, rec)
	if lb.Date != "2026-10-18" || len(lb.Rows) != 1 || lb.Rows[0].ChainLength != 4 {
		t.Fatalf("unexpected leaderboard %+v", lb)
	}

	rec = c.do(http.MethodGet, "/daily/leaderboard?date=2026-10-17", nil)
	expectStatus(t, rec, http.StatusOK)
	if !strings.Contains(rec.Body.String(), `"rows":[]`) {
		t.Fatalf("expected an empty board, got %s", rec.Body.String())
	}
}

func TestDailyResumeAfterDeadlineRecordsResult(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)

	d := decode[dailyRes](t, c.do(http.MethodPost, "/daily/new", nil))
	if d.Result == nil {
		t.Fatalf("expected a daily game, got %+v", d)
	}
	id := d.Result.Game.ID

	e.clock.Advance(11 * time.Second)
	rec := c.do(http.MethodPost, "/daily/new", nil)
	expectStatus(t, rec, http.StatusOK)
	resumed := decode[dailyRes](t, rec)
	if !resumed.Played || resumed.Result == nil || resumed.Result.Game.Result.Reason != game.ReasonTimeout {
		t.Fatalf("expected the resumed game to have timed out, got %+v", resumed)
	}

	var n int
	if err := e.db.QueryRow(`SELECT COUNT(1) FROM daily_results WHERE date=?`, d.Date).Scan(&n); err != nil {
		t.Fatalf("count daily results: %v", err)
	}
	if n != 1 {
		t.Fatalf("expected the timed-out chain to be recorded, got %d rows", n)
	}
	var status string
	if err := e.db.QueryRow(`SELECT status FROM games WHERE id=?`, id).Scan(&status); err != nil || status != "finished" {
		t.Fatalf("expected finished game row, got %q (%v)", status, err)
	}

	// once the session is pruned the database still blocks a second chain
	e.clock.Advance(2 * time.Hour)
	c.newGame(nil)
	rec = c.do(http.MethodPost, "/daily/new", nil)
	expectStatus(t, rec, http.StatusOK)
	if again := decode[dailyRes](t, rec); !again.Played || again.Result != nil {
		t.Fatalf("expected played=true without a new game, got %+v", again)
	}
}

type brokenPolicy struct{}

func (brokenPolicy) Choose(*game.Game) (string, error) { return "", errors.New("boom") }

func TestComputerFailureConcedes(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	g, err := game.New(game.NewRoster(1, nil, true), testDict(), nil, game.WithStartWord("apple"))
	if err != nil {
		t.Fatalf("new game: %v", err)
	}
	if v, err := g.ProcessTurn("elephant"); err != nil || !v.Accepted {
		t.Fatalf("opening move failed: %+v %v", v, err)
	}
	sess := &store.Session{ID: g.ID(), Game: g, Bot: brokenPolicy{}}

	moves := e.srv.advance(sess)
	if len(moves) != 1 || moves[0].Result == nil || moves[0].Result.Reason != game.ReasonNoLegalMove {
		t.Fatalf("expected the computer to concede, got %+v", moves)
	}
	if !g.Finished() || !g.Result().Loser.Computer {
		t.Fatalf("expected a finished game lost by the computer, got %+v", g.Result())
	}
	if !sess.Deadline.IsZero() || sess.EndedAt.IsZero() {
		t.Fatalf("expected the timer stopped and the end recorded, got %+v", sess)
	}
}

func TestMyGamesWithoutDatabase(t *testing.T) {
	srv := New(testConfig(), store.NewMemoryStore(), nil, testDict())
	req := httptest.NewRequest(http.MethodGet, "/games/mine", nil)
	req = req.WithContext(context.WithValue(req.Context(), ctxUserKey{}, &authUser{ID: "u1", Username: "alice"}))
	rec := httptest.NewRecorder()
	srv.handleMyGames(rec, req)
	expectStatus(t, rec, http.StatusOK)
	if got := strings.TrimSpace(rec.Body.String()); got != "[]" {
		t.Fatalf("expected an empty list, got %s", got)
	}
}

func TestSignupLoginAndStats(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	c := e.client(t)

	expectStatus(t, c.do(http.MethodGet, "/auth/me", nil), http.StatusUnauthorized)

	// a guest game played before signing up is claimed by the new account
	guest := c.newGame(map[string]any{"names": []string{"Ann"}, "computer": true}).Game.ID

	creds := credentials{Username: "alice", Password: "password1"}
	expectStatus(t, c.do(http.MethodPost, "/auth/signup", creds), http.StatusOK)
	if _, ok := c.cookies["wordchain_token"]; !ok {
		t.Fatal("expected an auth cookie after signup")
	}
	expectStatus(t, e.client(t).do(http.MethodPost, "/auth/signup", creds), http.StatusConflict)
	expectStatus(t, e.client(t).do(http.MethodPost, "/auth/signup", credentials{Username: "x", Password: "password1"}), http.StatusBadRequest)

	rec := c.do(http.MethodGet, "/auth/me", nil)
	expectStatus(t, rec, http.StatusOK)
	if decode[authUser](t, rec).Username != "alice" {
		t.Fatalf("unexpected me %s", rec.Body.String())
	}

	id := c.newGame(map[string]any{"computer": true}).Game.ID
	c.turn(id, "elephant")
	res := c.turn(id, "rabbit")
	if !res.Game.Finished {
		t.Fatalf("expected the game to end, got %+v", res.Game)
	}

	rec = c.do(http.MethodGet, "/stats/me", nil)
	expectStatus(t, rec, http.StatusOK)
	stats := decode[map[string]any](t, rec)
	if stats["gamesPlayed"] != float64(1) || stats["longestChain"] != float64(4) {
		t.Fatalf("unexpected stats %v", stats)
	}

	rec = c.do(http.MethodGet, "/games/mine", nil)
	expectStatus(t, rec, http.StatusOK)
	mine := decode[[]map[string]any](t, rec)
	if len(mine) != 2 {
		t.Fatalf("expected the guest game and the new game, got %v", mine)
	}
	seen := map[string]bool{}
	for _, g := range mine {
		seen[g["id"].(string)] = true
	}
	if !seen[guest] || !seen[id] {
		t.Fatalf("missing games in %v", mine)
	}

	expectStatus(t, c.do(http.MethodPost, "/auth/logout", nil), http.StatusOK)
	expectStatus(t, c.do(http.MethodGet, "/stats/me", nil), http.StatusUnauthorized)

	bad := e.client(t)
	expectStatus(t, bad.do(http.MethodPost, "/auth/login", credentials{Username: "alice", Password: "wrong-password"}), http.StatusUnauthorized)
	expectStatus(t, bad.do(http.MethodPost, "/auth/login", credentials{Username: "ALICE", Password: "password1"}), http.StatusOK)
	expectStatus(t, bad.do(http.MethodGet, "/auth/me", nil), http.StatusOK)
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t, testConfig(), testDict())
	rec := e.client(t).do(http.MethodOptions, "/game/new", nil)
	expectStatus(t, rec, http.StatusNoContent)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:5173" {
		t.Fatalf("unexpected origin header %q", got)
	}
}
