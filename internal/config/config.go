package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	Port      string
	LogLevel  string
	LogPretty bool

	CommonWordsFile string
	AllWordsFile    string
	DBPath          string

	TurnSeconds      int
	MaxPlayers       int
	AllowForcedStart bool
	DailySalt        string

	JWTSecret      string
	JWTExpiresDays int
	CookieName     string
	ClientOrigin   string
	Production     bool
}

func FromEnv() Config {
	c := Config{}
	c.Port = getenv("PORT", "5175")
	c.LogLevel = getenv("LOG_LEVEL", "info")
	c.LogPretty = getenv("LOG_PRETTY", "false") == "true"
	c.CommonWordsFile = os.Getenv("WORDS_COMMON_FILE")
	c.AllWordsFile = os.Getenv("WORDS_ALL_FILE")
	c.DBPath = getenv("DB_PATH", "./data/app.db")
	c.TurnSeconds = getenvInt("TURN_SECONDS", 10)
	c.MaxPlayers = getenvInt("MAX_PLAYERS", 10)
	c.AllowForcedStart = getenv("ALLOW_FORCED_START", "false") == "true"
	c.DailySalt = getenv("DAILY_SALT", "local_dev_salt")
	c.JWTSecret = getenv("JWT_SECRET", "dev_secret_change_me")
	c.JWTExpiresDays = getenvInt("JWT_EXPIRES_DAYS", 14)
	c.CookieName = getenv("COOKIE_NAME", "wordchain_token")
	c.ClientOrigin = getenv("CLIENT_ORIGIN", "http://localhost:5173")
	c.Production = os.Getenv("NODE_ENV") == "production"
	return c
}

// TurnLimit is the per-turn time limit; zero disables the timer.
func (c Config) TurnLimit() time.Duration {
	if c.TurnSeconds <= 0 {
		return 0
	}
	return time.Duration(c.TurnSeconds) * time.Second
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}
