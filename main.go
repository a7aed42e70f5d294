package main

import (
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/robalobadob/wordchain/internal/config"
	"github.com/robalobadob/wordchain/internal/database"
	"github.com/robalobadob/wordchain/internal/game"
	"github.com/robalobadob/wordchain/internal/httpserver"
	"github.com/robalobadob/wordchain/internal/store"
	"github.com/robalobadob/wordchain/internal/words"
)

func main() {
	_ = godotenv.Load()
	cfg := config.FromEnv()

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	}
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	dict, failed, err := words.Init(words.Sources{Common: cfg.CommonWordsFile, All: cfg.AllWordsFile})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load word lists")
	}
	for _, f := range failed {
		log.Warn().Str("path", f.Path).Err(f.Err).Msg("word list unavailable")
	}
	common, all := dict.Stats()
	log.Info().Int("common", common).Int("all", all).Msg("word lists loaded")
	if len(dict.StartCandidates(game.StartWordMinLength)) == 0 {
		log.Warn().Msg("no starting words available; new games will be refused")
	}

	db, err := database.Open(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	defer db.Close()
	if err := database.Migrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	srv := httpserver.New(cfg, store.NewMemoryStore(), db, dict)
	log.Info().Str("port", cfg.Port).Int("turnSeconds", cfg.TurnSeconds).Msg("starting wordchain server")
	if err := srv.Start(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
