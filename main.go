// server/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/vinizap/memo/server/auth"
	"github.com/vinizap/memo/server/config"
	httphandlers "github.com/vinizap/memo/server/http"
	"github.com/vinizap/memo/server/livequery"
	"github.com/vinizap/memo/server/logging"
	"github.com/vinizap/memo/server/memo"
	"github.com/vinizap/memo/server/seed"
	"github.com/vinizap/memo/server/store"
	"github.com/vinizap/memo/server/store/memory"
	"github.com/vinizap/memo/server/store/postgres"
	"github.com/vinizap/memo/server/ws"
)

func main() {
	if len(os.Args) == 3 && os.Args[1] == "hash-password" {
		hash, err := auth.HashPassword(os.Args[2])
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		fmt.Println(hash)
		return
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log := logging.New(cfg.LogLevel, cfg.LogPretty)

	if err := run(cfg, log); err != nil {
		log.Fatal().Err(err).Msg("server stopped")
	}
}

func run(cfg config.Config, log zerolog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var memos store.MemoStore
	var pool *pgxpool.Pool
	if cfg.DatabaseURL == "" {
		log.Warn().Msg("MEMO_DATABASE_URL not set, keeping memos in memory")
		memos = memory.New()
	} else {
		if err := postgres.Migrate(cfg.DatabaseURL, log); err != nil {
			return err
		}
		p, err := postgres.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return err
		}
		pool = p
		defer pool.Close()
		memos = postgres.New(pool, log)
	}

	engine := livequery.NewEngine(memos, log, livequery.WithFetchTimeout(cfg.FetchTimeout))
	defer engine.Close()

	if pool != nil {
		go postgres.NewWatcher(pool, engine.Notify, log).Run(ctx)
	}

	svc := memo.NewService(memos, engine, log)
	if cfg.SeedFile != "" {
		if _, err := seed.LoadFile(ctx, cfg.SeedFile, svc, log); err != nil {
			return fmt.Errorf("seed: %w", err)
		}
	}

	hub := ws.NewHub(engine, memo.DefaultQuery(), log)
	go hub.Run(ctx)

	server := httphandlers.NewServer(svc, log)
	app := server.NewApp(httphandlers.RouterConfig{
		Checker:      auth.NewChecker(cfg.Password, cfg.PasswordHash),
		Hub:          hub,
		AllowOrigins: cfg.AllowOrigins,
	})

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("port", cfg.Port).Bool("postgres", pool != nil).Msg("server starting")
		errc <- app.Listen(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	return app.ShutdownWithTimeout(10 * time.Second)
}
