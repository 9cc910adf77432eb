package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	ratedomain "vault-gateway/middleware/ratelimit/domain"
	rateinfra "vault-gateway/middleware/ratelimit/infra"
	"vault-gateway/server"
	vaultapp "vault-gateway/vault/application"
	vaultinfra "vault-gateway/vault/infra"

	"github.com/redis/go-redis/v9"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"
)

func main() {
	if err := createApp().Run(context.Background(), os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func createApp() *cli.Command {
	return &cli.Command{
		Name:  "vault",
		Usage: "cofre de segredos por chamador com limite de requisições por janela",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "arquivo de configuração (.yaml, .yml ou .json)",
			},
			&cli.StringFlag{
				Name:  "listen",
				Usage: "endereço de escuta (sobrescreve LISTEN_ADDR)",
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "debug, info, warn ou error (sobrescreve LOG_LEVEL)",
			},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			cfg, err := loadConfig(cmd.String("config"))
			if err != nil {
				return err
			}
			if cmd.IsSet("listen") {
				cfg.ListenAddr = cmd.String("listen")
			}
			if cmd.IsSet("log-level") {
				cfg.LogLevel = cmd.String("log-level")
			}
			if err := cfg.validate(); err != nil {
				return fmt.Errorf("config error: %w", err)
			}
			return serve(ctx, cfg, os.Stderr)
		},
	}
}

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("LOG_LEVEL must be debug, info, warn or error, got %q", s)
	}
	return l, nil
}

func newLogger(cfg config, out io.Writer) *slog.Logger {
	level, _ := parseLevel(cfg.LogLevel)
	opts := &slog.HandlerOptions{Level: level}
	if cfg.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(out, opts))
	}
	return slog.New(slog.NewTextHandler(out, opts))
}

// statsTotal devolve o agregado para o log de shutdown.
type statsTotal func(ctx context.Context) (rateinfra.Counters, error)

func newStats(ctx context.Context, cfg statsConfig) (ratedomain.StatsStore, statsTotal, func(), error) {
	if !cfg.Enabled {
		mem := rateinfra.NewMemoryStatsStore(rateinfra.WithTrackKeys(cfg.TrackKeys))
		total := func(context.Context) (rateinfra.Counters, error) { return mem.Total(), nil }
		return mem, total, func() {}, nil
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	closeFn := func() { _ = rdb.Close() }

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	_, err := rdb.Ping(pingCtx).Result()
	cancel()
	if err != nil {
		closeFn()
		return nil, nil, nil, fmt.Errorf("redis stats ping error: %w", err)
	}

	rs := rateinfra.NewRedisStatsStore(
		rdb,
		rateinfra.WithStatsPrefix(cfg.Prefix),
		rateinfra.WithStatsTTL(cfg.TTL),
		rateinfra.WithStatsBucket(cfg.Bucket),
		rateinfra.WithStatsTrackKeys(cfg.TrackKeys),
	)
	return rs, rs.Total, closeFn, nil
}

func serve(ctx context.Context, cfg config, logOut io.Writer) error {
	logger := newLogger(cfg, logOut)
	slog.SetDefault(logger)

	limiter, err := rateinfra.NewStore(cfg.RateLimit, cfg.RateWindow,
		rateinfra.WithCapacity(cfg.RateCapacity),
		rateinfra.WithShards(cfg.RateShards),
		rateinfra.WithCleanupEvery(cfg.RateCleanupEvery),
		rateinfra.WithOnEvict(func(k ratedomain.Key) {
			logger.Debug("rate window evicted", slog.String("caller", k.Fingerprint()))
		}),
	)
	if err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	sealer, err := vaultinfra.SealerFromBase64(cfg.MasterKey)
	if err != nil {
		return fmt.Errorf("master key: %w", err)
	}
	_, sealed := sealer.(*vaultinfra.XChaChaSealer)

	stats, total, closeStats, err := newStats(ctx, cfg.Stats)
	if err != nil {
		return err
	}
	defer closeStats()

	handler := server.New(server.Config{
		Vault: vaultapp.Service{
			Store:      vaultinfra.NewMemoryStore(),
			Sealer:     sealer,
			MaxPayload: cfg.MaxPayloadBytes,
			Logger:     logger,
		},
		Limiter:            limiter,
		Stats:              stats,
		IdentityHeader:     cfg.AuthHeader,
		AddLimitHeader:     cfg.AddLimitHeader,
		ConcurrencyMax:     cfg.ConcurrencyMax,
		ConcurrencyTimeout: cfg.ConcurrencyTimeout,
		Logger:             logger,
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       90 * time.Second,
		ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error { return limiter.RunJanitor(gctx) })
	g.Go(func() error {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	logger.Info("vault listening", slog.String("addr", cfg.ListenAddr), slog.Bool("sealed", sealed))
	logger.Info("rate",
		slog.Int("limit", cfg.RateLimit),
		slog.Duration("window", cfg.RateWindow),
		slog.Int("capacity", cfg.RateCapacity),
		slog.Int("shards", limiter.Shards()),
		slog.String("auth_header", strings.TrimSpace(cfg.AuthHeader)),
	)
	logger.Info("rate-stats",
		slog.Bool("redis", cfg.Stats.Enabled),
		slog.String("redis_addr", cfg.Stats.RedisAddr),
		slog.String("bucket", cfg.Stats.Bucket),
		slog.Duration("ttl", cfg.Stats.TTL),
		slog.Bool("track_keys", cfg.Stats.TrackKeys),
	)
	logger.Info("concurrency", slog.Int("max", cfg.ConcurrencyMax), slog.Duration("acquire_timeout", cfg.ConcurrencyTimeout))

	err = g.Wait()

	totalCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if t, terr := total(totalCtx); terr == nil {
		logger.Info("rate-stats totals",
			slog.Int64("allowed", t.Allowed),
			slog.Int64("denied", t.Denied),
			slog.Int64("exhausted", t.Exhausted),
			slog.Int("windows", limiter.Len()),
		)
	} else {
		logger.Warn("rate-stats totals unavailable", slog.Any("error", terr))
	}
	return err
}
