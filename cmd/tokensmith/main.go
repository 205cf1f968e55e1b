package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	rdb "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/dropDatabas3/tokensmith/internal/config"
	"github.com/dropDatabas3/tokensmith/internal/email"
	"github.com/dropDatabas3/tokensmith/internal/flows"
	"github.com/dropDatabas3/tokensmith/internal/http/router"
	"github.com/dropDatabas3/tokensmith/internal/metrics"
	"github.com/dropDatabas3/tokensmith/internal/observability/logger"
	"github.com/dropDatabas3/tokensmith/internal/rate"
	"github.com/dropDatabas3/tokensmith/internal/security/apikey"
	"github.com/dropDatabas3/tokensmith/internal/security/csrf"
	"github.com/dropDatabas3/tokensmith/internal/security/purposetoken"
	"github.com/dropDatabas3/tokensmith/internal/security/session"
	"github.com/dropDatabas3/tokensmith/internal/store"
	memstore "github.com/dropDatabas3/tokensmith/internal/store/memory"
	pgstore "github.com/dropDatabas3/tokensmith/internal/store/pg"
)

var version = "dev"

func main() {
	// .env es opcional; si no está, seguimos con el entorno del proceso.
	_ = godotenv.Load()

	var cfgPath string

	root := &cobra.Command{
		Use:          "tokensmith",
		Short:        "Servicio de credenciales: API keys, tokens de propósito, CSRF y sesiones",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "ruta al config YAML")

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Levanta el servidor HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cfgPath)
		},
	}
	root.AddCommand(serve)
	root.AddCommand(newMigrateCmd(&cfgPath))

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func runServe(cfgPath string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("cargando config: %w", err)
	}

	logger.Init(logger.Config{
		Env:         cfg.App.Env,
		Level:       "info",
		ServiceName: "tokensmith",
		Version:     version,
	})
	defer logger.Sync()
	log := logger.Named("main")

	if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
		return fmt.Errorf("registrando métricas: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, cleanup, err := buildStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	sender := buildSender(cfg)

	tokens := purposetoken.New(purposetoken.Config{
		DefaultSecret: []byte(cfg.Auth.Tokens.Secret),
		Secrets:       perPurposeSecrets(cfg.Auth.Tokens.PerPurpose),
	})

	sessions := session.New([]byte(cfg.Auth.Session.Secret))
	sessions.CookieName = cfg.Auth.Session.CookieName
	sessions.TTL = cfg.SessionTTL()

	csrfStore := csrf.New(cfg.CSRFTTL())

	h := router.New(router.Deps{
		Keys:     apikey.New(st),
		Flows:    flows.New(st, tokens, sender, cfg.Email.BaseURL),
		CSRF:     csrfStore,
		Sessions: sessions,
		Limiter:  buildLimiter(cfg),
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("servidor escuchando", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		csrfStore.RunSweeper(gctx, cfg.CSRFSweep())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("apagando servidor")
		return srv.Shutdown(shutCtx)
	})

	if err := g.Wait(); err != nil {
		log.Error("servidor terminó con error", logger.Err(err))
		return err
	}
	return nil
}

func buildStore(ctx context.Context, cfg *config.Config) (store.Store, func(), error) {
	switch cfg.Storage.Driver {
	case "postgres":
		pcfg, err := pgxpool.ParseConfig(cfg.Storage.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("parseando DSN: %w", err)
		}
		if cfg.Storage.Postgres.MaxConns > 0 {
			pcfg.MaxConns = int32(cfg.Storage.Postgres.MaxConns)
		}
		if s := cfg.Storage.Postgres.ConnMaxLifetime; s != "" {
			if d, err := time.ParseDuration(s); err == nil {
				pcfg.MaxConnLifetime = d
			}
		}
		pool, err := pgxpool.NewWithConfig(ctx, pcfg)
		if err != nil {
			return nil, nil, fmt.Errorf("conectando a postgres: %w", err)
		}
		return pgstore.New(pool), pool.Close, nil
	default:
		return memstore.New(), func() {}, nil
	}
}

func buildSender(cfg *config.Config) email.Sender {
	s := email.NewSMTPSender(cfg.SMTP.Host, cfg.SMTP.Port, cfg.SMTP.From, cfg.SMTP.Username, cfg.SMTP.Password)
	s.TLSMode = cfg.SMTP.TLS
	s.InsecureSkipVerify = cfg.SMTP.InsecureSkipVerify
	return s
}

func buildLimiter(cfg *config.Config) rate.Limiter {
	if !cfg.Rate.Enabled {
		return nil
	}
	if cfg.Rate.Kind == "redis" && cfg.Rate.Redis.Addr != "" {
		client := rdb.NewClient(&rdb.Options{Addr: cfg.Rate.Redis.Addr, DB: cfg.Rate.Redis.DB})
		return rate.NewRedisLimiter(client, cfg.Rate.Redis.Prefix, cfg.Rate.Limit, cfg.RateWindow())
	}
	return rate.NewMemoryLimiter(cfg.Rate.Limit, cfg.RateWindow())
}

func perPurposeSecrets(in map[string]string) map[purposetoken.Purpose][]byte {
	if len(in) == 0 {
		return nil
	}
	out := make(map[purposetoken.Purpose][]byte, len(in))
	for k, v := range in {
		out[purposetoken.Purpose(k)] = []byte(v)
	}
	return out
}
