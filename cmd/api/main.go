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

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	httpadp "github.com/gabrieltemtsen/clenja/internal/adapter/http"
	"github.com/gabrieltemtsen/clenja/internal/adapter/middleware"
	"github.com/gabrieltemtsen/clenja/internal/adapter/repository/gormrepo"
	"github.com/gabrieltemtsen/clenja/internal/adapter/verifier"
	"github.com/gabrieltemtsen/clenja/internal/app"
	"github.com/gabrieltemtsen/clenja/internal/config"
	"github.com/gabrieltemtsen/clenja/internal/domain/risk"
	"github.com/gabrieltemtsen/clenja/internal/infrastructure/cache"
	"github.com/gabrieltemtsen/clenja/internal/infrastructure/db"
	"github.com/gabrieltemtsen/clenja/internal/infrastructure/logging"
	"github.com/gabrieltemtsen/clenja/internal/infrastructure/metrics"
	"github.com/gabrieltemtsen/clenja/internal/schedule"
	loanUC "github.com/gabrieltemtsen/clenja/internal/usecase/loan"
)

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		logrus.Fatalf("config: %v", err)
	}
	log, closer, err := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})
	if err != nil {
		logrus.Fatalf("logging: %v", err)
	}
	defer closer.Close()

	if err := run(cfg, log); err != nil {
		log.WithError(err).Error("api stopped")
		_ = closer.Close()
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logrus.Logger) error {
	if err := schedule.ValidSpec(cfg.SnapshotSchedule); err != nil {
		return fmt.Errorf("SNAPSHOT_SCHEDULE: %w", err)
	}
	rules, err := config.LoadRules(cfg.RiskRulesFile)
	if err != nil {
		return err
	}

	gdb, err := db.OpenGorm(cfg.DBDriver, cfg.DSN(), logger.Warn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	if err := db.Migrate(gdb); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.OpenRedis(ctx, cache.RedisOptions{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		return err
	}
	defer rdb.Close()

	oracles, err := buildOracles(cfg, rdb)
	if err != nil {
		return err
	}

	ledger := app.New(gormrepo.NewGormUoW(gdb), app.Options{
		Roles:       loanUC.Roles{Owner: cfg.OwnerID, Operator: cfg.OperatorID, LoanManager: cfg.LoanManagerID},
		Asset:       cfg.AssetSymbol,
		Custody:     cfg.CustodyID,
		Treasury:    cfg.TreasuryID,
		AgentFeeBps: cfg.AgentFeeBps,
		Rules:       rules,
		Oracles:     oracles,
		Log:         log,
	})

	if err := ledger.Bootstrap(ctx); err != nil {
		return fmt.Errorf("bootstrap: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	httpMetrics := middleware.NewHTTPMetrics(reg)
	gauges := metrics.NewPoolGauges(reg)

	e := echo.New()
	e.HideBanner = true
	e.Validator = httpadp.NewValidator()
	e.Use(echomw.Logger(), echomw.Recover(), httpMetrics.Middleware())

	auth := middleware.NewAuthenticator(middleware.AuthConfig{HMACSecret: cfg.AuthHMACSecret, Issuer: cfg.AuthIssuer}, log)
	if !auth.Enabled() {
		log.Warnf("AUTH_HMAC_SECRET unset: callers are taken from %s", middleware.CallerHeader)
	}
	idem := middleware.NewIdempotency(rdb, middleware.IdempotencyConfig{TTL: time.Duration(cfg.IdempTTLSecs) * time.Second}, log).Middleware()

	httpadp.Register(e, httpadp.Handlers{
		Health:   httpadp.NewHandler(readiness(gdb, rdb)...),
		Vault:    httpadp.NewVaultHandler(ledger.Vault),
		Loans:    httpadp.NewLoanHandler(ledger.Loans),
		Approval: httpadp.NewApprovalHandler(ledger.Approval),
		Risk:     httpadp.NewRiskHandler(ledger.Risk),
	}, auth.Middleware(), idem)
	e.GET("/metrics", echo.WrapHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{})))

	g, gctx := errgroup.WithContext(ctx)
	addr := ":" + cfg.AppPort
	g.Go(func() error {
		log.WithField("addr", addr).Info("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return schedule.NewSnapshotter(ledger.Vault, gauges, log).Run(gctx, cfg.SnapshotSchedule)
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(sctx)
	})
	return g.Wait()
}

func readiness(gdb *gorm.DB, rdb *redis.Client) []httpadp.Check {
	return []httpadp.Check{
		{Name: "db", Ping: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		}},
		{Name: "redis", Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() }},
	}
}

func buildOracles(cfg *config.Config, rdb *redis.Client) (map[string]risk.Verifier, error) {
	switch cfg.VerifierBackend {
	case config.VerifierRedis:
		return map[string]risk.Verifier{verifier.NameRedis: verifier.NewRedis(rdb, "")}, nil
	case config.VerifierStatic:
		s, err := verifier.NewStatic(cfg.VerifiedPrincipals)
		if err != nil {
			return nil, err
		}
		return map[string]risk.Verifier{verifier.NameStatic: s}, nil
	default:
		return nil, nil
	}
}
