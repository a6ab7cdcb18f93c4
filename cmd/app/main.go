package main

import (
	"context"
	"flag"
	"log"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"subscription-billing/internal/config"
	"subscription-billing/internal/domain/ports/adapter"
	"subscription-billing/internal/infra/api"
	pg "subscription-billing/internal/infra/db/postgres"
	"subscription-billing/internal/infra/logging"
	"subscription-billing/internal/infra/metrics"
	"subscription-billing/internal/infra/notify"
	zp "subscription-billing/internal/infra/payment"
	red "subscription-billing/internal/infra/redis"
	"subscription-billing/internal/infra/sched"
	"subscription-billing/internal/infra/web"
	"subscription-billing/internal/usecase"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfgPath := flag.String("config", "config.yaml", "path to YAML config file")
	devMode := flag.Bool("dev", false, "developer mode (console logs, relaxed redaction)")
	flag.Parse()

	cfg, err := config.LoadConfig(*cfgPath, *devMode)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger := logging.New(cfg.Log, cfg.Runtime.Dev)
	metrics.MustRegister()

	// ---- Postgres ----
	pool, err := pg.NewPgxPool(ctx, cfg.Database.URL, 10)
	if err != nil {
		logger.Fatal().Err(err).Msg("postgres")
	}
	defer pool.Close()

	// ---- Redis ----
	redisClient, err := red.NewClient(ctx, &cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis")
	}
	defer func() { _ = redisClient.Close() }()
	locker := red.NewLocker(redisClient)

	// ---- Repositories ----
	tm := pg.NewTxManager(pool)
	payRepo := pg.NewPaymentRepo(pool)
	planRepo := red.NewPlanCache(pg.NewPlanRepo(pool), redisClient, cfg.Redis.TTL)
	offerRepo := pg.NewOfferRepo(pool)
	subRepo := pg.NewSubscriptionRepo(pool)
	userRepo := pg.NewUserRepo(pool)
	refLogRepo := pg.NewReferralLogRepo(pool)

	// ---- Gateway ----
	gateway, err := zp.NewZarinPalGateway(cfg.Gateway.ZarinPal.MerchantID, cfg.Gateway.ZarinPal.Sandbox)
	if err != nil {
		logger.Fatal().Err(err).Msg("zarinpal gateway")
	}

	// ---- Notifier ----
	var notifier adapter.Notifier = notify.NewNoopNotifier()
	if cfg.Notify.TelegramToken != "" {
		tn, err := notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("telegram notifier unavailable; continuing without")
		} else {
			notifier = tn
		}
	}

	// ---- Use cases ----
	referralUC := usecase.NewReferralUseCase(userRepo, refLogRepo, tm, notifier, cfg.Referral.RewardToman, logger)
	subUC := usecase.NewSubscriptionUseCase(subRepo, planRepo, referralUC, tm, notifier, logger)

	callbackURL := strings.TrimRight(cfg.Gateway.BaseURL, "/") + "/payment/callback"
	payUC := usecase.NewPaymentUseCase(payRepo, planRepo, offerRepo, userRepo, subUC, gateway, locker,
		callbackURL, cfg.Gateway.MinAmountToman, logger)

	// ---- Background sweeper ----
	sweeper := sched.NewExpirySweeper(cfg.Sweeper.Interval, payRepo, logger)
	go func() { _ = sweeper.Run(ctx) }()

	// ---- HTTP ----
	auth := web.NewAuthManager(cfg.Server.JWTSecret, 24*time.Hour)
	srv := api.NewServer(payUC, subUC, referralUC, planRepo, auth, cfg.Gateway.FrontendURL, logger)

	logger.Info().Int("port", cfg.Server.Port).Msg("listening")
	if err := srv.Run(ctx, cfg.Server.Port); err != nil {
		logger.Error().Err(err).Msg("server stopped")
	}
}
