// Command go-funnel-backend runs the Instagram-to-Telegram marketing funnel:
// a Gin HTTP server (Meta webhook, admin API, landing/payments), a comment
// poller against the Instagram Graph API, and a Telegram bot long-poll loop.
//
// The process degrades rather than dies: a failed Instagram token check
// disables comment polling but keeps the webhook, admin, and payment surfaces
// serving; an absent Telegram token disables the bot and deep links.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/tbourn/go-funnel-backend/internal/config"
	httpapi "github.com/tbourn/go-funnel-backend/internal/http"
	"github.com/tbourn/go-funnel-backend/internal/http/handlers"
	"github.com/tbourn/go-funnel-backend/internal/http/middleware"
	"github.com/tbourn/go-funnel-backend/internal/instagram"
	"github.com/tbourn/go-funnel-backend/internal/observability"
	"github.com/tbourn/go-funnel-backend/internal/payments"
	"github.com/tbourn/go-funnel-backend/internal/repo"
	"github.com/tbourn/go-funnel-backend/internal/services"
	"github.com/tbourn/go-funnel-backend/internal/sysutil"
	"github.com/tbourn/go-funnel-backend/internal/telegram"
)

// version is stamped at build time via -ldflags.
var version = "dev"

func main() {
	// .env is optional; real deployments use actual environment variables.
	_ = godotenv.Load()

	cfg := config.MustLoad()

	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	sysutil.SetLogLevel(cfg.LogLevel)
	if cfg.LogPretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
	gin.SetMode(cfg.GinMode)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := observability.SetupOTel(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := shutdownOTel(sctx); err != nil {
			log.Warn().Err(err).Msg("otel shutdown failed")
		}
	}()

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("opening database failed")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migration failed")
	}

	// Telegram is optional; without a token there is no bot and no deep links.
	var bot *telegram.Bot
	if cfg.Telegram.BotToken != "" {
		bot, err = telegram.NewBot(cfg.Telegram.BotToken)
		if err != nil {
			log.Error().Err(err).Msg("telegram unavailable, continuing without the bot")
			bot = nil
		}
	} else {
		log.Warn().Msg("TELEGRAM_BOT_TOKEN not set, bot disabled")
	}

	registry := services.NewRegistry(db)
	ledger := services.NewLedger(db)
	access := services.NewPaidAccessService(db)

	var deepLink services.DeepLinker
	var botIdentity handlers.BotIdentity
	if bot != nil {
		deepLink = bot
		botIdentity = bot
	}
	entries := services.NewEntryService(db, deepLink)

	igClient := instagram.NewClient(
		cfg.Instagram.AccessToken,
		cfg.Instagram.PageAccessToken,
		cfg.Instagram.BusinessAccountID,
	)

	direct := &services.DirectService{
		Registry:    registry,
		Ledger:      ledger,
		Dispatcher:  igClient,
		DeepLink:    deepLink,
		ButtonLabel: "Open in Telegram",
	}

	// Instagram auth gates polling only; the webhook and admin surfaces stay
	// up either way.
	var postLister handlers.PostLister
	pollerEnabled := false
	if cfg.Instagram.AccessToken != "" {
		if err := igClient.ValidateToken(ctx); err != nil {
			log.Error().Err(err).Msg("instagram token rejected, comment polling disabled")
		} else {
			postLister = igClient
			pollerEnabled = true
		}
	} else {
		log.Warn().Msg("INSTAGRAM_ACCESS_TOKEN not set, comment polling disabled")
	}

	sessions := middleware.NewSessionStore()
	ykClient := payments.NewClient(cfg.YooKassa.ShopID, cfg.YooKassa.SecretKey)
	successURL := sysutil.FirstNonEmpty(cfg.YooKassa.SuccessURL, cfg.PublicURL+"/payment/success")

	deps := httpapi.Deps{
		Webhook: handlers.NewWebhookHandlers(cfg.Webhook.VerifyToken, direct),
		Admin:   handlers.NewAdminHandlers(cfg.Admin.Password, sessions, entries, postLister, botIdentity),
		Landing: handlers.NewLandingHandlers(
			ykClient, access, botIdentity,
			cfg.YooKassa.Price, cfg.YooKassa.Description,
			successURL, cfg.YooKassa.FallbackURL,
		),
		Sessions: sessions,
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, cfg, deps)

	if pollerEnabled {
		poller := &instagram.CommentPoller{
			Source:    igClient,
			Registry:  registry,
			Ledger:    ledger,
			Interval:  cfg.CheckInterval,
			PostLimit: cfg.PostFetchLim,
		}
		go poller.Run(ctx)
	}

	if bot != nil {
		resolver := &telegram.CodeResolver{
			Sender:   bot.API(),
			Registry: registry,
			Access:   access,
		}
		go bot.Run(ctx, resolver)
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(sctx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
	}
}
