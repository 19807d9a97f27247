// Package app wires configuration, storage and transports into runnable commands.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/giftgate/giftbot/internal/bot"
	"github.com/giftgate/giftbot/internal/claim"
	"github.com/giftgate/giftbot/internal/config"
	"github.com/giftgate/giftbot/internal/db"
	httpapi "github.com/giftgate/giftbot/internal/http"
	"github.com/giftgate/giftbot/internal/http/api/admin"
	"github.com/giftgate/giftbot/internal/ingest"
	"github.com/giftgate/giftbot/internal/logging"
	"github.com/giftgate/giftbot/internal/membership"
	"github.com/giftgate/giftbot/internal/monitor"
	"github.com/giftgate/giftbot/internal/pool"
	"github.com/giftgate/giftbot/internal/reward"
	"github.com/giftgate/giftbot/internal/security"
	"github.com/giftgate/giftbot/internal/settings"
	"github.com/giftgate/giftbot/internal/telegram"
	"github.com/giftgate/giftbot/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

const (
	startupCallTimeout = 15 * time.Second
	shutdownTimeout    = 10 * time.Second
)

// Migrate opens the database and runs migrations.
func Migrate(ctx context.Context, cfg config.AppConfig) error {
	conn, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	log.Info("migrations applied")
	return closeDB(conn)
}

// OpenPool opens the database for offline token administration.
func OpenPool(ctx context.Context, cfg config.AppConfig) (*pool.Pool, func() error, error) {
	conn, err := openDatabase(cfg)
	if err != nil {
		return nil, nil, err
	}
	return pool.New(conn), func() error { return closeDB(conn) }, nil
}

// IssueAdminToken signs an admin API token with the configured secret.
func IssueAdminToken(cfg config.AppConfig, name string, ttl time.Duration) (string, error) {
	conf, err := config.Read(cfg.ConfigPath)
	if err != nil {
		return "", err
	}
	if conf.Admin.JWTSecret == "" {
		return "", &config.ConfigurationError{Field: "ADMIN_JWT_SECRET", Reason: "is required to issue admin tokens"}
	}
	return security.GenerateAdminToken(conf.Admin.JWTSecret, name, ttl)
}

// RunServer boots the bot: update transport, claim pipeline, HTTP surface and pool monitor.
func RunServer(ctx context.Context, cfg config.AppConfig) error {
	conf, err := config.Load(cfg.ConfigPath)
	if err != nil {
		return err
	}
	logCloser, errLog := logging.Setup(conf.Log)
	if errLog != nil {
		return errLog
	}
	defer func() { _ = logCloser.Close() }()

	conn, err := db.Open(conf.Database.DSN)
	if err != nil {
		return err
	}
	defer func() { _ = closeDB(conn) }()
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}
	if errRefresh := settings.Refresh(ctx, conn); errRefresh != nil {
		return fmt.Errorf("load settings: %w", errRefresh)
	}

	client := telegram.New(conf.Telegram.BotToken, telegram.WithBaseURL(conf.Telegram.APIBaseURL))
	gate := membership.NewGate(client, conf.Telegram.RequireChannel, conf.Telegram.MembershipTimeout)
	tokenPool := pool.New(conn)
	dispatcher := reward.NewDispatcher(telegram.NewDeliverer(client), tokenPool, reward.Options{
		Premium:     reward.Premium{ItemID: conf.Reward.PremiumGiftID(), Note: conf.Reward.Note},
		SendTimeout: conf.Reward.SendTimeout,
	})
	locker, closeLocker, errLocker := newLocker(ctx, conf.Redis)
	if errLocker != nil {
		return errLocker
	}
	defer closeLocker()

	receipts := claim.NewGormReceiptStore(conn)
	coordinator := claim.NewCoordinator(gate, dispatcher, receipts, locker, claim.Options{GrantOnce: conf.Reward.OnlyOnce})
	handler := bot.NewHandler(client, gate, coordinator, users.NewStore(conn), tokenPool, bot.Options{
		Channel:        conf.Telegram.Channel,
		GiftName:       conf.Reward.GiftName,
		SupportContact: conf.Reward.SupportContact,
		AdminIDs:       conf.Admin.IDs,
	})
	processor := ingest.NewProcessor(handler, ingest.DefaultLanes)

	installCommands(ctx, client)

	webhookPath := ""
	if conf.Telegram.WebhookEnabled() {
		webhookPath = conf.Telegram.WebhookPath
		if conf.Telegram.WebhookSecret == "" {
			secret, errSecret := security.RandomSecret(24)
			if errSecret != nil {
				return errSecret
			}
			conf.Telegram.WebhookSecret = secret
		}
	}

	gin.SetMode(gin.ReleaseMode)
	engine := httpapi.NewRouter(httpapi.Routes{
		DB:            conn,
		WebhookPath:   webhookPath,
		WebhookSecret: conf.Telegram.WebhookSecret,
		Sink:          processor,
		Admin: admin.Deps{
			DB:             conn,
			Tokens:         tokenPool,
			Receipts:       receipts,
			JWTSecret:      conf.Admin.JWTSecret,
			FallbackAdmins: conf.Admin.IDs,
		},
	})
	server := &http.Server{Addr: conf.Server.Addr(), Handler: engine, ReadHeaderTimeout: 10 * time.Second}

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error { return processor.Run(groupCtx) })
	group.Go(func() error { return serveHTTP(groupCtx, server) })
	group.Go(func() error { return settings.Watch(groupCtx, conn, settings.DefaultWatchInterval) })
	group.Go(func() error {
		m := monitor.New(tokenPool, bot.NewAdminNotifier(client, conf.Admin.IDs), conf.Monitor.Schedule, conf.Monitor.LowWatermark)
		return m.Run(groupCtx)
	})

	if conf.Telegram.WebhookEnabled() {
		endpoint := conf.Telegram.WebhookEndpoint()
		callCtx, cancel := context.WithTimeout(ctx, startupCallTimeout)
		errHook := client.SetWebhook(callCtx, endpoint, conf.Telegram.WebhookSecret, true, ingest.AllowedUpdates)
		cancel()
		if errHook != nil {
			log.WithError(errHook).Error("failed to set webhook")
		} else {
			log.WithField("url", endpoint).Info("webhook set")
		}
	} else {
		callCtx, cancel := context.WithTimeout(ctx, startupCallTimeout)
		errDelete := client.DeleteWebhook(callCtx, false)
		cancel()
		if errDelete != nil {
			log.WithError(errDelete).Warn("failed to delete webhook before polling")
		}
		poller := ingest.NewPoller(client, processor)
		group.Go(func() error { return poller.Run(groupCtx) })
	}

	log.WithFields(log.Fields{
		"addr":       server.Addr,
		"token":      logging.MaskToken(conf.Telegram.BotToken),
		"channel":    conf.Telegram.RequireChannel,
		"grant_once": conf.Reward.OnlyOnce,
		"premium":    conf.Reward.PremiumGiftID() != "",
	}).Info("giftbot started")
	return group.Wait()
}

func openDatabase(cfg config.AppConfig) (*gorm.DB, error) {
	dsn, err := config.LoadDatabaseDSN(cfg.ConfigPath)
	if err != nil {
		return nil, err
	}
	conn, err := db.Open(dsn)
	if err != nil {
		return nil, err
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		_ = closeDB(conn)
		return nil, errMigrate
	}
	return conn, nil
}

func closeDB(conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// newLocker returns the Redis locker when a URL is configured, else the in-process one.
func newLocker(ctx context.Context, cfg config.RedisConfig) (claim.Locker, func(), error) {
	if cfg.URL == "" {
		return claim.NewMemoryLocker(), func() {}, nil
	}
	opts, errParse := redis.ParseURL(cfg.URL)
	if errParse != nil {
		return nil, nil, &config.ConfigurationError{Field: "REDIS_URL", Reason: errParse.Error()}
	}
	rdb := redis.NewClient(opts)
	pingCtx, cancel := context.WithTimeout(ctx, startupCallTimeout)
	defer cancel()
	if errPing := rdb.Ping(pingCtx).Err(); errPing != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("redis: ping: %w", errPing)
	}
	log.Info("claim locks shared through redis")
	return claim.NewRedisLocker(rdb, "", cfg.LockTTL), func() { _ = rdb.Close() }, nil
}

func installCommands(ctx context.Context, client *telegram.Client) {
	callCtx, cancel := context.WithTimeout(ctx, startupCallTimeout)
	defer cancel()
	if errCommands := client.SetMyCommands(callCtx, bot.Commands()); errCommands != nil {
		log.WithError(errCommands).Warn("failed to set bot commands")
	}
}

// serveHTTP runs server until ctx is cancelled, then shuts it down gracefully.
func serveHTTP(ctx context.Context, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		if errServe := server.ListenAndServe(); errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			errCh <- errServe
			return
		}
		errCh <- nil
	}()
	select {
	case errServe := <-errCh:
		return errServe
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
		return fmt.Errorf("http shutdown: %w", errShutdown)
	}
	return <-errCh
}
