package app

import (
	"context"
	"fmt"

	"greenpulse/internal/config"
	"greenpulse/internal/greenpulse/repository"
	"greenpulse/internal/greenpulse/service"
	"greenpulse/internal/httpapi"
	"greenpulse/internal/logger"
	"greenpulse/internal/metrics"
	"greenpulse/internal/mongo"
	"greenpulse/internal/telegram"
	telegramrepo "greenpulse/internal/telegram/repository"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"
)

// App 应用服务容器
// 负责管理所有服务的生命周期（初始化、运行、关闭）
type App struct {
	MongoDB     *mongo.Client
	Firestore   *repository.FirestoreStore
	Store       repository.DocumentStore
	Impact      service.ImpactService
	Donations   service.DonationService
	TelegramBot *telegram.Bot
	HTTP        *httpapi.Server
}

// New 初始化应用及其所有服务
// 按顺序初始化各个服务，任何服务初始化失败都会清理已初始化的部分并返回错误
func New(ctx context.Context, cfg *config.Config) (*App, error) {
	app := &App{}

	if err := app.initStore(ctx, cfg); err != nil {
		_ = app.Close(context.Background())
		return nil, err
	}

	registry := prometheus.NewRegistry()
	opts := service.Options{
		ChartMonths:    cfg.Derivation.ChartMonths,
		CoinToCurrency: cfg.Derivation.CoinToCurrency.InexactFloat64(),
		DonationMin:    cfg.Derivation.DonationMin,
		DonationMax:    cfg.Derivation.DonationMax,
		StoreTimeout:   cfg.StoreTimeout,
		Location:       cfg.Derivation.Location,
		Metrics:        metrics.New(registry),
	}
	app.Impact = service.NewImpactService(app.Store, opts)
	app.Donations = service.NewPerUserCoordinator(app.Store, opts)

	if cfg.TelegramToken != "" {
		var accounts telegramrepo.AccountRepository
		if app.MongoDB != nil {
			accounts = telegramrepo.NewMongoAccountRepository(app.MongoDB.Database())
		} else {
			logger.L().Warn("Bot accounts are kept in memory for this backend; links are lost on restart")
			accounts = telegramrepo.NewMemoryAccountRepository()
		}

		bot, err := telegram.New(ctx, telegram.Config{
			Token:       cfg.TelegramToken,
			OwnerIDs:    cfg.BotOwnerIDs,
			ChartMonths: cfg.Derivation.ChartMonths,
		}, telegram.Deps{
			Accounts:  accounts,
			Impact:    app.Impact,
			Donations: app.Donations,
		})
		if err != nil {
			_ = app.Close(context.Background())
			return nil, fmt.Errorf("init Telegram bot failed: %w", err)
		}
		app.TelegramBot = bot
	}

	if cfg.HTTPEnabled {
		app.HTTP = httpapi.New(httpapi.Config{Addr: cfg.HTTPAddr, Gatherer: registry}, app.Impact, app.Donations)
	}

	return app, nil
}

func (a *App) initStore(ctx context.Context, cfg *config.Config) error {
	switch cfg.StoreBackend {
	case config.BackendMongo:
		client, err := mongo.NewClient(ctx, mongo.Config{
			URI:      cfg.MongoURI,
			Database: cfg.MongoDBName,
			Timeout:  cfg.StoreTimeout,
		})
		if err != nil {
			return fmt.Errorf("init MongoDB failed: %w", err)
		}
		a.MongoDB = client

		store := repository.NewMongoStore(client.Database())
		if err := store.EnsureIndexes(ctx); err != nil {
			return fmt.Errorf("ensure store indexes failed: %w", err)
		}
		if ok, err := store.SupportsTransactions(ctx); err != nil {
			logger.L().Warnf("Could not detect MongoDB transaction support: %v", err)
		} else if !ok {
			logger.L().Warn("MongoDB is standalone: donations use compensated writes, a crash between the donation insert and the counter update can leave partial state")
		}
		a.Store = store
		logger.L().Info("MongoDB initialized successfully")
	case config.BackendFirestore:
		store, err := repository.NewFirestoreStore(ctx, cfg.FirestoreProjectID)
		if err != nil {
			return fmt.Errorf("init Firestore failed: %w", err)
		}
		a.Firestore = store
		a.Store = store
		logger.L().Info("Firestore initialized successfully")
	case config.BackendMemory:
		a.Store = repository.NewMemoryStore()
		logger.L().Warn("Using in-memory store; data is lost on exit")
	default:
		return fmt.Errorf("unsupported store backend %q", cfg.StoreBackend)
	}
	return nil
}

// Run 运行 Bot 与 HTTP 服务，阻塞直到 ctx 取消或任一服务出错
func (a *App) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if a.TelegramBot != nil {
		g.Go(func() error {
			a.TelegramBot.Start(ctx)
			return nil
		})
	}
	if a.HTTP != nil {
		g.Go(func() error {
			return a.HTTP.Start(ctx)
		})
	}
	if a.TelegramBot == nil && a.HTTP == nil {
		logger.L().Warn("Neither the Telegram bot nor the HTTP API is enabled")
	}

	return g.Wait()
}

// Close 优雅关闭所有服务
// 应该在应用退出时调用，确保资源正确释放
func (a *App) Close(ctx context.Context) error {
	if a.TelegramBot != nil {
		a.TelegramBot.Stop()
	}
	if a.Firestore != nil {
		if err := a.Firestore.Close(); err != nil {
			return fmt.Errorf("close Firestore failed: %w", err)
		}
	}
	if a.MongoDB != nil {
		if err := a.MongoDB.Close(ctx); err != nil {
			return fmt.Errorf("close MongoDB failed: %w", err)
		}
	}
	return nil
}
