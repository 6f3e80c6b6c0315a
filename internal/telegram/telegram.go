// Package telegram GreenPulse 的 Telegram Bot 入口：只负责解析命令与展示，派生逻辑都在服务层
package telegram

import (
	"context"
	"fmt"

	gpservice "greenpulse/internal/greenpulse/service"
	"greenpulse/internal/logger"
	"greenpulse/internal/telegram/repository"
	"greenpulse/internal/telegram/service"

	"github.com/go-telegram/bot"
)

// 默认工作池参数
const (
	defaultWorkers   = 8
	defaultQueueSize = 256
)

// Config Telegram Bot 配置
type Config struct {
	Token       string  // Bot Token
	OwnerIDs    []int64 // Owner 用户 IDs
	Debug       bool    // 是否开启调试模式
	Workers     int     // handler 工作协程数
	QueueSize   int     // handler 队列长度
	ChartMonths int     // /impact 默认月份数
}

// Deps Bot 依赖的服务
type Deps struct {
	Accounts  repository.AccountRepository
	Impact    gpservice.ImpactService
	Donations gpservice.DonationService
}

// Bot Telegram Bot 服务
type Bot struct {
	bot            *bot.Bot
	ownerIDs       []int64
	chartMonths    int
	accountService service.AccountService
	impact         gpservice.ImpactService
	donations      gpservice.DonationService
	workerPool     *WorkerPool
}

// New 创建 Telegram Bot 实例
func New(ctx context.Context, cfg Config, deps Deps) (*Bot, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram token cannot be empty")
	}
	if deps.Accounts == nil || deps.Impact == nil || deps.Donations == nil {
		return nil, fmt.Errorf("telegram bot dependencies are incomplete")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = defaultWorkers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	opts := []bot.Option{}
	if cfg.Debug {
		opts = append(opts, bot.WithDebug())
	}

	b, err := bot.New(cfg.Token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	telegramBot := newBot(cfg, deps)
	telegramBot.bot = b

	if err := deps.Accounts.EnsureIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to ensure account indexes: %w", err)
	}
	if err := telegramBot.accountService.InitOwners(ctx, cfg.OwnerIDs); err != nil {
		logger.L().Warnf("Failed to initialize owners: %v", err)
	}

	telegramBot.workerPool = NewWorkerPool(cfg.Workers, cfg.QueueSize)
	telegramBot.registerHandlers()

	logger.L().Info("Telegram bot initialized successfully")
	return telegramBot, nil
}

// newBot 组装不依赖 Telegram API 的部分（测试直接使用）
func newBot(cfg Config, deps Deps) *Bot {
	return &Bot{
		ownerIDs:       cfg.OwnerIDs,
		chartMonths:    cfg.ChartMonths,
		accountService: service.NewAccountService(deps.Accounts),
		impact:         deps.Impact,
		donations:      deps.Donations,
	}
}

// Start 启动 Bot（阻塞直到 ctx 取消，应在 goroutine 中运行）
func (b *Bot) Start(ctx context.Context) {
	logger.L().Info("Starting Telegram bot...")
	b.bot.Start(ctx)
	logger.L().Info("Telegram bot stopped")
}

// Stop 等待已入队的 handler 执行完毕
func (b *Bot) Stop() {
	if b.workerPool != nil {
		b.workerPool.Shutdown()
	}
}
