package telegram

import (
	"context"
	"fmt"
	"html"
	"strconv"
	"strings"

	gpmodels "greenpulse/internal/greenpulse/models"
	gpservice "greenpulse/internal/greenpulse/service"
	"greenpulse/internal/logger"
	"greenpulse/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

// historyLimit /history 最多展示的条数
const historyLimit = 15

// registerHandlers 注册所有命令处理器（异步执行）
func (b *Bot) registerHandlers() {
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/start", bot.MatchTypePrefix,
		b.asyncHandler(b.handleStart))

	// 需要绑定 GreenPulse 用户
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/impact", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireLinked(b.handleImpact)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/history", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireLinked(b.handleHistory)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/donate", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireLinked(b.handleDonate)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/coverage", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireLinked(b.handleCoverage)))

	// 管理员命令（Admin+）
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/goal", bot.MatchTypeExact,
		b.asyncHandler(b.RequireAdmin(b.handleGoal)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/admins", bot.MatchTypeExact,
		b.asyncHandler(b.RequireAdmin(b.handleListAdmins)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/link", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireAdmin(b.handleLink)))

	// Owner 命令
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/grant", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireOwner(b.handleGrantAdmin)))
	b.bot.RegisterHandler(bot.HandlerTypeMessageText, "/revoke", bot.MatchTypePrefix,
		b.asyncHandler(b.RequireOwner(b.handleRevokeAdmin)))

	logger.L().Debug("All handlers registered with async execution")
}

// handleStart 处理 /start 命令
func (b *Bot) handleStart(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}

	info := &service.TelegramUserInfo{
		TelegramID: update.Message.From.ID,
		Username:   update.Message.From.Username,
		FirstName:  update.Message.From.FirstName,
	}
	if err := b.accountService.RegisterOrUpdate(ctx, info); err != nil {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, "Registration failed, please try again later.")
		return
	}

	b.sendMessage(ctx, botInstance, update.Message.Chat.ID, formatWelcome(update.Message.From.FirstName, update.Message.From.ID))
}

// handleLink 处理 /link <telegram id> <user id>（管理员为用户绑定账号）
func (b *Bot) handleLink(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID
	args := commandArgs(update.Message.Text)
	if len(args) != 2 {
		b.sendErrorMessage(ctx, botInstance, chatID, "Usage: /link &lt;telegram user id&gt; &lt;GreenPulse user id&gt;")
		return
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, "Invalid user id")
		return
	}

	if err := b.accountService.Link(ctx, targetID, args[1], update.Message.From.ID); err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, html.EscapeString(err.Error()))
		return
	}
	b.sendSuccessMessage(ctx, botInstance, chatID, fmt.Sprintf("User %d linked to %s", targetID, html.EscapeString(args[1])))
}

// handleImpact 处理 /impact [months]
func (b *Bot) handleImpact(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID
	months := b.chartMonths
	if args := commandArgs(update.Message.Text); len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 || n > gpservice.MaxChartMonths {
			b.sendErrorMessage(ctx, botInstance, chatID, fmt.Sprintf("Months must be between 1 and %d.", gpservice.MaxChartMonths))
			return
		}
		months = n
	}

	dashboard, err := b.impact.Dashboard(ctx, linkedUser(ctx), months)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, userErrorMessage(err))
		return
	}
	b.sendMessage(ctx, botInstance, chatID, formatDashboard(dashboard))
}

// handleHistory 处理 /history [all|coins|credits]
func (b *Bot) handleHistory(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID
	filter := gpmodels.FilterAll
	if args := commandArgs(update.Message.Text); len(args) > 0 {
		filter = gpmodels.ParseLedgerFilter(strings.ToLower(args[0]))
	}

	txs, err := b.impact.Ledger(ctx, linkedUser(ctx), filter)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, userErrorMessage(err))
		return
	}
	b.sendMessage(ctx, botInstance, chatID, formatLedger(txs, filter, historyLimit))
}

// handleDonate 处理 /donate <amount> [beneficiary id]
func (b *Bot) handleDonate(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID
	req, err := parseDonateArgs(commandArgs(update.Message.Text))
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, err.Error())
		return
	}
	req.UserID = linkedUser(ctx)

	event, err := b.donations.SubmitDonation(ctx, req)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, userErrorMessage(err), update.Message.ID)
		return
	}
	b.sendSuccessMessage(ctx, botInstance, chatID, formatDonation(event), update.Message.ID)
}

// handleCoverage 处理 /coverage <bill amount>
func (b *Bot) handleCoverage(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	chatID := update.Message.Chat.ID
	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		b.sendErrorMessage(ctx, botInstance, chatID, "Usage: /coverage &lt;bill amount&gt;")
		return
	}
	bill, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, "Bill amount must be a number.")
		return
	}

	coverage, err := b.impact.BillCoverage(ctx, linkedUser(ctx), bill)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, chatID, userErrorMessage(err))
		return
	}
	b.sendMessage(ctx, botInstance, chatID, formatCoverage(coverage))
}

// handleGoal 处理 /goal（管理员查看社区目标）
func (b *Bot) handleGoal(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	goal, err := b.impact.CommunityGoal(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, userErrorMessage(err))
		return
	}
	b.sendMessage(ctx, botInstance, update.Message.Chat.ID, formatGoal(goal))
}

// handleGrantAdmin 处理 /grant <telegram id>
func (b *Bot) handleGrantAdmin(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	targetID, ok := b.parseTargetID(ctx, botInstance, update, "/grant")
	if !ok {
		return
	}
	if err := b.accountService.GrantAdmin(ctx, targetID, update.Message.From.ID); err != nil {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, err.Error())
		return
	}
	b.sendSuccessMessage(ctx, botInstance, update.Message.Chat.ID, fmt.Sprintf("User %d is now an admin", targetID))
}

// handleRevokeAdmin 处理 /revoke <telegram id>
func (b *Bot) handleRevokeAdmin(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	targetID, ok := b.parseTargetID(ctx, botInstance, update, "/revoke")
	if !ok {
		return
	}
	if err := b.accountService.RevokeAdmin(ctx, targetID, update.Message.From.ID); err != nil {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, err.Error())
		return
	}
	b.sendSuccessMessage(ctx, botInstance, update.Message.Chat.ID, fmt.Sprintf("Admin role revoked from user %d", targetID))
}

// handleListAdmins 处理 /admins
func (b *Bot) handleListAdmins(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
	admins, err := b.accountService.ListAdmins(ctx)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, err.Error())
		return
	}
	b.sendMessage(ctx, botInstance, update.Message.Chat.ID, formatAdmins(admins))
}

func (b *Bot) parseTargetID(ctx context.Context, botInstance *bot.Bot, update *botModels.Update, command string) (int64, bool) {
	args := commandArgs(update.Message.Text)
	if len(args) != 1 {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID,
			fmt.Sprintf("Usage: %s &lt;telegram user id&gt;", command))
		return 0, false
	}
	targetID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, "Invalid user id")
		return 0, false
	}
	return targetID, true
}
