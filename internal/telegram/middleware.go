package telegram

import (
	"context"
	"errors"

	"greenpulse/internal/logger"
	"greenpulse/internal/telegram/service"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

type linkedUserKey struct{}

// RequireOwner 中间件：仅允许 Owner 执行
func (b *Bot) RequireOwner(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		isOwner, err := b.accountService.CheckOwner(ctx, update.Message.From.ID)
		if err != nil || !isOwner {
			logger.L().Warnf("Non-owner user %d attempted to use owner command", update.Message.From.ID)
			b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, "This command is restricted to bot owners.")
			return
		}

		next(ctx, botInstance, update)
	}
}

// RequireAdmin 中间件：需要管理员角色（Admin 或 Owner）
func (b *Bot) RequireAdmin(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		isAdmin, err := b.accountService.CheckAdmin(ctx, update.Message.From.ID)
		if err != nil || !isAdmin {
			logger.L().Warnf("Non-admin user %d attempted to use admin command", update.Message.From.ID)
			b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, "This command requires the admin role.")
			return
		}

		next(ctx, botInstance, update)
	}
}

// RequireLinked 中间件：需要已绑定 GreenPulse 用户，绑定的用户 ID 通过 ctx 传给 handler
func (b *Bot) RequireLinked(next bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		if update.Message == nil || update.Message.From == nil {
			return
		}

		uid, err := b.accountService.ResolveUser(ctx, update.Message.From.ID)
		if err != nil {
			if !errors.Is(err, service.ErrNotLinked) {
				logger.L().Errorf("Failed to resolve user for %d: %v", update.Message.From.ID, err)
			}
			b.sendErrorMessage(ctx, botInstance, update.Message.Chat.ID, userErrorMessage(err))
			return
		}

		b.accountService.UpdateActivity(ctx, update.Message.From.ID)
		next(context.WithValue(ctx, linkedUserKey{}, uid), botInstance, update)
	}
}

// linkedUser 取出 RequireLinked 注入的用户 ID
func linkedUser(ctx context.Context) string {
	uid, _ := ctx.Value(linkedUserKey{}).(string)
	return uid
}
