package repository

import (
	"context"
	"errors"

	"greenpulse/internal/telegram/models"
)

// ErrAccountNotFound 账号不存在
var ErrAccountNotFound = errors.New("account not found")

// AccountRepository Bot 账号数据访问接口
type AccountRepository interface {
	// CreateOrUpdate 创建或更新账号资料（不覆盖已绑定的用户与已授予的角色）
	CreateOrUpdate(ctx context.Context, account *models.Account) error

	// GetByTelegramID 根据 Telegram ID 获取账号，不存在时返回 ErrAccountNotFound
	GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error)

	// LinkUser 绑定 GreenPulse 用户
	LinkUser(ctx context.Context, telegramID int64, uid string) error

	// SetRole 设置角色；grantedBy 为 0 表示清除授予信息
	SetRole(ctx context.Context, telegramID int64, role string, grantedBy int64) error

	// UpdateLastActive 更新最后活跃时间
	UpdateLastActive(ctx context.Context, telegramID int64) error

	// ListAdmins 列出所有管理员（含 Owner）
	ListAdmins(ctx context.Context) ([]*models.Account, error)

	// EnsureIndexes 确保索引存在
	EnsureIndexes(ctx context.Context) error
}
