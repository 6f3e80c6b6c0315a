package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"greenpulse/internal/telegram/models"
)

// MemoryAccountRepository 进程内账号存储（非 MongoDB 后端与测试使用）
type MemoryAccountRepository struct {
	mu       sync.RWMutex
	accounts map[int64]*models.Account
}

// NewMemoryAccountRepository 创建进程内账号存储
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[int64]*models.Account)}
}

// CreateOrUpdate 创建或更新账号
func (r *MemoryAccountRepository) CreateOrUpdate(ctx context.Context, account *models.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	account.UpdatedAt = now
	existing, ok := r.accounts[account.TelegramID]
	if !ok {
		existing = &models.Account{TelegramID: account.TelegramID, Role: models.RoleUser, CreatedAt: now}
		r.accounts[account.TelegramID] = existing
	}
	existing.Username = account.Username
	existing.FirstName = account.FirstName
	existing.UpdatedAt = now
	existing.LastActiveAt = account.LastActiveAt
	if account.Role != "" {
		existing.Role = account.Role
	}
	return nil
}

// GetByTelegramID 根据 Telegram ID 获取账号
func (r *MemoryAccountRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	account, ok := r.accounts[telegramID]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, telegramID)
	}
	copied := *account
	return &copied, nil
}

// LinkUser 绑定 GreenPulse 用户
func (r *MemoryAccountRepository) LinkUser(ctx context.Context, telegramID int64, uid string) error {
	return r.update(telegramID, func(a *models.Account, now time.Time) {
		a.GreenPulseUID = uid
		a.LinkedAt = &now
	})
}

// SetRole 设置角色
func (r *MemoryAccountRepository) SetRole(ctx context.Context, telegramID int64, role string, grantedBy int64) error {
	return r.update(telegramID, func(a *models.Account, now time.Time) {
		a.Role = role
		a.GrantedBy = grantedBy
		if grantedBy != 0 {
			a.GrantedAt = &now
		} else {
			a.GrantedAt = nil
		}
	})
}

// UpdateLastActive 更新最后活跃时间；账号不存在时忽略
func (r *MemoryAccountRepository) UpdateLastActive(ctx context.Context, telegramID int64) error {
	_ = r.update(telegramID, func(a *models.Account, now time.Time) {
		a.LastActiveAt = now
	})
	return nil
}

// ListAdmins 列出所有管理员
func (r *MemoryAccountRepository) ListAdmins(ctx context.Context) ([]*models.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var admins []*models.Account
	for _, a := range r.accounts {
		if a.IsAdmin() {
			copied := *a
			admins = append(admins, &copied)
		}
	}
	sort.Slice(admins, func(i, j int) bool { return admins[i].TelegramID < admins[j].TelegramID })
	return admins, nil
}

// EnsureIndexes 无需索引
func (r *MemoryAccountRepository) EnsureIndexes(ctx context.Context) error { return nil }

func (r *MemoryAccountRepository) update(telegramID int64, fn func(a *models.Account, now time.Time)) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	account, ok := r.accounts[telegramID]
	if !ok {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, telegramID)
	}
	now := time.Now()
	fn(account, now)
	account.UpdatedAt = now
	return nil
}
