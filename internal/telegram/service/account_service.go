package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"greenpulse/internal/logger"
	"greenpulse/internal/telegram/models"
	"greenpulse/internal/telegram/repository"
)

// ErrNotLinked 账号尚未绑定 GreenPulse 用户
var ErrNotLinked = errors.New("account is not linked")

// AccountService Bot 账号业务逻辑接口
type AccountService interface {
	// RegisterOrUpdate 注册或更新账号资料
	RegisterOrUpdate(ctx context.Context, info *TelegramUserInfo) error

	// InitOwners 确保配置的 Owner 拥有 owner 角色
	InitOwners(ctx context.Context, ownerIDs []int64) error

	// Link 由管理员为目标账号绑定 GreenPulse 用户（用户不能自行绑定任意 uid）
	Link(ctx context.Context, targetID int64, uid string, linkedBy int64) error

	// ResolveUser 返回绑定的 GreenPulse 用户 ID，未绑定时返回 ErrNotLinked
	ResolveUser(ctx context.Context, telegramID int64) (string, error)

	// GrantAdmin 授予管理员角色（仅 Owner）
	GrantAdmin(ctx context.Context, targetID, grantedBy int64) error

	// RevokeAdmin 撤销管理员角色（仅 Owner）
	RevokeAdmin(ctx context.Context, targetID, revokedBy int64) error

	// ListAdmins 列出所有管理员
	ListAdmins(ctx context.Context) ([]*models.Account, error)

	// CheckOwner 检查是否为 Owner
	CheckOwner(ctx context.Context, telegramID int64) (bool, error)

	// CheckAdmin 检查是否为 Admin+
	CheckAdmin(ctx context.Context, telegramID int64) (bool, error)

	// UpdateActivity 更新活跃时间
	UpdateActivity(ctx context.Context, telegramID int64)
}

// TelegramUserInfo Telegram 用户信息 DTO
type TelegramUserInfo struct {
	TelegramID int64
	Username   string
	FirstName  string
}

// AccountServiceImpl 账号服务实现
type AccountServiceImpl struct {
	repo repository.AccountRepository
}

// NewAccountService 创建账号服务
func NewAccountService(repo repository.AccountRepository) AccountService {
	return &AccountServiceImpl{repo: repo}
}

// RegisterOrUpdate 注册或更新账号资料
func (s *AccountServiceImpl) RegisterOrUpdate(ctx context.Context, info *TelegramUserInfo) error {
	account := &models.Account{
		TelegramID:   info.TelegramID,
		Username:     info.Username,
		FirstName:    info.FirstName,
		LastActiveAt: time.Now(),
	}
	if err := s.repo.CreateOrUpdate(ctx, account); err != nil {
		logger.L().Errorf("Failed to register account %d: %v", info.TelegramID, err)
		return fmt.Errorf("failed to register account: %w", err)
	}
	logger.L().Infof("Account %d (%s) registered/updated", info.TelegramID, info.Username)
	return nil
}

// InitOwners 确保配置的 Owner 拥有 owner 角色
func (s *AccountServiceImpl) InitOwners(ctx context.Context, ownerIDs []int64) error {
	var failed []int64
	for _, ownerID := range ownerIDs {
		account := &models.Account{TelegramID: ownerID, Role: models.RoleOwner, LastActiveAt: time.Now()}
		if err := s.repo.CreateOrUpdate(ctx, account); err != nil {
			logger.L().Warnf("Failed to initialize owner %d: %v", ownerID, err)
			failed = append(failed, ownerID)
			continue
		}
		logger.L().Infof("Initialized owner: %d", ownerID)
	}
	if len(failed) > 0 {
		return fmt.Errorf("failed to initialize owners %v", failed)
	}
	return nil
}

// Link 绑定 GreenPulse 用户（仅 Admin+）
func (s *AccountServiceImpl) Link(ctx context.Context, targetID int64, uid string, linkedBy int64) error {
	linker, err := s.repo.GetByTelegramID(ctx, linkedBy)
	if err != nil {
		logger.L().Errorf("Linker %d not found: %v", linkedBy, err)
		return fmt.Errorf("linker not found")
	}
	if !linker.IsAdmin() {
		logger.L().Warnf("Account %d attempted to link %d without admin role", linkedBy, targetID)
		return fmt.Errorf("only admins can link accounts")
	}

	uid = strings.TrimSpace(uid)
	if uid == "" || strings.Contains(uid, "/") {
		return fmt.Errorf("invalid GreenPulse user id")
	}
	if err := s.repo.LinkUser(ctx, targetID, uid); err != nil {
		logger.L().Errorf("Failed to link account %d to %s: %v", targetID, uid, err)
		if errors.Is(err, repository.ErrAccountNotFound) {
			return fmt.Errorf("target user must send /start first")
		}
		return fmt.Errorf("link failed: %w", err)
	}
	logger.L().Infof("Account %d linked to user %s by %d", targetID, uid, linkedBy)
	return nil
}

// ResolveUser 返回绑定的 GreenPulse 用户 ID
func (s *AccountServiceImpl) ResolveUser(ctx context.Context, telegramID int64) (string, error) {
	account, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		if errors.Is(err, repository.ErrAccountNotFound) {
			return "", ErrNotLinked
		}
		return "", err
	}
	if !account.IsLinked() {
		return "", ErrNotLinked
	}
	return account.GreenPulseUID, nil
}

// GrantAdmin 授予管理员角色（包含业务验证）
func (s *AccountServiceImpl) GrantAdmin(ctx context.Context, targetID, grantedBy int64) error {
	granter, err := s.repo.GetByTelegramID(ctx, grantedBy)
	if err != nil {
		logger.L().Errorf("Granter %d not found: %v", grantedBy, err)
		return fmt.Errorf("granter not found")
	}
	if !granter.IsOwner() {
		logger.L().Warnf("Account %d attempted to grant admin without owner role", grantedBy)
		return fmt.Errorf("only owners can grant admin")
	}

	target, err := s.repo.GetByTelegramID(ctx, targetID)
	if err != nil {
		logger.L().Errorf("Target account %d not found: %v", targetID, err)
		return fmt.Errorf("target user not found")
	}
	if target.IsAdmin() {
		return fmt.Errorf("user is already an admin")
	}

	if err := s.repo.SetRole(ctx, targetID, models.RoleAdmin, grantedBy); err != nil {
		logger.L().Errorf("Failed to grant admin to %d: %v", targetID, err)
		return fmt.Errorf("grant failed: %w", err)
	}
	logger.L().Infof("Account %d granted admin by %d", targetID, grantedBy)
	return nil
}

// RevokeAdmin 撤销管理员角色（包含业务验证）
func (s *AccountServiceImpl) RevokeAdmin(ctx context.Context, targetID, revokedBy int64) error {
	revoker, err := s.repo.GetByTelegramID(ctx, revokedBy)
	if err != nil {
		logger.L().Errorf("Revoker %d not found: %v", revokedBy, err)
		return fmt.Errorf("revoker not found")
	}
	if !revoker.IsOwner() {
		logger.L().Warnf("Account %d attempted to revoke admin without owner role", revokedBy)
		return fmt.Errorf("only owners can revoke admin")
	}

	target, err := s.repo.GetByTelegramID(ctx, targetID)
	if err != nil {
		return fmt.Errorf("target user not found")
	}
	if target.IsOwner() {
		return fmt.Errorf("cannot revoke an owner")
	}
	if !target.IsAdmin() {
		return fmt.Errorf("user is not an admin")
	}

	if err := s.repo.SetRole(ctx, targetID, models.RoleUser, 0); err != nil {
		logger.L().Errorf("Failed to revoke admin from %d: %v", targetID, err)
		return fmt.Errorf("revoke failed: %w", err)
	}
	logger.L().Infof("Account %d admin revoked by %d", targetID, revokedBy)
	return nil
}

// ListAdmins 列出所有管理员
func (s *AccountServiceImpl) ListAdmins(ctx context.Context) ([]*models.Account, error) {
	admins, err := s.repo.ListAdmins(ctx)
	if err != nil {
		logger.L().Errorf("Failed to list admins: %v", err)
		return nil, fmt.Errorf("failed to list admins")
	}
	return admins, nil
}

// CheckOwner 检查是否为 Owner
func (s *AccountServiceImpl) CheckOwner(ctx context.Context, telegramID int64) (bool, error) {
	account, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return false, err
	}
	return account.IsOwner(), nil
}

// CheckAdmin 检查是否为 Admin+
func (s *AccountServiceImpl) CheckAdmin(ctx context.Context, telegramID int64) (bool, error) {
	account, err := s.repo.GetByTelegramID(ctx, telegramID)
	if err != nil {
		return false, err
	}
	return account.IsAdmin(), nil
}

// UpdateActivity 更新活跃时间（失败只记录日志）
func (s *AccountServiceImpl) UpdateActivity(ctx context.Context, telegramID int64) {
	if err := s.repo.UpdateLastActive(ctx, telegramID); err != nil {
		logger.L().Warnf("Failed to update activity for %d: %v", telegramID, err)
	}
}
