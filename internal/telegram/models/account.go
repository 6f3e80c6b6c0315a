package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 角色常量
const (
	RoleOwner = "owner" // 最高权限，由 BOT_OWNER_IDS 配置
	RoleAdmin = "admin" // 管理员权限，由 Owner 授予
	RoleUser  = "user"  // 普通用户
)

// Account Bot 账号：Telegram 用户与 GreenPulse 用户的绑定，以及角色声明
type Account struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	TelegramID    int64              `bson:"telegram_id"`              // Telegram 用户 ID（唯一）
	GreenPulseUID string             `bson:"greenpulse_uid,omitempty"` // 绑定的 GreenPulse 用户 ID
	Username      string             `bson:"username,omitempty"`       // @username
	FirstName     string             `bson:"first_name"`               // 名字
	Role          string             `bson:"role"`                     // 角色：owner/admin/user
	GrantedBy     int64              `bson:"granted_by,omitempty"`     // 角色授予者的 TelegramID
	GrantedAt     *time.Time         `bson:"granted_at,omitempty"`     // 角色授予时间
	LinkedAt      *time.Time         `bson:"linked_at,omitempty"`      // 绑定时间
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
	LastActiveAt  time.Time          `bson:"last_active_at"`
}

// IsOwner 是否为 Owner
func (a *Account) IsOwner() bool {
	return a.Role == RoleOwner
}

// IsAdmin 是否为管理员（包括 Owner）
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleOwner
}

// IsLinked 是否已绑定 GreenPulse 用户
func (a *Account) IsLinked() bool {
	return a.GreenPulseUID != ""
}
