package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"greenpulse/internal/telegram/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// AccountCollection Bot 账号集合
const AccountCollection = "bot_users"

// MongoAccountRepository Bot 账号的 MongoDB 实现
type MongoAccountRepository struct {
	collection *mongo.Collection
}

// NewMongoAccountRepository 创建账号 Repository
func NewMongoAccountRepository(db *mongo.Database) AccountRepository {
	return &MongoAccountRepository{
		collection: db.Collection(AccountCollection),
	}
}

// CreateOrUpdate 创建或更新账号
func (r *MongoAccountRepository) CreateOrUpdate(ctx context.Context, account *models.Account) error {
	now := time.Now()
	account.UpdatedAt = now

	setFields := bson.M{
		"username":       account.Username,
		"first_name":     account.FirstName,
		"updated_at":     account.UpdatedAt,
		"last_active_at": account.LastActiveAt,
	}
	setOnInsert := bson.M{"created_at": now}

	// 指定了角色（如初始化 owner）时覆盖角色，否则新账号默认为普通用户
	if account.Role != "" {
		setFields["role"] = account.Role
	} else {
		setOnInsert["role"] = models.RoleUser
	}

	update := bson.M{"$set": setFields, "$setOnInsert": setOnInsert}
	_, err := r.collection.UpdateOne(ctx, bson.M{"telegram_id": account.TelegramID}, update, options.Update().SetUpsert(true))
	if err != nil {
		return fmt.Errorf("failed to create or update account: %w", err)
	}
	return nil
}

// GetByTelegramID 根据 Telegram ID 获取账号
func (r *MongoAccountRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*models.Account, error) {
	var account models.Account
	err := r.collection.FindOne(ctx, bson.M{"telegram_id": telegramID}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %d", ErrAccountNotFound, telegramID)
		}
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	return &account, nil
}

// LinkUser 绑定 GreenPulse 用户
func (r *MongoAccountRepository) LinkUser(ctx context.Context, telegramID int64, uid string) error {
	now := time.Now()
	update := bson.M{
		"$set": bson.M{
			"greenpulse_uid": uid,
			"linked_at":      now,
			"updated_at":     now,
		},
	}
	return r.updateExisting(ctx, telegramID, update, "link user")
}

// SetRole 设置角色
func (r *MongoAccountRepository) SetRole(ctx context.Context, telegramID int64, role string, grantedBy int64) error {
	now := time.Now()
	update := bson.M{}
	if grantedBy != 0 {
		update["$set"] = bson.M{
			"role":       role,
			"granted_by": grantedBy,
			"granted_at": now,
			"updated_at": now,
		}
	} else {
		update["$set"] = bson.M{"role": role, "updated_at": now}
		update["$unset"] = bson.M{"granted_by": "", "granted_at": ""}
	}
	return r.updateExisting(ctx, telegramID, update, "set role")
}

// UpdateLastActive 更新最后活跃时间
func (r *MongoAccountRepository) UpdateLastActive(ctx context.Context, telegramID int64) error {
	update := bson.M{"$set": bson.M{"last_active_at": time.Now()}}
	if _, err := r.collection.UpdateOne(ctx, bson.M{"telegram_id": telegramID}, update); err != nil {
		return fmt.Errorf("failed to update last active: %w", err)
	}
	return nil
}

// ListAdmins 列出所有管理员
func (r *MongoAccountRepository) ListAdmins(ctx context.Context) ([]*models.Account, error) {
	filter := bson.M{"role": bson.M{"$in": []string{models.RoleOwner, models.RoleAdmin}}}
	cursor, err := r.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "telegram_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list admins: %w", err)
	}
	defer cursor.Close(ctx)

	var admins []*models.Account
	if err := cursor.All(ctx, &admins); err != nil {
		return nil, fmt.Errorf("failed to decode admins: %w", err)
	}
	return admins, nil
}

// EnsureIndexes 确保索引存在
func (r *MongoAccountRepository) EnsureIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "telegram_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "role", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "greenpulse_uid", Value: 1}},
		},
	}

	if _, err := r.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (r *MongoAccountRepository) updateExisting(ctx context.Context, telegramID int64, update bson.M, action string) error {
	result, err := r.collection.UpdateOne(ctx, bson.M{"telegram_id": telegramID}, update)
	if err != nil {
		return fmt.Errorf("failed to %s: %w", action, err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %d", ErrAccountNotFound, telegramID)
	}
	return nil
}
