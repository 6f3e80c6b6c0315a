package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/logger"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/writeconcern"
)

// parentField 子集合文档所属的父文档路径（如 "users/u1"）
const parentField = "_parent"

// MongoStore 文档存储的 MongoDB 实现
// 路径的最后一个集合段对应 MongoDB 集合，父文档路径写入 _parent 字段，文档 ID 存为字符串 _id。
type MongoStore struct {
	db *mongo.Database
}

// NewMongoStore 创建 MongoDB 文档存储
func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{db: db}
}

// FetchCollection 读取集合全部文档
func (s *MongoStore) FetchCollection(ctx context.Context, path []string) ([]models.RawDocument, error) {
	if err := ValidateCollectionPath(path); err != nil {
		return nil, err
	}

	coll := s.db.Collection(path[len(path)-1])
	filter := bson.M{}
	if len(path) > 1 {
		filter[parentField] = JoinPath(path[:len(path)-1])
	}

	cursor, err := coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "_id", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", JoinPath(path), err)
	}
	defer cursor.Close(ctx)

	var docs []models.RawDocument
	for cursor.Next(ctx) {
		var raw bson.M
		if err := cursor.Decode(&raw); err != nil {
			return nil, fmt.Errorf("failed to decode document in %s: %w", JoinPath(path), err)
		}
		docs = append(docs, toRawDocument(path, raw))
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate %s: %w", JoinPath(path), err)
	}

	return docs, nil
}

// FetchDocument 读取单个文档
func (s *MongoStore) FetchDocument(ctx context.Context, path []string) (*models.RawDocument, error) {
	if err := ValidateDocumentPath(path); err != nil {
		return nil, err
	}

	coll, filter := s.documentTarget(path)
	var raw bson.M
	if err := coll.FindOne(ctx, filter).Decode(&raw); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", JoinPath(path), err)
	}

	doc := toRawDocument(path[:len(path)-1], raw)
	return &doc, nil
}

// AtomicWrite 在事务中执行全部写操作
// 部署不支持事务（单机 mongod）时退回逐条写入，失败则按相反顺序撤销已完成的写入。
func (s *MongoStore) AtomicWrite(ctx context.Context, ops []models.WriteOp) error {
	if err := ValidateOps(ops); err != nil {
		return err
	}

	session, err := s.db.Client().StartSession()
	if err != nil {
		return fmt.Errorf("start mongo session: %w", err)
	}
	defer session.EndSession(ctx)

	txnOpts := options.Transaction().SetWriteConcern(writeconcern.Majority())
	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		for i, op := range ops {
			if err := s.apply(sc, op); err != nil {
				return nil, fmt.Errorf("apply op %d (%s %s): %w", i, op.Kind, JoinPath(op.Path), err)
			}
		}
		return nil, nil
	}, txnOpts)

	if err != nil {
		if isTransactionNotSupported(err) {
			logger.L().Warn("MongoDB transactions unavailable, falling back to compensated writes")
			return s.atomicWriteWithoutTransaction(ctx, ops)
		}
		return fmt.Errorf("atomic write transaction failed: %w", err)
	}
	return nil
}

func (s *MongoStore) atomicWriteWithoutTransaction(ctx context.Context, ops []models.WriteOp) error {
	applied := make([]models.WriteOp, 0, len(ops))
	for i, op := range ops {
		if err := s.apply(ctx, op); err != nil {
			failed := fmt.Errorf("apply op %d (%s %s) (non-txn): %w", i, op.Kind, JoinPath(op.Path), err)
			if undoErr := s.undo(ctx, applied); undoErr != nil {
				logger.L().Errorf("Compensation failed after partial write: %v", undoErr)
				return &CompensationError{Failed: failed, UndoErr: undoErr}
			}
			return failed
		}
		applied = append(applied, op)
	}
	return nil
}

// undo 按相反顺序撤销已应用的操作：删除新建文档，反向自增
func (s *MongoStore) undo(ctx context.Context, applied []models.WriteOp) error {
	for i := len(applied) - 1; i >= 0; i-- {
		op := applied[i]
		coll, filter := s.documentTarget(op.Path)
		switch op.Kind {
		case models.OpCreate:
			if _, err := coll.DeleteOne(ctx, filter); err != nil {
				return fmt.Errorf("undo create %s: %w", JoinPath(op.Path), err)
			}
		case models.OpIncrement:
			if _, err := coll.UpdateOne(ctx, filter, bson.M{"$inc": negate(op.Increments)}); err != nil {
				return fmt.Errorf("undo increment %s: %w", JoinPath(op.Path), err)
			}
		}
	}
	return nil
}

func (s *MongoStore) apply(ctx context.Context, op models.WriteOp) error {
	coll, filter := s.documentTarget(op.Path)
	switch op.Kind {
	case models.OpCreate:
		doc := bson.M{}
		for k, v := range op.Data {
			doc[k] = v
		}
		for k, v := range filter {
			doc[k] = v
		}
		_, err := coll.InsertOne(ctx, doc)
		return err
	case models.OpIncrement:
		update := bson.M{"$inc": increments(op.Increments)}
		if len(op.Set) > 0 {
			update["$set"] = bson.M(op.Set)
		}
		_, err := coll.UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
		return err
	}
	return fmt.Errorf("%w: unknown op kind %q", ErrInvalidPath, op.Kind)
}

// documentTarget 文档路径 → (集合, 过滤条件)
func (s *MongoStore) documentTarget(path []string) (*mongo.Collection, bson.M) {
	coll := s.db.Collection(path[len(path)-2])
	filter := bson.M{"_id": path[len(path)-1]}
	if len(path) > 2 {
		filter[parentField] = JoinPath(path[:len(path)-2])
	}
	return coll, filter
}

// SupportsTransactions 部署是否支持多文档事务（副本集成员或 mongos）
// 不支持时 AtomicWrite 退回补偿写入，进程在两次写入之间崩溃会留下部分状态。
func (s *MongoStore) SupportsTransactions(ctx context.Context) (bool, error) {
	var hello bson.M
	if err := s.db.RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
		return false, fmt.Errorf("hello command failed: %w", err)
	}
	if _, ok := hello["setName"]; ok {
		return true, nil
	}
	if msg, _ := hello["msg"].(string); msg == "isdbgrid" {
		return true, nil
	}
	return false, nil
}

// EnsureIndexes 确保索引存在
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	parentIndex := []mongo.IndexModel{
		{Keys: bson.D{{Key: parentField, Value: 1}}},
	}
	for _, name := range []string{EnergyRecordsCollection, UsageRecordsCollection} {
		if _, err := s.db.Collection(name).Indexes().CreateMany(ctx, parentIndex); err != nil {
			return fmt.Errorf("create %s indexes: %w", name, err)
		}
	}

	donationIndexes := []mongo.IndexModel{
		// userId + createdAt（按用户查看捐赠）
		{
			Keys: bson.D{
				{Key: "userId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}
	if _, err := s.db.Collection(DonationCollection).Indexes().CreateMany(ctx, donationIndexes); err != nil {
		return fmt.Errorf("create donation indexes: %w", err)
	}
	return nil
}

func toRawDocument(collectionPath []string, raw bson.M) models.RawDocument {
	id := idString(raw["_id"])
	data := make(map[string]interface{}, len(raw))
	for k, v := range raw {
		if k == "_id" || k == parentField {
			continue
		}
		data[k] = plainValue(v)
	}
	return models.RawDocument{
		ID:   id,
		Path: append(append([]string{}, collectionPath...), id),
		Data: data,
	}
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return id
	case primitive.ObjectID:
		return id.Hex()
	case nil:
		return ""
	}
	return fmt.Sprint(v)
}

// plainValue 将 BSON 容器类型转换为普通 map / slice，时间与数值类型保持原样
func plainValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		out := make(map[string]interface{}, len(val))
		for k, inner := range val {
			out[k] = plainValue(inner)
		}
		return out
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = plainValue(e.Value)
		}
		return out
	case bson.A:
		out := make([]interface{}, len(val))
		for i, inner := range val {
			out[i] = plainValue(inner)
		}
		return out
	}
	return v
}

func increments(m map[string]float64) bson.M {
	out := bson.M{}
	for k, v := range m {
		out[k] = v
	}
	return out
}

func negate(m map[string]float64) bson.M {
	out := bson.M{}
	for k, v := range m {
		out[k] = -v
	}
	return out
}

func isTransactionNotSupported(err error) bool {
	var cmdErr mongo.CommandError
	if errors.As(err, &cmdErr) {
		if cmdErr.Code == 20 || strings.EqualFold(cmdErr.Name, "IllegalOperation") {
			return true
		}
		if strings.Contains(strings.ToLower(cmdErr.Message), "transaction numbers are only allowed on a replica set") {
			return true
		}
	}
	return strings.Contains(strings.ToLower(err.Error()), "transaction numbers are only allowed on a replica set")
}
