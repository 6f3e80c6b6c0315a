package repository

import (
	"context"
	"fmt"

	"greenpulse/internal/greenpulse/models"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore 文档存储的 Firestore 实现，直接使用原生子集合
type FirestoreStore struct {
	client *firestore.Client
}

// NewFirestoreStore 连接 Firestore（设置 FIRESTORE_EMULATOR_HOST 时连接模拟器）
func NewFirestoreStore(ctx context.Context, projectID string) (*FirestoreStore, error) {
	if projectID == "" {
		return nil, fmt.Errorf("firestore project id cannot be empty")
	}
	client, err := firestore.NewClient(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to create firestore client: %w", err)
	}
	return &FirestoreStore{client: client}, nil
}

// Close 关闭客户端
func (s *FirestoreStore) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}

// FetchCollection 读取集合全部文档
func (s *FirestoreStore) FetchCollection(ctx context.Context, path []string) ([]models.RawDocument, error) {
	if err := ValidateCollectionPath(path); err != nil {
		return nil, err
	}

	snaps, err := s.client.Collection(JoinPath(path)).Documents(ctx).GetAll()
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", JoinPath(path), err)
	}

	docs := make([]models.RawDocument, 0, len(snaps))
	for _, snap := range snaps {
		docs = append(docs, models.RawDocument{
			ID:   snap.Ref.ID,
			Path: append(append([]string{}, path...), snap.Ref.ID),
			Data: snap.Data(),
		})
	}
	return docs, nil
}

// FetchDocument 读取单个文档
func (s *FirestoreStore) FetchDocument(ctx context.Context, path []string) (*models.RawDocument, error) {
	if err := ValidateDocumentPath(path); err != nil {
		return nil, err
	}

	snap, err := s.client.Doc(JoinPath(path)).Get(ctx)
	if err != nil {
		if status.Code(err) == codes.NotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get %s: %w", JoinPath(path), err)
	}
	return &models.RawDocument{
		ID:   snap.Ref.ID,
		Path: append([]string{}, path...),
		Data: snap.Data(),
	}, nil
}

// AtomicWrite 在一个 Firestore 事务中执行全部写操作
func (s *FirestoreStore) AtomicWrite(ctx context.Context, ops []models.WriteOp) error {
	if err := ValidateOps(ops); err != nil {
		return err
	}

	err := s.client.RunTransaction(ctx, func(ctx context.Context, tx *firestore.Transaction) error {
		for i, op := range ops {
			ref := s.client.Doc(JoinPath(op.Path))
			var err error
			switch op.Kind {
			case models.OpCreate:
				err = tx.Create(ref, op.Data)
			case models.OpIncrement:
				fields := make(map[string]interface{}, len(op.Increments)+len(op.Set))
				for field, delta := range op.Increments {
					fields[field] = firestore.Increment(delta)
				}
				for field, value := range op.Set {
					fields[field] = value
				}
				err = tx.Set(ref, fields, firestore.MergeAll)
			}
			if err != nil {
				return fmt.Errorf("apply op %d (%s %s): %w", i, op.Kind, JoinPath(op.Path), err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("atomic write transaction failed: %w", err)
	}
	return nil
}
