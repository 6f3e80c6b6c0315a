package repository

import (
	"context"

	"greenpulse/internal/greenpulse/models"
)

// DocumentStore 文档存储访问接口
// 路径按 集合/文档/子集合/... 交替组成：集合路径长度为奇数，文档路径长度为偶数。
type DocumentStore interface {
	// FetchCollection 返回集合中的全部文档（不做服务端过滤）
	FetchCollection(ctx context.Context, path []string) ([]models.RawDocument, error)

	// FetchDocument 读取单个文档，不存在时返回 nil, nil
	FetchDocument(ctx context.Context, path []string) (*models.RawDocument, error)

	// AtomicWrite 原子执行一组写操作：全部成功或全部不生效
	AtomicWrite(ctx context.Context, ops []models.WriteOp) error
}
