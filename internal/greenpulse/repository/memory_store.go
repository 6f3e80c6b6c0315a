package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"greenpulse/internal/greenpulse/models"
)

// MemoryStore 进程内文档存储，用于本地运行与测试
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[string]map[string]interface{}

	// FailOp 非 nil 时在应用每个写操作前调用，返回错误即中止整批（模拟写入中途失败）
	FailOp func(index int, op models.WriteOp) error
}

// NewMemoryStore 创建空的内存存储
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[string]map[string]interface{})}
}

// Put 直接写入（覆盖）一个文档
func (s *MemoryStore) Put(path []string, data map[string]interface{}) error {
	if err := ValidateDocumentPath(path); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.docs[JoinPath(path)] = cloneMap(data)
	return nil
}

// FetchCollection 返回集合下的直接子文档，按文档 ID 排序
func (s *MemoryStore) FetchCollection(ctx context.Context, path []string) ([]models.RawDocument, error) {
	if err := ValidateCollectionPath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prefix := JoinPath(path) + "/"
	s.mu.RLock()
	defer s.mu.RUnlock()

	var docs []models.RawDocument
	for key, data := range s.docs {
		rest, ok := strings.CutPrefix(key, prefix)
		if !ok || strings.Contains(rest, "/") {
			continue
		}
		docs = append(docs, models.RawDocument{
			ID:   rest,
			Path: append(append([]string{}, path...), rest),
			Data: cloneMap(data),
		})
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// FetchDocument 读取单个文档
func (s *MemoryStore) FetchDocument(ctx context.Context, path []string) (*models.RawDocument, error) {
	if err := ValidateDocumentPath(path); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.docs[JoinPath(path)]
	if !ok {
		return nil, nil
	}
	return &models.RawDocument{
		ID:   path[len(path)-1],
		Path: append([]string{}, path...),
		Data: cloneMap(data),
	}, nil
}

// AtomicWrite 在副本上应用全部操作，全部成功后才提交
func (s *MemoryStore) AtomicWrite(ctx context.Context, ops []models.WriteOp) error {
	if err := ValidateOps(ops); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	staged := make(map[string]map[string]interface{})
	lookup := func(key string) (map[string]interface{}, bool) {
		if doc, ok := staged[key]; ok {
			return doc, true
		}
		doc, ok := s.docs[key]
		if !ok {
			return nil, false
		}
		return cloneMap(doc), true
	}

	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return err
		}
		if s.FailOp != nil {
			if err := s.FailOp(i, op); err != nil {
				return fmt.Errorf("apply op %d (%s %s): %w", i, op.Kind, JoinPath(op.Path), err)
			}
		}

		key := JoinPath(op.Path)
		switch op.Kind {
		case models.OpCreate:
			if _, exists := lookup(key); exists {
				return fmt.Errorf("create %s: document already exists", key)
			}
			staged[key] = cloneMap(op.Data)
		case models.OpIncrement:
			doc, exists := lookup(key)
			if !exists {
				doc = map[string]interface{}{}
			}
			for field, delta := range op.Increments {
				doc[field] = numberValue(doc[field]) + delta
			}
			for field, value := range op.Set {
				doc[field] = value
			}
			staged[key] = doc
		}
	}

	for key, doc := range staged {
		s.docs[key] = doc
	}
	return nil
}

func cloneMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func numberValue(v interface{}) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	case int32:
		return float64(n)
	case int64:
		return float64(n)
	}
	return 0
}
