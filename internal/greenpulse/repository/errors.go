package repository

import (
	"context"
	"errors"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// ErrInvalidPath 路径或写操作不合法
var ErrInvalidPath = errors.New("invalid document path")

// CompensationError 非事务写入失败后，撤销已完成的写入也失败了
// 此时存储处于部分写入状态，调用方不能直接重试。
type CompensationError struct {
	Failed  error // 原始写入错误
	UndoErr error // 撤销时的错误
}

func (e *CompensationError) Error() string {
	return fmt.Sprintf("write failed (%v) and compensation failed (%v)", e.Failed, e.UndoErr)
}

func (e *CompensationError) Unwrap() error { return e.Failed }

// IsRetryable 判断失败的原子写入是否可以安全重试
// 原子写入失败意味着没有任何操作生效，默认可重试；只有确定性错误与部分写入例外。
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var compErr *CompensationError
	if errors.As(err, &compErr) {
		return false
	}
	if errors.Is(err, ErrInvalidPath) || errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	if mongo.IsDuplicateKeyError(err) {
		return false
	}
	if mongo.IsTimeout(err) || mongo.IsNetworkError(err) {
		return true
	}

	if st, ok := status.FromError(err); ok {
		return retryableCode(st.Code())
	}
	return true
}

func retryableCode(code codes.Code) bool {
	switch code {
	case codes.InvalidArgument, codes.PermissionDenied, codes.Unauthenticated,
		codes.AlreadyExists, codes.FailedPrecondition, codes.NotFound, codes.Canceled:
		return false
	}
	return true
}
