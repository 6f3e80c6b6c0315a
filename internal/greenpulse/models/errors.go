package models

import (
	"errors"
	"fmt"
)

// ErrorKind 机器可读的错误类别
type ErrorKind string

const (
	ErrKindNormalization ErrorKind = "normalization"
	ErrKindValidation    ErrorKind = "validation"
	ErrKindSubmission    ErrorKind = "submission"
	ErrKindBusy          ErrorKind = "busy"
	ErrKindConsistency   ErrorKind = "consistency"
)

// KindedError 所有领域错误都能给出类别和可展示的提示
type KindedError interface {
	error
	Kind() ErrorKind
	UserMessage() string
}

// NormalizationError 原始文档结构不可用（例如缺少文档 ID）
type NormalizationError struct {
	DocumentID string
	RecordKind RecordKind
	Reason     string
}

func (e *NormalizationError) Error() string {
	return fmt.Sprintf("normalize %s document %q: %s", e.RecordKind, e.DocumentID, e.Reason)
}

func (e *NormalizationError) Kind() ErrorKind { return ErrKindNormalization }

func (e *NormalizationError) UserMessage() string {
	return "Some records could not be read and were skipped."
}

// ValidationError 捐赠请求参数不合法，在任何写入之前返回
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Kind() ErrorKind { return ErrKindValidation }

func (e *ValidationError) UserMessage() string { return e.Message }

// SubmissionState 单次捐赠提交的状态
type SubmissionState string

const (
	StateValidated SubmissionState = "validated"
	StateWriting   SubmissionState = "writing"
	StateCommitted SubmissionState = "committed"
	StateFailed    SubmissionState = "failed"
)

// SubmissionError 写入存储失败
type SubmissionError struct {
	Message   string
	Retryable bool
	State     SubmissionState
	Err       error
}

func (e *SubmissionError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Kind() ErrorKind { return ErrKindSubmission }

func (e *SubmissionError) UserMessage() string { return e.Message }

// BusyError 同一个协调器上已有提交在进行
type BusyError struct{}

func (e *BusyError) Error() string { return "a donation is already being submitted" }

func (e *BusyError) Kind() ErrorKind { return ErrKindBusy }

func (e *BusyError) UserMessage() string {
	return "Your previous donation is still being processed. Please wait."
}

// ConsistencyWarning totalCredits 缓存总额与明细合计不一致（非致命）
type ConsistencyWarning struct {
	UserID   string
	Cached   float64
	Computed float64
}

func (w *ConsistencyWarning) Error() string {
	return fmt.Sprintf("credit total mismatch for user %q: cached=%.2f computed=%.2f", w.UserID, w.Cached, w.Computed)
}

func (w *ConsistencyWarning) Kind() ErrorKind { return ErrKindConsistency }

func (w *ConsistencyWarning) UserMessage() string {
	return "Your credit balance is being recalculated from your history."
}

// KindOf 返回错误链中第一个领域错误的类别
func KindOf(err error) (ErrorKind, bool) {
	var kinded KindedError
	if errors.As(err, &kinded) {
		return kinded.Kind(), true
	}
	return "", false
}
