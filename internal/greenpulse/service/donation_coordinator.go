package service

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/greenpulse/repository"
	"greenpulse/internal/logger"
	"greenpulse/internal/metrics"

	"github.com/google/uuid"
)

// DonationCoordinator 捐赠提交协调器
// 状态：Validated → Writing → {Committed | Failed}；同一实例上重叠的提交直接返回 BusyError。
// 协调器内部不做自动重试，由调用方根据 SubmissionError.Retryable 决定。
type DonationCoordinator struct {
	store    repository.DocumentStore
	opts     Options
	inFlight atomic.Bool
	newID    func() string
}

// NewDonationCoordinator 创建捐赠协调器
func NewDonationCoordinator(store repository.DocumentStore, opts Options) *DonationCoordinator {
	return &DonationCoordinator{
		store: store,
		opts:  opts.withDefaults(),
		newID: uuid.NewString,
	}
}

// SubmitDonation 校验并原子写入捐赠事件与社区计数器增量
func (c *DonationCoordinator) SubmitDonation(ctx context.Context, req DonationRequest) (*models.DonationEvent, error) {
	if !c.inFlight.CompareAndSwap(false, true) {
		logger.L().Warnf("Rejected overlapping donation from user %s", req.UserID)
		c.opts.Metrics.Submission(metrics.OutcomeBusy, beneficiaryLabel(req.BeneficiaryType))
		return nil, &models.BusyError{}
	}
	defer c.inFlight.Store(false)

	event, err := c.validate(req)
	if err != nil {
		c.opts.Metrics.Submission(metrics.OutcomeRejected, beneficiaryLabel(req.BeneficiaryType))
		return nil, err
	}
	logger.L().Debugf("Donation %s %s: %.2f coins from %s", event.ID, models.StateValidated, event.AmountCoins, event.UserID)

	counterField := "autoCoins"
	if event.BeneficiaryType == models.BeneficiaryManual {
		counterField = "manualCoins"
	}
	ops := []models.WriteOp{
		models.CreateOp(repository.DonationPath(event.ID), event.Document()),
		models.IncrementOp(
			repository.CommunityGoalPath(),
			map[string]float64{counterField: event.AmountCoins},
			map[string]interface{}{"lastUpdated": event.CreatedAt},
		),
	}

	logger.L().Debugf("Donation %s %s", event.ID, models.StateWriting)
	writeCtx, cancel := c.writeContext(ctx)
	defer cancel()

	started := time.Now()
	err = c.store.AtomicWrite(writeCtx, ops)
	c.opts.Metrics.ObserveStore("atomic_write", started)
	if err != nil {
		retryable := repository.IsRetryable(err)
		logger.L().Errorf("Donation %s %s (retryable=%t): %v", event.ID, models.StateFailed, retryable, err)
		c.opts.Metrics.Submission(metrics.OutcomeFailed, string(event.BeneficiaryType))
		return nil, &models.SubmissionError{
			Message:   submissionMessage(retryable),
			Retryable: retryable,
			State:     models.StateFailed,
			Err:       err,
		}
	}

	logger.L().Infof("Donation %s %s: user=%s amount=%.2f type=%s",
		event.ID, models.StateCommitted, event.UserID, event.AmountCoins, event.BeneficiaryType)
	c.opts.Metrics.Submission(metrics.OutcomeCommitted, string(event.BeneficiaryType))
	return event, nil
}

// validate 在任何写入之前校验请求并构造事件
func (c *DonationCoordinator) validate(req DonationRequest) (*models.DonationEvent, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, &models.ValidationError{Field: "userId", Message: "user id is required"}
	}

	amount := req.AmountCoins
	if math.IsNaN(amount) || math.IsInf(amount, 0) || amount < c.opts.DonationMin || amount > c.opts.DonationMax {
		return nil, &models.ValidationError{
			Field:   "amountCoins",
			Message: fmt.Sprintf("amount must be between %g and %g coins", c.opts.DonationMin, c.opts.DonationMax),
		}
	}

	beneficiaryType := models.BeneficiaryType(strings.ToLower(strings.TrimSpace(string(req.BeneficiaryType))))
	if beneficiaryType == "" {
		beneficiaryType = models.BeneficiaryAuto
	}
	if !beneficiaryType.Valid() {
		return nil, &models.ValidationError{Field: "beneficiaryType", Message: "beneficiary type must be auto or manual"}
	}

	var beneficiaryID *string
	if req.BeneficiaryID != nil {
		if id := strings.TrimSpace(*req.BeneficiaryID); id != "" {
			beneficiaryID = &id
		}
	}
	if beneficiaryType == models.BeneficiaryManual && beneficiaryID == nil {
		return nil, &models.ValidationError{Field: "beneficiaryId", Message: "a beneficiary must be selected for manual donations"}
	}

	return &models.DonationEvent{
		ID:              c.newID(),
		UserID:          userID,
		AmountCoins:     amount,
		BeneficiaryType: beneficiaryType,
		BeneficiaryID:   beneficiaryID,
		CreatedAt:       c.opts.Now().UTC(),
	}, nil
}

// beneficiaryLabel 指标标签只取 auto/manual，其余输入归为 invalid，序列数有上界
func beneficiaryLabel(t models.BeneficiaryType) string {
	t = models.BeneficiaryType(strings.ToLower(strings.TrimSpace(string(t))))
	if t == "" {
		return string(models.BeneficiaryAuto)
	}
	if t.Valid() {
		return string(t)
	}
	return metrics.BeneficiaryInvalid
}

func (c *DonationCoordinator) writeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.opts.StoreTimeout)
}

func submissionMessage(retryable bool) string {
	if retryable {
		return "Your donation could not be saved. Please try again."
	}
	return "Your donation could not be saved. Please contact support before retrying."
}

// PerUserCoordinator 每个用户一个协调器：同一用户的重叠提交被拒绝，不同用户互不阻塞
// 协调器只在该用户有提交进行时存在，最后一个调用结束后移除。
type PerUserCoordinator struct {
	store        repository.DocumentStore
	opts         Options
	mu           sync.Mutex
	coordinators map[string]*userCoordinator
}

type userCoordinator struct {
	*DonationCoordinator
	refs int
}

// NewPerUserCoordinator 创建按用户划分的协调器
func NewPerUserCoordinator(store repository.DocumentStore, opts Options) *PerUserCoordinator {
	return &PerUserCoordinator{
		store:        store,
		opts:         opts,
		coordinators: make(map[string]*userCoordinator),
	}
}

// SubmitDonation 交给该用户的协调器处理
func (p *PerUserCoordinator) SubmitDonation(ctx context.Context, req DonationRequest) (*models.DonationEvent, error) {
	userID := strings.TrimSpace(req.UserID)
	c := p.acquire(userID)
	defer p.release(userID)
	return c.SubmitDonation(ctx, req)
}

func (p *PerUserCoordinator) acquire(userID string) *DonationCoordinator {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.coordinators[userID]
	if !ok {
		c = &userCoordinator{DonationCoordinator: NewDonationCoordinator(p.store, p.opts)}
		p.coordinators[userID] = c
	}
	c.refs++
	return c.DonationCoordinator
}

func (p *PerUserCoordinator) release(userID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	c, ok := p.coordinators[userID]
	if !ok {
		return
	}
	c.refs--
	if c.refs <= 0 {
		delete(p.coordinators, userID)
	}
}

// active 当前有提交进行的用户数
func (p *PerUserCoordinator) active() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.coordinators)
}
