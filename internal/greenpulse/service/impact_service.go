package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"greenpulse/internal/greenpulse/derive"
	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/greenpulse/repository"
	"greenpulse/internal/logger"

	"golang.org/x/sync/errgroup"
)

// ImpactServiceImpl 影响力服务实现
// 不持有跨请求的缓存；每次调用都重新拉取并派生
type ImpactServiceImpl struct {
	store repository.DocumentStore
	opts  Options
}

// NewImpactService 创建影响力服务
func NewImpactService(store repository.DocumentStore, opts Options) ImpactService {
	return &ImpactServiceImpl{
		store: store,
		opts:  opts.withDefaults(),
	}
}

// userSnapshot 一次读取得到的用户相关文档（各集合独立读取，彼此可能不是同一时刻的快照）
type userSnapshot struct {
	energy    []models.RawDocument
	usage     []models.RawDocument
	donations []models.RawDocument
	credits   *models.RawDocument
}

// Dashboard 用户影响力总览
func (s *ImpactServiceImpl) Dashboard(ctx context.Context, userID string, months int) (*Dashboard, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &models.ValidationError{Field: "userId", Message: "user id is required"}
	}
	if months <= 0 {
		months = s.opts.ChartMonths
	}
	if months > MaxChartMonths {
		return nil, &models.ValidationError{Field: "months", Message: fmt.Sprintf("months must be between 1 and %d", MaxChartMonths)}
	}

	snap, err := s.fetchUser(ctx, userID, true)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().In(s.opts.Location)
	normalizer := derive.NewNormalizer(now, s.opts.Location)

	energy, skippedEnergy := normalizer.NormalizeAll(snap.energy, models.KindEnergy)
	usage, skippedUsage := normalizer.NormalizeAll(snap.usage, models.KindUsage)
	donations, skippedDonations := s.userDonations(normalizer, snap.donations, userID)
	s.recordSkipped(models.KindEnergy, skippedEnergy)
	s.recordSkipped(models.KindUsage, skippedUsage)
	s.recordSkipped(models.KindDonation, skippedDonations)

	credits := s.checkCredits(normalizer, snap.credits, userID)

	monthly := func(records []models.CanonicalRecord) []derive.Bucket {
		return derive.Aggregate(records, derive.Bucketing{By: derive.ByMonth, Months: months, Now: now})
	}

	dashboard := &Dashboard{
		UserID:         userID,
		GeneratedAt:    now,
		CoinsGenerated: derive.Sum(energy),
		CoinsDonated:   derive.Sum(donations),
		UsageKWh:       derive.Sum(usage),
		Credits:        credits,
		Monthly: MonthlySeries{
			Generated: monthly(energy),
			Usage:     monthly(usage),
			Donated:   monthly(donations),
		},
		Devices:          derive.Aggregate(energy, derive.Bucketing{By: derive.ByDevice, Now: now}),
		Beneficiaries:    derive.Aggregate(donations, derive.Bucketing{By: derive.ByBeneficiary, Now: now}),
		SkippedDocuments: len(skippedEnergy) + len(skippedUsage) + len(skippedDonations),
	}
	dashboard.FamiliesHelped = derive.FamiliesHelped(dashboard.CoinsDonated)
	if credits.Warning != nil {
		dashboard.ConsistencyWarning = credits.Warning.UserMessage()
	}

	lastTwo := derive.Aggregate(usage, derive.Bucketing{By: derive.ByMonth, Months: 2, Now: now})
	dashboard.UsageChangePercent = derive.PercentChange(lastTwo[1].Value, lastTwo[0].Value)

	var peak float64
	for _, series := range [][]derive.Bucket{dashboard.Monthly.Generated, dashboard.Monthly.Usage, dashboard.Monthly.Donated} {
		for _, b := range series {
			if b.Value > peak {
				peak = b.Value
			}
		}
	}
	dashboard.AxisMax = derive.NiceAxisMax(peak)
	dashboard.AxisTicks = derive.AxisTicks(dashboard.AxisMax, DefaultAxisSegments)

	return dashboard, nil
}

// Ledger 用户的合并流水
func (s *ImpactServiceImpl) Ledger(ctx context.Context, userID string, filter models.LedgerFilter) ([]models.Transaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &models.ValidationError{Field: "userId", Message: "user id is required"}
	}

	snap, err := s.fetchUser(ctx, userID, false)
	if err != nil {
		return nil, err
	}

	now := s.opts.Now().In(s.opts.Location)
	normalizer := derive.NewNormalizer(now, s.opts.Location)
	donations, skipped := s.userDonations(normalizer, snap.donations, userID)
	s.recordSkipped(models.KindDonation, skipped)

	entry := normalizer.NormalizeCreditLedger(snap.credits, userID)
	txs := derive.BuildLedger(donations, entry, derive.LedgerOptions{UserID: userID, Now: now})
	return derive.Filter(txs, filter), nil
}

// CommunityGoal 社区目标计数器
func (s *ImpactServiceImpl) CommunityGoal(ctx context.Context) (*CommunityGoal, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	started := time.Now()
	raw, err := s.store.FetchDocument(ctx, repository.CommunityGoalPath())
	s.opts.Metrics.ObserveStore("fetch_document", started)
	if err != nil {
		logger.L().Errorf("Failed to read community goal: %v", err)
		return nil, fmt.Errorf("failed to read community goal: %w", err)
	}

	goal := &CommunityGoal{}
	if raw != nil {
		normalizer := derive.NewNormalizer(s.opts.Now(), s.opts.Location)
		goal.AutoCoins, _ = derive.CoerceAmount(raw.Field("autoCoins"))
		goal.ManualCoins, _ = derive.CoerceAmount(raw.Field("manualCoins"))
		goal.LastUpdated, goal.LastUpdatedOK = normalizer.ResolveTime(raw.Field("lastUpdated"))
	}
	goal.TotalCoins = goal.Total()
	goal.FamiliesHelped = derive.FamiliesHelped(goal.TotalCoins)
	return goal, nil
}

// BillCoverage 用户可信积分抵扣账单的比例
func (s *ImpactServiceImpl) BillCoverage(ctx context.Context, userID string, bill float64) (*BillCoverage, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, &models.ValidationError{Field: "userId", Message: "user id is required"}
	}

	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	started := time.Now()
	raw, err := s.store.FetchDocument(ctx, repository.TotalCreditsPath(userID))
	s.opts.Metrics.ObserveStore("fetch_document", started)
	if err != nil {
		return nil, fmt.Errorf("failed to read credits for %s: %w", userID, err)
	}

	normalizer := derive.NewNormalizer(s.opts.Now(), s.opts.Location)
	credits := s.checkCredits(normalizer, raw, userID)
	return &BillCoverage{
		UserID:  userID,
		Credits: credits.Trusted,
		Rate:    s.opts.CoinToCurrency,
		Result:  derive.ConversionRate(credits.Trusted, s.opts.CoinToCurrency, bill),
	}, nil
}

// fetchUser 并发读取用户相关集合
func (s *ImpactServiceImpl) fetchUser(ctx context.Context, userID string, withRecords bool) (*userSnapshot, error) {
	ctx, cancel := s.storeContext(ctx)
	defer cancel()

	snap := &userSnapshot{}
	eg, egCtx := errgroup.WithContext(ctx)

	fetch := func(path []string, dst *[]models.RawDocument) {
		eg.Go(func() error {
			started := time.Now()
			docs, err := s.store.FetchCollection(egCtx, path)
			s.opts.Metrics.ObserveStore("fetch_collection", started)
			if err != nil {
				return fmt.Errorf("failed to fetch %s: %w", repository.JoinPath(path), err)
			}
			*dst = docs
			return nil
		})
	}

	if withRecords {
		fetch(repository.EnergyRecordsPath(userID), &snap.energy)
		fetch(repository.UsageRecordsPath(userID), &snap.usage)
	}
	fetch(repository.DonationsPath(), &snap.donations)
	eg.Go(func() error {
		started := time.Now()
		doc, err := s.store.FetchDocument(egCtx, repository.TotalCreditsPath(userID))
		s.opts.Metrics.ObserveStore("fetch_document", started)
		if err != nil {
			return fmt.Errorf("failed to fetch credits for %s: %w", userID, err)
		}
		snap.credits = doc
		return nil
	})

	if err := eg.Wait(); err != nil {
		logger.L().Errorf("Failed to load documents for user %s: %v", userID, err)
		return nil, err
	}
	return snap, nil
}

// userDonations 归一化捐赠集合并只保留该用户的记录
func (s *ImpactServiceImpl) userDonations(n *derive.Normalizer, docs []models.RawDocument, userID string) ([]models.CanonicalRecord, []error) {
	records, skipped := n.NormalizeAll(docs, models.KindDonation)
	return derive.FilterByUser(records, userID), skipped
}

func (s *ImpactServiceImpl) checkCredits(n *derive.Normalizer, raw *models.RawDocument, userID string) derive.CreditSummary {
	summary := derive.CheckCredits(n.NormalizeCreditLedger(raw, userID))
	if summary.Warning != nil {
		logger.L().Warnf("Credit total mismatch for user %s: cached=%.2f computed=%.2f",
			userID, summary.Warning.Cached, summary.Warning.Computed)
		s.opts.Metrics.ConsistencyWarning()
	}
	return summary
}

func (s *ImpactServiceImpl) recordSkipped(kind models.RecordKind, skipped []error) {
	s.opts.Metrics.NormalizationSkipped(string(kind), len(skipped))
}

func (s *ImpactServiceImpl) storeContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opts.StoreTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.opts.StoreTimeout)
}
