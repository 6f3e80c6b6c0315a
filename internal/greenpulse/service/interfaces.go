package service

import (
	"context"
	"time"

	"greenpulse/internal/greenpulse/derive"
	"greenpulse/internal/greenpulse/models"
)

// ImpactService 读取侧派生管线：拉取原始文档 → 归一化 → 聚合 → 计算
type ImpactService interface {
	// Dashboard 用户影响力总览
	Dashboard(ctx context.Context, userID string, months int) (*Dashboard, error)

	// Ledger 用户的合并流水（捐赠 + 到账），按类别筛选
	Ledger(ctx context.Context, userID string, filter models.LedgerFilter) ([]models.Transaction, error)

	// CommunityGoal 社区目标计数器
	CommunityGoal(ctx context.Context) (*CommunityGoal, error)

	// BillCoverage 用户可信积分抵扣账单的比例
	BillCoverage(ctx context.Context, userID string, bill float64) (*BillCoverage, error)
}

// DonationService 捐赠写入
type DonationService interface {
	// SubmitDonation 校验并原子写入捐赠事件与社区计数器
	SubmitDonation(ctx context.Context, req DonationRequest) (*models.DonationEvent, error)
}

// DonationRequest 捐赠请求
type DonationRequest struct {
	UserID          string                 `json:"userId"`
	AmountCoins     float64                `json:"amountCoins"`
	BeneficiaryType models.BeneficiaryType `json:"beneficiaryType"`
	BeneficiaryID   *string                `json:"beneficiaryId,omitempty"`
}

// MonthlySeries 三条固定长度的月度序列（由旧到新）
type MonthlySeries struct {
	Generated []derive.Bucket `json:"generated"`
	Usage     []derive.Bucket `json:"usage"`
	Donated   []derive.Bucket `json:"donated"`
}

// Dashboard 影响力总览视图模型
type Dashboard struct {
	UserID             string               `json:"userId"`
	GeneratedAt        time.Time            `json:"generatedAt"`
	CoinsGenerated     float64              `json:"coinsGenerated"`
	CoinsDonated       float64              `json:"coinsDonated"`
	FamiliesHelped     int                  `json:"familiesHelped"`
	UsageKWh           float64              `json:"usageKwh"`
	UsageChangePercent float64              `json:"usageChangePercent"` // 本月相对上月
	Credits            derive.CreditSummary `json:"credits"`
	ConsistencyWarning string               `json:"consistencyWarning,omitempty"`
	Monthly            MonthlySeries        `json:"monthly"`
	Devices            []derive.Bucket      `json:"devices"`
	Beneficiaries      []derive.Bucket      `json:"beneficiaries"`
	AxisMax            float64              `json:"axisMax"`
	AxisTicks          []float64            `json:"axisTicks"`
	SkippedDocuments   int                  `json:"skippedDocuments"`
}

// CommunityGoal 社区目标视图模型
type CommunityGoal struct {
	models.CommunityGoalCounter
	TotalCoins     float64 `json:"totalCoins"`
	FamiliesHelped int     `json:"familiesHelped"`
	LastUpdatedOK  bool    `json:"lastUpdatedKnown"`
}

// BillCoverage 账单抵扣视图模型
type BillCoverage struct {
	UserID  string          `json:"userId"`
	Credits float64         `json:"credits"`
	Rate    float64         `json:"coinToCurrency"`
	Result  derive.Coverage `json:"coverage"`
}
