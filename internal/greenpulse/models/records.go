package models

import "time"

// RecordKind 原始文档类别
type RecordKind string

const (
	KindEnergy   RecordKind = "energy"   // 发电记录（产生 coins）
	KindUsage    RecordKind = "usage"    // 用电记录（kWh 消耗）
	KindDonation RecordKind = "donation" // 捐赠记录
)

// Period 记录的统计周期
type Period string

const (
	PeriodUnknown Period = ""
	PeriodWeekly  Period = "Weekly"
	PeriodMonthly Period = "Monthly"
	PeriodYearly  Period = "Yearly"
)

// BeneficiaryType 捐赠受益方式
type BeneficiaryType string

const (
	BeneficiaryAuto   BeneficiaryType = "auto"   // 自动分配给社区项目
	BeneficiaryManual BeneficiaryType = "manual" // 指定受益人
)

// Valid 是否为已知的受益方式
func (t BeneficiaryType) Valid() bool {
	return t == BeneficiaryAuto || t == BeneficiaryManual
}

// TimestampSource 时间戳的解析来源
type TimestampSource string

const (
	TimestampNative   TimestampSource = "native"   // 存储原生时间戳对象
	TimestampDate     TimestampSource = "date"     // 语言原生时间值
	TimestampString   TimestampSource = "string"   // ISO / 本地化字符串
	TimestampFallback TimestampSource = "fallback" // 无法解析，使用当前时间
)

// RawDocument 文档存储返回的原始文档，字段无 schema 保证
type RawDocument struct {
	ID   string
	Path []string
	Data map[string]interface{}
}

// Field 读取字段，不存在时返回 nil
func (d RawDocument) Field(name string) interface{} {
	if d.Data == nil {
		return nil
	}
	return d.Data[name]
}

// CanonicalRecord 归一化后的记录
// EnergyRecord、UsageRecord 与 DonationEvent 在派生管线中都以这个形态流动
type CanonicalRecord struct {
	ID                  string
	Kind                RecordKind
	UserID              string
	Amount              float64 // kWh 或 coins，永不为负
	AmountCoerced       bool    // 原始金额缺失或非数值，已归零
	RecordedAt          time.Time
	TimestampSource     TimestampSource
	TimestampIsFallback bool
	Device              string
	Period              Period
	BeneficiaryType     BeneficiaryType
	BeneficiaryID       string
}

// HasTime 时间戳是否来自文档本身
func (r CanonicalRecord) HasTime() bool {
	return !r.TimestampIsFallback && !r.RecordedAt.IsZero()
}

// DonationEvent 捐赠事件（创建后不可变）
type DonationEvent struct {
	ID              string          `bson:"_id" firestore:"-" json:"id"`
	UserID          string          `bson:"userId" firestore:"userId" json:"userId"`
	AmountCoins     float64         `bson:"amountCoins" firestore:"amountCoins" json:"amountCoins"`
	BeneficiaryType BeneficiaryType `bson:"beneficiaryType" firestore:"beneficiaryType" json:"beneficiaryType"`
	BeneficiaryID   *string         `bson:"beneficiaryId" firestore:"beneficiaryId" json:"beneficiaryId"`
	CreatedAt       time.Time       `bson:"createdAt" firestore:"createdAt" json:"createdAt"`
}

// Document 转换为写入存储的字段集合
func (e *DonationEvent) Document() map[string]interface{} {
	var beneficiaryID interface{}
	if e.BeneficiaryID != nil {
		beneficiaryID = *e.BeneficiaryID
	}
	return map[string]interface{}{
		"userId":          e.UserID,
		"amountCoins":     e.AmountCoins,
		"beneficiaryType": string(e.BeneficiaryType),
		"beneficiaryId":   beneficiaryID,
		"createdAt":       e.CreatedAt,
	}
}
