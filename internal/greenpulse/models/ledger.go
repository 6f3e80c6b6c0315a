package models

import "time"

// CreditHistoryEntry totalCredits 文档中的单条到账记录
type CreditHistoryEntry struct {
	Amount        float64
	FromUserEmail string
	Timestamp     time.Time
	TimestampOK   bool // false 表示原始时间戳缺失或无法解析
}

// CreditLedgerEntry 每个用户的 totalCredits 聚合文档（由外部流程维护，只读）
type CreditLedgerEntry struct {
	UserID          string
	TotalReceived   float64
	DonationHistory []CreditHistoryEntry
}

// HistorySum 到账明细合计
func (e CreditLedgerEntry) HistorySum() float64 {
	var sum float64
	for _, h := range e.DonationHistory {
		sum += h.Amount
	}
	return sum
}

// CommunityGoalCounter 社区目标计数器
type CommunityGoalCounter struct {
	AutoCoins   float64   `json:"autoCoins"`
	ManualCoins float64   `json:"manualCoins"`
	LastUpdated time.Time `json:"lastUpdated"`
}

// Total 社区累计 coins
func (c CommunityGoalCounter) Total() float64 {
	return c.AutoCoins + c.ManualCoins
}

// TransactionCategory 流水类别
type TransactionCategory string

const (
	CategoryDonation TransactionCategory = "donation"
	CategoryCredit   TransactionCategory = "credit"
)

// LedgerFilter 流水筛选条件
type LedgerFilter string

const (
	FilterAll     LedgerFilter = "all"
	FilterCoins   LedgerFilter = "coins"
	FilterCredits LedgerFilter = "credits"
)

// ParseLedgerFilter 解析筛选条件，未知值按 all 处理
func ParseLedgerFilter(s string) LedgerFilter {
	switch LedgerFilter(s) {
	case FilterCoins, FilterCredits:
		return LedgerFilter(s)
	default:
		return FilterAll
	}
}

// Transaction 合并后的单条流水
type Transaction struct {
	ID             string              `json:"id"`
	Category       TransactionCategory `json:"category"`
	Amount         float64             `json:"amount"` // 捐赠为负，到账为正
	Counterparty   string              `json:"counterparty,omitempty"`
	Timestamp      time.Time           `json:"timestamp"`
	TimestampKnown bool                `json:"timestampKnown"`
	DateLabel      string              `json:"dateLabel"`
}
