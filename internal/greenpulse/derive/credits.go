package derive

import (
	"math"
	"strings"

	"greenpulse/internal/greenpulse/models"
)

// creditTolerance 浮点合计比较的容差
const creditTolerance = 1e-6

// NormalizeCreditLedger 解析 totalCredits 聚合文档；文档不存在时返回空账本
func (n *Normalizer) NormalizeCreditLedger(raw *models.RawDocument, userID string) models.CreditLedgerEntry {
	entry := models.CreditLedgerEntry{UserID: userID}
	if raw == nil || raw.Data == nil {
		return entry
	}

	entry.TotalReceived, _ = CoerceAmount(raw.Field("totalReceived"))
	for _, item := range asList(raw.Field("donationHistory")) {
		fields, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		amount, _ := CoerceAmount(fields["amount"])
		h := models.CreditHistoryEntry{
			Amount:        amount,
			FromUserEmail: strings.TrimSpace(asString(fields["fromUserEmail"])),
		}
		h.Timestamp, h.TimestampOK = n.ResolveTime(fields["timestamp"])
		entry.DonationHistory = append(entry.DonationHistory, h)
	}
	return entry
}

// CreditSummary 经过一致性校验的积分余额
type CreditSummary struct {
	Trusted float64                    `json:"trusted"` // 可信余额：明细合计
	Cached  float64                    `json:"cached"`  // 文档中缓存的 totalReceived
	Warning *models.ConsistencyWarning `json:"-"`
}

// CheckCredits 校验缓存总额与明细合计
// 两者不一致时返回 ConsistencyWarning，并以明细合计为准（明细可自证，缓存字段不能）。
func CheckCredits(entry models.CreditLedgerEntry) CreditSummary {
	computed := entry.HistorySum()
	summary := CreditSummary{Trusted: computed, Cached: entry.TotalReceived}
	if math.Abs(computed-entry.TotalReceived) > creditTolerance {
		summary.Warning = &models.ConsistencyWarning{
			UserID:   entry.UserID,
			Cached:   entry.TotalReceived,
			Computed: computed,
		}
	}
	return summary
}

func asList(value interface{}) []interface{} {
	switch v := value.(type) {
	case []interface{}:
		return v
	case []map[string]interface{}:
		list := make([]interface{}, len(v))
		for i := range v {
			list[i] = v[i]
		}
		return list
	}
	return nil
}
