package derive

import (
	"fmt"
	"sort"
	"time"

	"greenpulse/internal/greenpulse/models"
)

// CommunityPoolLabel 自动分配捐赠的对方名称
const CommunityPoolLabel = "Community pool"

// LedgerOptions 流水构建参数
type LedgerOptions struct {
	UserID string    // 非空时只保留该用户的捐赠
	Now    time.Time // 相对日期标签的参照时间，零值取当前时间
}

// BuildLedger 合并捐赠（负数）与到账（正数）为一个按时间倒序的流水列表
// 时间戳无法解析的条目排在最后；日期标签在构建时一次性计算。
func BuildLedger(donations []models.CanonicalRecord, credits models.CreditLedgerEntry, opts LedgerOptions) []models.Transaction {
	now := opts.Now
	if now.IsZero() {
		now = time.Now()
	}

	txs := make([]models.Transaction, 0, len(donations)+len(credits.DonationHistory))
	for _, d := range donations {
		if d.Kind != models.KindDonation {
			continue
		}
		if opts.UserID != "" && d.UserID != opts.UserID {
			continue
		}
		counterparty := d.BeneficiaryID
		if counterparty == "" && d.BeneficiaryType != models.BeneficiaryManual {
			counterparty = CommunityPoolLabel
		}
		known := d.HasTime()
		txs = append(txs, models.Transaction{
			ID:             d.ID,
			Category:       models.CategoryDonation,
			Amount:         -d.Amount,
			Counterparty:   counterparty,
			Timestamp:      d.RecordedAt,
			TimestampKnown: known,
		})
	}

	for i, h := range credits.DonationHistory {
		txs = append(txs, models.Transaction{
			ID:             fmt.Sprintf("credit-%d", i),
			Category:       models.CategoryCredit,
			Amount:         h.Amount,
			Counterparty:   h.FromUserEmail,
			Timestamp:      h.Timestamp,
			TimestampKnown: h.TimestampOK && !h.Timestamp.IsZero(),
		})
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if txs[i].TimestampKnown != txs[j].TimestampKnown {
			return txs[i].TimestampKnown
		}
		if !txs[i].TimestampKnown {
			return false
		}
		return txs[i].Timestamp.After(txs[j].Timestamp)
	})

	for i := range txs {
		if txs[i].TimestampKnown {
			txs[i].DateLabel = RelativeDateLabel(txs[i].Timestamp, now)
		} else {
			txs[i].DateLabel = "Unknown date"
			txs[i].Timestamp = time.Time{}
		}
	}
	return txs
}

// Filter 对已构建的流水做类别筛选，不改变顺序
func Filter(txs []models.Transaction, filter models.LedgerFilter) []models.Transaction {
	var want models.TransactionCategory
	switch filter {
	case models.FilterCoins:
		want = models.CategoryDonation
	case models.FilterCredits:
		want = models.CategoryCredit
	default:
		return txs
	}

	filtered := make([]models.Transaction, 0, len(txs))
	for _, tx := range txs {
		if tx.Category == want {
			filtered = append(filtered, tx)
		}
	}
	return filtered
}

// RelativeDateLabel "Today"、"Yesterday"、"N days ago"（一周内），否则为日历日期
func RelativeDateLabel(t, now time.Time) string {
	t = t.In(now.Location())
	days := calendarDaysBetween(t, now)
	switch {
	case days <= 0:
		return "Today"
	case days == 1:
		return "Yesterday"
	case days < 7:
		return fmt.Sprintf("%d days ago", days)
	}
	return t.Format("Jan 2, 2006")
}

func calendarDaysBetween(from, to time.Time) int {
	a := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
