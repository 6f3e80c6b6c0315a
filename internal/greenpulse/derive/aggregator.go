package derive

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"greenpulse/internal/greenpulse/models"
)

// Dimension 聚合维度
type Dimension string

const (
	ByMonth       Dimension = "month"
	ByDevice      Dimension = "device"
	ByBeneficiary Dimension = "beneficiary"
)

// UnknownLabel 空键的占位标签
const UnknownLabel = "Unknown"

var monthAbbreviations = [...]string{"", "Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// Bucketing 聚合参数
type Bucketing struct {
	By     Dimension
	Months int       // 月份范围；非时间维度下 <= 0 表示全部历史
	Now    time.Time // 范围的参照时间，零值取当前时间
	// IncludeFallback 为 true 时，时间戳回退为“当前时间”的记录也参与按时间的聚合
	IncludeFallback bool
}

// Bucket 一个聚合桶
type Bucket struct {
	Key   string     `json:"key"`
	Label string     `json:"label"`
	Year  int        `json:"year,omitempty"`
	Month time.Month `json:"month,omitempty"`
	Value float64    `json:"value"`
	Count int        `json:"count"`
}

type monthKey struct {
	year  int
	month time.Month
}

// Aggregate 将规范记录折叠为桶
//
// 按月：总是返回 Months 个桶（由旧到新），没有记录的月份值为 0；按日历年月匹配。
// 按设备/受益方式：键去除首尾空白，空键归入 "Unknown"，区分大小写；
// 结果按值降序，值相同保持首次出现顺序。
func Aggregate(records []models.CanonicalRecord, b Bucketing) []Bucket {
	now := b.Now
	if now.IsZero() {
		now = time.Now()
	}

	switch b.By {
	case ByMonth:
		return aggregateByMonth(records, b, now)
	case ByDevice:
		return aggregateByKey(records, b, now, func(r models.CanonicalRecord) string { return r.Device })
	case ByBeneficiary:
		return aggregateByKey(records, b, now, func(r models.CanonicalRecord) string { return string(r.BeneficiaryType) })
	}
	return []Bucket{}
}

// MonthSeries 生成以 now 所在月份结尾的 months 个月
func MonthSeries(now time.Time, months int) []Bucket {
	if months <= 0 {
		return []Bucket{}
	}
	first := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location()).AddDate(0, -(months - 1), 0)
	buckets := make([]Bucket, 0, months)
	for i := 0; i < months; i++ {
		current := first.AddDate(0, i, 0)
		buckets = append(buckets, Bucket{
			Key:   fmt.Sprintf("%04d-%02d", current.Year(), int(current.Month())),
			Label: fmt.Sprintf("%s %d", monthAbbreviations[current.Month()], current.Year()),
			Year:  current.Year(),
			Month: current.Month(),
		})
	}
	return buckets
}

func aggregateByMonth(records []models.CanonicalRecord, b Bucketing, now time.Time) []Bucket {
	buckets := MonthSeries(now, b.Months)
	index := make(map[monthKey]int, len(buckets))
	for i, bucket := range buckets {
		index[monthKey{bucket.Year, bucket.Month}] = i
	}

	for _, r := range records {
		if !timeEligible(r, b) {
			continue
		}
		t := r.RecordedAt.In(now.Location())
		i, ok := index[monthKey{t.Year(), t.Month()}]
		if !ok {
			continue
		}
		buckets[i].Value += r.Amount
		buckets[i].Count++
	}
	return buckets
}

func aggregateByKey(records []models.CanonicalRecord, b Bucketing, now time.Time, keyOf func(models.CanonicalRecord) string) []Bucket {
	var inRange map[monthKey]struct{}
	if b.Months > 0 {
		series := MonthSeries(now, b.Months)
		inRange = make(map[monthKey]struct{}, len(series))
		for _, s := range series {
			inRange[monthKey{s.Year, s.Month}] = struct{}{}
		}
	}

	buckets := make([]Bucket, 0)
	index := make(map[string]int)
	for _, r := range records {
		if inRange != nil {
			if !timeEligible(r, b) {
				continue
			}
			t := r.RecordedAt.In(now.Location())
			if _, ok := inRange[monthKey{t.Year(), t.Month()}]; !ok {
				continue
			}
		}

		key := NormalizeKey(keyOf(r))
		i, ok := index[key]
		if !ok {
			i = len(buckets)
			index[key] = i
			buckets = append(buckets, Bucket{Key: key, Label: key})
		}
		buckets[i].Value += r.Amount
		buckets[i].Count++
	}

	sort.SliceStable(buckets, func(i, j int) bool {
		return buckets[i].Value > buckets[j].Value
	})
	return buckets
}

// NormalizeKey 分组键：去除首尾空白，空值映射为 Unknown，保留大小写
func NormalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return UnknownLabel
	}
	return key
}

func timeEligible(r models.CanonicalRecord, b Bucketing) bool {
	if r.RecordedAt.IsZero() {
		return false
	}
	return !r.TimestampIsFallback || b.IncludeFallback
}

// Sum 终身合计，包括时间戳无法解析的记录
func Sum(records []models.CanonicalRecord) float64 {
	var total float64
	for _, r := range records {
		total += r.Amount
	}
	return total
}

// FilterByUser 只保留指定用户的记录（集合是全量拉取的，不能假设服务端已过滤）
func FilterByUser(records []models.CanonicalRecord, userID string) []models.CanonicalRecord {
	filtered := make([]models.CanonicalRecord, 0, len(records))
	for _, r := range records {
		if r.UserID == userID {
			filtered = append(filtered, r)
		}
	}
	return filtered
}
