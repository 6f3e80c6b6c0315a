// Package derive 把存储中的原始文档转换为余额、图表与流水。
// 包内函数都不持有跨调用的状态，可以在多个界面/请求中并发调用。
package derive

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/logger"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// 各类记录的候选字段，按优先级排列
var (
	userIDFields      = []string{"userId", "userID", "uid", "user_id"}
	energyAmountKeys  = []string{"value", "coins", "kwh", "kWh", "amount", "energy"}
	usageAmountKeys   = []string{"value", "kwh", "kWh", "usage", "amount"}
	donationAmountKey = []string{"amountCoins", "amount", "coins", "value"}
	recordTimeKeys    = []string{"timestamp", "recordedAt", "createdAt", "date"}
	donationTimeKeys  = []string{"createdAt", "timestamp", "date"}
	deviceKeys        = []string{"device", "deviceName", "appliance"}
	periodKeys        = []string{"period", "timePeriod", "type"}
	beneficiaryIDKeys = []string{"beneficiaryId", "beneficiaryID", "beneficiary", "recipientId"}
)

// 字符串时间戳支持的格式（依次尝试）
var timestampLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"1/2/2006, 3:04:05 PM",
	"1/2/2006 3:04:05 PM",
	"1/2/2006",
	"2/1/2006",
	"January 2, 2006 at 3:04:05 PM",
	"January 2, 2006",
	"Jan 2, 2006",
	time.RFC1123,
	time.UnixDate,
}

// Normalizer 原始文档归一化器
// now 在构造时固定，保证同一个实例对同一输入的输出结构相等
type Normalizer struct {
	now      time.Time
	location *time.Location
}

// NewNormalizer 创建归一化器；now 为零值时取当前时间
func NewNormalizer(now time.Time, location *time.Location) *Normalizer {
	if location == nil {
		location = time.UTC
	}
	if now.IsZero() {
		now = time.Now()
	}
	return &Normalizer{now: now.In(location), location: location}
}

// Normalize 将单个原始文档转换为规范记录
// 只有结构上不可用的文档（缺少 ID）才返回 NormalizationError，其余缺陷降级为零值或标记
func (n *Normalizer) Normalize(raw models.RawDocument, kind models.RecordKind) (models.CanonicalRecord, error) {
	id := strings.TrimSpace(raw.ID)
	if id == "" {
		if s, ok := raw.Field("id").(string); ok {
			id = strings.TrimSpace(s)
		}
	}
	if id == "" {
		return models.CanonicalRecord{}, &models.NormalizationError{RecordKind: kind, Reason: "missing document id"}
	}
	if raw.Data == nil {
		raw.Data = map[string]interface{}{}
	}

	record := models.CanonicalRecord{
		ID:     id,
		Kind:   kind,
		UserID: firstString(raw, userIDFields),
	}

	amountKeys, timeKeys := energyAmountKeys, recordTimeKeys
	switch kind {
	case models.KindUsage:
		amountKeys = usageAmountKeys
	case models.KindDonation:
		amountKeys, timeKeys = donationAmountKey, donationTimeKeys
	case models.KindEnergy:
	default:
		return models.CanonicalRecord{}, &models.NormalizationError{DocumentID: id, RecordKind: kind, Reason: "unknown record kind"}
	}

	record.Amount, record.AmountCoerced = firstAmount(raw, amountKeys)
	record.RecordedAt, record.TimestampSource = n.resolveTimestamp(raw, timeKeys)
	record.TimestampIsFallback = record.TimestampSource == models.TimestampFallback

	if kind == models.KindDonation {
		record.BeneficiaryType = models.BeneficiaryType(strings.ToLower(strings.TrimSpace(asString(raw.Field("beneficiaryType")))))
		record.BeneficiaryID = firstString(raw, beneficiaryIDKeys)
	} else {
		record.Device = firstString(raw, deviceKeys)
		record.Period = parsePeriod(firstString(raw, periodKeys))
	}

	return record, nil
}

// NormalizeAll 批量归一化；不可用的文档被跳过并记录告警，不中断整批
func (n *Normalizer) NormalizeAll(docs []models.RawDocument, kind models.RecordKind) ([]models.CanonicalRecord, []error) {
	records := make([]models.CanonicalRecord, 0, len(docs))
	var skipped []error
	for i, doc := range docs {
		record, err := n.Normalize(doc, kind)
		if err != nil {
			logger.L().Warnf("Skipping %s document #%d: %v", kind, i, err)
			skipped = append(skipped, err)
			continue
		}
		records = append(records, record)
	}
	return records, skipped
}

// resolveTimestamp 按 原生时间戳对象 → 时间值 → 字符串 → 当前时间 的顺序解析
func (n *Normalizer) resolveTimestamp(raw models.RawDocument, keys []string) (time.Time, models.TimestampSource) {
	for _, key := range keys {
		if t, ok := nativeTimestamp(raw.Field(key)); ok {
			return t.In(n.location), models.TimestampNative
		}
	}
	for _, key := range keys {
		if t, ok := dateValue(raw.Field(key)); ok {
			return t.In(n.location), models.TimestampDate
		}
	}
	for _, key := range keys {
		if t, ok := n.parseTimestampString(raw.Field(key)); ok {
			return t, models.TimestampString
		}
	}
	return n.now, models.TimestampFallback
}

// ResolveTime 解析任意字段值（用于嵌套的到账明细）
func (n *Normalizer) ResolveTime(value interface{}) (time.Time, bool) {
	if t, ok := nativeTimestamp(value); ok {
		return t.In(n.location), true
	}
	if t, ok := dateValue(value); ok {
		return t.In(n.location), true
	}
	return n.parseTimestampString(value)
}

func nativeTimestamp(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case primitive.DateTime:
		return v.Time(), true
	case primitive.Timestamp:
		if v.T == 0 {
			return time.Time{}, false
		}
		return time.Unix(int64(v.T), 0), true
	case interface{ AsTime() time.Time }:
		t := v.AsTime()
		return t, !t.IsZero()
	case map[string]interface{}:
		return secondsMap(v)
	}
	return time.Time{}, false
}

// secondsMap 识别导出的 Timestamp 结构：{seconds, nanoseconds} 或 {_seconds, _nanoseconds}
func secondsMap(m map[string]interface{}) (time.Time, bool) {
	for _, prefix := range []string{"", "_"} {
		secRaw, ok := m[prefix+"seconds"]
		if !ok {
			continue
		}
		sec, ok := toFloat(secRaw)
		if !ok {
			return time.Time{}, false
		}
		nanos, _ := toFloat(m[prefix+"nanoseconds"])
		return time.Unix(int64(sec), int64(nanos)), true
	}
	return time.Time{}, false
}

func dateValue(value interface{}) (time.Time, bool) {
	switch v := value.(type) {
	case time.Time:
		return v, !v.IsZero()
	case *time.Time:
		if v == nil || v.IsZero() {
			return time.Time{}, false
		}
		return *v, true
	case int64, int, int32, float64:
		// 数值时间戳：大于 1e11 视为毫秒，否则视为秒
		f, _ := toFloat(v)
		if f <= 0 || math.IsNaN(f) || math.IsInf(f, 0) {
			return time.Time{}, false
		}
		if f > 1e11 {
			return time.UnixMilli(int64(f)), true
		}
		return time.Unix(int64(f), 0), true
	}
	return time.Time{}, false
}

func (n *Normalizer) parseTimestampString(value interface{}) (time.Time, bool) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, false
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.ParseInLocation(layout, s, n.location); err == nil {
			return t.In(n.location), true
		}
	}
	return time.Time{}, false
}

// CoerceAmount 防御式数值转换：缺失、非数值、NaN/Inf 与负数都归零
func CoerceAmount(value interface{}) (float64, bool) {
	f, ok := toFloat(value)
	if !ok || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, true
	}
	if f < 0 {
		return 0, true
	}
	return f, false
}

func firstAmount(raw models.RawDocument, keys []string) (float64, bool) {
	for _, key := range keys {
		value, present := raw.Data[key]
		if !present || value == nil {
			continue
		}
		return CoerceAmount(value)
	}
	return 0, true
}

func toFloat(value interface{}) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int8:
		return float64(v), true
	case int16:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint32:
		return float64(v), true
	case uint64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	case primitive.Decimal128:
		f, err := strconv.ParseFloat(v.String(), 64)
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		return f, err == nil
	}
	return 0, false
}

func firstString(raw models.RawDocument, keys []string) string {
	for _, key := range keys {
		if s := strings.TrimSpace(asString(raw.Field(key))); s != "" {
			return s
		}
	}
	return ""
}

func asString(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case int, int32, int64, float64:
		return fmt.Sprint(v)
	}
	return ""
}

func parsePeriod(s string) models.Period {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "weekly", "week":
		return models.PeriodWeekly
	case "monthly", "month":
		return models.PeriodMonthly
	case "yearly", "year", "annual":
		return models.PeriodYearly
	}
	return models.PeriodUnknown
}
