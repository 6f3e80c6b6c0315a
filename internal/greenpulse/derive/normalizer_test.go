package derive

import (
	"encoding/json"
	"testing"
	"time"

	"greenpulse/internal/greenpulse/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

var fixedNow = time.Date(2026, time.March, 15, 12, 0, 0, 0, time.UTC)

func TestNormalizeIsPure(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	raw := models.RawDocument{
		ID: "e1",
		Data: map[string]interface{}{
			"userId": "u1",
			"value":  "12.5",
			"device": " Solar Panel ",
			"period": "monthly",
		},
	}

	first, err := n.Normalize(raw, models.KindEnergy)
	require.NoError(t, err)
	second, err := n.Normalize(raw, models.KindEnergy)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 12.5, first.Amount)
	assert.Equal(t, "Solar Panel", first.Device)
	assert.Equal(t, models.PeriodMonthly, first.Period)
	assert.True(t, first.TimestampIsFallback)
	assert.Equal(t, fixedNow, first.RecordedAt)
}

func TestNormalizeTimestampPriority(t *testing.T) {
	native := time.Date(2026, time.January, 10, 8, 0, 0, 0, time.UTC)
	date := time.Date(2025, time.December, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		data       map[string]interface{}
		wantTime   time.Time
		wantSource models.TimestampSource
	}{
		{
			name: "native object wins over date and string",
			data: map[string]interface{}{
				"timestamp": "2024-05-05",
				"date":      date,
				"createdAt": primitive.NewDateTimeFromTime(native),
			},
			wantTime:   native,
			wantSource: models.TimestampNative,
		},
		{
			name:       "exported seconds map counts as native",
			data:       map[string]interface{}{"timestamp": map[string]interface{}{"_seconds": float64(native.Unix()), "_nanoseconds": float64(0)}},
			wantTime:   native,
			wantSource: models.TimestampNative,
		},
		{
			name:       "date value wins over string",
			data:       map[string]interface{}{"timestamp": "2024-05-05", "date": date},
			wantTime:   date,
			wantSource: models.TimestampDate,
		},
		{
			name:       "epoch milliseconds",
			data:       map[string]interface{}{"timestamp": native.UnixMilli()},
			wantTime:   native,
			wantSource: models.TimestampDate,
		},
		{
			name:       "iso string",
			data:       map[string]interface{}{"timestamp": "2026-01-10T08:00:00Z"},
			wantTime:   native,
			wantSource: models.TimestampString,
		},
		{
			name:       "locale string",
			data:       map[string]interface{}{"date": "1/10/2026, 8:00:00 AM"},
			wantTime:   native,
			wantSource: models.TimestampString,
		},
		{
			name:       "unparsable falls back to now",
			data:       map[string]interface{}{"timestamp": "sometime last week"},
			wantTime:   fixedNow,
			wantSource: models.TimestampFallback,
		},
	}

	n := NewNormalizer(fixedNow, time.UTC)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := n.Normalize(models.RawDocument{ID: "r", Data: tt.data}, models.KindEnergy)
			require.NoError(t, err)
			assert.True(t, tt.wantTime.Equal(record.RecordedAt), "got %v want %v", record.RecordedAt, tt.wantTime)
			assert.Equal(t, tt.wantSource, record.TimestampSource)
			assert.Equal(t, tt.wantSource == models.TimestampFallback, record.TimestampIsFallback)
		})
	}
}

func TestCoerceAmount(t *testing.T) {
	tests := []struct {
		name        string
		value       interface{}
		want        float64
		wantCoerced bool
	}{
		{"float", 3.5, 3.5, false},
		{"int", 7, 7, false},
		{"int64", int64(9), 9, false},
		{"numeric string", " 42 ", 42, false},
		{"json number", json.Number("1.25"), 1.25, false},
		{"garbage string", "abc", 0, true},
		{"nil", nil, 0, true},
		{"bool", true, 0, true},
		{"negative", -5.0, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, coerced := CoerceAmount(tt.value)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantCoerced, coerced)
		})
	}
}

func TestNormalizeMissingAmountNeverFails(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	record, err := n.Normalize(models.RawDocument{ID: "d1", Data: map[string]interface{}{"userId": "u1"}}, models.KindDonation)
	require.NoError(t, err)
	assert.Zero(t, record.Amount)
	assert.True(t, record.AmountCoerced)
}

func TestNormalizeDonationFields(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	record, err := n.Normalize(models.RawDocument{
		ID: "d1",
		Data: map[string]interface{}{
			"userId":          "u1",
			"amountCoins":     int64(25),
			"beneficiaryType": "Manual",
			"beneficiaryId":   "school-7",
			"createdAt":       time.Date(2026, time.March, 1, 0, 0, 0, 0, time.UTC),
		},
	}, models.KindDonation)
	require.NoError(t, err)

	assert.Equal(t, 25.0, record.Amount)
	assert.Equal(t, models.BeneficiaryManual, record.BeneficiaryType)
	assert.Equal(t, "school-7", record.BeneficiaryID)
	assert.False(t, record.TimestampIsFallback)
}

func TestNormalizeMissingIDReturnsError(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	_, err := n.Normalize(models.RawDocument{Data: map[string]interface{}{"value": 1}}, models.KindEnergy)
	require.Error(t, err)

	kind, ok := models.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, models.ErrKindNormalization, kind)
}

func TestNormalizeIDFallsBackToField(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	record, err := n.Normalize(models.RawDocument{Data: map[string]interface{}{"id": "from-field"}}, models.KindUsage)
	require.NoError(t, err)
	assert.Equal(t, "from-field", record.ID)
}

func TestNormalizeAllSkipsUnusableDocuments(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	docs := []models.RawDocument{
		{ID: "a", Data: map[string]interface{}{"value": 1}},
		{Data: map[string]interface{}{"value": 2}},
		{ID: "c", Data: map[string]interface{}{"value": 3}},
	}

	records, skipped := n.NormalizeAll(docs, models.KindEnergy)
	require.Len(t, records, 2)
	require.Len(t, skipped, 1)
	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, "c", records[1].ID)
}
