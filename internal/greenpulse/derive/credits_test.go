package derive

import (
	"testing"
	"time"

	"greenpulse/internal/greenpulse/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCheckCreditsFlagsMismatch(t *testing.T) {
	entry := models.CreditLedgerEntry{
		UserID:        "u1",
		TotalReceived: 100,
		DonationHistory: []models.CreditHistoryEntry{
			{Amount: 50}, {Amount: 30},
		},
	}

	summary := CheckCredits(entry)
	assert.Equal(t, 80.0, summary.Trusted)
	assert.Equal(t, 100.0, summary.Cached)
	require.NotNil(t, summary.Warning)
	assert.Equal(t, models.ErrKindConsistency, summary.Warning.Kind())
	assert.Equal(t, 80.0, summary.Warning.Computed)
}

func TestCheckCreditsConsistent(t *testing.T) {
	summary := CheckCredits(models.CreditLedgerEntry{
		TotalReceived:   0.3,
		DonationHistory: []models.CreditHistoryEntry{{Amount: 0.1}, {Amount: 0.2}},
	})
	assert.Nil(t, summary.Warning)
	assert.InDelta(t, 0.3, summary.Trusted, 1e-9)
}

func TestNormalizeCreditLedger(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	raw := &models.RawDocument{
		ID: "u1",
		Data: map[string]interface{}{
			"totalReceived": "100",
			"donationHistory": []interface{}{
				map[string]interface{}{"amount": 50.0, "fromUserEmail": "a@example.com", "timestamp": "2026-03-01T10:00:00Z"},
				map[string]interface{}{"amount": "30", "fromUserEmail": " b@example.com ", "timestamp": nil},
				"not a map",
			},
		},
	}

	entry := n.NormalizeCreditLedger(raw, "u1")
	assert.Equal(t, 100.0, entry.TotalReceived)
	require.Len(t, entry.DonationHistory, 2)
	assert.True(t, entry.DonationHistory[0].TimestampOK)
	assert.Equal(t, "b@example.com", entry.DonationHistory[1].FromUserEmail)
	assert.False(t, entry.DonationHistory[1].TimestampOK)

	summary := CheckCredits(entry)
	require.NotNil(t, summary.Warning)
	assert.Equal(t, 80.0, summary.Trusted)
}

func TestNormalizeCreditLedgerMissingDocument(t *testing.T) {
	n := NewNormalizer(fixedNow, time.UTC)
	entry := n.NormalizeCreditLedger(nil, "u1")
	assert.Equal(t, "u1", entry.UserID)
	assert.Empty(t, entry.DonationHistory)
	assert.Nil(t, CheckCredits(entry).Warning)
}
