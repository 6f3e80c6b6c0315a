//go:build integration

package repository

import (
	"context"
	"os"
	"testing"
	"time"

	"greenpulse/internal/greenpulse/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// 需要 Firestore 模拟器：FIRESTORE_EMULATOR_HOST=localhost:8080
func TestFirestoreStoreAtomicWrite(t *testing.T) {
	if os.Getenv("FIRESTORE_EMULATOR_HOST") == "" {
		t.Skip("FIRESTORE_EMULATOR_HOST not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	store, err := NewFirestoreStore(ctx, "greenpulse-test")
	require.NoError(t, err)
	defer store.Close()

	id := uuid.NewString()
	goalPath := []string{"communityGoal", "it-" + id}
	ops := []models.WriteOp{
		models.CreateOp(DonationPath(id), map[string]interface{}{"amountCoins": 10.0, "userId": "u1"}),
		models.IncrementOp(goalPath, map[string]float64{"autoCoins": 10}, map[string]interface{}{"lastUpdated": time.Now()}),
	}
	require.NoError(t, store.AtomicWrite(ctx, ops))

	donation, err := store.FetchDocument(ctx, DonationPath(id))
	require.NoError(t, err)
	require.NotNil(t, donation)
	assert.Equal(t, 10.0, donation.Data["amountCoins"])

	// 重复创建同一个捐赠应整体失败，计数器保持不变
	err = store.AtomicWrite(ctx, []models.WriteOp{
		models.IncrementOp(goalPath, map[string]float64{"autoCoins": 10}, nil),
		models.CreateOp(DonationPath(id), map[string]interface{}{"amountCoins": 10.0}),
	})
	require.Error(t, err)
	assert.False(t, IsRetryable(err))

	goal, err := store.FetchDocument(ctx, goalPath)
	require.NoError(t, err)
	require.NotNil(t, goal)
	assert.EqualValues(t, 10, goal.Data["autoCoins"])

	missing, err := store.FetchDocument(ctx, TotalCreditsPath("missing-"+id))
	require.NoError(t, err)
	assert.Nil(t, missing)
}
