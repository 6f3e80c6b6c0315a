package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"greenpulse/internal/greenpulse/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestMongoStoreFetchCollection(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("decodes documents", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		recordedAt := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.energyRecords", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "e1"},
				{Key: "_parent", Value: "users/u1"},
				{Key: "value", Value: 12.5},
				{Key: "timestamp", Value: recordedAt},
				{Key: "meta", Value: bson.D{{Key: "device", Value: "Solar"}}},
			},
		))

		docs, err := store.FetchCollection(context.Background(), EnergyRecordsPath("u1"))
		require.NoError(t, err)
		require.Len(t, docs, 1)
		assert.Equal(t, "e1", docs[0].ID)
		assert.Equal(t, []string{"users", "u1", "energyRecords", "e1"}, docs[0].Path)
		assert.Equal(t, 12.5, docs[0].Data["value"])
		assert.NotContains(t, docs[0].Data, "_parent")
		assert.Equal(t, map[string]interface{}{"device": "Solar"}, docs[0].Data["meta"])
	})

	mt.Run("query error", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    13,
			Name:    "Unauthorized",
			Message: "mock find error",
		}))

		_, err := store.FetchCollection(context.Background(), DonationsPath())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "failed to query donation")
	})

	mt.Run("invalid path", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		_, err := store.FetchCollection(context.Background(), []string{"users", "u1"})
		assert.ErrorIs(t, err, ErrInvalidPath)
	})
}

func TestMongoStoreFetchDocument(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("found", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.totalCredits", mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "u1"},
				{Key: "totalReceived", Value: 100.0},
				{Key: "donationHistory", Value: bson.A{
					bson.D{{Key: "amount", Value: 60.0}},
					bson.D{{Key: "amount", Value: 20.0}},
				}},
			},
		))

		doc, err := store.FetchDocument(context.Background(), TotalCreditsPath("u1"))
		require.NoError(t, err)
		require.NotNil(t, doc)
		assert.Equal(t, "u1", doc.ID)
		history, ok := doc.Data["donationHistory"].([]interface{})
		require.True(t, ok)
		assert.Len(t, history, 2)
	})

	mt.Run("missing", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCursorResponse(0, "test.totalCredits", mtest.FirstBatch))

		doc, err := store.FetchDocument(context.Background(), TotalCreditsPath("nobody"))
		require.NoError(t, err)
		assert.Nil(t, doc)
	})
}

func TestMongoStoreAtomicWriteWithoutTransaction(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	ops := []models.WriteOp{
		models.CreateOp(DonationPath("d1"), map[string]interface{}{"amountCoins": 10.0}),
		models.IncrementOp(CommunityGoalPath(), map[string]float64{"autoCoins": 10}, nil),
	}

	mt.Run("success", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
		)

		require.NoError(t, store.atomicWriteWithoutTransaction(context.Background(), ops))
	})

	mt.Run("second op fails and create is undone", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "mock update error"}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
		)

		err := store.atomicWriteWithoutTransaction(context.Background(), ops)
		require.Error(t, err)
		var compErr *CompensationError
		assert.False(t, errors.As(err, &compErr))
		assert.Contains(t, err.Error(), "apply op 1")
		assert.True(t, IsRetryable(err))
	})

	mt.Run("undo fails", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "mock update error"}),
			mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 2, Name: "BadValue", Message: "mock delete error"}),
		)

		err := store.atomicWriteWithoutTransaction(context.Background(), ops)
		var compErr *CompensationError
		require.True(t, errors.As(err, &compErr))
		assert.False(t, IsRetryable(err))
	})

	mt.Run("duplicate create", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		err := store.atomicWriteWithoutTransaction(context.Background(), ops[:1])
		require.Error(t, err)
		assert.True(t, mongo.IsDuplicateKeyError(err))
		assert.False(t, IsRetryable(err))
	})
}

func TestMongoStoreSupportsTransactions(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("replica set", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "setName", Value: "rs0"}))

		ok, err := store.SupportsTransactions(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	mt.Run("mongos", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "msg", Value: "isdbgrid"}))

		ok, err := store.SupportsTransactions(context.Background())
		require.NoError(t, err)
		assert.True(t, ok)
	})

	mt.Run("standalone", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse(bson.E{Key: "isWritablePrimary", Value: true}))

		ok, err := store.SupportsTransactions(context.Background())
		require.NoError(t, err)
		assert.False(t, ok)
	})

	mt.Run("command error", func(mt *mtest.T) {
		store := NewMongoStore(mt.DB)
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{Code: 13, Name: "Unauthorized", Message: "denied"}))

		_, err := store.SupportsTransactions(context.Background())
		assert.Error(t, err)
	})
}

func TestIsTransactionNotSupported(t *testing.T) {
	assert.True(t, isTransactionNotSupported(mongo.CommandError{Code: 20, Name: "IllegalOperation"}))
	assert.True(t, isTransactionNotSupported(errors.New("Transaction numbers are only allowed on a replica set member or mongos")))
	assert.False(t, isTransactionNotSupported(errors.New("connection refused")))
}

func TestPlainValue(t *testing.T) {
	got := plainValue(bson.M{
		"list": bson.A{bson.D{{Key: "a", Value: int32(1)}}},
		"n":    2.5,
	})
	assert.Equal(t, map[string]interface{}{
		"list": []interface{}{map[string]interface{}{"a": int32(1)}},
		"n":    2.5,
	}, got)
}
