package service

import (
	"context"
	"time"

	"greenpulse/internal/greenpulse/models"
	"greenpulse/internal/greenpulse/repository"
)

var fixedNow = time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

func testOptions() Options {
	return Options{
		ChartMonths: 3,
		Now:         func() time.Time { return fixedNow },
	}
}

// stubStore 在内存存储之上注入额外的原始文档与读取失败
type stubStore struct {
	*repository.MemoryStore
	extra    map[string][]models.RawDocument
	fetchErr error
}

func newStubStore() *stubStore {
	return &stubStore{
		MemoryStore: repository.NewMemoryStore(),
		extra:       make(map[string][]models.RawDocument),
	}
}

func (s *stubStore) FetchCollection(ctx context.Context, path []string) ([]models.RawDocument, error) {
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	docs, err := s.MemoryStore.FetchCollection(ctx, path)
	if err != nil {
		return nil, err
	}
	return append(docs, s.extra[repository.JoinPath(path)]...), nil
}

// blockingStore AtomicWrite 阻塞直到 release 关闭
type blockingStore struct {
	*repository.MemoryStore
	entered chan struct{}
	release chan struct{}
}

func (s *blockingStore) AtomicWrite(ctx context.Context, ops []models.WriteOp) error {
	close(s.entered)
	<-s.release
	return s.MemoryStore.AtomicWrite(ctx, ops)
}

func mustPut(store *repository.MemoryStore, path []string, data map[string]interface{}) {
	if err := store.Put(path, data); err != nil {
		panic(err)
	}
}

func day(month time.Month, d int) time.Time {
	return time.Date(2026, month, d, 9, 0, 0, 0, time.UTC)
}

func seedUser(store *repository.MemoryStore) {
	energy := repository.EnergyRecordsPath("u1")
	mustPut(store, append(energy, "e1"), map[string]interface{}{"value": 30.0, "timestamp": day(time.March, 2), "device": "Solar"})
	mustPut(store, append(energy, "e2"), map[string]interface{}{"value": 20.0, "timestamp": day(time.February, 10), "device": "Wind"})
	mustPut(store, append(energy, "e3"), map[string]interface{}{"value": "5", "device": ""})

	usage := repository.UsageRecordsPath("u1")
	mustPut(store, append(usage, "k1"), map[string]interface{}{"kwh": 100.0, "timestamp": day(time.February, 5)})
	mustPut(store, append(usage, "k2"), map[string]interface{}{"kwh": 150.0, "timestamp": day(time.March, 5)})

	mustPut(store, repository.DonationPath("d1"), map[string]interface{}{
		"userId": "u1", "amountCoins": 60.0, "beneficiaryType": "auto", "createdAt": day(time.March, 10),
	})
	mustPut(store, repository.DonationPath("d2"), map[string]interface{}{
		"userId": "u2", "amountCoins": 10.0, "beneficiaryType": "auto", "createdAt": day(time.March, 11),
	})
	mustPut(store, repository.DonationPath("d3"), map[string]interface{}{
		"userId": "u1", "amountCoins": 40.0, "beneficiaryType": "manual", "beneficiaryId": "b1", "createdAt": day(time.January, 20),
	})

	mustPut(store, repository.TotalCreditsPath("u1"), map[string]interface{}{
		"totalReceived": 100.0,
		"donationHistory": []interface{}{
			map[string]interface{}{"amount": 60.0, "fromUserEmail": "a@example.com", "timestamp": day(time.March, 14)},
			map[string]interface{}{"amount": 20.0, "fromUserEmail": "b@example.com"},
		},
	})
}
