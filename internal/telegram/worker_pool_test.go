package telegram

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"
)

func noopHandler(context.Context, *bot.Bot, *botModels.Update) {}

func TestWorkerPoolRunsTasksAndRecoversPanics(t *testing.T) {
	pool := NewWorkerPool(2, 16)

	var ran atomic.Int32
	for i := 0; i < 5; i++ {
		ok := pool.Submit(HandlerTask{
			Ctx: context.Background(),
			Handler: func(ctx context.Context, _ *bot.Bot, _ *botModels.Update) {
				ran.Add(1)
			},
		})
		if !ok {
			t.Fatalf("task %d was dropped", i)
		}
	}
	pool.Submit(HandlerTask{
		Ctx:    context.Background(),
		Update: &botModels.Update{},
		Handler: func(ctx context.Context, _ *bot.Bot, _ *botModels.Update) {
			panic("boom")
		},
	})

	pool.Shutdown()
	pool.Shutdown()

	stats := pool.Stats()
	if ran.Load() != 5 {
		t.Fatalf("expected 5 tasks to run, got %d", ran.Load())
	}
	if stats.Completed != 6 {
		t.Fatalf("expected 6 completed tasks, got %d", stats.Completed)
	}
	if stats.Panics != 1 {
		t.Fatalf("expected 1 recovered panic, got %d", stats.Panics)
	}
	if stats.Queued != 0 {
		t.Fatalf("expected empty queue, got %d", stats.Queued)
	}
}

func TestWorkerPoolDropsWhenFull(t *testing.T) {
	pool := NewWorkerPool(1, 1)
	block := make(chan struct{})
	started := make(chan struct{})

	pool.Submit(HandlerTask{Ctx: context.Background(), Handler: func(context.Context, *bot.Bot, *botModels.Update) {
		close(started)
		<-block
	}})
	<-started

	if !pool.Submit(HandlerTask{Ctx: context.Background(), Handler: noopHandler}) {
		t.Fatalf("expected the queued task to be accepted")
	}
	if pool.Submit(HandlerTask{Ctx: context.Background(), Handler: noopHandler}) {
		t.Fatalf("expected the task to be dropped when the queue is full")
	}

	close(block)
	pool.Shutdown()
	if dropped := pool.Stats().Dropped; dropped != 1 {
		t.Fatalf("expected 1 dropped task, got %d", dropped)
	}
}
