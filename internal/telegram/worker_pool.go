package telegram

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/go-telegram/bot"
	botModels "github.com/go-telegram/bot/models"

	"greenpulse/internal/logger"
)

// HandlerTask Handler 任务
type HandlerTask struct {
	Ctx         context.Context
	BotInstance *bot.Bot
	Update      *botModels.Update
	Handler     bot.HandlerFunc
}

// PoolStats 工作池计数
type PoolStats struct {
	Workers   int
	Queued    int
	Completed int64
	Dropped   int64
	Panics    int64
}

// WorkerPool Handler 工作池
type WorkerPool struct {
	taskQueue chan HandlerTask
	wg        sync.WaitGroup
	workers   int
	closeOnce sync.Once

	completed atomic.Int64
	dropped   atomic.Int64
	panics    atomic.Int64
}

// NewWorkerPool 创建工作池
// workers: worker 协程数量
// queueSize: 任务队列大小
func NewWorkerPool(workers int, queueSize int) *WorkerPool {
	pool := &WorkerPool{
		taskQueue: make(chan HandlerTask, queueSize),
		workers:   workers,
	}

	for i := 0; i < workers; i++ {
		pool.wg.Add(1)
		go pool.worker(i)
	}

	logger.L().Infof("Worker pool started with %d workers, queue size %d", workers, queueSize)
	return pool
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()

	for task := range p.taskQueue {
		p.run(id, task)
	}

	logger.L().Debugf("Worker %d stopped", id)
}

// run 执行 handler，带 panic recovery
func (p *WorkerPool) run(id int, task HandlerTask) {
	defer func() {
		if r := recover(); r != nil {
			p.panics.Add(1)
			logger.L().Errorf("Worker %d: handler panic recovered: %v", id, r)
			if task.BotInstance != nil && task.Update != nil && task.Update.Message != nil {
				_, _ = task.BotInstance.SendMessage(task.Ctx, &bot.SendMessageParams{
					ChatID: task.Update.Message.Chat.ID,
					Text:   "❌ Something went wrong. Please try again later.",
				})
			}
		}
		p.completed.Add(1)
	}()

	task.Handler(task.Ctx, task.BotInstance, task.Update)
}

// Submit 提交任务；队列已满时丢弃并返回 false
func (p *WorkerPool) Submit(task HandlerTask) bool {
	select {
	case p.taskQueue <- task:
		return true
	default:
		p.dropped.Add(1)
		logger.L().Warnf("Worker pool queue is full, task dropped")
		return false
	}
}

// Stats 当前计数
func (p *WorkerPool) Stats() PoolStats {
	return PoolStats{
		Workers:   p.workers,
		Queued:    len(p.taskQueue),
		Completed: p.completed.Load(),
		Dropped:   p.dropped.Load(),
		Panics:    p.panics.Load(),
	}
}

// Shutdown 关闭队列并等待已入队的任务完成（可重复调用）
func (p *WorkerPool) Shutdown() {
	p.closeOnce.Do(func() {
		logger.L().Info("Shutting down worker pool...")
		close(p.taskQueue)
		p.wg.Wait()
		logger.L().Info("Worker pool shut down successfully")
	})
}

// asyncHandler 将 handler 放入工作池执行，避免阻塞 Bot 的更新循环
func (b *Bot) asyncHandler(handler bot.HandlerFunc) bot.HandlerFunc {
	return func(ctx context.Context, botInstance *bot.Bot, update *botModels.Update) {
		b.workerPool.Submit(HandlerTask{
			Ctx:         ctx,
			BotInstance: botInstance,
			Update:      update,
			Handler:     handler,
		})
	}
}
