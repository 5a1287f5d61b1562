package worker

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Task 异步任务
type Task struct {
	Key     string
	Kind    string
	Payload []byte
	Retry   int // 重试次数
}

// Handler 任务处理函数
type Handler func(ctx context.Context, task Task) error

// DeadLetterFunc 任务彻底失败时的回调
type DeadLetterFunc func(task Task, err error)

type WorkerPool struct {
	TaskQueue  chan Task
	RetryQueue chan Task // 重试队列
	WorkerNum  int
	MaxRetry   int           // 最大重试次数
	RetryDelay time.Duration // 第 n 次重试等待 n*RetryDelay

	handler    Handler
	deadLetter DeadLetterFunc
	log        *zap.Logger
	ctx        context.Context
	cancel     context.CancelFunc
	wg         sync.WaitGroup
}

func NewWorkerPool(handler Handler, workerNum int, bufferSize int, log *zap.Logger) *WorkerPool {
	if workerNum <= 0 {
		workerNum = 1
	}
	if bufferSize < 2 {
		bufferSize = 2
	}
	if log == nil {
		log = zap.NewNop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &WorkerPool{
		TaskQueue:  make(chan Task, bufferSize),
		RetryQueue: make(chan Task, bufferSize/2),
		WorkerNum:  workerNum,
		MaxRetry:   3, // 最多重试3次
		RetryDelay: time.Second,
		handler:    handler,
		log:        log,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// OnDeadLetter 设置死信回调
func (p *WorkerPool) OnDeadLetter(fn DeadLetterFunc) {
	p.deadLetter = fn
}

func (p *WorkerPool) Start() {
	for i := 0; i < p.WorkerNum; i++ {
		p.wg.Add(1)
		go p.worker(i)
	}
	// 启动重试处理协程
	p.wg.Add(1)
	go p.retryWorker()
	p.log.Info("worker pool started", zap.Int("workers", p.WorkerNum))
}

// Stop 停止接收新任务并等待工作协程退出
func (p *WorkerPool) Stop() {
	p.cancel()
	p.wg.Wait()
}

func (p *WorkerPool) worker(id int) {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.TaskQueue:
			p.process(id, task)
		}
	}
}

func (p *WorkerPool) process(id int, task Task) {
	err := p.handler(p.ctx, task)
	if err == nil {
		return
	}

	p.log.Warn("task failed",
		zap.Int("worker", id),
		zap.String("kind", task.Kind),
		zap.String("key", task.Key),
		zap.Int("retry", task.Retry),
		zap.Error(err),
	)

	// 如果未达到最大重试次数，加入重试队列
	if task.Retry >= p.MaxRetry {
		p.logFailedTask(task, err)
		return
	}
	task.Retry++
	select {
	case p.RetryQueue <- task:
	default:
		p.logFailedTask(task, err)
	}
}

func (p *WorkerPool) retryWorker() {
	defer p.wg.Done()
	for {
		select {
		case <-p.ctx.Done():
			return
		case task := <-p.RetryQueue:
			// 延迟重试，避免立即重试
			select {
			case <-time.After(time.Duration(task.Retry) * p.RetryDelay):
			case <-p.ctx.Done():
				p.logFailedTask(task, p.ctx.Err())
				return
			}

			select {
			case p.TaskQueue <- task:
			default:
				p.logFailedTask(task, nil)
			}
		}
	}
}

func (p *WorkerPool) logFailedTask(task Task, err error) {
	p.log.Error("task failed permanently",
		zap.String("kind", task.Kind),
		zap.String("key", task.Key),
		zap.Int("retry", task.Retry),
		zap.ByteString("payload", task.Payload),
		zap.Error(err),
	)
	if p.deadLetter != nil {
		p.deadLetter(task, err)
	}
}

// AddTask 非阻塞入队，队列已满时直接进入死信
func (p *WorkerPool) AddTask(task Task) bool {
	select {
	case <-p.ctx.Done():
		p.logFailedTask(task, p.ctx.Err())
		return false
	default:
	}

	select {
	case p.TaskQueue <- task:
		return true
	default:
		p.logFailedTask(task, nil)
		return false
	}
}
