package pool

import (
	"context"
	"sync/atomic"
)

// SemaphorePool 信号量池（用于限制并发数）
type SemaphorePool struct {
	semaphore chan struct{}
	active    int64
}

// NewSemaphorePool 创建信号量池
func NewSemaphorePool(maxConcurrency int) *SemaphorePool {
	if maxConcurrency <= 0 {
		maxConcurrency = 1
	}
	return &SemaphorePool{
		semaphore: make(chan struct{}, maxConcurrency),
	}
}

// Acquire 获取信号量
func (p *SemaphorePool) Acquire(ctx context.Context) error {
	select {
	case p.semaphore <- struct{}{}:
		atomic.AddInt64(&p.active, 1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release 释放信号量
func (p *SemaphorePool) Release() {
	select {
	case <-p.semaphore:
		atomic.AddInt64(&p.active, -1)
	default:
	}
}

// Execute 在信号量保护下执行函数
func (p *SemaphorePool) Execute(ctx context.Context, fn func() error) error {
	if err := p.Acquire(ctx); err != nil {
		return err
	}
	defer p.Release()

	return fn()
}

// Active 当前占用数
func (p *SemaphorePool) Active() int {
	return int(atomic.LoadInt64(&p.active))
}
