package database

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"gorm.io/gorm"
)

// Transactor 事务边界。跨仓储的写操作通过传入的 tx 共享同一个事务
type Transactor interface {
	Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type gormTransactor struct {
	db         *gorm.DB
	maxRetries int
	backoff    time.Duration
}

// NewTransactor 创建事务执行器；遇到序列化冲突或死锁时整体重试
func NewTransactor(db *gorm.DB, maxRetries int) Transactor {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &gormTransactor{db: db, maxRetries: maxRetries, backoff: 50 * time.Millisecond}
}

func (t *gormTransactor) Transaction(ctx context.Context, fn func(tx *gorm.DB) error) error {
	backoff := t.backoff

	for attempt := 0; ; attempt++ {
		err := t.db.WithContext(ctx).Transaction(fn)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return err
		}
		if attempt == t.maxRetries {
			return fmt.Errorf("max retries (%d) exceeded: %w", t.maxRetries, err)
		}

		jitter := time.Duration(rand.Int63n(int64(backoff/4) + 1))
		select {
		case <-time.After(backoff + jitter):
		case <-ctx.Done():
			return ctx.Err()
		}
		backoff *= 2
	}
}
