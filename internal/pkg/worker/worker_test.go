package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWorkerPoolRetriesUntilSuccess(t *testing.T) {
	var calls int32
	done := make(chan struct{})

	pool := NewWorkerPool(func(ctx context.Context, task Task) error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("broker unavailable")
		}
		close(done)
		return nil
	}, 1, 10, nil)
	pool.RetryDelay = time.Millisecond
	pool.Start()
	defer pool.Stop()

	assert.True(t, pool.AddTask(Task{Key: "order-1", Kind: "order_created"}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("task was not retried to success")
	}
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestWorkerPoolDeadLetterAfterMaxRetry(t *testing.T) {
	var mu sync.Mutex
	var dead []Task
	deadCh := make(chan struct{})

	pool := NewWorkerPool(func(ctx context.Context, task Task) error {
		return errors.New("always fails")
	}, 2, 10, nil)
	pool.RetryDelay = time.Millisecond
	pool.MaxRetry = 2
	pool.OnDeadLetter(func(task Task, err error) {
		mu.Lock()
		dead = append(dead, task)
		mu.Unlock()
		close(deadCh)
	})
	pool.Start()
	defer pool.Stop()

	pool.AddTask(Task{Key: "k"})

	select {
	case <-deadCh:
	case <-time.After(2 * time.Second):
		t.Fatal("task never reached the dead letter callback")
	}

	mu.Lock()
	defer mu.Unlock()
	assert.Len(t, dead, 1)
	assert.Equal(t, 2, dead[0].Retry)
}

func TestAddTaskAfterStop(t *testing.T) {
	pool := NewWorkerPool(func(ctx context.Context, task Task) error { return nil }, 1, 4, nil)
	pool.Start()
	pool.Stop()

	assert.False(t, pool.AddTask(Task{Key: "late"}))
}
