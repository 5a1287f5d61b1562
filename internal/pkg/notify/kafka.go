package notify

import (
	"context"
	"encoding/json"
	"time"

	"storefront/internal/pkg/worker"
	"storefront/pkg/metrics"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// MessageWriter kafka.Writer 的最小接口
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaDispatcher 通过 worker pool 异步写入 Kafka
type KafkaDispatcher struct {
	writer  MessageWriter
	pool    *worker.WorkerPool
	metrics *metrics.MetricsCollector
	log     *zap.Logger
	timeout time.Duration
}

// NewKafkaWriter 创建通知 topic 的 writer
func NewKafkaWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{}, // 同一用户的通知落在同一分区，保证顺序
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 50 * time.Millisecond,
	}
}

func NewKafkaDispatcher(writer MessageWriter, workers, queueSize int, m *metrics.MetricsCollector, log *zap.Logger) *KafkaDispatcher {
	d := &KafkaDispatcher{
		writer:  writer,
		metrics: m,
		log:     log,
		timeout: 10 * time.Second,
	}
	d.pool = worker.NewWorkerPool(d.publish, workers, queueSize, log)
	d.pool.OnDeadLetter(func(task worker.Task, err error) {
		m.Notification(task.Kind, "dropped")
	})
	return d
}

func (d *KafkaDispatcher) Start() {
	d.pool.Start()
}

// Close 停止 worker 并关闭 writer
func (d *KafkaDispatcher) Close() error {
	d.pool.Stop()
	return d.writer.Close()
}

func (d *KafkaDispatcher) Dispatch(ctx context.Context, n Notification) {
	if n.OccurredAt.IsZero() {
		n.OccurredAt = time.Now()
	}
	payload, err := json.Marshal(n)
	if err != nil {
		d.log.Error("marshal notification", zap.String("kind", string(n.Kind)), zap.Error(err))
		return
	}

	if d.pool.AddTask(worker.Task{Key: n.UserID, Kind: string(n.Kind), Payload: payload}) {
		d.metrics.Notification(string(n.Kind), "queued")
	}
}

func (d *KafkaDispatcher) publish(ctx context.Context, task worker.Task) error {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	err := d.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(task.Key),
		Value: task.Payload,
		Time:  time.Now(),
		Headers: []kafka.Header{
			{Key: "kind", Value: []byte(task.Kind)},
		},
	})
	if err == nil {
		d.metrics.Notification(task.Kind, "published")
	}
	return err
}
