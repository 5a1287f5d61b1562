package notify

import (
	"context"

	"go.uber.org/zap"
)

// LogDispatcher 未启用 Kafka 时使用，只写日志
type LogDispatcher struct {
	log *zap.Logger
}

func NewLogDispatcher(log *zap.Logger) *LogDispatcher {
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(ctx context.Context, n Notification) {
	d.log.Info("notification",
		zap.String("kind", string(n.Kind)),
		zap.String("user_id", n.UserID),
		zap.String("order_number", n.OrderNumber),
		zap.Bool("email", n.Email),
		zap.Any("data", n.Data),
	)
}
