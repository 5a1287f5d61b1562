package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RunReaper 定期清理过期预留，ctx 取消时退出
func RunReaper(ctx context.Context, svc ReservationService, interval time.Duration, log *zap.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := svc.ReapExpired(ctx)
			if err != nil {
				log.Error("reap expired reservations", zap.Error(err))
				continue
			}
			if n > 0 {
				log.Info("expired reservations reaped", zap.Int64("count", n))
			}
		}
	}
}
