package signal

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
)

// WaitForShutdown 阻塞直到收到 SIGINT/SIGTERM，然后在 timeout 内执行关闭逻辑
func WaitForShutdown(logger *zap.Logger, timeout time.Duration, shutdownFunc func(ctx context.Context) error) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("service running, waiting for SIGINT/SIGTERM...")
	<-ctx.Done()
	logger.Info("received shutdown signal")

	if err := RunShutdown(timeout, shutdownFunc); err != nil {
		logger.Error("shutdown failed", zap.Error(err))
		return
	}
	logger.Info("shutdown completed")
}

// RunShutdown 超时控制关闭逻辑；超时后不再等待 shutdownFunc 返回
func RunShutdown(timeout time.Duration, shutdownFunc func(ctx context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- shutdownFunc(ctx) }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return fmt.Errorf("shutdown exceeded %s: %w", timeout, ctx.Err())
	}
}
