package sink

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// NATSConfig NATS sink 参数
type NATSConfig struct {
	URL          string
	Subject      string
	Name         string
	Token        string
	User         string
	Password     string
	FlushTimeout time.Duration
}

// NATS 把事件发布到一个 subject，每条消息带 Nats-Msg-Id 头
type NATS struct {
	nc           *nats.Conn
	subject      string
	flushTimeout time.Duration

	closeOnce sync.Once
	closeErr  error
}

// ConnectNATS 连接 NATS 并返回 sink
func ConnectNATS(cfg NATSConfig, log *zap.Logger) (*NATS, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.Subject == "" {
		return nil, fmt.Errorf("nats sink: subject is empty")
	}

	opts := []nats.Option{
		nats.Name(cfg.Name),
		nats.MaxReconnects(-1),
		nats.ErrorHandler(func(_ *nats.Conn, _ *nats.Subscription, err error) {
			log.Warn("nats error", zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	switch {
	case cfg.Token != "":
		opts = append(opts, nats.Token(cfg.Token))
	case cfg.User != "":
		opts = append(opts, nats.UserInfo(cfg.User, cfg.Password))
	}

	nc, err := nats.Connect(cfg.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}
	log.Info("connected to nats", zap.String("url", nc.ConnectedUrl()), zap.String("subject", cfg.Subject))

	timeout := cfg.FlushTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &NATS{nc: nc, subject: cfg.Subject, flushTimeout: timeout}, nil
}

func (n *NATS) Publish(ctx context.Context, payload []byte) error {
	msg := nats.NewMsg(n.subject)
	msg.Header.Set(nats.MsgIdHdr, uuid.NewString())
	msg.Header.Set("Content-Type", "application/json")
	msg.Data = payload

	if err := n.nc.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	fctx, cancel := context.WithTimeout(ctx, n.flushTimeout)
	defer cancel()
	if err := n.nc.FlushWithContext(fctx); err != nil {
		return fmt.Errorf("failed to flush event: %w", err)
	}
	return nil
}

// Close 排空后关闭连接
func (n *NATS) Close() error {
	n.closeOnce.Do(func() {
		if !n.nc.IsClosed() {
			n.closeErr = n.nc.Drain()
		}
	})
	return n.closeErr
}
