package sink

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed sink 已关闭
var ErrClosed = errors.New("sink closed")

// Sink 接收序列化后的事件，一次调用一个事件
type Sink interface {
	Publish(ctx context.Context, payload []byte) error
	Close() error
}

// Serialized 保证同一时刻只有一个 Publish 在执行
type Serialized struct {
	mu   sync.Mutex
	next Sink
}

// Serialize 包装 s；已经是 *Serialized 时直接返回
func Serialize(s Sink) *Serialized {
	if ser, ok := s.(*Serialized); ok {
		return ser
	}
	return &Serialized{next: s}
}

func (s *Serialized) Publish(ctx context.Context, payload []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.next.Publish(ctx, payload)
}

func (s *Serialized) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.next.Close()
}
