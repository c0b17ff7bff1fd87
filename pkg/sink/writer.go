package sink

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Writer 以换行分隔的 JSON 写入 io.Writer（stdout 或追加文件）
type Writer struct {
	w      io.Writer
	closer io.Closer
	closed bool
}

// NewWriter 包装任意 io.Writer，Close 不会关闭它
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Stdout 写到标准输出
func Stdout() *Writer {
	return NewWriter(os.Stdout)
}

// OpenFile 以追加方式打开文件，必要时创建父目录
func OpenFile(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sink directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sink file %s: %w", path, err)
	}
	return &Writer{w: f, closer: f}, nil
}

func (w *Writer) Publish(_ context.Context, payload []byte) error {
	if w.closed {
		return ErrClosed
	}
	line := make([]byte, 0, len(payload)+1)
	line = append(line, payload...)
	line = append(line, '\n')
	if _, err := w.w.Write(line); err != nil {
		return fmt.Errorf("write event: %w", err)
	}
	return nil
}

func (w *Writer) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true
	if w.closer != nil {
		return w.closer.Close()
	}
	return nil
}
