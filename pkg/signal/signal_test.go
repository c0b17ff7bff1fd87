package signal_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jmx-collector/pkg/signal"
)

func TestRunShutdown(t *testing.T) {
	assert.NoError(t, signal.RunShutdown(time.Second, func(context.Context) error { return nil }))

	boom := errors.New("boom")
	assert.ErrorIs(t, signal.RunShutdown(time.Second, func(context.Context) error { return boom }), boom)

	err := signal.RunShutdown(10*time.Millisecond, func(ctx context.Context) error {
		time.Sleep(time.Second)
		return nil
	})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
