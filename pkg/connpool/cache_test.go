package connpool_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jmx-collector/pkg/connpool"
	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/jmx/local"
)

type probeConn struct {
	jmx.Connection
	dead   atomic.Bool
	closed atomic.Bool
}

func (p *probeConn) Ping(ctx context.Context) error {
	if p.dead.Load() {
		return errors.New("connection reset")
	}
	return p.Connection.Ping(ctx)
}

func (p *probeConn) Close() error {
	p.closed.Store(true)
	return nil
}

type countingDialer struct {
	mbeans *local.Server
	delay  time.Duration
	dials  atomic.Int32
	mu     sync.Mutex
	conns  []*probeConn
}

func (d *countingDialer) Dial(_ context.Context, _ *jmx.Server) (jmx.Connection, error) {
	d.dials.Add(1)
	time.Sleep(d.delay)
	c := &probeConn{Connection: d.mbeans.Connect()}
	d.mu.Lock()
	d.conns = append(d.conns, c)
	d.mu.Unlock()
	return c, nil
}

func newCache(t *testing.T, d jmx.Dialer) *connpool.Cache {
	t.Helper()
	c := connpool.New(connpool.WithLogger(zaptest.NewLogger(t)), connpool.WithProvider(jmx.ProviderLocal, d))
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func localServer(host string) *jmx.Server {
	return jmx.NewServerBuilder().Host(host).Port("1").ProtocolProvider(jmx.ProviderLocal).Build()
}

func TestReuseLiveConnection(t *testing.T) {
	d := &countingDialer{mbeans: local.NewServer()}
	c := newCache(t, d)
	ctx := context.Background()

	first, err := c.Get(ctx, localServer("a"))
	require.NoError(t, err)
	second, err := c.Get(ctx, localServer("a"))
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.EqualValues(t, 1, d.dials.Load())
	assert.Equal(t, 1, c.Len())
}

func TestRecreateAfterFailedProbe(t *testing.T) {
	d := &countingDialer{mbeans: local.NewServer()}
	var created, evicted atomic.Int32
	c := connpool.New(
		connpool.WithProvider(jmx.ProviderLocal, d),
		connpool.WithHooks(connpool.Hooks{
			OnCreate: func(string) { created.Add(1) },
			OnEvict:  func(string) { evicted.Add(1) },
		}),
	)
	defer c.Close()
	ctx := context.Background()

	first, err := c.Get(ctx, localServer("a"))
	require.NoError(t, err)
	first.(*probeConn).dead.Store(true)

	second, err := c.Get(ctx, localServer("a"))
	require.NoError(t, err)
	assert.NotSame(t, first, second)
	assert.True(t, first.(*probeConn).closed.Load())
	assert.EqualValues(t, 2, created.Load())
	assert.EqualValues(t, 1, evicted.Load())
}

func TestDistinctServersGetDistinctConnections(t *testing.T) {
	d := &countingDialer{mbeans: local.NewServer()}
	c := newCache(t, d)

	a, err := c.Get(context.Background(), localServer("a"))
	require.NoError(t, err)
	b, err := c.Get(context.Background(), localServer("b"))
	require.NoError(t, err)
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, c.Len())
}

func TestConcurrentGetDialsOnce(t *testing.T) {
	d := &countingDialer{mbeans: local.NewServer(), delay: 20 * time.Millisecond}
	c := newCache(t, d)

	var wg sync.WaitGroup
	conns := make([]jmx.Connection, 16)
	for i := range conns {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			conns[i], _ = c.Get(context.Background(), localServer("a"))
		}(i)
	}
	wg.Wait()

	assert.EqualValues(t, 1, d.dials.Load())
	for _, conn := range conns {
		assert.Same(t, conns[0], conn)
	}
}

func TestUnknownProvider(t *testing.T) {
	c := newCache(t, &countingDialer{mbeans: local.NewServer()})
	_, err := c.Get(context.Background(), jmx.NewServerBuilder().Host("a").Port("1").ProtocolProvider("rmi").Build())
	assert.ErrorIs(t, err, jmx.ErrUnknownProvider)
}

func TestServerWithoutAddress(t *testing.T) {
	c := newCache(t, &countingDialer{mbeans: local.NewServer()})
	_, err := c.Get(context.Background(), jmx.NewServerBuilder().ProtocolProvider(jmx.ProviderLocal).Build())
	assert.ErrorIs(t, err, jmx.ErrNoHostOrURL)
}

func TestCloseReleasesConnections(t *testing.T) {
	d := &countingDialer{mbeans: local.NewServer()}
	c := connpool.New(connpool.WithProvider(jmx.ProviderLocal, d))

	conn, err := c.Get(context.Background(), localServer("a"))
	require.NoError(t, err)
	require.NoError(t, c.Close())
	assert.True(t, conn.(*probeConn).closed.Load())

	_, err = c.Get(context.Background(), localServer("a"))
	assert.ErrorIs(t, err, connpool.ErrClosed)
}

// stuckDialer 忽略 ctx，直到 release 被关闭才返回
type stuckDialer struct {
	mbeans  *local.Server
	started chan struct{}
	release chan struct{}
	conn    atomic.Pointer[probeConn]
}

func (d *stuckDialer) Dial(_ context.Context, _ *jmx.Server) (jmx.Connection, error) {
	close(d.started)
	<-d.release
	c := &probeConn{Connection: d.mbeans.Connect()}
	d.conn.Store(c)
	return c, nil
}

func TestCloseDoesNotWaitForInFlightDial(t *testing.T) {
	d := &stuckDialer{mbeans: local.NewServer(), started: make(chan struct{}), release: make(chan struct{})}
	c := connpool.New(connpool.WithLogger(zaptest.NewLogger(t)), connpool.WithProvider(jmx.ProviderLocal, d))

	errc := make(chan error, 1)
	go func() {
		_, err := c.Get(context.Background(), localServer("a"))
		errc <- err
	}()
	<-d.started

	closed := make(chan error, 1)
	go func() { closed <- c.Close() }()
	select {
	case err := <-closed:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Close blocked on an in-flight dial")
	}

	close(d.release)
	assert.ErrorIs(t, <-errc, connpool.ErrClosed)
	require.NotNil(t, d.conn.Load())
	assert.Eventually(t, func() bool { return d.conn.Load().closed.Load() }, time.Second, 10*time.Millisecond)

	_, err := c.Get(context.Background(), localServer("b"))
	assert.ErrorIs(t, err, connpool.ErrClosed)
}
