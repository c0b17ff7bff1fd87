package collector_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	jsoniter "github.com/json-iterator/go"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jmx-collector/pkg/collector"
	"github.com/jmx-collector/pkg/connpool"
	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/jmx/local"
	"github.com/jmx-collector/pkg/metrics"
	"github.com/jmx-collector/pkg/queryconfig"
)

type recordingSink struct {
	mu     sync.Mutex
	events []map[string]any
}

func (s *recordingSink) Publish(_ context.Context, payload []byte) error {
	var ev map[string]any
	if err := jsoniter.Unmarshal(payload, &ev); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) Close() error { return nil }

func (s *recordingSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

const testQueries = `{
	"type": "test",
	"queries": [
		{"object": "test:type=*", "attributes": [
			{"name": "Usage", "key": "used", "label": "{type}.used"},
			{"name": "Count"}
		]},
		{"object": "test:type=Heap", "attributes": [{"name": "Usage", "key": "max", "label": "heap.max"}]}
	]
}`

func newMBeans(t *testing.T) *local.Server {
	t.Helper()
	s := local.NewServer()
	usage := func(used, max int64) local.Getter {
		return func() (any, error) {
			return map[string]any{"init": 0, "used": used, "committed": used, "max": max}, nil
		}
	}
	require.NoError(t, s.Register("test:type=Heap", local.NewFuncBean("Mem").Attr("Usage", "CompositeData", usage(10, 100)).Static("Count", 3)))
	require.NoError(t, s.Register("test:type=NonHeap", local.NewFuncBean("Mem").Attr("Usage", "CompositeData", usage(5, 50))))
	return s
}

type fixture struct {
	collector *collector.PollCollector
	sink      *recordingSink
	metrics   collector.PollMetrics
}

func newFixture(t *testing.T, mbeans *local.Server, threads int, conns collector.ConnectionSource) *fixture {
	t.Helper()
	qc, err := queryconfig.Parse([]byte(testQueries))
	require.NoError(t, err)

	server := jmx.NewServerBuilder().
		Host("app01").Port("1").
		ProtocolProvider(jmx.ProviderLocal).
		NumQueryThreads(threads).
		AddQuery(qc.JMXQueries()...).
		Build()

	if conns == nil {
		cache := connpool.New(connpool.WithProvider(jmx.ProviderLocal, mbeans.Dialer()))
		t.Cleanup(func() { _ = cache.Close() })
		conns = cache
	}

	pm := collector.NewPollMetrics(metrics.NewMetricFactory(metrics.NewPromRegistry(prometheus.NewRegistry())))
	s := &recordingSink{}
	c := collector.NewPollCollector(collector.Options{
		Server:      server,
		QueryConfig: qc,
		Label:       "prod",
		Conns:       conns,
		Sink:        s,
		Metrics:     &pm,
		Logger:      zaptest.NewLogger(t),
	})
	require.NoError(t, c.Init())
	return &fixture{collector: c, sink: s, metrics: pm}
}

func TestCollectPublishesOneEvent(t *testing.T) {
	for _, threads := range []int{0, 2} {
		f := newFixture(t, newMBeans(t), threads, nil)
		require.NoError(t, f.collector.Collect(context.Background()))
		require.Equal(t, 1, f.sink.Len())

		ev := f.sink.events[0]
		assert.Equal(t, "1.1", ev["version"])
		assert.Equal(t, "test", ev["_object"])
		assert.Equal(t, "app01", ev["host"])
		assert.Equal(t, "prod", ev["_label"])
		assert.Equal(t, "JMX", ev["short_message"])
		assert.EqualValues(t, 10, ev["_heap.used"])
		assert.EqualValues(t, 5, ev["_nonheap.used"])
		assert.EqualValues(t, 3, ev["_Count"])
		assert.EqualValues(t, 100, ev["_heap.max"])
		assert.NotContains(t, ev, "_Usage.init")

		assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Published.WithLabelValues(f.collector.Name())))
	}
}

func TestCollectSkipsPublishWhenCancelled(t *testing.T) {
	f := newFixture(t, newMBeans(t), 0, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.Error(t, f.collector.Collect(ctx))
	assert.Zero(t, f.sink.Len())
}

type failingConns struct{}

func (failingConns) Get(context.Context, *jmx.Server) (jmx.Connection, error) {
	return nil, errors.New("connection refused")
}

func TestCollectConnectFailure(t *testing.T) {
	f := newFixture(t, nil, 0, failingConns{})
	err := f.collector.Collect(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.sink.Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Errors.WithLabelValues(f.collector.Name(), collector.StageConnect)))
}

type brokenBean struct{}

func (brokenBean) Info() jmx.MBeanInfo {
	return jmx.MBeanInfo{ClassName: "Broken", Attributes: []jmx.AttributeInfo{{Name: "Usage", Readable: true}}}
}

func (brokenBean) Attribute(string) (jmx.Value, error) { return nil, jmx.ErrClassNotFound }

func TestCollectToleratesMissingClass(t *testing.T) {
	mbeans := newMBeans(t)
	require.NoError(t, mbeans.Register("test:type=Remote", brokenBean{}))

	f := newFixture(t, mbeans, 0, nil)
	require.NoError(t, f.collector.Collect(context.Background()))
	require.Equal(t, 1, f.sink.Len())
	assert.EqualValues(t, 10, f.sink.events[0]["_heap.used"])
}

func TestInitRejectsMismatchedQueries(t *testing.T) {
	qc, err := queryconfig.Parse([]byte(testQueries))
	require.NoError(t, err)
	c := collector.NewPollCollector(collector.Options{
		Server:      jmx.NewServerBuilder().Host("h").Port("1").Build(),
		QueryConfig: qc,
		Conns:       failingConns{},
		Sink:        &recordingSink{},
	})
	assert.Error(t, c.Init())

	c = collector.NewPollCollector(collector.Options{
		Server: jmx.NewServerBuilder().Build(),
	})
	assert.ErrorIs(t, c.Init(), jmx.ErrNoHostOrURL)
}
