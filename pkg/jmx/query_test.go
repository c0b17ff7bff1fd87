package jmx_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jmx-collector/pkg/jmx"
	"github.com/jmx-collector/pkg/objectname"
)

type fakeBean struct {
	info   jmx.MBeanInfo
	values map[string]jmx.Value
	err    error
}

type fakeConn struct {
	beans    map[string]*fakeBean
	getCalls int
	namesErr error
}

func (f *fakeConn) Ping(context.Context) error { return nil }

func (f *fakeConn) QueryNames(_ context.Context, pattern objectname.ObjectName) ([]objectname.ObjectName, error) {
	if f.namesErr != nil {
		return nil, f.namesErr
	}
	var out []objectname.ObjectName
	for n := range f.beans {
		on := objectname.MustParse(n)
		if pattern.Match(on) {
			out = append(out, on)
		}
	}
	return out, nil
}

func (f *fakeConn) MBeanInfo(_ context.Context, name objectname.ObjectName) (jmx.MBeanInfo, error) {
	b, ok := f.beans[name.String()]
	if !ok {
		return jmx.MBeanInfo{}, jmx.ErrInstanceNotFound
	}
	return b.info, nil
}

func (f *fakeConn) GetAttributes(_ context.Context, name objectname.ObjectName, attrs []string) ([]jmx.Attribute, error) {
	f.getCalls++
	b := f.beans[name.String()]
	if b.err != nil {
		return nil, b.err
	}
	out := make([]jmx.Attribute, 0, len(attrs))
	for _, a := range attrs {
		v, ok := b.values[a]
		if !ok {
			return nil, fmt.Errorf("%w: %s", jmx.ErrAttributeNotFound, a)
		}
		out = append(out, jmx.Attribute{Name: a, Value: v})
	}
	return out, nil
}

func (f *fakeConn) Close() error { return nil }

func memoryUsage(used int64) jmx.Value {
	return jmx.NewComposite(map[string]jmx.Value{
		"init":      jmx.Scalar{V: int64(0)},
		"used":      jmx.Scalar{V: used},
		"committed": jmx.Scalar{V: used * 2},
		"max":       jmx.Scalar{V: int64(-1)},
	})
}

func newFakeConn() *fakeConn {
	return &fakeConn{beans: map[string]*fakeBean{
		"java.lang:type=Memory": {
			info: jmx.MBeanInfo{ClassName: "sun.management.MemoryImpl", Attributes: []jmx.AttributeInfo{
				{Name: "HeapMemoryUsage", Readable: true},
				{Name: "NonHeapMemoryUsage", Readable: true},
				{Name: "Verbose", Readable: true},
			}},
			values: map[string]jmx.Value{
				"HeapMemoryUsage":    memoryUsage(100),
				"NonHeapMemoryUsage": memoryUsage(10),
				"Verbose":            jmx.Scalar{V: false},
			},
		},
		"java.lang:type=GarbageCollector,name=G1 Old": {
			info:   jmx.MBeanInfo{ClassName: "GarbageCollectorImpl", Attributes: []jmx.AttributeInfo{{Name: "CollectionCount", Readable: true}}},
			values: map[string]jmx.Value{"CollectionCount": jmx.Scalar{V: int64(3)}},
		},
		"java.lang:type=GarbageCollector,name=G1 Young": {
			info:   jmx.MBeanInfo{ClassName: "GarbageCollectorImpl", Attributes: []jmx.AttributeInfo{{Name: "CollectionCount", Readable: true}}},
			values: map[string]jmx.Value{"CollectionCount": jmx.Scalar{V: int64(40)}},
		},
		"app:type=Empty": {
			info: jmx.MBeanInfo{ClassName: "Empty"},
		},
		"app:type=Remote": {
			info: jmx.MBeanInfo{ClassName: "Remote", Attributes: []jmx.AttributeInfo{{Name: "Foo", Readable: true}}},
			err:  fmt.Errorf("unmarshal: %w", jmx.ErrClassNotFound),
		},
		"app:type=Broken": {
			info: jmx.MBeanInfo{ClassName: "Broken", Attributes: []jmx.AttributeInfo{{Name: "Foo", Readable: true}}},
			err:  errors.New("connection reset by peer"),
		},
	}}
}

func TestProcessQueryNamedAttributes(t *testing.T) {
	conn := newFakeConn()
	p := jmx.NewQueryProcessor(zaptest.NewLogger(t))

	out, err := p.ProcessQuery(context.Background(), conn,
		jmx.NewQuery("java.lang:type=Memory", "HeapMemoryUsage", "NonHeapMemoryUsage"))
	require.NoError(t, err)
	require.Len(t, out, 1)

	obj := out[0]
	assert.Equal(t, "java.lang:type=Memory", obj.Ref.Canonical)
	require.Len(t, obj.Results, 2)
	for _, r := range obj.Results {
		assert.Equal(t, "sun.management.MemoryImpl", r.ClassName)
		assert.Equal(t, "java.lang", r.Domain)
		assert.ElementsMatch(t, []string{"init", "used", "committed", "max"}, keys(r.Values))
	}
	assert.Equal(t, "HeapMemoryUsage", obj.Results[0].AttributeName)
	assert.Equal(t, "NonHeapMemoryUsage", obj.Results[1].AttributeName)
}

func TestProcessQueryAllAttributesWhenNoneNamed(t *testing.T) {
	conn := newFakeConn()
	out, err := jmx.NewQueryProcessor(nil).ProcessQuery(context.Background(), conn, jmx.NewQuery("java.lang:type=Memory"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Len(t, out[0].Results, 3)
}

func TestProcessQueryWildcardOrderedByCanonicalName(t *testing.T) {
	conn := newFakeConn()
	out, err := jmx.NewQueryProcessor(nil).ProcessQuery(context.Background(), conn,
		jmx.NewQuery("java.lang:type=GarbageCollector,*", "CollectionCount"))
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, "java.lang:name=G1 Old,type=GarbageCollector", out[0].Ref.Canonical)
	assert.Equal(t, "java.lang:name=G1 Young,type=GarbageCollector", out[1].Ref.Canonical)

	name, ok := out[1].Ref.Property("name")
	require.True(t, ok)
	assert.Equal(t, "G1 Young", name)
}

func TestProcessQueryNoMatchIsNotAnError(t *testing.T) {
	out, err := jmx.NewQueryProcessor(nil).ProcessQuery(context.Background(), newFakeConn(), jmx.NewQuery("nothing:type=*"))
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestProcessQuerySkipsRemoteCallWithoutAttributes(t *testing.T) {
	conn := newFakeConn()
	out, err := jmx.NewQueryProcessor(nil).ProcessQuery(context.Background(), conn, jmx.NewQuery("app:type=Empty"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Results)
	assert.Zero(t, conn.getCalls)
}

func TestProcessQuerySwallowsClassNotFound(t *testing.T) {
	out, err := jmx.NewQueryProcessor(zaptest.NewLogger(t)).ProcessQuery(context.Background(), newFakeConn(), jmx.NewQuery("app:type=Remote"))
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Empty(t, out[0].Results)
}

func TestProcessQueryPropagatesOtherFailures(t *testing.T) {
	p := jmx.NewQueryProcessor(nil)
	conn := newFakeConn()

	_, err := p.ProcessQuery(context.Background(), conn, jmx.NewQuery("app:type=Broken"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	_, err = p.ProcessQuery(context.Background(), conn, jmx.NewQuery("not a name"))
	assert.ErrorIs(t, err, objectname.ErrMalformed)

	conn.namesErr = errors.New("i/o timeout")
	_, err = p.ProcessQuery(context.Background(), conn, jmx.NewQuery("java.lang:*"))
	assert.Error(t, err)

	_, err = p.ProcessQuery(context.Background(), newFakeConn(), jmx.NewQuery("java.lang:type=Memory", "Missing"))
	assert.ErrorIs(t, err, jmx.ErrAttributeNotFound)
}
