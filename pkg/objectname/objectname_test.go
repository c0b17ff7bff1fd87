package objectname_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmx-collector/pkg/objectname"
)

func TestParseKeepsOrderAndCanonicalizes(t *testing.T) {
	on, err := objectname.Parse("java.lang:type=GarbageCollector,name=G1 Young Generation")
	require.NoError(t, err)

	assert.Equal(t, "java.lang", on.Domain())
	assert.Equal(t, []objectname.Property{
		{Key: "type", Value: "GarbageCollector"},
		{Key: "name", Value: "G1 Young Generation"},
	}, on.Properties())
	assert.Equal(t, "java.lang:name=G1 Young Generation,type=GarbageCollector", on.CanonicalName())
	assert.Equal(t, "java.lang:type=GarbageCollector,name=G1 Young Generation", on.String())
	assert.False(t, on.IsPattern())
}

func TestParseQuotedValueWithComma(t *testing.T) {
	on, err := objectname.Parse(`app:type=Cache,name="a,b"`)
	require.NoError(t, err)

	v, ok := on.Property("name")
	require.True(t, ok)
	assert.Equal(t, `"a,b"`, v)
	assert.Equal(t, "a,b", objectname.Unquote(v))
}

func TestParseMalformed(t *testing.T) {
	cases := []string{
		"no-domain-separator",
		"java.lang:",
		"java.lang:type",
		"java.lang:type=",
		"java.lang:type=A,type=B",
		`java.lang:name="open`,
		"java.lang:type=A,,name=B",
	}
	for _, c := range cases {
		t.Run(c, func(t *testing.T) {
			_, err := objectname.Parse(c)
			require.Error(t, err)
			assert.True(t, errors.Is(err, objectname.ErrMalformed))
		})
	}
}

func TestPatternMatch(t *testing.T) {
	memory := objectname.MustParse("java.lang:type=Memory")
	gc := objectname.MustParse("java.lang:type=GarbageCollector,name=PS Scavenge")
	kafka := objectname.MustParse("kafka.server:type=BrokerTopicMetrics,name=MessagesInPerSec")

	tests := []struct {
		pattern string
		name    objectname.ObjectName
		want    bool
	}{
		{"java.lang:type=Memory", memory, true},
		{"java.lang:type=*", memory, true},
		{"java.lang:type=*", gc, false},
		{"java.lang:type=GarbageCollector,*", gc, true},
		{"java.lang:*", gc, true},
		{"java.*:type=Memory", memory, true},
		{"*:type=Memory", memory, true},
		{"kafka.server:type=BrokerTopicMetrics,name=Messages??PerSec", kafka, true},
		{"kafka.server:type=BrokerTopicMetrics,name=Bytes*", kafka, false},
		{"java.lang:name=PS Scavenge,type=GarbageCollector", gc, true},
	}
	for _, tt := range tests {
		t.Run(tt.pattern, func(t *testing.T) {
			p, err := objectname.Parse(tt.pattern)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.Match(tt.name))
		})
	}
}

func TestPatternFlags(t *testing.T) {
	assert.True(t, objectname.MustParse("java.lang:*").IsPattern())
	assert.True(t, objectname.MustParse("java.lang:type=*").IsPattern())
	assert.True(t, objectname.MustParse("java.*:type=Memory").IsPattern())
	assert.False(t, objectname.MustParse(`app:name="a*"`).IsPattern())
	assert.Equal(t, "java.lang:type=GarbageCollector,*", objectname.MustParse("java.lang:type=GarbageCollector,*").CanonicalName())
}
