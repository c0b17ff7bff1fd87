package jmx_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmx-collector/pkg/jmx"
)

func TestServerURLDerivation(t *testing.T) {
	tests := []struct {
		name string
		b    *jmx.ServerBuilder
		want string
	}{
		{"jolokia default", jmx.NewServerBuilder().Host("app1").Port("8778"), "http://app1:8778/jolokia/"},
		{"jolokia tls", jmx.NewServerBuilder().Host("app1").Port("8778").TrustStore("/etc/ts.pem", ""), "https://app1:8778/jolokia/"},
		{"proxy", jmx.NewServerBuilder().Host("app1").Port("1099").ProtocolProvider(jmx.ProviderJolokiaProxy), "service:jmx:rmi:///jndi/rmi://app1:1099/jmxrmi"},
		{"local", jmx.NewServerBuilder().Host("self").Port("0").ProtocolProvider(jmx.ProviderLocal), "local://self:0"},
		{"explicit", jmx.NewServerBuilder().URL("http://x:1/j/").Host("ignored").Port("2"), "http://x:1/j/"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.b.Build().URL()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestServerValidationIsLazy(t *testing.T) {
	// building never fails
	s := jmx.NewServerBuilder().Username("u").Build()

	_, err := s.URL()
	assert.ErrorIs(t, err, jmx.ErrNoHostOrURL)
	_, err = s.Host()
	assert.ErrorIs(t, err, jmx.ErrNoHostOrURL)
	_, err = s.Port()
	assert.ErrorIs(t, err, jmx.ErrNoHostOrURL)
}

func TestServerHostPortFromURL(t *testing.T) {
	rmi := jmx.NewServerBuilder().URL("service:jmx:rmi:///jndi/rmi://db7:9010/jmxrmi").Build()
	host, err := rmi.Host()
	require.NoError(t, err)
	port, err := rmi.Port()
	require.NoError(t, err)
	assert.Equal(t, "db7", host)
	assert.Equal(t, "9010", port)

	httpURL := jmx.NewServerBuilder().URL("https://broker-2:8443/jolokia/").Build()
	host, err = httpURL.Host()
	require.NoError(t, err)
	port, err = httpURL.Port()
	require.NoError(t, err)
	assert.Equal(t, "broker-2", host)
	assert.Equal(t, "8443", port)
}

func TestServerBuilderCopiesQueries(t *testing.T) {
	b := jmx.NewServerBuilder().Host("h").Port("1").AddQuery(jmx.NewQuery("java.lang:type=Memory"))
	s := b.Build()
	b.AddQuery(jmx.NewQuery("java.lang:type=Threading"))

	assert.Len(t, s.Queries(), 1)
	assert.Len(t, jmx.BuilderFrom(s).AddQuery(jmx.NewQuery("a:b=c")).Build().Queries(), 2)
	assert.Len(t, s.Queries(), 1)
	assert.Equal(t, jmx.ProviderJolokia, s.ProtocolProvider())
	assert.False(t, s.HasCredentials())
	assert.NotContains(t, jmx.NewServerBuilder().Password("secret").Build().String(), "secret")
}

func TestNewQueryDeduplicatesAttributes(t *testing.T) {
	q := jmx.NewQuery("java.lang:type=Memory", "HeapMemoryUsage", "HeapMemoryUsage", "NonHeapMemoryUsage")
	assert.Equal(t, []string{"HeapMemoryUsage", "NonHeapMemoryUsage"}, q.Attributes())
}
