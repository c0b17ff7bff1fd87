package queryconfig_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmx-collector/pkg/queryconfig"
)

func TestLoadPresets(t *testing.T) {
	assert.Equal(t, []string{"go", "jvm"}, queryconfig.Presets())

	for _, name := range queryconfig.Presets() {
		c, err := queryconfig.Load(name, "")
		require.NoError(t, err, name)
		assert.Equal(t, name, c.Type)
		assert.NotEmpty(t, c.Queries)
	}
}

func TestJVMPresetQueries(t *testing.T) {
	c, err := queryconfig.Load("JVM", "")
	require.NoError(t, err)

	qs := c.JMXQueries()
	require.Len(t, qs, len(c.Queries))
	assert.Equal(t, "java.lang:type=Memory", qs[0].Object())
	// HeapMemoryUsage is declared per key but fetched once
	assert.Equal(t, []string{"HeapMemoryUsage", "NonHeapMemoryUsage", "ObjectPendingFinalizationCount"}, qs[0].Attributes())

	a, ok := c.Queries[0].Attribute("HeapMemoryUsage.used")
	require.True(t, ok)
	assert.Equal(t, "heap.used", a.Template())

	_, ok = c.Queries[0].Attribute("HeapMemoryUsage.init")
	assert.False(t, ok)
}

func TestLoadCustomFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "kafka.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
		"type": "kafka",
		"queries": [
			{"object": "kafka.server:type=BrokerTopicMetrics,name=*",
			 "attributes": [{"name": "Count", "label": "{name}.count"}, {"name": "OneMinuteRate"}]}
		]
	}`), 0o600))

	c, err := queryconfig.Load(queryconfig.TypeCustom, path)
	require.NoError(t, err)
	assert.Equal(t, "kafka", c.Type)

	a, ok := c.Queries[0].Attribute("OneMinuteRate")
	require.True(t, ok)
	assert.Equal(t, "OneMinuteRate", a.Template())
}

func TestLoadErrors(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
		return p
	}

	tests := []struct {
		name string
		typ  string
		path string
	}{
		{"missing custom file", queryconfig.TypeCustom, filepath.Join(dir, "nope.json")},
		{"custom without path", queryconfig.TypeCustom, ""},
		{"unknown preset", "weblogic", ""},
		{"malformed json", queryconfig.TypeCustom, write("bad.json", `{"queries": [`)},
		{"empty object", queryconfig.TypeCustom, write("empty.json", `{}`)},
		{"blank pattern", queryconfig.TypeCustom, write("blank.json", `{"queries":[{"object":" ","attributes":[]}]}`)},
		{"nameless attribute", queryconfig.TypeCustom, write("noname.json", `{"queries":[{"object":"a:b=c","attributes":[{"label":"x"}]}]}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := queryconfig.Load(tt.typ, tt.path)
			assert.ErrorIs(t, err, queryconfig.ErrQueryConfig)
			assert.Nil(t, c)
		})
	}
}

func TestAttributeTemplateFallbacks(t *testing.T) {
	assert.Equal(t, "legacy", queryconfig.GLAttribute{Name: "A", Alias: "legacy"}.Template())
	assert.Equal(t, "label", queryconfig.GLAttribute{Name: "A", Label: "label", Alias: "legacy"}.Template())
	assert.Equal(t, "A.used", queryconfig.GLAttribute{Name: "A", Key: "used"}.Template())
	assert.Equal(t, "A", queryconfig.LookupKey("A", ""))
}

func TestAttributeWithoutIndex(t *testing.T) {
	q := &queryconfig.GLQuery{Object: "a:b=c", Attributes: []queryconfig.GLAttribute{{Name: "X", Key: "k", Label: "x"}}}
	a, ok := q.Attribute("X.k")
	require.True(t, ok)
	assert.Equal(t, "x", a.Label)
}
