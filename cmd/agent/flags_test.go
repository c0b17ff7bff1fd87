package agent

import (
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"

	"github.com/jmx-collector/pkg/config"
)

// configKeys 按 mapstructure 标签展开配置结构体的全部叶子键
func configKeys(prefix string, t reflect.Type, out map[string]bool) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		name := strings.Split(f.Tag.Get("mapstructure"), ",")[0]
		if name == "" {
			continue
		}
		key := prefix + name
		if f.Type.Kind() == reflect.Struct {
			configKeys(key+".", f.Type, out)
			continue
		}
		out[key] = true
	}
}

func TestEveryFlagMapsToConfigKey(t *testing.T) {
	keys := map[string]bool{}
	configKeys("", reflect.TypeOf(config.Config{}), keys)

	rootCmd.PersistentFlags().VisitAll(func(f *pflag.Flag) {
		if f.Name == "config" {
			return
		}
		assert.True(t, keys[f.Name], "flag %s has no config key", f.Name)
	})
	assert.Nil(t, rootCmd.PersistentFlags().Lookup("log.compress"))
}
