package agent

import (
	"github.com/spf13/cobra"
)

func initSinkFlags(root *cobra.Command) {
	f := root.PersistentFlags()

	f.String("sink.type", defaultCfg.Sink.Type, "-> Event sink [stdout,file,nats] | 事件输出类型")
	f.String("sink.path", "", "-> Output file when sink.type=file | 输出文件")
	f.String("sink.nats.url", defaultCfg.Sink.NATS.URL, "-> NATS server URL | NATS 地址")
	f.String("sink.nats.subject", defaultCfg.Sink.NATS.Subject, "-> NATS subject | 发布 subject")
	f.String("sink.nats.name", defaultCfg.Sink.NATS.Name, "-> NATS connection name | 连接名称")
	f.String("sink.nats.token", "", "-> NATS token | token 认证")
	f.String("sink.nats.user", "", "-> NATS user | 用户名")
	f.String("sink.nats.password", "", "-> NATS password | 密码")
	f.Duration("sink.nats.flush_timeout", defaultCfg.Sink.NATS.FlushTimeout, "-> Publish flush timeout | 发布确认超时")
}
