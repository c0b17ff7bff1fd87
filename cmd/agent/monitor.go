package agent

import (
	"github.com/spf13/cobra"
)

func initMonitorFlags(root *cobra.Command) {
	f := root.PersistentFlags()
	p := "monitor."

	f.StringSlice(p+"hosts", defaultCfg.Monitor.Hosts, "-> Comma separated JMX hosts | 逗号分隔的主机列表")
	f.String(p+"port", defaultCfg.Monitor.Port, "-> JMX/Jolokia port | 端口")
	f.String(p+"url", defaultCfg.Monitor.URL, "-> Explicit endpoint URL, single host only | 显式端点URL（仅单主机）")
	f.String(p+"label", defaultCfg.Monitor.Label, "-> Value of the _label event field | 事件 _label 字段")
	f.Int64(p+"interval", defaultCfg.Monitor.Interval, "-> Polling interval value | 采集间隔数值")
	f.String(p+"interval_unit", defaultCfg.Monitor.IntervalUnit, "-> Interval unit [MILLISECONDS,SECONDS,MINUTES,HOURS,DAYS] | 间隔单位")
	f.String(p+"username", "", "-> Endpoint username | 认证用户名")
	f.String(p+"password", "", "-> Endpoint password | 认证密码")
	f.String(p+"type", defaultCfg.Monitor.Type, "-> Query preset [jvm,go] or custom | 查询预设或 custom")
	f.String(p+"custom_file_path", "", "-> Query definition file when type=custom | 自定义查询文件")
	f.String(p+"trust_store_path", "", "-> Trust store (PEM or PKCS#12) | 信任库路径")
	f.String(p+"trust_store_pass", "", "-> Trust store passphrase | 信任库口令")
	f.String(p+"protocol_provider", defaultCfg.Monitor.Provider, "-> Protocol provider [jolokia,jolokia-proxy,local] | 协议提供者")
	f.String(p+"proxy_url", "", "-> Jolokia proxy agent URL | Jolokia 代理地址")
	f.Int(p+"num_query_threads", defaultCfg.Monitor.NumQueryThreads, "-> Parallel queries per server, 0 = sequential | 单端点并行查询数")
	f.String(p+"schedule", "", "-> Cron expression replacing the fixed interval | cron 表达式")
	f.Duration(p+"max_jitter", defaultCfg.Monitor.MaxJitter, "-> Max random delay before the first poll | 首次采集最大随机延迟")
	f.Int(p+"max_concurrent_polls", defaultCfg.Monitor.MaxConcurrentPolls, "-> Max polls running at once, 0 = one per server | 同时进行的轮询数上限")
}
