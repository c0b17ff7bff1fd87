package registers

import "context"

// Agent 顶层采集器接口（封装所有采集器的生命周期管理）
type Agent interface {
	Register(collector Collector)       // 注册采集器
	Start(ctx context.Context) error    // 初始化并为每个采集器启动周期任务
	Shutdown(ctx context.Context) error // 优雅停止
}

// Collector 采集器核心接口（每个端点一个实例）
type Collector interface {
	Name() string                      // 采集器名称（唯一标识）
	Init() error                       // 初始化（预检查配置）
	Collect(ctx context.Context) error // 执行一次轮询
	Close() error                      // 关闭（释放资源）
}

// Scheduled 可选接口：返回非空 cron 表达式时替代固定间隔
type Scheduled interface {
	Schedule() string
}
