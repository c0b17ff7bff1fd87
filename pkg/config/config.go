package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var valid = validator.New()

// Config 全局配置
type Config struct {
	Server  ServerConfig  `yaml:"server" mapstructure:"server" comment:"自监控HTTP服务配置"`
	Monitor MonitorConfig `yaml:"monitor" mapstructure:"monitor" comment:"JMX 采集配置"`
	Sink    SinkConfig    `yaml:"sink" mapstructure:"sink" comment:"事件输出配置"`
	Log     ZapLogConfig  `yaml:"log" mapstructure:"log" comment:"日志配置"`
}

// ServerConfig HTTP服务配置（/metrics /health）
type ServerConfig struct {
	Addr          string        `yaml:"addr" mapstructure:"addr" env:"HTTP_ADDR" validate:"required,hostname_port" comment:"HTTP监听地址（格式：ip:port）"`
	ReadTimeout   time.Duration `yaml:"read_timeout" mapstructure:"read_timeout" env:"HTTP_READ_TIMEOUT" validate:"required,gt=0" comment:"读取超时时间（如30s）"`
	WriteTimeout  time.Duration `yaml:"write_timeout" mapstructure:"write_timeout" env:"HTTP_WRITE_TIMEOUT" validate:"required,gt=0" comment:"写入超时时间（如30s）"`
	IdleTimeout   time.Duration `yaml:"idle_timeout" mapstructure:"idle_timeout" env:"HTTP_IDLE_TIMEOUT" validate:"required,gt=0" comment:"空闲连接超时时间（如60s）"`
	EnableProcess bool          `yaml:"enable_process" mapstructure:"enable_process" comment:"是否附带进程与Go运行时指标" default:"true"`
}

// 时间单位（interval_unit）
const (
	UnitMilliseconds = "MILLISECONDS"
	UnitSeconds      = "SECONDS"
	UnitMinutes      = "MINUTES"
	UnitHours        = "HOURS"
	UnitDays         = "DAYS"
)

var units = map[string]time.Duration{
	UnitMilliseconds: time.Millisecond,
	UnitSeconds:      time.Second,
	UnitMinutes:      time.Minute,
	UnitHours:        time.Hour,
	UnitDays:         24 * time.Hour,
}

// MonitorConfig 采集端点与查询配置
type MonitorConfig struct {
	Hosts              []string      `yaml:"hosts" mapstructure:"hosts" env:"MONITOR_HOSTS" comment:"逗号分隔的主机列表"`
	Port               string        `yaml:"port" mapstructure:"port" env:"MONITOR_PORT" comment:"端口"`
	URL                string        `yaml:"url" mapstructure:"url" comment:"显式端点URL（仅单主机时可用）"`
	Label              string        `yaml:"label" mapstructure:"label" env:"MONITOR_LABEL" comment:"写入事件 _label 字段"`
	Interval           int64         `yaml:"interval" mapstructure:"interval" env:"MONITOR_INTERVAL" validate:"gt=0" comment:"采集间隔数值" default:"60"`
	IntervalUnit       string        `yaml:"interval_unit" mapstructure:"interval_unit" validate:"required,oneof=MILLISECONDS SECONDS MINUTES HOURS DAYS" comment:"采集间隔单位" default:"SECONDS"`
	Username           string        `yaml:"username" mapstructure:"username" comment:"认证用户名"`
	Password           string        `yaml:"password" mapstructure:"password" comment:"认证密码"`
	Type               string        `yaml:"type" mapstructure:"type" validate:"required" comment:"查询预设名或 custom" default:"jvm"`
	CustomFilePath     string        `yaml:"custom_file_path" mapstructure:"custom_file_path" comment:"自定义查询文件路径（type=custom）"`
	TrustStorePath     string        `yaml:"trust_store_path" mapstructure:"trust_store_path" comment:"信任库路径（PEM 或 PKCS#12）"`
	TrustStorePass     string        `yaml:"trust_store_pass" mapstructure:"trust_store_pass" comment:"信任库口令"`
	Provider           string        `yaml:"protocol_provider" mapstructure:"protocol_provider" validate:"omitempty,oneof=jolokia jolokia-proxy local" comment:"协议提供者" default:"jolokia"`
	ProxyURL           string        `yaml:"proxy_url" mapstructure:"proxy_url" validate:"omitempty,url" comment:"Jolokia 代理地址"`
	NumQueryThreads    int           `yaml:"num_query_threads" mapstructure:"num_query_threads" validate:"gte=0" comment:"单端点并行查询数（0 为顺序执行）" default:"0"`
	Schedule           string        `yaml:"schedule" mapstructure:"schedule" comment:"cron 表达式，设置后替代固定间隔"`
	MaxJitter          time.Duration `yaml:"max_jitter" mapstructure:"max_jitter" validate:"gte=0" comment:"首次采集的最大随机延迟" default:"60s"`
	MaxConcurrentPolls int           `yaml:"max_concurrent_polls" mapstructure:"max_concurrent_polls" validate:"gte=0" comment:"同时进行的轮询数上限（0 为每个端点一个）" default:"0"`
}

// Period 采集周期 = interval × unit
func (m *MonitorConfig) Period() time.Duration {
	return time.Duration(m.Interval) * units[strings.ToUpper(m.IntervalUnit)]
}

// SinkConfig 事件输出
type SinkConfig struct {
	Type string     `yaml:"type" mapstructure:"type" validate:"required,oneof=stdout file nats" comment:"输出类型 stdout/file/nats" default:"stdout"`
	Path string     `yaml:"path" mapstructure:"path" comment:"type=file 时的输出文件"`
	NATS NATSConfig `yaml:"nats" mapstructure:"nats" comment:"type=nats 时的连接参数"`
}

// NATSConfig NATS 输出参数
type NATSConfig struct {
	URL          string        `yaml:"url" mapstructure:"url" comment:"NATS 地址" default:"nats://127.0.0.1:4222"`
	Subject      string        `yaml:"subject" mapstructure:"subject" comment:"发布的 subject" default:"jmx.events"`
	Name         string        `yaml:"name" mapstructure:"name" comment:"连接名称" default:"jmx-collector"`
	Token        string        `yaml:"token" mapstructure:"token" comment:"token 认证"`
	User         string        `yaml:"user" mapstructure:"user" comment:"用户名"`
	Password     string        `yaml:"password" mapstructure:"password" comment:"密码"`
	FlushTimeout time.Duration `yaml:"flush_timeout" mapstructure:"flush_timeout" validate:"gte=0" comment:"发布确认超时" default:"5s"`
}

// ZapLogConfig 日志配置
type ZapLogConfig struct {
	Level     string `yaml:"level" mapstructure:"level" env:"LOG_LEVEL" validate:"required,oneof=debug info warn error dpanic panic fatal" comment:"日志级别" default:"info"`
	Format    string `yaml:"format" mapstructure:"format" env:"LOG_FORMAT" validate:"required,oneof=json console" comment:"日志格式（json/console）" default:"json"`
	Path      string `yaml:"path" mapstructure:"path" env:"LOG_PATH" validate:"required" comment:"日志存储路径" default:"./logs"`
	MaxSize   int    `yaml:"max_size" mapstructure:"max_size" env:"LOG_MAX_SIZE" validate:"required,gt=0" comment:"单个日志文件最大大小（MB）" default:"100"`
	MaxBackup int    `yaml:"max_backup" mapstructure:"max_backup" env:"LOG_MAX_BACKUP" validate:"gte=0" comment:"日志文件最大备份数" default:"30"`
	MaxAge    int    `yaml:"max_age" mapstructure:"max_age" env:"LOG_MAX_AGE" validate:"gte=0" comment:"日志文件最大保存天数" default:"7"`
}

// NewDefaultConfig 创建默认配置
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:          "0.0.0.0:8080",
			ReadTimeout:   30 * time.Second,
			WriteTimeout:  30 * time.Second,
			IdleTimeout:   60 * time.Second,
			EnableProcess: true,
		},
		Monitor: MonitorConfig{
			Hosts:        []string{"localhost"},
			Port:         "8778",
			Interval:     60,
			IntervalUnit: UnitSeconds,
			Type:         "jvm",
			Provider:     "jolokia",
			MaxJitter:    60 * time.Second,
		},
		Sink: SinkConfig{
			Type: "stdout",
			NATS: NATSConfig{
				URL:          "nats://127.0.0.1:4222",
				Subject:      "jmx.events",
				Name:         "jmx-collector",
				FlushTimeout: 5 * time.Second,
			},
		},
		Log: ZapLogConfig{
			Level:     "info",
			Format:    "json",
			Path:      "./logs",
			MaxSize:   100,
			MaxBackup: 30,
			MaxAge:    7,
		},
	}
}

// LoadConfigWithCli (Flags + YAML + ENV)
func LoadConfigWithCli(cmd *cobra.Command) (*Config, error) {
	v := viper.New()

	// 1. 绑定 Cobra Flags → Viper
	if err := v.BindPFlags(cmd.Flags()); err != nil {
		return nil, fmt.Errorf("bind flags: %w", err)
	}

	// 2. 解析配置文件 (--config)
	configFile, _ := cmd.Flags().GetString("config")
	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", configFile, err)
		}
	}

	// 3. 环境变量 JMX_MONITOR_HOSTS -> monitor.hosts
	v.SetEnvPrefix("JMX")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return decode(v)
}

// Load 仅从 YAML 文件加载（测试与工具使用）
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config file %s: %w", path, err)
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	cfg := NewDefaultConfig()

	// 4. 解码到结构体（支持 time.Duration 与逗号分隔列表）
	decoderConfig := &mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	}
	decoder, err := mapstructure.NewDecoder(decoderConfig)
	if err != nil {
		return nil, fmt.Errorf("new decoder: %w", err)
	}
	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	// 配置了 url 时，未显式给出的 hosts/port 不取默认值，由 url 推导
	if cfg.Monitor.URL != "" {
		if !v.IsSet("monitor.hosts") {
			cfg.Monitor.Hosts = nil
		}
		if !v.IsSet("monitor.port") {
			cfg.Monitor.Port = ""
		}
	}

	// 5. 校验配置
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return cfg, nil
}

// Validate 配置校验
func (c *Config) Validate() error {
	c.Monitor.IntervalUnit = strings.ToUpper(strings.TrimSpace(c.Monitor.IntervalUnit))
	if err := valid.Struct(c); err != nil {
		return err
	}
	if err := c.Server.Validate(); err != nil {
		return err
	}
	if err := c.Monitor.Validate(); err != nil {
		return err
	}
	if err := c.Sink.Validate(); err != nil {
		return err
	}
	return c.Log.Validate()
}
