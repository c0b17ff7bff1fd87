package agent

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/jmx-collector/internal/server"
	"github.com/jmx-collector/pkg/config"
	"github.com/jmx-collector/pkg/logger"
	"github.com/jmx-collector/pkg/registers"
	"github.com/jmx-collector/pkg/signal"
	"github.com/jmx-collector/pkg/util"
)

const shutdownTimeout = 10 * time.Second

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "jmx-collector",
	Short: "Polls JMX/Jolokia endpoints for MBean attributes and publishes them as GELF-style events",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadConfigWithCli(cmd)
		if err != nil {
			// 统一输出错误到 stderr
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			fmt.Fprintf(os.Stderr, "请检查配置文件路径或使用 -c 参数指定\n")
			os.Exit(1)
		}
		if err := runServer(cmd.Context(), cfg); err != nil {
			fmt.Fprintf(os.Stderr, "服务启动失败: %v\n", err)
			os.Exit(1)
		}
		return nil
	},
}

func Execute() {
	cobra.CheckErr(rootCmd.Execute())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "配置文件路径")
	// 注册分组 flag
	initServerFlags(rootCmd)
	initMonitorFlags(rootCmd)
	initSinkFlags(rootCmd)
	initLogFlags(rootCmd)
}

func runServer(ctx context.Context, cfg *config.Config) error {
	if ctx == nil {
		ctx = context.Background()
	}
	util.PrintBanner("jmx-collector", "ColorBlue")

	log, err := logger.InitLogger(&cfg.Log)
	if err != nil {
		return fmt.Errorf("日志初始化失败: %w", err)
	}
	defer logger.Sync()

	logger.SetDefaultCollector("main")
	logger.Info("log initialization successful",
		zap.String("path", cfg.Log.Path),
		zap.String("level", cfg.Log.Level),
		zap.String("format", cfg.Log.Format))

	registry, agent, err := registers.InitPromRegistry(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("start collectors failed: %w", err)
	}

	var health server.HealthFunc
	if s, ok := agent.(*registers.Scheduler); ok {
		health = s.Running
	}
	httpServer := server.NewHTTPServer(cfg.Server, log.Named("http"), registry, health)
	if err := httpServer.Start(); err != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = agent.Shutdown(shutdownCtx)
		return fmt.Errorf("start HTTP server failed: %w", err)
	}

	// 关闭顺序：HTTP服务 → 调度器（等待进行中的轮询）→ 连接缓存与事件输出
	signal.WaitForShutdown(log, shutdownTimeout, func(ctx context.Context) error {
		if err := httpServer.Shutdown(); err != nil {
			logger.Warn("shutdown HTTP server failed", zap.Error(err))
		}
		if err := agent.Shutdown(ctx); err != nil {
			return fmt.Errorf("shutdown collectors failed: %w", err)
		}
		logger.Info("all services shutdown successfully")
		return nil
	})
	return nil
}
