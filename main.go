package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/zwazel/coding-battle-backend/server"
)

var configPath string

// botarena 入口：serve 启动 HTTP + WebSocket 服务，run 在本地跑一次脚本
func main() {
	root := &cobra.Command{
		Use:          "botarena",
		Short:        "Run uploaded decision scripts through a turn-based simulation",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file (BOTARENA_* env vars override it)")
	root.AddCommand(newServeCmd(), newRunCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup 加载配置并初始化日志，返回后调用方负责 SyncLogger
func setup() (server.Config, error) {
	cfg, err := server.LoadConfig(configPath)
	if err != nil {
		return cfg, err
	}
	if err := server.InitLogger(cfg.Log); err != nil {
		return cfg, err
	}
	return cfg, nil
}
