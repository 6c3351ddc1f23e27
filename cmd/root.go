package cmd

import (
	"os"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/anoixa/yolo-annotator/utils/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// rootCmd 不带子命令时直接启动服务
var rootCmd = &cobra.Command{
	Use:   "yolo-annotator",
	Short: "Backend for collaborative YOLO bounding-box annotation",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		config.InitConfig()
		cfg := config.Get()
		logger.Setup(cfg.LogLevel, cfg.LogFormat)
	},
	Run: func(cmd *cobra.Command, args []string) {
		serveCmd.Run(cmd, args)
	},
}

func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "config file path (eg: /etc/yolo-annotator/config.yaml)")
	err := viper.BindPFlag("config_file_path", rootCmd.PersistentFlags().Lookup("config"))
	if err != nil {
		return
	}
}
