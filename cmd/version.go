package cmd

import (
	"fmt"
	"runtime"

	"github.com/anoixa/yolo-annotator/config"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("yolo-annotator %s (%s) %s\n", config.Version, config.CommitHash, runtime.Version())
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
