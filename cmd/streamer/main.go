package main

import (
	"os"

	"github.com/spf13/cobra"
)

var configPath string

var rootCMD = &cobra.Command{
	Use:   "streamer",
	Short: "Live market data streamer",
	Long: `Connects to the upstream market data feed, aggregates ticks into
per-day OHLC rows and fans live updates out to websocket subscribers.`,
}

func main() {
	if err := rootCMD.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCMD.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCMD.AddCommand(serveCMD, versionCMD)
}
