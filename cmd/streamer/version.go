package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var version = "dev"

var versionCMD = &cobra.Command{
	Use:   "version",
	Short: "Print the streamer version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("streamer", version)
	},
}
