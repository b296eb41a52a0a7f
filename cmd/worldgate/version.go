package main

import (
	"fmt"

	"github.com/pawaret/worldgate/pkg"
	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(pkg.Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
