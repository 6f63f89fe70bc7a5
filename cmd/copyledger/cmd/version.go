package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

const version = "1.0.0"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Long:  `Display the current version of the copyledger CLI.`,
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("copyledger version %s\n", version)
		fmt.Println("Trading account ledger and copy trade relay")
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
