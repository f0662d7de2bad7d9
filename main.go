package main

import (
	"os"

	"github.com/cottand/bamlc/cmd"
	"github.com/spf13/cobra"
)

func main() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "bamlc [subcommand]",
	Short:        "bamlc compiles schemas of typed LLM functions and coerces model output into their types",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
}

func init() {
	cmd.AddGlobalFlags(rootCmd)
	rootCmd.AddCommand(cmd.CheckCmd)
	rootCmd.AddCommand(cmd.TypesCmd)
	rootCmd.AddCommand(cmd.ParseCmd)
	rootCmd.AddCommand(cmd.TestCmd)
}
