package main

import (
	"fmt"
	"os"

	"github.com/baller70/bookmarkaihub-sub004/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "bookmark-gateway-configure",
		Short:        "Configuration tool for the bookmark gateway",
		Long:         "CLI tool for managing rate limit policies and checking gateway configuration",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.NewPoliciesCmd())
	rootCmd.AddCommand(commands.NewClassifyCmd())
	rootCmd.AddCommand(commands.NewCheckCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
