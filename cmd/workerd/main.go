package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "workerd",
		Short: "workerd drives workspaces through their lifecycle phases on behalf of the account service",
	}
	root.AddCommand(buildServeCmd())
	return root
}
