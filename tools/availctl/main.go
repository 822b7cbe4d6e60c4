// Command availctl queries a running availability service.
package main

import (
	"fmt"
	"os"

	"github.com/md-rashed-zaman/meetbook/libs/config"
	"github.com/spf13/cobra"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "availctl",
		Short:         "Inspect bookable slots and service health",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newSlotsCmd())
	root.AddCommand(newHealthCmd())
	return root
}

func main() {
	config.LoadDotEnv()
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
