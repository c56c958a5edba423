package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "gateways",
	Short: "Payment gateways microservice",
	Long:  "A payment gateways microservice for hosted payment forms, gateway callbacks, and order lifecycle operations.",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
