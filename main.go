package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	wardencmd "github.com/nodepulse/nodepulse/warden/cmd"
)

var (
	rootCmd = &cobra.Command{Use: "nodepulse"}
)

func main() {
	rootCmd.AddCommand(wardencmd.WardenCmd)
	if err := rootCmd.Execute(); err != nil {
		log.Fatalf("Command execution failed: %v", err)
		os.Exit(1)
	}
}
