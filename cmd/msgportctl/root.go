package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "msgportctl",
	Short: "Demonstrates msgport's port/channel lifecycle against itself",
	Long:  "msgportctl runs a small scenario against a real Channel, Port and Environment for each corner of the port lifecycle (echo, buffer transfer, detach/adopt, close propagation, invalid transfer, concurrent posters).",
}

// Execute adds all subcommands to root and runs the selected one.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
