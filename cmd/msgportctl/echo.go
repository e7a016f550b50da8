package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/big-pixel-media/msgport"
)

var echoCmd = &cobra.Command{
	Use:   "echo",
	Short: "Basic round-trip: post a value on one port, receive it on the other",
	Run:   runEcho,
}

func init() {
	rootCmd.AddCommand(echoCmd)
}

func runEcho(cmd *cobra.Command, args []string) {
	envA := msgport.NewEnvironment("env-a")
	envB := msgport.NewEnvironment("env-b")
	defer envA.Stop()
	defer envB.Stop()

	done := make(chan any, 1)
	ch := msgport.NewChannel(
		envA, msgport.GobCodec{}, nil,
		envB, msgport.GobCodec{}, func(value any, err error) {
			if err != nil {
				fmt.Printf("p2 deserialize error: %v\n", err)
				return
			}
			done <- value
		},
	)
	defer ch.Port1.Close()
	defer ch.Port2.Close()

	if err := ch.Port1.Post("hello", nil); err != nil {
		fmt.Printf("post failed: %v\n", err)
		return
	}
	ch.Port2.Start()

	select {
	case value := <-done:
		fmt.Printf("p2 received: %q\n", value)
	case <-time.After(2 * time.Second):
		fmt.Println("timed out waiting for delivery")
	}
}
