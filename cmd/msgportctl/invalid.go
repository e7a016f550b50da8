package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/big-pixel-media/msgport"
)

var invalidCmd = &cobra.Command{
	Use:   "invalid-transfer",
	Short: "Posting with a non-buffer transfer-list entry fails synchronously, before anything enqueues",
	Run:   runInvalidTransfer,
}

func init() {
	rootCmd.AddCommand(invalidCmd)
}

func runInvalidTransfer(cmd *cobra.Command, args []string) {
	envA := msgport.NewEnvironment("env-a")
	envB := msgport.NewEnvironment("env-b")
	defer envA.Stop()
	defer envB.Stop()

	ch := msgport.NewChannel(
		envA, msgport.GobCodec{}, nil,
		envB, msgport.GobCodec{}, func(value any, err error) {
			fmt.Println("unexpected: p2 received a message")
		},
	)
	defer ch.Port1.Close()
	defer ch.Port2.Close()

	err := ch.Port1.Post("value", []any{"not a buffer"})
	if errors.Is(err, msgport.ErrInvalidTransferObject) {
		fmt.Println("post correctly rejected with ErrInvalidTransferObject")
		return
	}
	fmt.Printf("unexpected result: %v\n", err)
}
