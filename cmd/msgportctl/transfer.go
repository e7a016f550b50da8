package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/big-pixel-media/msgport"
)

var transferCmd = &cobra.Command{
	Use:   "transfer",
	Short: "Buffer transfer: a 16-byte buffer moves ownership instead of copying",
	Run:   runTransfer,
}

func init() {
	rootCmd.AddCommand(transferCmd)
}

func runTransfer(cmd *cobra.Command, args []string) {
	envA := msgport.NewEnvironment("env-a")
	envB := msgport.NewEnvironment("env-b")
	defer envA.Stop()
	defer envB.Stop()

	done := make(chan msgport.Envelope, 1)
	ch := msgport.NewChannel(
		envA, msgport.GobCodec{}, nil,
		envB, msgport.GobCodec{}, func(value any, err error) {
			if err != nil {
				fmt.Printf("p2 deserialize error: %v\n", err)
				return
			}
			env, ok := value.(msgport.Envelope)
			if !ok {
				fmt.Printf("p2 received unexpected type %T\n", value)
				return
			}
			done <- env
		},
	)
	defer ch.Port1.Close()
	defer ch.Port2.Close()

	data := make([]byte, 16)
	for i := range data {
		data[i] = byte(i)
	}
	buf := msgport.NewTransferableBuffer(data)

	if err := ch.Port1.Post(msgport.Envelope{Value: "payload", Buffers: []*msgport.TransferableBuffer{buf}}, []any{buf}); err != nil {
		fmt.Printf("post failed: %v\n", err)
		return
	}
	ch.Port2.Start()

	select {
	case env := <-done:
		fmt.Printf("p2 received %d buffer(s), first %d bytes: %v\n", len(env.Buffers), env.Buffers[0].Len(), env.Buffers[0].Bytes())
		fmt.Printf("sender buffer now has length %d (detached)\n", buf.Len())
	case <-time.After(2 * time.Second):
		fmt.Println("timed out waiting for delivery")
	}
}
