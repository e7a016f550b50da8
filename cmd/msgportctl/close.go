package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/big-pixel-media/msgport"
)

var closeCmd = &cobra.Command{
	Use:   "close",
	Short: "Sibling close propagation: closing one port makes the other close itself on its next drain",
	Run:   runClose,
}

func init() {
	rootCmd.AddCommand(closeCmd)
}

func runClose(cmd *cobra.Command, args []string) {
	envA := msgport.NewEnvironment("env-a")
	envB := msgport.NewEnvironment("env-b")
	defer envA.Stop()
	defer envB.Stop()

	called := make(chan struct{}, 1)
	ch := msgport.NewChannel(
		envA, msgport.GobCodec{}, nil,
		envB, msgport.GobCodec{}, func(value any, err error) {
			called <- struct{}{}
		},
	)

	ch.Port1.Close()
	ch.Port2.Start()

	deadline := time.After(500 * time.Millisecond)
	for {
		select {
		case <-called:
			fmt.Println("unexpected: p2's handler was invoked")
			return
		case <-deadline:
			closed := envB.Metrics().Disentanglements.Load()
			fmt.Printf("p2 handler never called; envB disentanglements=%d\n", closed)
			return
		}
	}
}
