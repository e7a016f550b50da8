package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/big-pixel-media/msgport"
)

var detachCmd = &cobra.Command{
	Use:   "detach",
	Short: "Queue survives detach/adopt: messages posted before detach still deliver to the new owner",
	Run:   runDetach,
}

func init() {
	rootCmd.AddCommand(detachCmd)
}

func runDetach(cmd *cobra.Command, args []string) {
	envA := msgport.NewEnvironment("env-a")
	envB := msgport.NewEnvironment("env-b")
	envC := msgport.NewEnvironment("env-c")
	defer envA.Stop()
	defer envB.Stop()
	defer envC.Stop()

	ch := msgport.NewChannel(
		envA, msgport.GobCodec{}, nil,
		envB, msgport.GobCodec{}, nil,
	)
	defer ch.Port1.Close()

	for i := 1; i <= 3; i++ {
		if err := ch.Port1.Post(i, nil); err != nil {
			fmt.Printf("post %d failed: %v\n", i, err)
			return
		}
	}

	state := ch.Port2.Detach()
	if state == nil {
		fmt.Println("detach returned nil; port was already closed")
		return
	}

	received := make(chan int, 3)
	portC := msgport.Adopt(state, envC, msgport.GobCodec{}, func(value any, err error) {
		if err != nil {
			fmt.Printf("portC deserialize error: %v\n", err)
			return
		}
		received <- value.(int)
	})
	defer portC.Close()
	portC.Start()

	var order []int
	deadline := time.After(2 * time.Second)
	for len(order) < 3 {
		select {
		case v := <-received:
			order = append(order, v)
		case <-deadline:
			fmt.Printf("timed out, received %v so far\n", order)
			return
		}
	}
	fmt.Printf("portC received in order: %v\n", order)
}
