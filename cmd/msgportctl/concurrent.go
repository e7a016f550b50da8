package main

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/spf13/cobra"

	"github.com/big-pixel-media/msgport"
)

var concurrentCmd = &cobra.Command{
	Use:   "concurrent",
	Short: "4 goroutines each post 1000 sequential ints on p1; p2 receives all 4000",
	Run:   runConcurrent,
}

func init() {
	rootCmd.AddCommand(concurrentCmd)
}

const (
	posters   = 4
	postsEach = 1000
)

func runConcurrent(cmd *cobra.Command, args []string) {
	envA := msgport.NewEnvironment("env-a")
	envB := msgport.NewEnvironment("env-b")
	defer envA.Stop()
	defer envB.Stop()

	var received atomic.Int64
	ch := msgport.NewChannel(
		envA, msgport.GobCodec{}, nil,
		envB, msgport.GobCodec{}, func(value any, err error) {
			if err != nil {
				fmt.Printf("deserialize error: %v\n", err)
				return
			}
			received.Add(1)
		},
	)
	defer ch.Port1.Close()
	defer ch.Port2.Close()
	ch.Port2.Start()

	var wg sync.WaitGroup
	for p := 0; p < posters; p++ {
		wg.Add(1)
		go func(poster int) {
			defer wg.Done()
			for i := 0; i < postsEach; i++ {
				if err := ch.Port1.Post(poster*postsEach+i, nil); err != nil {
					fmt.Printf("poster %d: post %d failed: %v\n", poster, i, err)
					return
				}
			}
		}(p)
	}
	wg.Wait()

	want := int64(posters * postsEach)
	deadline := time.After(5 * time.Second)
	for received.Load() < want {
		select {
		case <-deadline:
			fmt.Printf("timed out: received %d of %d\n", received.Load(), want)
			return
		case <-time.After(10 * time.Millisecond):
		}
	}
	fmt.Printf("p2 received all %d messages from %d concurrent posters\n", received.Load(), posters)
}
