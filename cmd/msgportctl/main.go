// msgportctl runs each of the library's end-to-end demo scenarios against
// itself: echo, buffer transfer, detach/adopt, close propagation, invalid
// transfer, and concurrent posting. Each subcommand is self-contained and exits after
// printing what happened.
package main

func main() {
	Execute()
}
