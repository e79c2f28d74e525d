package os

import (
	"os"
	"os/signal"
	"syscall"
)

// ExpectTermination returns a channel that closes on SIGINT or SIGTERM.
func ExpectTermination() <-chan struct{} {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		<-signals
		close(done)
	}()
	return done
}
