//go:build !windows

package server

import (
	"os"
	"os/signal"
	"syscall"
)

// SIGUSR1 logs the configuration together with the current anchors and bindings
func registerPrintConfigurationTrigger(s *Server) {
	signals := make(chan os.Signal, 1)
	signal.Notify(signals, syscall.SIGUSR1)

	go func() {
		for range signals {
			s.printConfiguration()
		}
	}()
}
