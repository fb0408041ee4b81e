// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"os"
	"os/signal"
	"syscall"
)

var (
	// interruptChannel receives the shutdown signals.
	interruptChannel chan os.Signal

	// addHandlerChannel adds a handler to the list run on shutdown.
	addHandlerChannel = make(chan func())

	// interruptHandlersDone is closed after all interrupt handlers ran.
	interruptHandlersDone = make(chan struct{})

	// simulateInterruptChannel requests a shutdown without a signal.
	simulateInterruptChannel = make(chan struct{}, 1)
)

// signals defines the signals that are handled to do a clean shutdown.
var signals = []os.Signal{os.Interrupt, syscall.SIGTERM}

// simulateInterrupt requests invoking the clean termination process by an
// internal component instead of a signal.
func simulateInterrupt() {
	select {
	case simulateInterruptChannel <- struct{}{}:
	default:
	}
}

// mainInterruptHandler waits for a shutdown signal or request and then runs
// the registered handlers in LIFO order.  It must be run as a goroutine.
func mainInterruptHandler() {
	var handlers []func()
	runHandlers := func() {
		for i := len(handlers) - 1; i >= 0; i-- {
			handlers[i]()
		}
		close(interruptHandlersDone)
	}

	for {
		select {
		case sig := <-interruptChannel:
			log.Infof("Received signal (%s).  Shutting down...", sig)
			runHandlers()
			return

		case <-simulateInterruptChannel:
			log.Debugf("Shutting down...")
			runHandlers()
			return

		case handler := <-addHandlerChannel:
			handlers = append(handlers, handler)
		}
	}
}

// addInterruptHandler adds a handler to call on shutdown.  The first call
// starts the main interrupt handler.
func addInterruptHandler(handler func()) {
	if interruptChannel == nil {
		interruptChannel = make(chan os.Signal, 1)
		signal.Notify(interruptChannel, signals...)
		go mainInterruptHandler()
	}

	addHandlerChannel <- handler
}
