// Copyright (c) 2013-2016 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package main

import (
	"fmt"
	"net"
	"net/http"
	_ "net/http/pprof"
	"os"
	"runtime"

	"github.com/solisnet/solisd/config"
	"github.com/solisnet/solisd/signal"
	"github.com/solisnet/solisd/version"
)

// solisdMain is the real main function for solisd. It is necessary to work
// around the fact that deferred functions do not run when os.Exit() is called.
func solisdMain() error {
	// Load configuration and parse command line. This function also
	// initializes logging and configures it accordingly.
	err := config.LoadAndSetActiveConfig()
	if err != nil {
		return err
	}
	cfg := config.ActiveConfig()
	defer log.Info("Shutdown complete")

	// Get a channel that will be closed when a shutdown signal has been
	// triggered either from an OS signal such as SIGINT (Ctrl+C) or from
	// another subsystem requesting shutdown.
	interrupt := signal.InterruptListener()

	log.Infof("Version %s", version.Version())

	// Enable http profiling server if requested.
	if cfg.Profile != "" {
		go func() {
			listenAddr := net.JoinHostPort("", cfg.Profile)
			log.Infof("Profile server listening on %s", listenAddr)
			profileRedirect := http.RedirectHandler("/debug/pprof",
				http.StatusSeeOther)
			http.Handle("/", profileRedirect)
			log.Errorf("%s", http.ListenAndServe(listenAddr, nil))
		}()
	}

	// Return now if an interrupt signal was triggered during configuration
	// load.
	if signal.InterruptRequested(interrupt) {
		return nil
	}

	node, err := newNode(cfg, interrupt)
	if err != nil {
		log.Errorf("Unable to start solisd: %+v", err)
		return err
	}
	defer func() {
		log.Info("Gracefully shutting down solisd...")
		err := node.stop()
		if err != nil {
			log.Errorf("Error stopping solisd: %+v", err)
		}
	}()

	// Wait until the interrupt signal is received from an OS signal or
	// shutdown is requested through one of the subsystems.
	<-interrupt
	return nil
}

func main() {
	// Use all processor cores.
	runtime.GOMAXPROCS(runtime.NumCPU())

	if err := solisdMain(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
