package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/mdtanrikulu/dnssec-oracle/config"
	"github.com/mdtanrikulu/dnssec-oracle/evt"
	"github.com/mdtanrikulu/dnssec-oracle/log"
	"github.com/mdtanrikulu/dnssec-oracle/oracle"
	"github.com/mdtanrikulu/dnssec-oracle/prover"
	"github.com/mdtanrikulu/dnssec-oracle/server"
	"github.com/mdtanrikulu/dnssec-oracle/store"
	"github.com/mdtanrikulu/dnssec-oracle/util"
)

const shutdownTimeout = 10 * time.Second

//nolint:gochecknoglobals
var (
	signals = make(chan os.Signal, 1)

	// newProofSource creates the prover used by serve and prove, nil if no upstream is configured
	newProofSource = func(cfg config.Prover) (server.ProofSource, error) {
		if !cfg.IsEnabled() {
			return nil, nil
		}

		p, err := prover.New(cfg)
		if err != nil {
			return nil, err
		}

		return p, nil
	}
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "serve",
		Args:    cobra.NoArgs,
		Short:   "start the oracle HTTP API (default command)",
		PreRunE: initConfigPreRun,
		RunE:    startServer,
	}
}

func startServer(_ *cobra.Command, _ []string) error {
	printBanner()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	signal.Notify(signals, syscall.SIGINT, syscall.SIGTERM)

	st, err := store.New(ctx, cfg.Store)
	if err != nil {
		return fmt.Errorf("can't create store: %w", err)
	}

	defer func() {
		util.LogOnError("can't close store: ", st.Close())
	}()

	o, err := oracle.New(ctx, cfg.Oracle, st)
	if err != nil {
		return fmt.Errorf("can't create oracle: %w", err)
	}

	source, err := newProofSource(cfg.Prover)
	if err != nil {
		return fmt.Errorf("can't create prover: %w", err)
	}

	srv, err := server.NewServer(cfg, o, source)
	if err != nil {
		return fmt.Errorf("can't start server: %w", err)
	}

	errChan := make(chan error, 1)

	srv.Start(errChan)

	evt.Bus().Publish(evt.ApplicationStarted, util.Version, util.BuildTime)

	var result error

	select {
	case <-signals:
		log.Log().Infof("Terminating...")
	case result = <-errChan:
		log.Log().Error("server failed: ", result)
	}

	stopCtx, stopCancel := context.WithTimeout(ctx, shutdownTimeout)
	defer stopCancel()

	util.LogOnError("can't stop server: ", srv.Stop(stopCtx))

	return result
}

func printBanner() {
	log.Log().Info("_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/")
	log.Log().Info("_/                                              _/")
	log.Log().Info("_/    d n s s e c  -  o r a c l e               _/")
	log.Log().Info("_/                                              _/")
	log.Log().Infof("_/  Version: %-14s Build time: %-10s _/", util.Version, util.BuildTime)
	log.Log().Info("_/                                              _/")
	log.Log().Info("_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/_/")
}
