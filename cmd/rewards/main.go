// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/relaynet/rewards/api"
	"github.com/relaynet/rewards/engine"
	"github.com/relaynet/rewards/log"
	"github.com/relaynet/rewards/metrics"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "main")
)

const stateFileName = "state.json"

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version:   fullVersion(),
		Name:      "rewards",
		Usage:     "Reward engine of the RelayNet network",
		Copyright: "2025 The RelayNet developers",
		Flags: []cli.Flag{
			configFlag,
			dataDirFlag,
			apiAddrFlag,
			apiCorsFlag,
			verbosityFlag,
			jsonLogsFlag,
			enableAPILogsFlag,
			enableMetricsFlag,
		},
		Action: defaultAction,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func defaultAction(ctx *cli.Context) error {
	defer func() { logger.Info("exited") }()

	initLogger(ctx)
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}

	bootstrap, err := loadBootstrap(ctx.String(configFlag.Name))
	if err != nil {
		return err
	}
	list, err := bootstrap.buildACL()
	if err != nil {
		return err
	}
	eng := engine.New(bootstrap.variant(), list,
		engine.WithMaxPendingRounds(bootstrap.MaxPendingRounds))

	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return errors.New("data-dir is required")
	}
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return errors.WithMessage(err, "create data dir")
	}
	statePath := filepath.Join(dataDir, stateFileName)
	if err := restoreState(eng, bootstrap, statePath); err != nil {
		return err
	}

	handler := api.New(eng, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	})
	listener, err := net.Listen("tcp", ctx.String(apiAddrFlag.Name))
	if err != nil {
		return errors.WithMessage(err, "listen API addr")
	}
	srv := &http.Server{Handler: handler}

	printStartupMessage(bootstrap, listener.Addr().String(), statePath)

	exitCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var group errgroup.Group
	group.Go(func() error {
		err := srv.Serve(listener)
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})
	group.Go(func() error {
		<-exitCtx.Done()
		logger.Info("shutting down...")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	if err := group.Wait(); err != nil {
		return err
	}

	return persistState(eng, statePath)
}

// restoreState re-imports the snapshot written on the last shutdown. A
// missing file is a fresh deployment, not an error.
func restoreState(eng *engine.Engine, bootstrap *Bootstrap, statePath string) error {
	snapshot, err := os.ReadFile(statePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errors.WithMessage(err, "read state snapshot")
	}
	if err := eng.Init(bootstrap.owner(), snapshot); err != nil {
		return errors.WithMessage(err, "restore state snapshot")
	}
	logger.Info("state restored", "path", statePath)
	return nil
}

func persistState(eng *engine.Engine, statePath string) error {
	snapshot, err := eng.View()
	if err != nil {
		return errors.WithMessage(err, "serialize state")
	}
	if err := os.WriteFile(statePath, snapshot, 0o600); err != nil {
		return errors.WithMessage(err, "write state snapshot")
	}
	logger.Info("state persisted", "path", statePath)
	return nil
}

func printStartupMessage(bootstrap *Bootstrap, apiAddr, statePath string) {
	fmt.Printf(`Starting %v
    Version     %v
    Variant     %v
    Owner       %v
    API portal  http://%v/rewards
    State file  %v
`,
		"RelayNet Rewards",
		fullVersion(),
		bootstrap.Variant,
		bootstrap.Owner,
		apiAddr,
		statePath,
	)
}
