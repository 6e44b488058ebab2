// Copyright (c) 2025 The RelayNet developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"log/slog"
	"os"
	"os/user"
	"path/filepath"

	"github.com/mattn/go-isatty"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/relaynet/rewards/log"
)

func initLogger(ctx *cli.Context) {
	level := new(slog.LevelVar)
	level.Set(verbosityToLevel(ctx.Int(verbosityFlag.Name)))

	var handler slog.Handler
	if ctx.Bool(jsonLogsFlag.Name) || !isatty.IsTerminal(os.Stdout.Fd()) {
		handler = log.JSONHandler(os.Stdout, level)
	} else {
		handler = log.LogfmtHandler(os.Stdout, level)
	}
	log.SetDefault(log.NewLogger(handler))
}

func verbosityToLevel(verbosity int) slog.Level {
	switch verbosity {
	case 0:
		return log.LevelCrit
	case 1:
		return log.LevelError
	case 2:
		return log.LevelWarn
	case 3:
		return log.LevelInfo
	case 4:
		return log.LevelDebug
	default:
		return log.LevelTrace
	}
}

func defaultDataDir() string {
	// try to get HOME directory
	home := os.Getenv("HOME")
	if home == "" {
		if u, err := user.Current(); err == nil {
			home = u.HomeDir
		}
	}
	if home == "" {
		return ""
	}
	return filepath.Join(home, ".relaynet-rewards")
}
