package main

import (
	"fmt"

	"github.com/bitcoinrelay/relaynode/build"
	"github.com/bitcoinrelay/relaynode/netutil"
	"github.com/btcsuite/btclog/v2"
)

// Subsystem defines the logging code for the command itself.
const Subsystem = "RCLI"

// rcliLog is the command's logger. It stays disabled until setupLoggers has
// run.
var rcliLog = btclog.Disabled

// setupLoggers wires every subsystem logger to the console and rotating file
// handlers described by cfg and applies the configured debug levels. The
// returned writer must be closed on exit.
func setupLoggers(cfg *config) (*build.RotatingLogWriter, error) {
	var rotator *build.RotatingLogWriter
	if !cfg.LogConfig.File.Disable {
		rotator = build.NewRotatingLogWriter()
		err := rotator.InitLogRotator(cfg.LogConfig.File, cfg.logFile())
		if err != nil {
			return nil, fmt.Errorf("unable to init log rotator: %w",
				err)
		}
	}

	handlers := build.NewDefaultLogHandlers(cfg.LogConfig, rotator)
	mgr := build.NewSubLoggerManager(
		build.NewHandlerSet(btclog.LevelInfo, handlers...),
	)

	rcliLog = build.NewSubLogger(Subsystem, mgr.GenSubLogger)
	mgr.RegisterSubLogger(Subsystem, rcliLog)

	nutlLog := build.NewSubLogger(netutil.Subsystem, mgr.GenSubLogger)
	netutil.UseLogger(nutlLog)
	mgr.RegisterSubLogger(netutil.Subsystem, nutlLog)

	if err := build.ParseAndSetDebugLevels(cfg.DebugLevel, mgr); err != nil {
		if rotator != nil {
			_ = rotator.Close()
		}

		return nil, err
	}

	return rotator, nil
}
