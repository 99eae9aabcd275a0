package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli"
)

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "[relaycli] %v\n", err)
	os.Exit(1)
}

// globalFlags are the command line overrides of the configuration file.
var globalFlags = []cli.Flag{
	cli.StringFlag{
		Name:      "configfile",
		Value:     defaultConfigFile,
		Usage:     "The path to the configuration file.",
		TakesFile: true,
	},
	cli.StringFlag{
		Name: "network, n",
		Usage: "The network whose magic is used, e.g. mainnet, " +
			"testnet3, regtest, simnet, signet.",
	},
	cli.StringFlag{
		Name: "debuglevel, d",
		Usage: "Logging level for all subsystems, or " +
			"<subsystem>=<level> pairs.",
	},
	cli.StringFlag{
		Name:      "logdir",
		Usage:     "Directory to log output.",
		TakesFile: true,
	},
	cli.BoolFlag{
		Name:  "nologfile",
		Usage: "Do not write a log file.",
	},
}

// getConfig loads the configuration file named by the global flags and
// applies every global flag that was set on the command line.
func getConfig(ctx *cli.Context) (*config, error) {
	path := ctx.GlobalString("configfile")
	cfg, err := loadConfig(path, ctx.GlobalIsSet("configfile"))
	if err != nil {
		return nil, err
	}

	if ctx.GlobalIsSet("network") {
		cfg.Network = ctx.GlobalString("network")
	}
	if ctx.GlobalIsSet("debuglevel") {
		cfg.DebugLevel = ctx.GlobalString("debuglevel")
	}
	if ctx.GlobalIsSet("logdir") {
		cfg.LogDir = ctx.GlobalString("logdir")
	}
	if ctx.GlobalBool("nologfile") {
		cfg.LogConfig.File.Disable = true
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// actionDecorator loads the configuration and sets up logging before running
// f, and tears logging down afterwards.
func actionDecorator(f func(*cli.Context, *config) error) func(*cli.Context) error {
	return func(ctx *cli.Context) error {
		cfg, err := getConfig(ctx)
		if err != nil {
			return err
		}

		rotator, err := setupLoggers(cfg)
		if err != nil {
			return err
		}
		if rotator != nil {
			defer rotator.Close()
		}

		rcliLog.Debugf("Running %s on %s", ctx.Command.Name,
			cfg.Network)

		return f(ctx, cfg)
	}
}

func newApp() *cli.App {
	app := cli.NewApp()
	app.Name = "relaycli"
	app.Version = "0.1.0"
	app.Usage = "hash, frame and exchange Bitcoin peer-to-peer messages"
	app.Flags = globalFlags
	app.Commands = []cli.Command{
		hashCommand,
		pairHashCommand,
		blockHashCommand,
		varintCommand,
		frameCommand,
		decodeHeaderCommand,
		relayHeaderCommand,
		sendCommand,
	}

	return app
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fatal(err)
	}
}
