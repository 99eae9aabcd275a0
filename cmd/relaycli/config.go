package main

import (
	"errors"
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"strings"
	"time"

	"github.com/bitcoinrelay/relaynode/build"
	"github.com/bitcoinrelay/relaynode/netutil"
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg"
	"github.com/jessevdk/go-flags"
)

const (
	defaultConfigFilename = "relaycli.conf"
	defaultLogFilename    = "relaycli.log"
	defaultLogDirname     = "logs"
	defaultNetwork        = "mainnet"
	defaultDebugLevel     = "info"
	defaultDialTimeout    = 10 * time.Second
	defaultWorkers        = 4
)

var (
	defaultAppDir     = btcutil.AppDataDir("relaycli", false)
	defaultConfigFile = filepath.Join(defaultAppDir, defaultConfigFilename)
	defaultLogDir     = filepath.Join(defaultAppDir, defaultLogDirname)

	// networks maps the accepted network names to their chain parameters.
	networks = map[string]*chaincfg.Params{
		"mainnet":  &chaincfg.MainNetParams,
		"testnet3": &chaincfg.TestNet3Params,
		"regtest":  &chaincfg.RegressionNetParams,
		"simnet":   &chaincfg.SimNetParams,
		"signet":   &chaincfg.SigNetParams,
	}
)

// config holds the settings relaycli reads from its configuration file. Any
// of them can be overridden by the matching global command line flag.
//
//nolint:lll
type config struct {
	Network     string        `long:"network" description:"The network whose magic is used when framing and reading messages." choice:"mainnet" choice:"testnet3" choice:"regtest" choice:"simnet" choice:"signet"`
	DebugLevel  string        `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems"`
	LogDir      string        `long:"logdir" description:"Directory to log output."`
	MaxPayload  uint32        `long:"maxpayload" description:"Largest payload accepted when reading a reply (0 for the protocol default)."`
	DialTimeout time.Duration `long:"dialtimeout" description:"How long to wait when connecting to a peer."`
	Workers     int           `long:"workers" description:"Number of inputs hashed concurrently."`

	LogConfig *build.LogConfig `group:"logging" namespace:"logging"`

	// params is derived from Network during validation.
	params *chaincfg.Params
}

// defaultConfig returns a config populated with the default values.
func defaultConfig() config {
	return config{
		Network:     defaultNetwork,
		DebugLevel:  defaultDebugLevel,
		LogDir:      defaultLogDir,
		MaxPayload:  netutil.DefaultMaxPayload,
		DialTimeout: defaultDialTimeout,
		Workers:     defaultWorkers,
		LogConfig:   build.DefaultLogConfig(),
	}
}

// loadConfig starts from the defaults and overlays the configuration file at
// path. A missing file is only an error when mustExist is set; a malformed one
// always is.
func loadConfig(path string, mustExist bool) (*config, error) {
	cfg := defaultConfig()

	path = cleanAndExpandPath(path)
	err := flags.IniParse(path, &cfg)
	switch {
	case err == nil:

	case errors.Is(err, os.ErrNotExist) && !mustExist:

	default:
		return nil, fmt.Errorf("unable to load config file %s: %w",
			path, err)
	}

	return &cfg, nil
}

// validate checks the configuration for illegal values and resolves derived
// fields.
func (c *config) validate() error {
	params, ok := networks[c.Network]
	if !ok {
		return fmt.Errorf("unknown network %q", c.Network)
	}
	c.params = params

	if c.Workers < 1 {
		return fmt.Errorf("workers must be at least 1, got %d",
			c.Workers)
	}

	if c.DialTimeout <= 0 {
		return fmt.Errorf("dialtimeout must be positive, got %v",
			c.DialTimeout)
	}

	if c.MaxPayload == 0 {
		c.MaxPayload = netutil.DefaultMaxPayload
	}

	c.LogDir = cleanAndExpandPath(c.LogDir)

	return c.LogConfig.Validate()
}

// logFile returns the path of the rotating log file.
func (c *config) logFile() string {
	return filepath.Join(c.LogDir, c.Network, defaultLogFilename)
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	if path == "" {
		return ""
	}

	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		var homeDir string
		u, err := user.Current()
		if err == nil {
			homeDir = u.HomeDir
		} else {
			homeDir = os.Getenv("HOME")
		}

		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but the variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}
