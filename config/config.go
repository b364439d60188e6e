// Copyright (c) 2013-2017 The btcsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"

	"github.com/solisnet/solisd/logger"
	"github.com/solisnet/solisd/util"
	"github.com/solisnet/solisd/version"
)

const (
	defaultConfigFilename = "solisd.conf"
	defaultDataDirname    = "data"
	defaultLogLevel       = "info"
	defaultLogDirname     = "logs"
	defaultLogFilename    = "solisd.log"
	defaultErrLogFilename = "solisd_err.log"
	defaultMinRelayTxFee  = 1e-5 // 1 satoshi per byte
	defaultMaxOrphanTxs   = 100
	// DefaultMaxOrphanTxSize is the default maximum size for an orphan
	// transaction.
	DefaultMaxOrphanTxSize  = 100000
	defaultSigCacheMaxSize  = 100000
	defaultTxIndex          = false
	defaultMaxMempoolMB     = 300
	defaultMempoolExpiryH   = 72
	defaultFreeTxRelayLimit = 15.0
	defaultMaxAncestorCount = 25
	defaultMaxAncestorKB    = 101
)

var (
	// DefaultHomeDir is the default home directory for solisd.
	DefaultHomeDir = util.AppDataDir("solisd", false)

	defaultConfigFile = filepath.Join(DefaultHomeDir, defaultConfigFilename)
	defaultDataDir    = filepath.Join(DefaultHomeDir, defaultDataDirname)
	defaultLogDir     = filepath.Join(DefaultHomeDir, defaultLogDirname)
)

var activeConfig *Config

// Flags defines the configuration options for solisd.
//
// See loadConfig for details on the configuration load process.
type Flags struct {
	ShowVersion      bool    `short:"V" long:"version" description:"Display version information and exit"`
	ConfigFile       string  `short:"C" long:"configfile" description:"Path to configuration file"`
	DataDir          string  `short:"b" long:"datadir" description:"Directory to store data"`
	LogDir           string  `long:"logdir" description:"Directory to log output."`
	Profile          string  `long:"profile" description:"Enable HTTP profiling on given port -- NOTE port must be between 1024 and 65536"`
	DebugLevel       string  `short:"d" long:"debuglevel" description:"Logging level for all subsystems {trace, debug, info, warn, error, critical} -- You may also specify <subsystem>=<level>,<subsystem2>=<level>,... to set the log level for individual subsystems -- Use show to list available subsystems"`
	MinRelayTxFee    float64 `long:"minrelaytxfee" description:"The minimum transaction fee in SLS/kB to be considered a non-zero fee."`
	FreeTxRelayLimit float64 `long:"limitfreerelay" description:"Limit relay of transactions with no transaction fee to the given amount in thousands of bytes per minute"`
	MaxOrphanTxs     int     `long:"maxorphantx" description:"Max number of orphan transactions to keep in memory"`
	MaxMempoolMB     int     `long:"maxmempool" description:"Keep the transaction memory pool below this many megabytes"`
	MempoolExpiryH   int     `long:"mempoolexpiry" description:"Do not keep transactions in the mempool more than this many hours"`
	MaxAncestorCount int     `long:"limitancestorcount" description:"Do not accept transactions whose chain of in-mempool ancestors is longer than this"`
	MaxAncestorKB    int     `long:"limitancestorsize" description:"Do not accept transactions whose in-mempool ancestors exceed this many kilobytes"`
	MaxReorgDepth    int32   `long:"maxreorg" description:"Reject reorganizations deeper than this many blocks behind the active tip (0 uses the network default)"`
	SigCacheMaxSize  uint    `long:"sigcachemaxsize" description:"The maximum number of entries in the signature verification cache"`
	TxIndex          bool    `long:"txindex" description:"Maintain a full hash-based transaction index which makes all transactions retrievable by hash"`
	RelayNonStd      bool    `long:"relaynonstd" description:"Relay non-standard transactions regardless of the default settings for the active network."`
	RejectNonStd     bool    `long:"rejectnonstd" description:"Reject non-standard transactions regardless of the default settings for the active network."`
	NetworkFlags
}

// Config defines the configuration options for solisd.
//
// See loadConfig for details on the configuration load process.
type Config struct {
	*Flags
	MinRelayTxFee util.Amount
	MaxMempool    int64
	MempoolExpiry time.Duration
}

// cleanAndExpandPath expands environment variables and leading ~ in the
// passed path, cleans the result, and returns it.
func cleanAndExpandPath(path string) string {
	// Expand initial ~ to OS specific home directory.
	if strings.HasPrefix(path, "~") {
		homeDir := filepath.Dir(DefaultHomeDir)
		path = strings.Replace(path, "~", homeDir, 1)
	}

	// NOTE: The os.ExpandEnv doesn't work with Windows-style %VARIABLE%,
	// but they variables can still be expanded via POSIX-style $VARIABLE.
	return filepath.Clean(os.ExpandEnv(path))
}

// newConfigParser returns a new command line flags parser.
func newConfigParser(cfgFlags *Flags, options flags.Options) *flags.Parser {
	return flags.NewParser(cfgFlags, options)
}

// LoadAndSetActiveConfig loads the config that can afterward be accessible
// through ActiveConfig().
func LoadAndSetActiveConfig() error {
	tcfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	activeConfig = tcfg
	return nil
}

// ActiveConfig is a getter to the main config
func ActiveConfig() *Config {
	return activeConfig
}

// loadConfig initializes and parses the config using a config file and command
// line options.
//
// The configuration proceeds as follows:
// 	1) Start with a default config with sane settings
// 	2) Pre-parse the command line to check for an alternative config file
// 	3) Load configuration file overwriting defaults with any specified options
// 	4) Parse CLI options and overwrite/add any specified options
//
// The above results in solisd functioning properly without any config settings
// while still allowing the user to override settings with config files and
// command line options. Command line options always take precedence.
func loadConfig() (*Config, []string, error) {
	// Default config.
	cfgFlags := Flags{
		ConfigFile:       defaultConfigFile,
		DebugLevel:       defaultLogLevel,
		DataDir:          defaultDataDir,
		LogDir:           defaultLogDir,
		MaxOrphanTxs:     defaultMaxOrphanTxs,
		MaxMempoolMB:     defaultMaxMempoolMB,
		MempoolExpiryH:   defaultMempoolExpiryH,
		MaxAncestorCount: defaultMaxAncestorCount,
		MaxAncestorKB:    defaultMaxAncestorKB,
		FreeTxRelayLimit: defaultFreeTxRelayLimit,
		SigCacheMaxSize:  defaultSigCacheMaxSize,
		MinRelayTxFee:    defaultMinRelayTxFee,
		TxIndex:          defaultTxIndex,
	}

	// Pre-parse the command line options to see if an alternative config
	// file or the version flag was specified. Any errors aside from the
	// help message error can be ignored here since they will be caught by
	// the final parse below.
	preCfg := cfgFlags
	preParser := newConfigParser(&preCfg, flags.HelpFlag)
	_, err := preParser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); ok && e.Type == flags.ErrHelp {
			fmt.Fprintln(os.Stderr, err)
			return nil, nil, err
		}
	}

	// Show the version and exit if the version flag was specified.
	appName := filepath.Base(os.Args[0])
	appName = strings.TrimSuffix(appName, filepath.Ext(appName))
	usageMessage := fmt.Sprintf("Use %s -h to show usage", appName)
	if preCfg.ShowVersion {
		fmt.Println(appName, "version", version.Version())
		os.Exit(0)
	}

	// Load additional config from file.
	var configFileError error
	parser := newConfigParser(&cfgFlags, flags.Default)
	activeConfig = &Config{
		Flags: &cfgFlags,
	}
	if !preCfg.Simnet || preCfg.ConfigFile != defaultConfigFile {
		err := flags.NewIniParser(parser).ParseFile(preCfg.ConfigFile)
		if err != nil {
			if _, ok := err.(*os.PathError); !ok {
				fmt.Fprintf(os.Stderr, "Error parsing config "+
					"file: %s\n", err)
				fmt.Fprintln(os.Stderr, usageMessage)
				return nil, nil, err
			}
			configFileError = err
		}
	}

	// Parse command line options again to ensure they take precedence.
	remainingArgs, err := parser.Parse()
	if err != nil {
		if e, ok := err.(*flags.Error); !ok || e.Type != flags.ErrHelp {
			fmt.Fprintln(os.Stderr, usageMessage)
		}
		return nil, nil, err
	}

	// Create the home directory if it doesn't already exist.
	funcName := "loadConfig"
	err = os.MkdirAll(DefaultHomeDir, 0700)
	if err != nil {
		// Show a nicer error message if it's because a symlink is
		// linked to a directory that does not exist (probably because
		// it's not mounted).
		if e, ok := err.(*os.PathError); ok && os.IsExist(err) {
			if link, lerr := os.Readlink(e.Path); lerr == nil {
				str := "is symlink %s -> %s mounted?"
				err = errors.Errorf(str, e.Path, link)
			}
		}

		str := "%s: Failed to create home directory: %s"
		err := errors.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		return nil, nil, err
	}

	err = activeConfig.ResolveNetwork(parser)
	if err != nil {
		return nil, nil, err
	}

	// Set the default policy for relaying non-standard transactions
	// according to the default of the active network. The set
	// configuration value takes precedence over the default value for the
	// selected network.
	relayNonStd := activeConfig.NetParams().RelayNonStdTxs
	switch {
	case activeConfig.RelayNonStd && activeConfig.RejectNonStd:
		str := "%s: rejectnonstd and relaynonstd cannot be used " +
			"together -- choose only one"
		err := errors.Errorf(str, funcName)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	case activeConfig.RejectNonStd:
		relayNonStd = false
	case activeConfig.RelayNonStd:
		relayNonStd = true
	}
	activeConfig.RelayNonStd = relayNonStd

	// Append the network type to the data directory so it is "namespaced"
	// per network. All data is specific to a network, so namespacing the
	// data directory means each individual piece of serialized data does
	// not have to worry about changing names per network and such.
	activeConfig.DataDir = cleanAndExpandPath(activeConfig.DataDir)
	activeConfig.DataDir = filepath.Join(activeConfig.DataDir, activeConfig.NetParams().Name)

	// Append the network type to the log directory so it is "namespaced"
	// per network in the same fashion as the data directory.
	activeConfig.LogDir = cleanAndExpandPath(activeConfig.LogDir)
	activeConfig.LogDir = filepath.Join(activeConfig.LogDir, activeConfig.NetParams().Name)

	// Special show command to list supported subsystems and exit.
	if activeConfig.DebugLevel == "show" {
		fmt.Println("Supported subsystems", logger.SupportedSubsystems())
		os.Exit(0)
	}

	// Initialize log rotation. After log rotation has been initialized, the
	// logger variables may be used.
	err = logger.InitLog(filepath.Join(activeConfig.LogDir, defaultLogFilename),
		filepath.Join(activeConfig.LogDir, defaultErrLogFilename))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing logger: %s\n", err)
		return nil, nil, err
	}

	// Parse, validate, and set debug log level(s).
	if err := logger.ParseAndSetLogLevels(activeConfig.DebugLevel); err != nil {
		err := errors.Errorf("%s: %s", funcName, err.Error())
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Validate profile port number
	if activeConfig.Profile != "" {
		profilePort, err := strconv.Atoi(activeConfig.Profile)
		if err != nil || profilePort < 1024 || profilePort > 65535 {
			str := "%s: The profile port must be between 1024 and 65535"
			err := errors.Errorf(str, funcName)
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, usageMessage)
			return nil, nil, err
		}
	}

	// Validate the minrelaytxfee.
	activeConfig.MinRelayTxFee, err = util.NewAmount(activeConfig.Flags.MinRelayTxFee)
	if err != nil {
		str := "%s: invalid minrelaytxfee: %s"
		err := errors.Errorf(str, funcName, err)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Disallow 0 and negative min tx fees.
	if activeConfig.MinRelayTxFee <= 0 {
		str := "%s: The minrelaytxfee option must be greater than 0 -- parsed [%d]"
		err := errors.Errorf(str, funcName, activeConfig.MinRelayTxFee)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Limit the max orphan count to a sane value.
	if activeConfig.MaxOrphanTxs < 0 {
		str := "%s: The maxorphantx option may not be less than 0 " +
			"-- parsed [%d]"
		err := errors.Errorf(str, funcName, activeConfig.MaxOrphanTxs)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// The mempool byte budget must allow at least a single maximum size
	// transaction.
	if activeConfig.MaxMempoolMB < 1 {
		str := "%s: The maxmempool option may not be less than 1 " +
			"-- parsed [%d]"
		err := errors.Errorf(str, funcName, activeConfig.MaxMempoolMB)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}
	activeConfig.MaxMempool = int64(activeConfig.MaxMempoolMB) * 1000 * 1000
	activeConfig.MempoolExpiry = time.Duration(activeConfig.MempoolExpiryH) * time.Hour

	if activeConfig.MaxReorgDepth < 0 {
		str := "%s: The maxreorg option may not be less than 0 " +
			"-- parsed [%d]"
		err := errors.Errorf(str, funcName, activeConfig.MaxReorgDepth)
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, usageMessage)
		return nil, nil, err
	}

	// Warn about missing config file only after all other configuration is
	// done. This prevents the warning on help messages and invalid
	// options. Note this should go directly before the return.
	if configFileError != nil {
		log.Warnf("%s", configFileError)
	}

	return activeConfig, remainingArgs, nil
}
