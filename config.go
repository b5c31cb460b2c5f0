package main

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"unicode"

	"gopkg.in/yaml.v2"

	col "github.com/bitcoinprice/utxoracle/collect"
	"github.com/bitcoinprice/utxoracle/collect/corerpc"
	est "github.com/bitcoinprice/utxoracle/estimate"
	"github.com/bitcoinprice/utxoracle/extract"
)

const (
	defaultConfigFileName = "config.yml"
	configFileEnv         = "UTXORACLE_CONFIG"
	dataDirEnv            = "UTXORACLE_DATADIR"
)

var (
	defaultOracleConfig = OracleConfig{
		Window:         144, // about one day of blocks
		EstimatePeriod: 600, // 10 minutes
		Fetch: col.FetcherConfig{
			Concurrency: col.DefaultFetchConcurrency,
		},
		Extract:  extract.DefaultConfig,
		Estimate: est.DefaultConfig,
	}
	defaultConfig = config{
		OracleConfig: defaultOracleConfig,
		BitcoinRPC: corerpc.Config{
			Host:    "localhost",
			Port:    "8332",
			Timeout: 30,
		},
		AppRPC: AppRPCConfig{
			Host: "localhost",
			Port: "8432",
		},
		DataDir: AppDataDir("utxoracle", false),
	}
	defaultConfigFile  = filepath.Join(defaultConfig.DataDir, defaultConfigFileName)
	defaultLogFileName = "utxoracle.log"
)

type config struct {
	OracleConfig `yaml:",inline"`
	BitcoinRPC   corerpc.Config `yaml:"bitcoinrpc" json:"bitcoinrpc"`
	AppRPC       AppRPCConfig   `yaml:"apprpc" json:"apprpc"`
	DataDir      string         `yaml:"datadir" json:"datadir"`
	LogFile      string         `yaml:"logfile" json:"logfile"`
}

type AppRPCConfig struct {
	Host string `json:"host" yaml:"host"`
	Port string `json:"port" yaml:"port"`
}

// loadConfig loads the config. The input arguments specify the path to the
// config file / data directory.
// They can also be specified through env variables (configFileEnv / dataDirEnv),
// with lower precedence.
// If not specified, they are set to default values.
func loadConfig(configFile, dataDir string) (config, error) {
	cfg := defaultConfig

	if configFile == "" {
		configFile = os.Getenv(configFileEnv)
	}
	if dataDir == "" {
		dataDir = os.Getenv(dataDirEnv)
	}

	if configFile != "" {
		// Config file was specified explicitly, so return an error if it
		// couldn't be read.
		if c, err := os.ReadFile(configFile); err != nil {
			return cfg, err
		} else if err := yaml.Unmarshal(c, &cfg); err != nil {
			return cfg, err
		}
	} else {
		// Check the default config file location. No error if it couldn't be
		// read, but error if the yaml could not be unmarshaled.
		if dataDir == "" {
			configFile = defaultConfigFile
		} else {
			configFile = filepath.Join(dataDir, defaultConfigFileName)
		}
		if c, err := os.ReadFile(configFile); err == nil {
			if err := yaml.Unmarshal(c, &cfg); err != nil {
				return cfg, err
			}
		}
	}

	// dataDir specified by env or input argument takes precedence
	if dataDir != "" {
		cfg.DataDir = dataDir
	}

	if cfg.LogFile == "" {
		cfg.LogFile = filepath.Join(cfg.DataDir, defaultLogFileName)
	}

	// Create the datadir if not exists
	if err := os.MkdirAll(cfg.DataDir, 0700); err != nil {
		return cfg, err
	}

	return cfg, nil
}

// AppDataDir returns an OS-specific application data directory, e.g.
// ~/.utxoracle on POSIX or %LOCALAPPDATA%\Utxoracle on Windows. roaming
// selects the roaming profile dir on Windows.
func AppDataDir(appName string, roaming bool) string {
	if appName == "" || appName == "." {
		return "."
	}
	appName = strings.TrimPrefix(appName, ".")
	appNameUpper := string(unicode.ToUpper(rune(appName[0]))) + appName[1:]

	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}

	switch runtime.GOOS {
	case "windows":
		dir := os.Getenv("LOCALAPPDATA")
		if roaming {
			dir = os.Getenv("APPDATA")
		}
		if dir == "" {
			dir = home
		}
		return filepath.Join(dir, appNameUpper)
	case "darwin":
		return filepath.Join(home, "Library", "Application Support",
			appNameUpper)
	default:
		return filepath.Join(home, "."+appName)
	}
}
