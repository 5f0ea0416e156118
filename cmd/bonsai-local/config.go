package main

import (
	"fmt"
	"os"
	"strings"

	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/vocdoni/bonsai-local/api"
	"github.com/vocdoni/bonsai-local/db"
	"github.com/vocdoni/bonsai-local/engine"
	"github.com/vocdoni/bonsai-local/internal"
	"github.com/vocdoni/bonsai-local/jobs"
	"github.com/vocdoni/bonsai-local/log"
	"github.com/vocdoni/bonsai-local/prover"
)

const (
	defaultAPIHost   = "0.0.0.0"
	defaultAPIPort   = 8081
	defaultLogLevel  = "info"
	defaultLogOutput = "stdout"
	envPrefix        = "BONSAI"
)

// Version is the build version, set at build time with -ldflags
var Version = internal.Version

// Config holds the application configuration
type Config struct {
	API     APIConfig
	Log     LogConfig
	Engine  EngineConfig
	Storage StorageConfig
	Prover  ProverConfig
}

// APIConfig holds the API-specific configuration
type APIConfig struct {
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
	URL     string `mapstructure:"url"`
	MaxBody int64  `mapstructure:"maxbody"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Output string `mapstructure:"output"`
}

// EngineConfig holds the job execution policy
type EngineConfig struct {
	Sessions int `mapstructure:"sessions"`
	Snarks   int `mapstructure:"snarks"`
	Queue    int `mapstructure:"queue"`
}

// StorageConfig holds the artifact store configuration
type StorageConfig struct {
	Backend  string `mapstructure:"backend"`
	MaxBytes uint64 `mapstructure:"maxbytes"`
}

// ProverConfig holds the prover configuration
type ProverConfig struct {
	KeyCache int  `mapstructure:"keycache"`
	DevMode  bool `mapstructure:"devmode"`
}

// loadConfig loads configuration from flags, environment variables, and defaults
func loadConfig() (*Config, error) {
	v := viper.New()

	v.SetDefault("api.host", defaultAPIHost)
	v.SetDefault("api.port", defaultAPIPort)
	v.SetDefault("api.url", "")
	v.SetDefault("api.maxbody", api.DefaultMaxBodySize)
	v.SetDefault("log.level", defaultLogLevel)
	v.SetDefault("log.output", defaultLogOutput)
	v.SetDefault("engine.sessions", engine.DefaultConcurrency)
	v.SetDefault("engine.snarks", 0)
	v.SetDefault("engine.queue", jobs.DefaultQueueSize)
	v.SetDefault("storage.backend", db.TypeInMemory)
	v.SetDefault("storage.maxbytes", 0)
	v.SetDefault("prover.keycache", prover.DefaultKeyCacheSize)
	v.SetDefault("prover.devmode", false)

	flag.StringP("api.host", "a", defaultAPIHost, "API host")
	flag.IntP("api.port", "p", defaultAPIPort, "API port")
	flag.String("api.url", "", "public base URL used in upload and receipt URLs (derived from requests if empty)")
	flag.Int64("api.maxbody", api.DefaultMaxBodySize, "maximum size in bytes of an uploaded artifact")
	flag.StringP("log.level", "l", defaultLogLevel, "log level (debug, info, warn, error)")
	flag.StringP("log.output", "o", defaultLogOutput, "log output (stdout, stderr or filepath)")
	flag.IntP("engine.sessions", "s", engine.DefaultConcurrency, "maximum number of proving sessions running at once")
	flag.Int("engine.snarks", 0, "maximum number of SNARK conversions running at once (0 shares the session limit)")
	flag.Int("engine.queue", jobs.DefaultQueueSize, "maximum number of queued jobs per kind")
	flag.String("storage.backend", db.TypeInMemory, fmt.Sprintf("artifact store backend (%s or %s)", db.TypeInMemory, db.TypePebble))
	flag.Uint64("storage.maxbytes", 0, "artifact store capacity in bytes (0 is unbounded)")
	flag.Int("prover.keycache", prover.DefaultKeyCacheSize, "number of images whose proving keys are cached")
	flag.Bool("prover.devmode", false, "skip proving and only check inputs satisfy their image")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "bonsai-local %s\n\n", Version)
		fmt.Fprintf(os.Stderr, "Usage: bonsai-local [flags]\n\n")
		fmt.Fprintf(os.Stderr, "Flags:\n")
		flag.PrintDefaults()
		fmt.Fprintf(os.Stderr, "\nEnvironment variables are also available with the same name as flags,\n")
		fmt.Fprintf(os.Stderr, "  except for dots (.) which are replaced by underscores (_).\n")
		fmt.Fprintf(os.Stderr, "  For example, %s_API_PORT or %s_PROVER_DEVMODE\n", envPrefix, envPrefix)
		fmt.Fprintf(os.Stderr, "\nExamples:\n")
		fmt.Fprintf(os.Stderr, "  # Start with default settings\n")
		fmt.Fprintf(os.Stderr, "  bonsai-local\n\n")
		fmt.Fprintf(os.Stderr, "  # Four concurrent sessions, one conversion at a time\n")
		fmt.Fprintf(os.Stderr, "  bonsai-local --engine.sessions=4 --engine.snarks=1\n")
	}

	flag.CommandLine.SortFlags = false
	flag.Parse()

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(flag.CommandLine); err != nil {
		return nil, fmt.Errorf("error binding flags: %w", err)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	return cfg, nil
}

// validateConfig validates the loaded configuration
func validateConfig(cfg *Config) error {
	if cfg.API.Port < 0 || cfg.API.Port > 65535 {
		return fmt.Errorf("invalid API port %d", cfg.API.Port)
	}
	if cfg.API.MaxBody <= 0 {
		return fmt.Errorf("api.maxbody must be positive")
	}
	if !log.ValidLevel(cfg.Log.Level) {
		return fmt.Errorf("invalid log level %q", cfg.Log.Level)
	}
	if cfg.Engine.Sessions <= 0 {
		return fmt.Errorf("engine.sessions must be positive")
	}
	if cfg.Engine.Snarks < 0 {
		return fmt.Errorf("engine.snarks cannot be negative")
	}
	if cfg.Engine.Queue <= 0 {
		return fmt.Errorf("engine.queue must be positive")
	}
	switch cfg.Storage.Backend {
	case db.TypeInMemory, db.TypePebble:
	default:
		return fmt.Errorf("invalid storage backend %q, use %s or %s", cfg.Storage.Backend, db.TypeInMemory, db.TypePebble)
	}
	if cfg.Prover.KeyCache <= 0 {
		return fmt.Errorf("prover.keycache must be positive")
	}
	return nil
}
