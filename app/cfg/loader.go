package cfg

import (
	"cmp"
	"fmt"

	"github.com/jessevdk/go-flags"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Storage configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./data/feedgarden.db" description:"Path to the SQLite database file"`

	// Polling configuration
	Subscriptions     string `long:"subscriptions" env:"SUBSCRIPTIONS" default:"./sources.yml" description:"Path to the subscriptions YAML file"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for source polling"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	PollBatch         int    `long:"poll-batch" env:"POLL_BATCH" default:"50" description:"Maximum number of due sources dispatched per scheduler round"`
	FetchTimeout      int    `long:"fetch-timeout" env:"FETCH_TIMEOUT" default:"30" description:"HTTP fetch timeout in seconds"`
	MaxFailures       int    `long:"max-failures" env:"MAX_FAILURES" default:"10" description:"Consecutive poll failures before a source is suspended"`
	MaxBackoff        int    `long:"max-backoff" env:"MAX_BACKOFF" default:"86400" description:"Upper bound in seconds for the failure backoff delay"`
	ProxyAttempts     int    `long:"proxy-attempts" env:"PROXY_ATTEMPTS" default:"3" description:"Proxy candidates tried per blocked fetch"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feedgarden/1.0" description:"User agent string for HTTP requests"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

var globalCfg *Cfg

func Load() (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:            raw.DBPath,
		Subscriptions:     raw.Subscriptions,
		WorkerCount:       raw.WorkerCount,
		SchedulerInterval: raw.SchedulerInterval,
		PollBatch:         raw.PollBatch,
		FetchTimeout:      raw.FetchTimeout,
		MaxFailures:       raw.MaxFailures,
		MaxBackoff:        raw.MaxBackoff,
		ProxyAttempts:     raw.ProxyAttempts,
		UserAgent:         raw.UserAgent,
		Debug:             raw.Debug,
		Version:           GetVersion(),
	}

	globalCfg = cfg

	return cfg, nil
}

func Get() *Cfg {
	if globalCfg == nil {
		panic("configuration not loaded - call cfg.Load() first")
	}
	return globalCfg
}

// Set replaces the global configuration. Intended for tests.
func Set(c *Cfg) {
	globalCfg = c
}
