package cfg

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"feedsift/app/hash"
)

// Version is set at build time via -ldflags
var Version = "dev"

func GetVersion() string {
	return cmp.Or(Version, "unknown")
}

type rawCfg struct {
	// Database configuration
	DBPath string `long:"db-path" env:"DB_PATH" default:"./feedsift.db" description:"Path to the SQLite database file"`

	// Application configuration
	FeedsDir          string `long:"feeds-dir" env:"FEEDS_DIR" default:"./feeds" description:"Directory containing feed configuration files"`
	Port              string `long:"port" env:"PORT" default:"8080" description:"HTTP server port"`
	BaseUrl           string `long:"base-url" env:"BASE_URL" description:"Public base URL for the service (e.g., https://feeds.example.com)"`
	WorkerCount       int    `long:"worker-count" env:"WORKER_COUNT" default:"5" description:"Number of background workers for feed processing"`
	SchedulerInterval int    `long:"scheduler-interval" env:"SCHEDULER_INTERVAL" default:"30" description:"Scheduler interval in seconds"`
	APIAccessKey      string `long:"api-key" env:"API_ACCESS_KEY" description:"API access key for authentication (optional)"`
	RedisAddr         string `long:"redis-addr" env:"REDIS_ADDR" description:"Redis address for rendered feed caching (optional, e.g. localhost:6379)"`

	// Deduplication configuration
	DedupStrategy            string  `long:"dedup-strategy" env:"DEDUP_STRATEGY" default:"medium" choice:"strict" choice:"medium" choice:"relaxed" description:"Duplicate detection strategy"`
	TitleHashAlgorithm       string  `long:"title-hash-algorithm" env:"TITLE_HASH_ALGORITHM" default:"md5" description:"Hash algorithm for title fingerprints (md5 or sha256)"`
	ContentHashAlgorithm     string  `long:"content-hash-algorithm" env:"CONTENT_HASH_ALGORITHM" default:"sha256" description:"Hash algorithm for content fingerprints (md5 or sha256)"`
	TitleSimilarityThreshold float64 `long:"title-similarity-threshold" env:"TITLE_SIMILARITY_THRESHOLD" default:"0" description:"Near-duplicate title similarity threshold in (0,1], 0 disables"`
	DisableLinkCheck         bool    `long:"disable-link-check" env:"DISABLE_LINK_CHECK" description:"Disable link hash duplicate checks"`
	DisableTitleCheck        bool    `long:"disable-title-check" env:"DISABLE_TITLE_CHECK" description:"Disable title hash duplicate checks"`
	DisableContentCheck      bool    `long:"disable-content-check" env:"DISABLE_CONTENT_CHECK" description:"Disable content hash duplicate checks"`

	// Parsing configuration
	MaxContentLength          int  `long:"max-content-length" env:"MAX_CONTENT_LENGTH" default:"100000" description:"Maximum stored content length in characters"`
	ExtractedContentMaxLength int  `long:"extracted-content-max-length" env:"EXTRACTED_CONTENT_MAX_LENGTH" default:"500000" description:"Maximum stored content length for extracted full articles"`
	KeepHTML                  bool `long:"keep-html" env:"KEEP_HTML" description:"Keep HTML markup in entry content instead of stripping it"`
	FlattenParagraphs         bool `long:"flatten-paragraphs" env:"FLATTEN_PARAGRAPHS" description:"Collapse paragraph breaks when stripping HTML"`

	// Filtering configuration
	FilterCacheSize int `long:"filter-cache-size" env:"FILTER_CACHE_SIZE" default:"256" description:"Size of the per-engine keyword match cache"`

	// Fetching configuration
	FeedErrorLimit int `long:"feed-error-limit" env:"FEED_ERROR_LIMIT" default:"10" description:"Consecutive fetch failures before a feed is auto-disabled"`

	// Application metadata
	UserAgent string `long:"user-agent" env:"USER_AGENT" default:"feedsift/1.0" description:"User agent string for HTTP requests"`
	Timezone  string `long:"timezone" env:"TZ" default:"UTC" description:"Timezone for timestamps (e.g., UTC, America/New_York)"`
	Debug     bool   `long:"debug" env:"DEBUG" description:"Enable debug logging"`
}

// Load parses configuration from environment variables and command-line
// flags and returns the resulting Cfg. There is no package-level state:
// callers pass the Cfg (or the fields they need) into component
// constructors. A nil Cfg with nil error means help was requested.
func Load() (*Cfg, error) {
	return loadArgs(os.Args[1:])
}

func loadArgs(args []string) (*Cfg, error) {
	var raw rawCfg

	parser := flags.NewParser(&raw, flags.Default)

	if _, err := parser.ParseArgs(args); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok {
			if flagsErr.Type == flags.ErrHelp {
				return nil, nil
			}
		}
		return nil, fmt.Errorf("failed to parse configuration: %w", err)
	}

	cfg := &Cfg{
		DBPath:                    raw.DBPath,
		FeedsDir:                  raw.FeedsDir,
		Port:                      raw.Port,
		BaseUrl:                   raw.BaseUrl,
		WorkerCount:               raw.WorkerCount,
		SchedulerInterval:         raw.SchedulerInterval,
		APIAccessKey:              raw.APIAccessKey,
		RedisAddr:                 raw.RedisAddr,
		DedupStrategy:             raw.DedupStrategy,
		TitleHashAlgorithm:        parseAlgorithm(raw.TitleHashAlgorithm, hash.AlgorithmMD5),
		ContentHashAlgorithm:      parseAlgorithm(raw.ContentHashAlgorithm, hash.AlgorithmSHA256),
		TitleSimilarityThreshold:  raw.TitleSimilarityThreshold,
		DisableLinkCheck:          raw.DisableLinkCheck,
		DisableTitleCheck:         raw.DisableTitleCheck,
		DisableContentCheck:       raw.DisableContentCheck,
		MaxContentLength:          raw.MaxContentLength,
		ExtractedContentMaxLength: raw.ExtractedContentMaxLength,
		KeepHTML:                  raw.KeepHTML,
		FlattenParagraphs:         raw.FlattenParagraphs,
		FilterCacheSize:           raw.FilterCacheSize,
		FeedErrorLimit:            raw.FeedErrorLimit,
		UserAgent:                 raw.UserAgent,
		Timezone:                  raw.Timezone,
		Debug:                     raw.Debug,
		Version:                   GetVersion(),
	}

	if err := applyTimezone(cfg.Timezone); err != nil {
		slog.Warn("Invalid timezone, using system default", "timezone", cfg.Timezone, "error", err)
	}

	return cfg, nil
}

// parseAlgorithm falls back to a default on an unknown name instead of
// failing startup.
func parseAlgorithm(s string, fallback hash.Algorithm) hash.Algorithm {
	algo, ok := hash.ParseAlgorithm(s)
	if !ok {
		slog.Warn("Unknown hash algorithm, using default", "algorithm", s, "default", string(fallback))
		return fallback
	}
	return algo
}

func applyTimezone(timezone string) error {
	if timezone != "" {
		loc, err := time.LoadLocation(timezone)
		if err != nil {
			return err
		}
		time.Local = loc
	}
	return nil
}
