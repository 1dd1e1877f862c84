package cfg

import (
	"feedsift/app/hash"
)

type Cfg struct {
	// Database configuration
	DBPath string

	// Application configuration
	FeedsDir          string
	Port              string
	BaseUrl           string
	WorkerCount       int
	SchedulerInterval int
	APIAccessKey      string
	RedisAddr         string

	// Deduplication configuration
	DedupStrategy            string
	TitleHashAlgorithm       hash.Algorithm
	ContentHashAlgorithm     hash.Algorithm
	TitleSimilarityThreshold float64
	DisableLinkCheck         bool
	DisableTitleCheck        bool
	DisableContentCheck      bool

	// Parsing configuration
	MaxContentLength          int
	ExtractedContentMaxLength int
	KeepHTML                  bool
	FlattenParagraphs         bool

	// Filtering configuration
	FilterCacheSize int

	// Fetching configuration
	FeedErrorLimit int

	// Application metadata
	UserAgent string
	Timezone  string
	Debug     bool
	Version   string
}
