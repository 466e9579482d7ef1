package config

// ApplyDefaults sets default values for any zero values in cfg.
func ApplyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "localhost"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = "/usr/local/var/scenedex/data/db/frames.db"
	}
	if cfg.Storage.VectorIndexPath == "" {
		cfg.Storage.VectorIndexPath = "/usr/local/var/scenedex/data/indices/frames.vec"
	}
	if cfg.Storage.FramesDir == "" {
		cfg.Storage.FramesDir = "/usr/local/var/scenedex/data/frames"
	}
	if cfg.Storage.ThumbsDir == "" {
		cfg.Storage.ThumbsDir = "/usr/local/var/scenedex/data/thumbs"
	}
	if cfg.Storage.QueryLogPath == "" {
		cfg.Storage.QueryLogPath = "/usr/local/var/scenedex/data/queries.tsv"
	}
	if cfg.Embedding.Dimensions == 0 {
		cfg.Embedding.Dimensions = 512
	}
	if cfg.Embedding.CacheSize == 0 {
		cfg.Embedding.CacheSize = 10000
	}
	if cfg.Annotate.TimeoutSeconds == 0 {
		cfg.Annotate.TimeoutSeconds = 60
	}
	if cfg.Ingest.FrameIntervalSeconds == 0 {
		cfg.Ingest.FrameIntervalSeconds = 3.0
	}
	if cfg.Ingest.BoundaryCachePath == "" {
		cfg.Ingest.BoundaryCachePath = "/usr/local/var/scenedex/data/boundaries.json"
	}
	if cfg.Curation.SimilarityThreshold == 0 {
		cfg.Curation.SimilarityThreshold = 0.98
	}
	if cfg.Curation.MaxGapSeconds == 0 {
		cfg.Curation.MaxGapSeconds = 6.0
	}
	if cfg.Stats.TTLSeconds == 0 {
		cfg.Stats.TTLSeconds = 600
	}
	if cfg.RateLimit.SearchPerMinute == 0 {
		cfg.RateLimit.SearchPerMinute = 60
	}
	if cfg.RateLimit.DefaultPerMinute == 0 {
		cfg.RateLimit.DefaultPerMinute = 30
	}
	if cfg.Watch.DebounceMS == 0 {
		cfg.Watch.DebounceMS = 2000
	}
}
