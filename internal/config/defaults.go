package config

const (
	defaultStagingDir = "~/.local/share/clipforge/staging"
	defaultLibraryDir = "~/.local/share/clipforge/library"
	defaultLogDir     = "~/.local/share/clipforge/logs"
	defaultAPIBind    = "127.0.0.1:7512"

	defaultLogFormat        = "console"
	defaultLogLevel         = "info"
	defaultLogRetentionDays = 60

	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultHeartbeatInterval  = 15
	defaultHeartbeatTimeout   = 120
	defaultJobTimeout         = 540
	defaultStaleWorkspaceAge  = 86400

	defaultFFmpegBinary         = "ffmpeg"
	defaultFFprobeBinary        = "ffprobe"
	defaultDownloadTimeout      = 300
	defaultCreditsPerJob        = int64(1)
	defaultCreditsPerGeneration = int64(10)
	defaultLinkTTLHours         = 24

	defaultKeywordsBaseURL        = "https://openrouter.ai/api/v1/chat/completions"
	defaultKeywordsModel          = "google/gemini-3-flash-preview"
	defaultKeywordsMax            = 5
	defaultKeywordsTimeoutSeconds = 60

	defaultStockBaseURL        = "https://api.pexels.com/videos/search"
	defaultStockOrientation    = "landscape"
	defaultStockTimeoutSeconds = 30

	defaultNotifyRequestTimeout = 10
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
			APIBind:    defaultAPIBind,
		},
		Pipeline: Pipeline{
			FFmpegBinary:         defaultFFmpegBinary,
			FFprobeBinary:        defaultFFprobeBinary,
			DownloadTimeout:      defaultDownloadTimeout,
			CreditsPerJob:        defaultCreditsPerJob,
			CreditsPerGeneration: defaultCreditsPerGeneration,
			LinkTTLHours:         defaultLinkTTLHours,
		},
		Keywords: Keywords{
			BaseURL:        defaultKeywordsBaseURL,
			Model:          defaultKeywordsModel,
			MaxKeywords:    defaultKeywordsMax,
			TimeoutSeconds: defaultKeywordsTimeoutSeconds,
		},
		Stock: Stock{
			BaseURL:        defaultStockBaseURL,
			Orientation:    defaultStockOrientation,
			TimeoutSeconds: defaultStockTimeoutSeconds,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			JobComplete:    true,
			JobFailed:      true,
		},
		Workflow: Workflow{
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
			HeartbeatInterval:  defaultHeartbeatInterval,
			HeartbeatTimeout:   defaultHeartbeatTimeout,
			JobTimeout:         defaultJobTimeout,
			StaleWorkspaceAge:  defaultStaleWorkspaceAge,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
