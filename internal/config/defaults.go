package config

const (
	defaultStagingDir         = "~/.local/share/evidentia/staging"
	defaultLibraryDir         = "~/.local/share/evidentia/library"
	defaultLogDir             = "~/.local/share/evidentia/logs"
	defaultOpenAIBaseURL      = "https://api.openai.com/v1"
	defaultTranscribeModel    = "whisper-1"
	defaultSummaryModel       = "gpt-4o"
	defaultOpenAITimeout      = 300
	defaultExtractor          = ExtractorFFmpeg
	defaultMaxConcurrentItems = 2
	defaultQueuePollInterval  = 5
	defaultErrorRetryInterval = 10
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
)

// Extractor strategy names accepted by workflow.extractor.
const (
	ExtractorFFmpeg = "ffmpeg"
	ExtractorWAV    = "wav"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LibraryDir: defaultLibraryDir,
			LogDir:     defaultLogDir,
		},
		OpenAI: OpenAI{
			BaseURL:         defaultOpenAIBaseURL,
			TranscribeModel: defaultTranscribeModel,
			SummaryModel:    defaultSummaryModel,
			TimeoutSeconds:  defaultOpenAITimeout,
		},
		Workflow: Workflow{
			Extractor:          defaultExtractor,
			MaxConcurrentItems: defaultMaxConcurrentItems,
			QueuePollInterval:  defaultQueuePollInterval,
			ErrorRetryInterval: defaultErrorRetryInterval,
		},
		Report: Report{
			IncludeTranscripts: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
