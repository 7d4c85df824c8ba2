package config

const (
	defaultStagingDir          = "~/.local/share/redub/staging"
	defaultResultsDir          = "./results"
	defaultLogDir              = "~/.local/share/redub/logs"
	defaultLogFormat           = "console"
	defaultLogLevel            = "info"
	defaultTranscriptionLang   = "cmn"
	defaultPollIntervalSeconds = 30
	defaultRevAIBaseURL        = "https://api.rev.ai/speechtotext/v1"
	defaultTranslationBaseURL  = "https://api.openai.com/v1"
	defaultTranslationModel    = "gpt-4o-mini"
	defaultSynthesisBaseURL    = "https://api.elevenlabs.io/v1"
	defaultSynthesisModel      = "eleven_multilingual_v2"
	defaultWhisperBinary       = "whisper"
	defaultWhisperModel        = "small"
	defaultDiarizeBinary       = "diarize"
)

// ProviderRevAI and ProviderWhisper are the supported transcription providers.
const (
	ProviderRevAI   = "revai"
	ProviderWhisper = "whisper"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			ResultsDir: defaultResultsDir,
			LogDir:     defaultLogDir,
		},
		Transcription: Transcription{
			Provider:            ProviderRevAI,
			Language:            defaultTranscriptionLang,
			BaseURL:             defaultRevAIBaseURL,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			WhisperBinary:       defaultWhisperBinary,
			WhisperModel:        defaultWhisperModel,
		},
		Diarization: Diarization{
			Enabled: false,
			Binary:  defaultDiarizeBinary,
		},
		Translation: Translation{
			BaseURL: defaultTranslationBaseURL,
			Model:   defaultTranslationModel,
		},
		Synthesis: Synthesis{
			BaseURL: defaultSynthesisBaseURL,
			Model:   defaultSynthesisModel,
			Voices:  []string{"Roger", "Aria", "Jessica"},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
