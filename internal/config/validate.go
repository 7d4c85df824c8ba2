package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateTranscription(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateTranscription() error {
	switch c.Transcription.Provider {
	case ProviderRevAI, ProviderWhisper:
	default:
		return fmt.Errorf("transcription.provider must be %q or %q, got %q", ProviderRevAI, ProviderWhisper, c.Transcription.Provider)
	}
	if c.Transcription.PollIntervalSeconds <= 0 {
		return errors.New("transcription.poll_interval_seconds must be positive")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be \"console\" or \"json\", got %q", c.Logging.Format)
	}
	return nil
}

// RequireTranscriptionKey returns an error when the active transcription
// provider needs a credential and none is configured. The whisper path runs a
// local tool and needs no key.
func (c *Config) RequireTranscriptionKey() error {
	if c.Transcription.Provider != ProviderRevAI {
		return nil
	}
	if c.Transcription.APIKey == "" {
		return credentialError("transcription.api_key", "REVAI_ACCESS_TOKEN")
	}
	return nil
}

// RequireTranslationKey returns an error when no translation credential is configured.
func (c *Config) RequireTranslationKey() error {
	if c.Translation.APIKey == "" {
		return credentialError("translation.api_key", "OPENAI_API_KEY")
	}
	return nil
}

// RequireSynthesisKey returns an error when no synthesis credential is configured.
func (c *Config) RequireSynthesisKey() error {
	if c.Synthesis.APIKey == "" {
		return credentialError("synthesis.api_key", "ELEVENLABS_API_KEY")
	}
	return nil
}

func credentialError(field, env string) error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = "~/.config/redub/config.toml"
	}
	return fmt.Errorf("%s is required. Set %s env var or edit %s (create with 'redub config init')", field, env, defaultPath)
}
