package main

import (
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"redub/internal/config"
	"redub/internal/ledger"
	"redub/internal/logging"
	"redub/internal/pipeline"
	"redub/internal/services/diarize"
	"redub/internal/services/elevenlabs"
	"redub/internal/services/openai"
	"redub/internal/services/revai"
	"redub/internal/services/whisper"
)

type commandContext struct {
	configFlag *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag *string) *commandContext {
	return &commandContext{configFlag: configFlag}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) logger() (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return logging.NewFromConfig(cfg)
}

func (c *commandContext) openStore() (*ledger.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return ledger.Open(cfg)
}

// transcriptionProviders wires the configured speech-to-text path.
func transcriptionProviders(cfg *config.Config) (pipeline.Providers, error) {
	var p pipeline.Providers
	switch cfg.Transcription.Provider {
	case config.ProviderRevAI:
		if err := cfg.RequireTranscriptionKey(); err != nil {
			return p, err
		}
		var opts []revai.Option
		if cfg.Transcription.BaseURL != "" {
			opts = append(opts, revai.WithBaseURL(cfg.Transcription.BaseURL))
		}
		p.Transcriber = revai.NewClient(cfg.Transcription.APIKey, opts...)
	case config.ProviderWhisper:
		p.LocalTranscriber = whisper.NewService(whisper.Config{
			Binary: cfg.Transcription.WhisperBinary,
			Model:  cfg.Transcription.WhisperModel,
		})
		if cfg.Diarization.Enabled {
			p.Diarizer = diarize.NewService(cfg.Diarization.Binary)
		}
	}
	return p, nil
}

// buildProviders assembles the full provider set for a dubbing run.
func buildProviders(cfg *config.Config) (pipeline.Providers, error) {
	p, err := transcriptionProviders(cfg)
	if err != nil {
		return p, err
	}

	if err := cfg.RequireTranslationKey(); err != nil {
		return p, err
	}
	translator := fixerClient(cfg)
	p.Translator = translator
	p.Fixer = translator

	if err := cfg.RequireSynthesisKey(); err != nil {
		return p, err
	}
	p.Synthesizer = synthesisClient(cfg)
	return p, nil
}

func fixerClient(cfg *config.Config) *openai.Client {
	var opts []openai.Option
	if cfg.Translation.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.Translation.BaseURL))
	}
	if cfg.Translation.Model != "" {
		opts = append(opts, openai.WithModel(cfg.Translation.Model))
	}
	return openai.NewClient(cfg.Translation.APIKey, opts...)
}

func synthesisClient(cfg *config.Config) *elevenlabs.Client {
	var opts []elevenlabs.Option
	if cfg.Synthesis.BaseURL != "" {
		opts = append(opts, elevenlabs.WithBaseURL(cfg.Synthesis.BaseURL))
	}
	if cfg.Synthesis.Model != "" {
		opts = append(opts, elevenlabs.WithModel(cfg.Synthesis.Model))
	}
	return elevenlabs.NewClient(cfg.Synthesis.APIKey, opts...)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}
