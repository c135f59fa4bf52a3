// File: internal/config/config_test.go
package config

import (
	"bytes"
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// -- Constructor and Defaults Tests --

func TestNewDefaultConfig(t *testing.T) {
	cfg := NewDefaultConfig()

	// Verify a few key defaults to ensure the mechanism works.
	assert.Equal(t, "info", cfg.Logger().Level)
	assert.Equal(t, "agentforge", cfg.Logger().ServiceName)
	assert.Equal(t, ProviderGemini, cfg.LLM().Provider)
	assert.Equal(t, "gemini-2.5-flash-lite", cfg.LLM().FastModel)
	assert.InDelta(t, 0.7, cfg.LLM().Temperature, 1e-6)
	assert.Equal(t, 8192, cfg.LLM().MaxTokens)
	assert.Equal(t, 2*time.Minute, cfg.LLM().APITimeout)
	assert.Equal(t, "generated", cfg.Output().BaseDir)
	assert.Equal(t, "conjugator", cfg.Output().CodeDir)
	assert.Equal(t, "usage_report.json", cfg.Output().UsageReport)
	assert.Equal(t, StorageFS, cfg.Storage().Backend)
	assert.Equal(t, 400*time.Millisecond, cfg.Pipeline().TickInterval)
	assert.Equal(t, 32, cfg.Server().RecentRuns)
	assert.NoError(t, cfg.Validate(), "defaults must validate")
}

// -- Validation Logic Tests --

func TestConfigValidation(t *testing.T) {
	t.Run("Core Validation", func(t *testing.T) {
		cfg := NewDefaultConfig()
		assert.NoError(t, cfg.Validate())

		// Test Case: Empty output dir
		badOutput := *cfg
		badOutput.OutputCfg.BaseDir = ""
		err := badOutput.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "output.base_dir is required")

		// Test Case: Invalid progress buffer
		badPipeline := *cfg
		badPipeline.PipelineCfg.ProgressBuffer = 0
		err = badPipeline.Validate()
		assert.Error(t, err)
		assert.Contains(t, err.Error(), "pipeline.progress_buffer must be a positive integer")
	})

	t.Run("LLM Validation", func(t *testing.T) {
		valid := NewDefaultConfig().LLM()
		assert.NoError(t, valid.Validate())

		unknown := valid
		unknown.Provider = "carrier-pigeon"
		assert.ErrorContains(t, unknown.Validate(), "unsupported provider")

		hot := valid
		hot.Temperature = 2.5
		assert.ErrorContains(t, hot.Validate(), "temperature must be between 0.0 and 2.0")

		noTokens := valid
		noTokens.MaxTokens = 0
		assert.ErrorContains(t, noTokens.Validate(), "max_tokens must be a positive integer")
	})

	t.Run("Storage Validation", func(t *testing.T) {
		s3 := StorageConfig{Backend: StorageS3}
		assert.ErrorContains(t, s3.Validate(), "s3.endpoint and s3.bucket are required")

		s3.S3 = S3Config{Endpoint: "localhost:9000", Bucket: "artifacts"}
		assert.NoError(t, s3.Validate())

		other := StorageConfig{Backend: "tape"}
		assert.ErrorContains(t, other.Validate(), "unsupported backend")
	})
}

// -- Setter Tests --

func TestConfigSetters(t *testing.T) {
	cfg := NewDefaultConfig()
	var iface Interface = cfg

	iface.SetLLMProvider(ProviderFake)
	iface.SetOutputBaseDir("/tmp/out")

	assert.Equal(t, ProviderFake, cfg.LLM().Provider)
	assert.Equal(t, "/tmp/out", cfg.Output().BaseDir)
}

// -- Factory Function Tests --

func TestNewConfigFromViper(t *testing.T) {
	t.Run("Successful Load from YAML", func(t *testing.T) {
		yamlBytes := []byte(`
llm:
  provider: fake
  fast_model: tiny
  temperature: 0.2
output:
  base_dir: "~/forge-out"
storage:
  backend: s3
  s3:
    endpoint: "minio:9000"
    bucket: "runs"
database:
  sqlite_path: "runs.db"
`)
		v := viper.New()
		SetDefaults(v)
		v.SetConfigType("yaml")
		require.NoError(t, v.ReadConfig(bytes.NewBuffer(yamlBytes)))

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)

		assert.Equal(t, ProviderFake, cfg.LLM().Provider)
		assert.Equal(t, "tiny", cfg.LLM().FastModel)
		assert.Equal(t, "gemini-2.5-flash-lite", cfg.LLM().PowerfulModel, "unset keys keep defaults")
		assert.InDelta(t, 0.2, cfg.LLM().Temperature, 1e-6)
		assert.Equal(t, "~/forge-out", cfg.Output().BaseDir)
		assert.Equal(t, StorageS3, cfg.Storage().Backend)
		assert.Equal(t, "runs", cfg.Storage().S3.Bucket)
		assert.Equal(t, "runs.db", cfg.Database().SQLitePath)
	})

	t.Run("Validation Failure", func(t *testing.T) {
		v := viper.New()
		SetDefaults(v)
		v.Set("llm.max_tokens", 0)

		cfg, err := NewConfigFromViper(v)
		assert.Error(t, err)
		assert.Nil(t, cfg)
		assert.Contains(t, err.Error(), "invalid configuration")
		assert.Contains(t, err.Error(), "max_tokens must be a positive integer")
	})

	t.Run("Environment Variable Binding", func(t *testing.T) {
		t.Setenv("GOOGLE_API_KEY", "test-google-key")
		t.Setenv("AGENTFORGE_S3_SECRET_KEY", "s3-secret")

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "test-google-key", cfg.LLM().APIKey)
		assert.Equal(t, "s3-secret", cfg.Storage().S3.SecretKey)
	})

	t.Run("Prefixed Key Wins", func(t *testing.T) {
		t.Setenv("GOOGLE_API_KEY", "fallback")
		t.Setenv("AGENTFORGE_LLM_API_KEY", "primary")

		v := viper.New()
		SetDefaults(v)

		cfg, err := NewConfigFromViper(v)
		require.NoError(t, err)
		assert.Equal(t, "primary", cfg.LLM().APIKey)
	})
}
