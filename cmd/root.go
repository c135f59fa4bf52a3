// File: cmd/root.go
package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/internal/config"
	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/service"
)

type contextKey string

const configKey contextKey = "config"

// Function variables for dependency injection in tests.
var (
	newComponentFactory = service.NewComponentFactory
	// storageRoot is where the fs artifact backend resolves paths.
	storageRoot = "."
)

// flagBindings maps command flags onto configuration keys. Only flags the
// running command defines are bound.
var flagBindings = map[string]string{
	"provider":   "llm.provider",
	"log-level":  "logger.level",
	"output-dir": "output.base_dir",
	"storage":    "storage.backend",
	"addr":       "server.addr",
}

// NewRootCommand builds a fresh command tree. Each call returns independent
// flag state.
func NewRootCommand() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:          "agentforge",
		Short:        "AgentForge turns plain-language requirements into a tested verb conjugator application.",
		Version:      Version,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			// The MCP transport owns stdout.
			if cmd.Name() == "mcp" {
				observability.InitializeStderr(cfg.Logger())
			} else {
				observability.InitializeLogger(cfg.Logger())
			}
			observability.GetLogger().Debug("Starting AgentForge", zap.String("version", Version), zap.String("command", cmd.Name()))

			cmd.SetContext(context.WithValue(cmd.Context(), configKey, cfg))
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
	rootCmd.PersistentFlags().String("provider", "", "LLM provider: gemini or fake")
	rootCmd.PersistentFlags().String("log-level", "", "log level (debug, info, warn, error)")
	rootCmd.SetVersionTemplate(`{{printf "%s version %s\n" .Name .Version}}`)

	rootCmd.AddCommand(
		newGenerateCmd(),
		newServeCmd(),
		newMCPCmd(),
		newRunsCmd(),
		newUsageCmd(),
		newLogsCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command tree with the given (signal-aware) context.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		observability.GetLogger().Error("Command execution failed", zap.Error(err))
	}
	observability.Sync()
	return err
}

// loadConfig layers defaults, an optional config file, .env, AGENTFORGE_*
// environment variables and bound flags.
func loadConfig(cfgFile string, flags *pflag.FlagSet) (*config.Config, error) {
	// A missing .env file is normal.
	_ = godotenv.Load()

	v := viper.New()
	config.SetDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.SetEnvPrefix("AGENTFORGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	for name, key := range flagBindings {
		if f := flags.Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("bind flag --%s: %w", name, err)
			}
		}
	}

	return config.NewConfigFromViper(v)
}

// getConfigFromContext returns the configuration stored by PersistentPreRunE.
func getConfigFromContext(ctx context.Context) (*config.Config, error) {
	cfg, ok := ctx.Value(configKey).(*config.Config)
	if !ok || cfg == nil {
		return nil, fmt.Errorf("configuration not found in command context")
	}
	return cfg, nil
}

// buildComponents creates the pipeline components for a command.
func buildComponents(ctx context.Context, cfg config.Interface) (*service.Components, error) {
	return newComponentFactory(storageRoot).Create(ctx, cfg, observability.GetLogger())
}
