// File: cmd/generate.go
package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/xkilldash9x/agentforge/internal/observability"
	"github.com/xkilldash9x/agentforge/internal/orchestrator"
	"github.com/xkilldash9x/agentforge/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type generateOptions struct {
	file       string
	bundlePath string
	asJSON     bool
	quiet      bool
}

func newGenerateCmd() *cobra.Command {
	var opts generateOptions

	generateCmd := &cobra.Command{
		Use:   "generate [requirements...]",
		Short: "Generate a conjugator application from a requirements text",
		Long: `Runs the full pipeline: requirements parsing, design, code generation and
test generation. The requirements are taken from the arguments, from --file,
or from standard input.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			cfg, err := getConfigFromContext(ctx)
			if err != nil {
				return err
			}

			text, err := readRequirements(cmd.InOrStdin(), args, opts.file)
			if err != nil {
				return err
			}

			components, err := buildComponents(ctx, cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize pipeline: %w", err)
			}
			defer components.Shutdown()

			return runGenerate(cmd, components, text, opts)
		},
	}

	generateCmd.Flags().StringVarP(&opts.file, "file", "f", "", "read requirements from this file")
	generateCmd.Flags().StringVar(&opts.bundlePath, "bundle", "", "also write a zip of all artifacts to this path")
	generateCmd.Flags().BoolVar(&opts.asJSON, "json", false, "print the final update as JSON")
	generateCmd.Flags().BoolVarP(&opts.quiet, "quiet", "q", false, "suppress progress lines")
	generateCmd.Flags().String("output-dir", "", "base directory for generated artifacts (overrides output.base_dir)")
	generateCmd.Flags().String("storage", "", "artifact storage backend: fs, s3 or memory")
	return generateCmd
}

// readRequirements resolves the requirements text from args, a file or stdin.
func readRequirements(stdin io.Reader, args []string, file string) (string, error) {
	var text string
	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case file != "":
		path, err := homedir.Expand(file)
		if err != nil {
			return "", fmt.Errorf("expand requirements path: %w", err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("read requirements file: %w", err)
		}
		text = string(data)
	default:
		data, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read requirements from stdin: %w", err)
		}
		text = string(data)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", fmt.Errorf("requirements text is required (pass it as an argument, with --file, or on stdin)")
	}
	return text, nil
}

func runGenerate(cmd *cobra.Command, components *service.Components, text string, opts generateOptions) error {
	out := cmd.OutOrStdout()
	logger := observability.GetLogger()

	var final orchestrator.Update
	for u := range components.Controller.GenerateApplication(cmd.Context(), text) {
		if !opts.quiet && !opts.asJSON {
			fmt.Fprintf(out, "[%3d%%] %s\n", u.Progress, u.Status)
		}
		final = u
	}
	if final.Err != nil {
		return fmt.Errorf("generation failed: %w", final.Err)
	}
	if !final.Done {
		return fmt.Errorf("generation ended without a final update")
	}

	if opts.bundlePath != "" {
		if err := writeBundle(final, components, opts.bundlePath); err != nil {
			return err
		}
		logger.Info("Bundle written", zap.String("path", opts.bundlePath))
	}

	if opts.asJSON {
		data, err := json.MarshalIndent(final, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to serialize result: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}

	fmt.Fprintln(out)
	for _, f := range final.Files {
		fmt.Fprintf(out, "  code   %s\n", components.Layout.CodePath(f.Filename))
	}
	fmt.Fprintf(out, "  tests  %s\n", final.TestPath)
	fmt.Fprintf(out, "  usage  %s\n", components.Layout.UsageReport)
	if opts.bundlePath != "" {
		fmt.Fprintf(out, "  bundle %s\n", opts.bundlePath)
	}
	fmt.Fprintln(out)
	fmt.Fprintln(out, final.Instructions)
	return nil
}

func writeBundle(final orchestrator.Update, components *service.Components, bundlePath string) error {
	data, err := orchestrator.BuildBundle(final, components.Layout)
	if err != nil {
		return err
	}
	path, err := homedir.Expand(bundlePath)
	if err != nil {
		return fmt.Errorf("expand bundle path: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create bundle directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write bundle: %w", err)
	}
	return nil
}
