// File: cmd/logs.go
package cmd

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/hpcloud/tail"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
)

func newLogsCmd() *cobra.Command {
	var path string
	var follow bool
	var lines int

	logsCmd := &cobra.Command{
		Use:   "logs",
		Short: "Print or follow the AgentForge log file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			if path == "" {
				cfg, err := getConfigFromContext(ctx)
				if err != nil {
					return err
				}
				path = cfg.Logger().LogFile
			}
			if path == "" {
				return fmt.Errorf("file logging is disabled (logger.log_file is empty)")
			}
			expanded, err := homedir.Expand(path)
			if err != nil {
				return fmt.Errorf("expand log path: %w", err)
			}

			out := cmd.OutOrStdout()
			if err := printLastLines(out, expanded, lines); err != nil {
				return err
			}
			if !follow {
				return nil
			}

			t, err := tail.TailFile(expanded, tail.Config{
				Follow:    true,
				ReOpen:    true,
				MustExist: true,
				Location:  &tail.SeekInfo{Offset: 0, Whence: io.SeekEnd},
				Logger:    tail.DiscardingLogger,
			})
			if err != nil {
				return fmt.Errorf("failed to tail log file: %w", err)
			}
			defer func() {
				_ = t.Stop()
				t.Cleanup()
			}()

			for {
				select {
				case <-ctx.Done():
					return nil
				case line, ok := <-t.Lines:
					if !ok {
						return t.Err()
					}
					if line.Err != nil {
						return line.Err
					}
					fmt.Fprintln(out, line.Text)
				}
			}
		},
	}
	logsCmd.Flags().StringVar(&path, "path", "", "log file to read (default is logger.log_file)")
	logsCmd.Flags().BoolVarP(&follow, "follow", "f", false, "keep printing new lines as they are written")
	logsCmd.Flags().IntVarP(&lines, "lines", "n", 50, "number of trailing lines to print first")
	return logsCmd
}

// printLastLines writes the final n lines of the file at path.
func printLastLines(w io.Writer, path string, n int) error {
	if n <= 0 {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read log file: %w", err)
	}
	for _, line := range ring {
		fmt.Fprintln(w, line)
	}
	return nil
}
