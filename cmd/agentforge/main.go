// File: cmd/agentforge/main.go
/*
Copyright © 2025 Kyle McAllister (xkilldash9x@proton.me)
*/

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"runtime/debug"
	"strings"
	"syscall"

	"github.com/xkilldash9x/agentforge/cmd"
	"github.com/xkilldash9x/agentforge/internal/observability"
)

const panicLogFile = "panic.log"

const banner = `
  agentforge v%s
  requirements -> design -> code -> tests

  type a command (generate, runs, usage, ...) or "exit"

`

// Function variables for dependency injection in tests.
var (
	osWriteFile = os.WriteFile
	osExit      = os.Exit
)

func main() {
	defer handlePanic()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if len(os.Args) > 1 {
		osExit(exitCode(cmd.Execute(ctx)))
		return
	}

	// -- Interactive Mode --
	fmt.Printf(banner, cmd.Version)
	scanner := bufio.NewScanner(os.Stdin)

	for {
		fmt.Print("agentforge > ")
		if !scanner.Scan() {
			break
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if line == "exit" || line == "quit" {
			break
		}
		executeInteractiveCommand(ctx, line)
	}

	if err := scanner.Err(); err != nil {
		fmt.Fprintln(os.Stderr, "Error reading from stdin:", err)
		osExit(1)
	}
	observability.Sync()
	fmt.Println("Exiting agentforge.")
}

// exitCode maps a command error to a process exit status. Ctrl+C is a clean exit.
func exitCode(err error) int {
	switch {
	case err == nil, errors.Is(err, context.Canceled):
		return 0
	default:
		return 1
	}
}

// executeInteractiveCommand runs one shell line on a fresh command tree so
// flags never leak between lines.
func executeInteractiveCommand(ctx context.Context, line string) {
	rootCmd := cmd.NewRootCommand()
	rootCmd.SetArgs(strings.Fields(line))

	func() {
		defer func() {
			if r := recover(); r != nil {
				fmt.Fprintf(os.Stderr, "Error: Command panicked: %v\n", r)
			}
		}()
		// Cobra already printed the error; the shell keeps going.
		_ = rootCmd.ExecuteContext(ctx)
	}()
}

// handlePanic records an unrecovered panic to panic.log and exits non-zero.
func handlePanic() {
	r := recover()
	if r == nil {
		return
	}
	observability.Sync()

	panicMessage := fmt.Sprintf("panic: %v\n\n%s", r, debug.Stack())
	if err := osWriteFile(panicLogFile, []byte(panicMessage), 0o644); err != nil {
		fmt.Fprintf(os.Stderr, "CRITICAL: Failed to write panic log: %v\n", err)
		fmt.Fprintf(os.Stderr, "Panic details:\n%s\n", panicMessage)
		osExit(1)
		return
	}

	fmt.Fprintf(os.Stderr, "\nagentforge crashed. Details logged to %s\n", panicLogFile)
	osExit(2)
}
