package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExitCode(t *testing.T) {
	assert.Equal(t, 0, exitCode(nil))
	assert.Equal(t, 0, exitCode(fmt.Errorf("run aborted: %w", context.Canceled)))
	assert.Equal(t, 1, exitCode(errors.New("boom")))
}

func mockExit(t *testing.T) *int {
	t.Helper()
	code := -1
	original := osExit
	osExit = func(c int) { code = c }
	t.Cleanup(func() { osExit = original })
	return &code
}

func TestHandlePanic_WritesLog(t *testing.T) {
	code := mockExit(t)
	var written []byte
	var path string
	original := osWriteFile
	osWriteFile = func(name string, data []byte, _ os.FileMode) error {
		path, written = name, data
		return nil
	}
	t.Cleanup(func() { osWriteFile = original })

	func() {
		defer handlePanic()
		panic("stage exploded")
	}()

	assert.Equal(t, 2, *code)
	assert.Equal(t, panicLogFile, path)
	assert.Contains(t, string(written), "panic: stage exploded")
	assert.Contains(t, string(written), "goroutine")
}

func TestHandlePanic_LogWriteFails(t *testing.T) {
	code := mockExit(t)
	original := osWriteFile
	osWriteFile = func(string, []byte, os.FileMode) error { return errors.New("read-only") }
	t.Cleanup(func() { osWriteFile = original })

	func() {
		defer handlePanic()
		panic("again")
	}()
	assert.Equal(t, 1, *code)
}

func TestHandlePanic_NoPanic(t *testing.T) {
	code := mockExit(t)
	func() {
		defer handlePanic()
	}()
	require.Equal(t, -1, *code, "exit must not be called without a panic")
}
