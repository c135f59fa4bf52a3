package orchestrator

import (
	"archive/zip"
	"bytes"
	"fmt"
	"time"

	"github.com/xkilldash9x/agentforge/internal/agents"
)

// BuildBundle zips the artifacts of a successful final update: the code files,
// the test module, the usage report and the run instructions.
func BuildBundle(final Update, layout agents.Layout) ([]byte, error) {
	if !final.Done || final.Err != nil || final.Progress != ProgressDone {
		return nil, fmt.Errorf("run %s has no completed artifacts to bundle", final.RunID)
	}

	entries := make([]bundleEntry, 0, len(final.Files)+3)
	for _, gc := range final.Files {
		entries = append(entries, bundleEntry{name: layout.CodePath(gc.Filename), body: gc.Code})
	}
	entries = append(entries,
		bundleEntry{name: final.TestPath, body: final.Tests},
		bundleEntry{name: layout.UsageReport, body: final.UsageReport},
		bundleEntry{name: "README.md", body: final.Instructions},
	)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	modified := time.Now().UTC()
	for _, e := range entries {
		if e.name == "" {
			continue
		}
		w, err := zw.CreateHeader(&zip.FileHeader{Name: e.name, Method: zip.Deflate, Modified: modified})
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", e.name, err)
		}
		if _, err := w.Write([]byte(e.body)); err != nil {
			return nil, fmt.Errorf("bundle %s: %w", e.name, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("finalize bundle: %w", err)
	}
	return buf.Bytes(), nil
}

type bundleEntry struct {
	name string
	body string
}
