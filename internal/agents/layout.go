package agents

import (
	"path"

	"github.com/xkilldash9x/agentforge/internal/config"
)

// Layout places generated files inside the artifact store.
type Layout struct {
	CodeDir     string
	TestsDir    string
	UsageReport string
}

// LayoutFromConfig nests the code and tests directories under the base directory.
func LayoutFromConfig(cfg config.OutputConfig) Layout {
	return Layout{
		CodeDir:     path.Join(cfg.BaseDir, cfg.CodeDir),
		TestsDir:    path.Join(cfg.BaseDir, cfg.TestsDir),
		UsageReport: cfg.UsageReport,
	}
}

func (l Layout) CodePath(filename string) string { return path.Join(l.CodeDir, filename) }

func (l Layout) TestPath(filename string) string { return path.Join(l.TestsDir, filename) }
