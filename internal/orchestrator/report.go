package orchestrator

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/agentforge/api/schemas"
	"github.com/xkilldash9x/agentforge/internal/agents"
)

// Instructions renders the markdown run guide for a generated application.
func Instructions(spec schemas.RequirementSpec, layout agents.Layout) string {
	var b strings.Builder
	b.WriteString("# How to Run the Generated Application\n\n")

	b.WriteString("## 1. Install Dependencies\n```bash\npip install mlconjug3 gradio pytest\n```\n\n")

	fmt.Fprintf(&b, "## 2. Run the Conjugator UI\n```bash\ncd %s\npython %s\n```\n\n", layout.CodeDir, agents.UIFile)
	fmt.Fprintf(&b, "## 3. Run the Tests\n```bash\ncd %s\npytest %s -v\n```\n\n", layout.TestsDir, agents.TestFile)

	b.WriteString("## Application Features\n")
	fmt.Fprintf(&b, "- Supported Languages: %s\n", strings.Join(spec.Languages, ", "))
	fmt.Fprintf(&b, "- Supported Tenses: %s\n", strings.Join(spec.Tenses, ", "))
	fmt.Fprintf(&b, "- Handles Irregular Verbs: %t\n\n", spec.HandleIrregular)

	b.WriteString("## Usage\n")
	b.WriteString("1. Open the Gradio interface in your browser\n")
	b.WriteString("2. Enter a verb to conjugate\n")
	b.WriteString("3. Select language and tense\n")
	b.WriteString("4. View the conjugation results\n")
	return b.String()
}
