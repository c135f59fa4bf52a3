package schemas

import "fmt"

// RequirementSpec is the structured form of a user's feature request.
type RequirementSpec struct {
	Languages              []string `json:"languages"`
	Tenses                 []string `json:"tenses"`
	Persons                []string `json:"persons"`
	Moods                  []string `json:"moods"`
	HandleIrregular        bool     `json:"handle_irregular"`
	DatasetSources         []string `json:"dataset_sources"`
	AdditionalRequirements string   `json:"additional_requirements"`
}

// DesignSpec describes the architecture chosen for the generated application.
type DesignSpec struct {
	Architecture        string         `json:"architecture"`
	Modules             []string       `json:"modules"`
	DataSchema          map[string]any `json:"data_schema"`
	Dependencies        []string       `json:"dependencies"`
	ImplementationNotes string         `json:"implementation_notes"`
}

// GeneratedCode is one source file produced by the code stage.
type GeneratedCode struct {
	Filename     string   `json:"filename"`
	Code         string   `json:"code"`
	Description  string   `json:"description"`
	Dependencies []string `json:"dependencies"`
}

// TestSuite is the single test module produced by the test stage.
type TestSuite struct {
	Filename string `json:"filename"`
	Code     string `json:"code"`
}

// Validate checks that every required field is populated.
func (s RequirementSpec) Validate() error {
	switch {
	case len(s.Languages) == 0:
		return &ValidationError{Field: "languages", Reason: "at least one language is required"}
	case len(s.Tenses) == 0:
		return &ValidationError{Field: "tenses", Reason: "at least one tense is required"}
	case len(s.Persons) == 0:
		return &ValidationError{Field: "persons", Reason: "at least one person is required"}
	case s.Moods == nil:
		return &ValidationError{Field: "moods", Reason: "moods must be a list"}
	case s.DatasetSources == nil:
		return &ValidationError{Field: "dataset_sources", Reason: "dataset_sources must be a list"}
	}
	return nil
}

// Validate checks that every required field is populated.
func (d DesignSpec) Validate() error {
	switch {
	case d.Architecture == "":
		return &ValidationError{Field: "architecture", Reason: "architecture is required"}
	case d.Modules == nil:
		return &ValidationError{Field: "modules", Reason: "modules must be a list"}
	case d.DataSchema == nil:
		return &ValidationError{Field: "data_schema", Reason: "data_schema must be an object"}
	case d.Dependencies == nil:
		return &ValidationError{Field: "dependencies", Reason: "dependencies must be a list"}
	case d.ImplementationNotes == "":
		return &ValidationError{Field: "implementation_notes", Reason: "implementation_notes is required"}
	}
	return nil
}

// Validate checks that the file has a name and non-empty source.
func (g GeneratedCode) Validate() error {
	if g.Filename == "" {
		return &ValidationError{Field: "filename", Reason: "filename is required"}
	}
	if g.Code == "" {
		return &ValidationError{Field: "code", Reason: fmt.Sprintf("%s: generated source is empty", g.Filename)}
	}
	return nil
}

// UsageStats accumulates calls and tokens for a single model.
type UsageStats struct {
	NumAPICalls int `json:"numApiCalls"`
	TotalTokens int `json:"totalTokens"`
}

// UsageReport is the persisted usage document.
type UsageReport struct {
	TotalTokens int                   `json:"total_tokens"`
	Usage       map[string]UsageStats `json:"usage"`
}
