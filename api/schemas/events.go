package schemas

// Event is the tagged payload carried by a Message. Each concrete type names
// its event; Generic covers open-ended content.
type Event interface {
	EventName() string
}

// Event names emitted by the pipeline.
const (
	EventParsingStarted          = "parsing_started"
	EventParsingCompleted        = "parsing_completed"
	EventDesignStarted           = "design_started"
	EventDesignCompleted         = "design_completed"
	EventCodeGenerationStarted   = "code_generation_started"
	EventCodeGenerationCompleted = "code_generation_completed"
	EventTestGenerationStarted   = "test_generation_started"
	EventTestGenerationCompleted = "test_generation_completed"
	EventAPICall                 = "api_call"
	EventReportSaved             = "report_saved"
	EventPipelineProgress        = "pipeline_progress"
	EventError                   = "error"
	EventRequest                 = "request"
	EventResponse                = "response"
)

type ParsingStarted struct {
	InputLength int `json:"input_length"`
}

type ParsingCompleted struct {
	Spec RequirementSpec `json:"spec"`
}

type DesignStarted struct{}

type DesignCompleted struct {
	Design DesignSpec `json:"design"`
}

type CodeGenerationStarted struct{}

// CodeGenerationCompleted lists the filenames produced by the code stage.
type CodeGenerationCompleted struct {
	Files []string `json:"files"`
}

type TestGenerationStarted struct{}

type TestGenerationCompleted struct {
	TestFile string `json:"test_file"`
}

// APICall records a single successful generation and its token cost.
type APICall struct {
	Model  string `json:"model"`
	Tokens int    `json:"tokens"`
}

type ReportSaved struct {
	Path   string      `json:"filepath"`
	Report UsageReport `json:"report"`
}

// PipelineProgress is published by the controller at each checkpoint.
type PipelineProgress struct {
	RunID   string `json:"run_id"`
	Percent int    `json:"percent"`
	Status  string `json:"status"`
}

// ErrorEvent carries a failure description and the role that observed it.
type ErrorEvent struct {
	Source  Role   `json:"source"`
	Message string `json:"error"`
}

type Request struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

type Response struct {
	Action string         `json:"action"`
	Data   map[string]any `json:"data,omitempty"`
}

// Generic is the fallback for notifications whose content is not modeled.
type Generic struct {
	Name   string         `json:"-"`
	Fields map[string]any `json:"fields,omitempty"`
}

func (ParsingStarted) EventName() string          { return EventParsingStarted }
func (ParsingCompleted) EventName() string        { return EventParsingCompleted }
func (DesignStarted) EventName() string           { return EventDesignStarted }
func (DesignCompleted) EventName() string         { return EventDesignCompleted }
func (CodeGenerationStarted) EventName() string   { return EventCodeGenerationStarted }
func (CodeGenerationCompleted) EventName() string { return EventCodeGenerationCompleted }
func (TestGenerationStarted) EventName() string   { return EventTestGenerationStarted }
func (TestGenerationCompleted) EventName() string { return EventTestGenerationCompleted }
func (APICall) EventName() string                 { return EventAPICall }
func (ReportSaved) EventName() string             { return EventReportSaved }
func (PipelineProgress) EventName() string        { return EventPipelineProgress }
func (ErrorEvent) EventName() string              { return EventError }
func (Request) EventName() string                 { return EventRequest }
func (Response) EventName() string                { return EventResponse }
func (g Generic) EventName() string               { return g.Name }

// EncodeEvent renders e as a flat JSON object with an "event" key holding its name.
func EncodeEvent(e Event) ([]byte, error) {
	fields := map[string]any{}
	if g, ok := e.(Generic); ok {
		for k, v := range g.Fields {
			fields[k] = v
		}
	} else {
		raw, err := json.Marshal(e)
		if err != nil {
			return nil, err
		}
		if err := json.Unmarshal(raw, &fields); err != nil {
			return nil, err
		}
	}
	fields["event"] = e.EventName()
	return json.Marshal(fields)
}
