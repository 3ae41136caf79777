package pipeline

// Stage identifies one step of the narration pipeline.
type Stage string

const (
	StageIngest         Stage = "ingest"
	StageClassify       Stage = "classify"
	StageGenerateScript Stage = "generate-script"
	StageGenerateAudio  Stage = "generate-audio"
	StageAssemble       Stage = "assemble"
	StageReady          Stage = "ready"
	StageError          Stage = "error"
)

// ErrorOrder is the order assigned to the error sentinel, which is reachable
// from any stage and never part of the forward walk.
const ErrorOrder = -1

// Definition describes one stage of the table.
type Definition struct {
	Stage       Stage  `json:"stage"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Required    bool   `json:"required"`
	Order       int    `json:"order"`
}

// IsTerminal reports whether the stage ends the polling walk.
func (s Stage) IsTerminal() bool {
	return s == StageReady || s == StageError
}

func (s Stage) String() string {
	return string(s)
}

// DefaultDefinitions returns the production stage definitions in order.
func DefaultDefinitions() []Definition {
	return []Definition{
		{Stage: StageIngest, Name: "Ingest Artifacts", Description: "Read artifacts from the object store", Required: true, Order: 0},
		{Stage: StageClassify, Name: "Classify Artifacts", Description: "Classify artifacts by type (screenshot, terminal, log)", Required: true, Order: 1},
		{Stage: StageGenerateScript, Name: "Generate Script", Description: "Generate narration script with the language model", Required: true, Order: 2},
		{Stage: StageGenerateAudio, Name: "Generate Audio", Description: "Synthesize narration audio", Required: true, Order: 3},
		{Stage: StageAssemble, Name: "Assemble", Description: "Assemble final project", Required: true, Order: 4},
		{Stage: StageReady, Name: "Ready", Description: "Project is ready for playback", Required: false, Order: 5},
		{Stage: StageError, Name: "Error", Description: "Error state", Required: false, Order: ErrorOrder},
	}
}
