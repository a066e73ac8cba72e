// Package analysis turns a meeting transcript into a structured summary by
// prompting a text model and normalizing its reply.
package analysis

// Severity values for a RiskFlag.
const (
	SeverityLow    = "low"
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

// ActionItem is a task assigned during the meeting.
type ActionItem struct {
	Task     string  `json:"task" yaml:"task"`
	Owner    string  `json:"owner" yaml:"owner"`
	Deadline *string `json:"deadline,omitempty" yaml:"deadline,omitempty"`
}

// RiskFlag is a blocker, conflict or unclear point raised in the meeting.
type RiskFlag struct {
	Type        string `json:"type" yaml:"type"`
	Description string `json:"description" yaml:"description"`
	Severity    string `json:"severity" yaml:"severity"`
}

// Result is the normalized analysis of a transcript. Every list is non-nil,
// so it always serializes as a JSON array.
type Result struct {
	KeyDecisions  []string     `json:"keyDecisions" yaml:"keyDecisions"`
	ActionItems   []ActionItem `json:"actionItems" yaml:"actionItems"`
	OpenQuestions []string     `json:"openQuestions" yaml:"openQuestions"`
	RiskFlags     []RiskFlag   `json:"riskFlags" yaml:"riskFlags"`
	NextSteps     []string     `json:"nextSteps" yaml:"nextSteps"`
}

// EmptyResult returns a Result with every list empty.
func EmptyResult() Result {
	return Result{
		KeyDecisions:  []string{},
		ActionItems:   []ActionItem{},
		OpenQuestions: []string{},
		RiskFlags:     []RiskFlag{},
		NextSteps:     []string{},
	}
}
