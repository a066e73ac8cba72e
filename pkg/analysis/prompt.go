package analysis

import (
	"bytes"
	"fmt"
	"text/template"
)

const promptText = `You are analyzing a meeting transcript or notes. Extract structured information and return ONLY valid JSON (no markdown, no code blocks).

Analyze this meeting:
{{.Transcript}}

Return JSON with these exact keys:
{
  "keyDecisions": ["decision 1", "decision 2"],
  "actionItems": [
    {"task": "description", "owner": "person name", "deadline": "date or null"}
  ],
  "openQuestions": ["question 1", "question 2"],
  "riskFlags": [
    {"type": "blocker|conflict|unclear", "description": "...", "severity": "high|medium|low"}
  ],
  "nextSteps": ["step 1 with timeline", "step 2"]
}

Be specific and extract actual details from the meeting. If a category has no items, use an empty array.`

var promptTemplate = template.Must(template.New("analysis").Parse(promptText))

// PromptData is the input to the analysis prompt.
type PromptData struct {
	Transcript string
}

// RenderPrompt builds the model prompt for a transcript.
func RenderPrompt(data PromptData) (string, error) {
	var buf bytes.Buffer
	if err := promptTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute prompt template: %w", err)
	}
	return buf.String(), nil
}
