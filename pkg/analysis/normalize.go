package analysis

import (
	"bytes"
	"encoding/json"
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSONObject is returned when no strategy finds a JSON object in a reply.
var ErrNoJSONObject = errors.New("could not parse analysis result")

// Strategy extracts a JSON object from a model reply. ok is false when the
// strategy does not apply or its candidate does not parse.
type Strategy struct {
	Name    string
	Extract func(text string) (fields map[string]json.RawMessage, ok bool)
}

var fencedBlock = regexp.MustCompile("```(?:json)?\\s*(\\{[\\s\\S]*\\})\\s*```")

// DefaultStrategies are tried in order: the whole reply, a fenced code
// block, then the span from the first '{' to the last '}'.
var DefaultStrategies = []Strategy{
	{Name: "whole", Extract: wholeText},
	{Name: "fenced", Extract: fencedObject},
	{Name: "object", Extract: bareObject},
}

func wholeText(text string) (map[string]json.RawMessage, bool) {
	return decodeObject(text)
}

func fencedObject(text string) (map[string]json.RawMessage, bool) {
	m := fencedBlock.FindStringSubmatch(text)
	if m == nil {
		return nil, false
	}
	return decodeObject(m[1])
}

func bareObject(text string) (map[string]json.RawMessage, bool) {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, false
	}
	return decodeObject(text[start : end+1])
}

// decodeObject accepts only a JSON object; arrays, scalars and null fail.
func decodeObject(s string) (map[string]json.RawMessage, bool) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "{") {
		return nil, false
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &fields); err != nil || fields == nil {
		return nil, false
	}
	return fields, true
}

// Normalizer coerces a model reply into a Result.
type Normalizer struct {
	strategies []Strategy
}

// NewNormalizer creates a normalizer. With no strategies it uses
// DefaultStrategies.
func NewNormalizer(strategies ...Strategy) *Normalizer {
	if len(strategies) == 0 {
		strategies = DefaultStrategies
	}
	return &Normalizer{strategies: strategies}
}

// Normalize runs the strategies in order and coerces the first object found.
// It returns the name of the strategy that matched.
func (n *Normalizer) Normalize(text string) (Result, string, error) {
	for _, s := range n.strategies {
		fields, ok := s.Extract(text)
		if !ok {
			continue
		}
		return Coerce(fields), s.Name, nil
	}
	return Result{}, "", ErrNoJSONObject
}

// Normalize runs the default strategies over text.
func Normalize(text string) (Result, error) {
	r, _, err := NewNormalizer().Normalize(text)
	return r, err
}

// Coerce builds a Result from decoded top-level fields. Each field is kept
// only if it is a JSON array. String lists keep their string elements;
// item lists keep every object element, reading scalar sub-fields as text.
// Missing or non-array fields become empty lists.
func Coerce(fields map[string]json.RawMessage) Result {
	return Result{
		KeyDecisions:  coerceStrings(fields["keyDecisions"]),
		ActionItems:   coerceObjects(fields["actionItems"], actionItem),
		OpenQuestions: coerceStrings(fields["openQuestions"]),
		RiskFlags:     coerceObjects(fields["riskFlags"], riskFlag),
		NextSteps:     coerceStrings(fields["nextSteps"]),
	}
}

func elements(raw json.RawMessage) []json.RawMessage {
	var elems []json.RawMessage
	if len(raw) == 0 || json.Unmarshal(raw, &elems) != nil {
		return nil
	}
	return elems
}

func coerceStrings(raw json.RawMessage) []string {
	out := []string{}
	for _, e := range elements(raw) {
		var s string
		if !isKind(e, '"') || json.Unmarshal(e, &s) != nil {
			continue
		}
		out = append(out, s)
	}
	return out
}

func coerceObjects[T any](raw json.RawMessage, build func(map[string]json.RawMessage) T) []T {
	out := []T{}
	for _, e := range elements(raw) {
		var obj map[string]json.RawMessage
		if !isKind(e, '{') || json.Unmarshal(e, &obj) != nil {
			continue
		}
		out = append(out, build(obj))
	}
	return out
}

func actionItem(obj map[string]json.RawMessage) ActionItem {
	item := ActionItem{
		Task:  text(obj["task"]),
		Owner: text(obj["owner"]),
	}
	if d, ok := obj["deadline"]; ok && !isNull(d) {
		s := text(d)
		item.Deadline = &s
	}
	return item
}

func riskFlag(obj map[string]json.RawMessage) RiskFlag {
	return RiskFlag{
		Type:        text(obj["type"]),
		Description: text(obj["description"]),
		Severity:    text(obj["severity"]),
	}
}

// text renders a sub-field as a string. Numbers and booleans keep their
// literal form, arrays are joined with ", ", null and missing are empty.
func text(raw json.RawMessage) string {
	s := strings.TrimSpace(string(raw))
	switch {
	case s == "" || s == "null":
		return ""
	case s[0] == '"':
		var v string
		if json.Unmarshal(raw, &v) == nil {
			return v
		}
		return ""
	case s[0] == '[':
		parts := []string{}
		for _, e := range elements(raw) {
			if t := text(e); t != "" {
				parts = append(parts, t)
			}
		}
		return strings.Join(parts, ", ")
	case s[0] == '{':
		var buf bytes.Buffer
		if json.Compact(&buf, raw) == nil {
			return buf.String()
		}
		return s
	default:
		return s
	}
}

func isKind(e json.RawMessage, first byte) bool {
	s := strings.TrimSpace(string(e))
	return s != "" && s[0] == first
}

func isNull(e json.RawMessage) bool {
	return strings.TrimSpace(string(e)) == "null"
}
