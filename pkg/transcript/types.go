// Package transcript reads meeting transcripts from disk: WebVTT captions,
// timestamped text exports and free-form notes, in UTF-8 or a legacy
// encoding.
package transcript

import "strings"

// Format names.
const (
	FormatVTT   = "vtt"
	FormatTXT   = "txt"
	FormatNotes = "notes"
)

// Segment is one utterance.
type Segment struct {
	Speaker string `json:"speaker,omitempty"`
	Text    string `json:"text"`
	StartMs int    `json:"start_ms"`
	EndMs   int    `json:"end_ms"`
}

// Transcript is a parsed transcript file.
type Transcript struct {
	Segments        []Segment `json:"segments"`
	Speakers        []string  `json:"speakers"`
	DurationSeconds int       `json:"duration_seconds"`
	Format          string    `json:"format"`
}

// Text renders the transcript as "Speaker: text" lines, the form sent for
// analysis. Segments without a speaker are written as bare lines.
func (t *Transcript) Text() string {
	var b strings.Builder
	for i, s := range t.Segments {
		if i > 0 {
			b.WriteByte('\n')
		}
		if s.Speaker != "" {
			b.WriteString(s.Speaker)
			b.WriteString(": ")
		}
		b.WriteString(s.Text)
	}
	return b.String()
}

type speakerSet struct {
	seen  map[string]bool
	names []string
}

func newSpeakerSet() *speakerSet {
	return &speakerSet{seen: make(map[string]bool), names: make([]string, 0)}
}

func (s *speakerSet) add(name string) {
	if name == "" || s.seen[name] {
		return
	}
	s.seen[name] = true
	s.names = append(s.names, name)
}
