package transcript

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

var (
	// Zoom cue identifier: 1 "Speaker Name" (123)
	vttZoomHeaderRegex = regexp.MustCompile(`^\d+\s+"([^"]*)"(?:\s+\((\d+)\))?$`)

	// Timing line: 00:00:05.579 --> 00:00:06.858, hours optional.
	vttTimingRegex = regexp.MustCompile(`^((?:\d+:)?\d{2}:\d{2}[.,]\d{3})\s+-->\s+((?:\d+:)?\d{2}:\d{2}[.,]\d{3})`)

	// Voice span: <v Speaker Name>text</v>
	vttVoiceRegex = regexp.MustCompile(`^<v(?:\.[^ >]*)?\s+([^>]+)>(.*?)(?:</v>)?$`)

	// Inline speaker label: Speaker Name: text
	speakerLabelRegex = regexp.MustCompile(`^([\p{L}][\p{L}\p{M}'.\- ]{0,48}?):\s+(.+)$`)

	vttTagRegex = regexp.MustCompile(`</?[^>]+>`)
)

// ParseVTT parses WebVTT captions. Speakers are taken from Zoom-style cue
// identifiers, <v> voice spans or "Name: text" cue text, in that order.
// Consecutive cue lines are joined into one segment.
func ParseVTT(r io.Reader) (*Transcript, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &Transcript{Segments: make([]Segment, 0), Format: FormatVTT}
	speakers := newSpeakerSet()

	var cur *Segment
	var headerSpeaker string
	var lastEndMs int
	inNote := false

	flush := func() {
		if cur != nil && cur.Text != "" {
			result.Segments = append(result.Segments, *cur)
			speakers.add(cur.Speaker)
		}
		cur = nil
	}

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))

		if line == "" {
			inNote = false
			flush()
			continue
		}
		if inNote || strings.HasPrefix(line, "WEBVTT") || line == "NOTE" || strings.HasPrefix(line, "NOTE ") {
			if strings.HasPrefix(line, "NOTE") {
				inNote = true
			}
			continue
		}

		if m := vttZoomHeaderRegex.FindStringSubmatch(line); m != nil {
			flush()
			headerSpeaker = m[1]
			continue
		}

		if m := vttTimingRegex.FindStringSubmatch(line); m != nil {
			flush()
			cur = &Segment{
				Speaker: headerSpeaker,
				StartMs: parseTimestamp(m[1]),
				EndMs:   parseTimestamp(m[2]),
			}
			headerSpeaker = ""
			if cur.EndMs > lastEndMs {
				lastEndMs = cur.EndMs
			}
			continue
		}

		if cur == nil {
			// Numeric cue identifiers and stray text outside a cue.
			continue
		}

		speaker, text := splitCueText(line)
		if cur.Speaker == "" {
			cur.Speaker = speaker
		}
		if text == "" {
			continue
		}
		if cur.Text != "" {
			cur.Text += " "
		}
		cur.Text += text
	}
	flush()

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	result.Speakers = speakers.names
	result.DurationSeconds = lastEndMs / 1000
	return result, nil
}

func splitCueText(line string) (speaker, text string) {
	if m := vttVoiceRegex.FindStringSubmatch(line); m != nil {
		return strings.TrimSpace(m[1]), cleanCueText(m[2])
	}
	text = cleanCueText(line)
	if m := speakerLabelRegex.FindStringSubmatch(text); m != nil {
		return strings.TrimSpace(m[1]), strings.TrimSpace(m[2])
	}
	return "", text
}

func cleanCueText(s string) string {
	return strings.TrimSpace(vttTagRegex.ReplaceAllString(s, ""))
}

// parseTimestamp converts [HH:]MM:SS.mmm to milliseconds.
func parseTimestamp(ts string) int {
	ts = strings.Replace(ts, ",", ".", 1)
	parts := strings.Split(ts, ":")
	if len(parts) == 2 {
		parts = append([]string{"0"}, parts...)
	}
	if len(parts) != 3 {
		return 0
	}

	hours, _ := strconv.Atoi(parts[0])
	minutes, _ := strconv.Atoi(parts[1])

	secParts := strings.SplitN(parts[2], ".", 2)
	seconds, _ := strconv.Atoi(secParts[0])
	millis := 0
	if len(secParts) > 1 {
		millis, _ = strconv.Atoi(secParts[1])
	}

	return hours*3600000 + minutes*60000 + seconds*1000 + millis
}
