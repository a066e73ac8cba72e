package transcript

import (
	"bufio"
	"io"
	"regexp"
	"strconv"
	"strings"
)

// Timestamped export line: 0:11 : Speaker Name : text, or 1:02:45 : ...
var txtLineRegex = regexp.MustCompile(`^(?:(\d+):)?(\d+):(\d{2})\s*:\s*([^:]+?)\s*:\s*(.+)$`)

// ParseTXT parses a plain text transcript. Timestamped export lines and
// "Name: text" lines become speaker segments; any other line is kept as a
// segment without a speaker. The format is FormatTXT when at least one
// timestamped line was found, otherwise FormatNotes.
func ParseTXT(r io.Reader) (*Transcript, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	result := &Transcript{Segments: make([]Segment, 0), Format: FormatNotes}
	speakers := newSpeakerSet()
	var lastMs int

	for scanner.Scan() {
		line := strings.TrimSpace(strings.TrimPrefix(scanner.Text(), "\ufeff"))
		if line == "" {
			continue
		}

		if m := txtLineRegex.FindStringSubmatch(line); m != nil {
			hours, _ := strconv.Atoi(m[1])
			minutes, _ := strconv.Atoi(m[2])
			seconds, _ := strconv.Atoi(m[3])
			ms := ((hours*60+minutes)*60 + seconds) * 1000

			seg := Segment{
				Speaker: strings.TrimSpace(m[4]),
				Text:    strings.TrimSpace(m[5]),
				StartMs: ms,
				EndMs:   ms,
			}
			result.Segments = append(result.Segments, seg)
			speakers.add(seg.Speaker)
			result.Format = FormatTXT
			if ms > lastMs {
				lastMs = ms
			}
			continue
		}

		if m := speakerLabelRegex.FindStringSubmatch(line); m != nil {
			seg := Segment{Speaker: strings.TrimSpace(m[1]), Text: strings.TrimSpace(m[2])}
			result.Segments = append(result.Segments, seg)
			speakers.add(seg.Speaker)
			continue
		}

		result.Segments = append(result.Segments, Segment{Text: line})
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	result.Speakers = speakers.names
	result.DurationSeconds = lastMs / 1000
	return result, nil
}
