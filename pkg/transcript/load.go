package transcript

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Parse decodes data and parses it according to format. An empty format is
// inferred from the content: a WEBVTT header selects VTT, anything else TXT.
func Parse(data []byte, format, charset string) (*Transcript, error) {
	text, err := Decode(data, charset)
	if err != nil {
		return nil, err
	}

	if format == "" {
		format = FormatTXT
		if bytes.HasPrefix(bytes.TrimSpace(text), []byte("WEBVTT")) {
			format = FormatVTT
		}
	}

	switch format {
	case FormatVTT:
		return ParseVTT(bytes.NewReader(text))
	case FormatTXT, FormatNotes:
		return ParseTXT(bytes.NewReader(text))
	default:
		return nil, fmt.Errorf("unsupported transcript format: %s", format)
	}
}

// Load reads and parses a transcript file. The format comes from the file
// extension (.vtt, .txt), falling back to content sniffing.
func Load(path, charset string) (*Transcript, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open transcript: %w", err)
	}
	defer f.Close()

	return Read(f, path, charset)
}

// Read parses a transcript from r; name is used only for its extension.
func Read(r io.Reader, name, charset string) (*Transcript, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read transcript: %w", err)
	}

	format := ""
	switch strings.ToLower(filepath.Ext(name)) {
	case ".vtt":
		format = FormatVTT
	case ".txt":
		format = FormatTXT
	}
	t, err := Parse(data, format, charset)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", filepath.Base(name), err)
	}
	return t, nil
}
