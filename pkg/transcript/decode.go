package transcript

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"
)

// DefaultLegacyCharset is assumed for input that is not valid UTF-8 and has
// no declared charset. Exports from older Windows tools are the usual source.
const DefaultLegacyCharset = "windows-1252"

// Decode converts data to UTF-8. A UTF-8 or UTF-16 byte order mark wins over
// charset. Otherwise valid UTF-8 is returned unchanged, and anything else is
// decoded with charset, or DefaultLegacyCharset when charset is empty.
func Decode(data []byte, charset string) ([]byte, error) {
	switch {
	case bytes.HasPrefix(data, []byte{0xEF, 0xBB, 0xBF}):
		return data[3:], nil
	case bytes.HasPrefix(data, []byte{0xFF, 0xFE}), bytes.HasPrefix(data, []byte{0xFE, 0xFF}):
		return transformAll(data, unicode.UTF16(unicode.BigEndian, unicode.UseBOM).NewDecoder())
	}

	name := strings.ToLower(strings.TrimSpace(charset))
	if name == "utf-8" || name == "utf8" || name == "us-ascii" || name == "ascii" {
		return data, nil
	}
	if name == "" {
		if utf8.Valid(data) {
			return data, nil
		}
		name = DefaultLegacyCharset
	}

	enc, err := lookupCharset(name)
	if err != nil {
		return data, err
	}
	return transformAll(data, enc.NewDecoder())
}

func lookupCharset(name string) (encoding.Encoding, error) {
	switch name {
	case "iso-8859-1", "latin1", "iso_8859-1":
		return charmap.ISO8859_1, nil
	case "iso-8859-2", "latin2":
		return charmap.ISO8859_2, nil
	case "iso-8859-15", "latin9":
		return charmap.ISO8859_15, nil
	case "windows-1252", "cp1252":
		return charmap.Windows1252, nil
	case "windows-1251", "cp1251":
		return charmap.Windows1251, nil
	case "windows-1250", "cp1250":
		return charmap.Windows1250, nil
	case "koi8-r":
		return charmap.KOI8R, nil
	case "ibm437", "cp437":
		return charmap.CodePage437, nil
	case "mac", "macintosh", "macroman":
		return charmap.Macintosh, nil
	case "utf-16", "utf16":
		return unicode.UTF16(unicode.LittleEndian, unicode.UseBOM), nil
	default:
		return nil, fmt.Errorf("unknown charset: %s", name)
	}
}

func transformAll(data []byte, t transform.Transformer) ([]byte, error) {
	out, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), t))
	if err != nil {
		return data, fmt.Errorf("charset decoding failed: %w", err)
	}
	return out, nil
}
