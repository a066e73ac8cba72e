// Package intake validates request payloads before any provider call.
package intake

import (
	"fmt"
	"mime"
	"strings"
	"unicode/utf8"

	mnerrors "github.com/otherjamesbrown/minutes/pkg/errors"
)

// MinTranscriptChars is the shortest accepted transcript after trimming.
const MinTranscriptChars = 10

// MaxAudioBytes is the largest accepted upload (the Whisper limit).
const MaxAudioBytes int64 = 25 * 1024 * 1024

// AllowedAudioTypes are the declared media types accepted for transcription.
var AllowedAudioTypes = map[string]struct{}{
	"audio/mpeg": {},
	"audio/mp3":  {},
	"audio/wav":  {},
	"audio/m4a":  {},
	"audio/webm": {},
	"audio/mp4":  {},
	"video/mp4":  {},
	"video/webm": {},
	"audio/ogg":  {},
	"audio/flac": {},
}

// AllowedAudioExtensions are the filename suffixes accepted for transcription.
var AllowedAudioExtensions = []string{".mp3", ".mp4", ".wav", ".m4a", ".webm", ".ogg", ".flac"}

// SelectTranscript returns transcript if it is set, otherwise the legacy
// meetingText value. Empty strings, false, zero and null count as unset.
func SelectTranscript(transcript, meetingText interface{}) interface{} {
	if isSet(transcript) {
		return transcript
	}
	return meetingText
}

func isSet(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case string:
		return t != ""
	case bool:
		return t
	case float64:
		return t != 0
	default:
		return true
	}
}

// ValidateTranscript checks a decoded JSON value and returns it as the
// transcript text. Non-strings are rejected like missing values.
func ValidateTranscript(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", mnerrors.BadRequest("Meeting transcript is required")
	}
	if utf8.RuneCountInString(strings.TrimSpace(s)) < MinTranscriptChars {
		return "", mnerrors.BadRequest("Meeting transcript is too short")
	}
	return s, nil
}

// Upload describes a submitted file.
type Upload struct {
	Filename    string
	ContentType string
	Size        int64
}

// AudioValidator checks uploads against a size cap and the format allow-list.
type AudioValidator struct {
	MaxBytes int64
}

// NewAudioValidator returns a validator with the given cap, or MaxAudioBytes
// when maxBytes is not positive.
func NewAudioValidator(maxBytes int64) *AudioValidator {
	if maxBytes <= 0 {
		maxBytes = MaxAudioBytes
	}
	return &AudioValidator{MaxBytes: maxBytes}
}

// Validate rejects a missing, oversized or unsupported upload. The format
// is accepted if either the declared type or the filename extension
// matches, since clients set media types inconsistently.
func (v *AudioValidator) Validate(u *Upload) error {
	if u == nil {
		return mnerrors.BadRequest("No audio file provided")
	}
	if u.Size > v.MaxBytes {
		return mnerrors.BadRequestf("File too large. Maximum size is %dMB. Your file is %s.",
			v.MaxBytes/1024/1024, formatMB(u.Size))
	}
	if !IsSupportedAudio(u.ContentType, u.Filename) {
		declared := u.ContentType
		if declared == "" {
			declared = "unknown"
		}
		return mnerrors.BadRequestf("Unsupported file format. Supported formats: MP3, MP4, WAV, M4A, WebM, OGG, FLAC. You uploaded: %s", declared)
	}
	return nil
}

// ValidateAudio checks u with the default size cap.
func ValidateAudio(u *Upload) error {
	return NewAudioValidator(MaxAudioBytes).Validate(u)
}

// IsSupportedAudio reports whether the declared type or filename matches
// the allow-list, case-insensitively. Media type parameters such as
// ";codecs=opus" are ignored.
func IsSupportedAudio(contentType, filename string) bool {
	if mediaType := normalizeMediaType(contentType); mediaType != "" {
		if _, ok := AllowedAudioTypes[mediaType]; ok {
			return true
		}
	}
	name := strings.ToLower(filename)
	for _, ext := range AllowedAudioExtensions {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

func normalizeMediaType(contentType string) string {
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return ""
	}
	if mediaType, _, err := mime.ParseMediaType(ct); err == nil {
		return mediaType
	}
	return ct
}

// formatMB renders a byte count the way size errors do.
func formatMB(n int64) string {
	return fmt.Sprintf("%.2fMB", float64(n)/1024/1024)
}
