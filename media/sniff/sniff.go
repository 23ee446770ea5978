// Package sniff classifies media buffers by content signature. Claimed
// filenames and declared content types are never consulted; only the bytes
// decide.
package sniff

import (
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

// Classify returns the media type detected from the buffer's magic bytes,
// without parameters (e.g. "image/png"). It returns the empty string when no
// known signature matches; the detector's application/octet-stream fallback
// counts as unrecognized.
func Classify(data []byte) string {
	if len(data) == 0 {
		return ""
	}

	mt := mimetype.Detect(data).String()
	if base, _, found := strings.Cut(mt, ";"); found {
		mt = strings.TrimSpace(base)
	}

	if mt == "application/octet-stream" {
		return ""
	}

	return mt
}

// Pattern is a media type allow pattern: an exact type such as "image/png"
// or a wildcard such as "image/*".
type Pattern string

// Matches reports whether the media type satisfies the pattern.
func (p Pattern) Matches(mediaType string) bool {
	if mediaType == "" {
		return false
	}

	pat := strings.ToLower(strings.TrimSpace(string(p)))
	mt := strings.ToLower(mediaType)

	if base, ok := strings.CutSuffix(pat, "/*"); ok {
		return strings.HasPrefix(mt, base+"/")
	}

	return mt == pat
}

// AnyMatches reports whether any of the patterns accepts the media type.
func AnyMatches(patterns []Pattern, mediaType string) bool {
	for _, p := range patterns {
		if p.Matches(mediaType) {
			return true
		}
	}

	return false
}

// Patterns converts configured pattern strings.
func Patterns(raw []string) []Pattern {
	out := make([]Pattern, 0, len(raw))
	for _, r := range raw {
		out = append(out, Pattern(r))
	}
	return out
}
