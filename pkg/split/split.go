// Package split parses assistant messages that address multiple characters
// into per-character segments for display attribution.
//
// Splitting happens at read time only. Stored content always keeps the raw
// bracketed string, so the grammar can change without migrating stored data.
package split

import (
	"regexp"
	"strings"
)

// Segment is one attributed slice of a message. Character is empty when the
// message carries no bracket markers at all.
type Segment struct {
	Character string `json:"character,omitempty"`
	Content   string `json:"content"`
}

var markerRe = regexp.MustCompile(`\[([^\]]*)\]`)

// Parse splits content on leading [Name] markers. A segment runs from one
// marker to the next marker or the end of the string. Markers with an empty
// name and segments with an empty body are dropped. When no usable segment
// is found and the content is non-empty, the whole trimmed string is returned
// as a single unattributed segment. Empty content yields an empty slice.
func Parse(content string) []Segment {
	segments := []Segment{}

	markers := markerRe.FindAllStringSubmatchIndex(content, -1)
	for i, marker := range markers {
		name := content[marker[2]:marker[3]]

		bodyStart := marker[1]
		bodyEnd := len(content)
		if i+1 < len(markers) {
			bodyEnd = markers[i+1][0]
		}
		body := content[bodyStart:bodyEnd]

		if name == "" || body == "" {
			continue
		}

		segments = append(segments, Segment{
			Character: strings.TrimSpace(name),
			Content:   strings.TrimSpace(body),
		})
	}

	if len(segments) == 0 {
		trimmed := strings.TrimSpace(content)
		if trimmed == "" {
			return []Segment{}
		}
		return []Segment{{Content: trimmed}}
	}

	return segments
}
