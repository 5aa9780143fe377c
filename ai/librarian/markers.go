package librarian

import (
	"encoding/base64"
	"regexp"
	"strings"
)

// Markers are embedded in assistant content as
// [[media:<kind>/<subtype>;base64,<payload>]].
var markerPattern = regexp.MustCompile(`\[\[media:(image|audio)/[A-Za-z0-9.+-]+;base64,[A-Za-z0-9+/=]*\]\]`)

// Marker renders m as an inline media marker.
func Marker(m *Media) string {
	var b strings.Builder
	b.WriteString("[[media:")
	b.WriteString(m.MimeType)
	b.WriteString(";base64,")
	b.WriteString(base64.StdEncoding.EncodeToString(m.Data))
	b.WriteString("]]")
	return b.String()
}

// HasMarker reports whether s contains at least one media marker.
func HasMarker(s string) bool {
	return markerPattern.MatchString(s)
}

// StripMarkers removes every media marker from s.
func StripMarkers(s string) string {
	// Removing one marker can splice the halves of an enclosing one together.
	for markerPattern.MatchString(s) {
		s = markerPattern.ReplaceAllString(s, "")
	}
	return s
}
