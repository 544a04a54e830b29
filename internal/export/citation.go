package export

import "regexp"

// citationNoise matches a run of private-use characters and the marker token that
// may trail it, e.g. "citeturn0search3".
var citationNoise = regexp.MustCompile(
	`[\x{E000}-\x{F8FF}]+(?:cite|turn[0-9a-zA-Z]+|turn\dsearch\d{1,2})?`,
)

// CleanCitations strips inline citation markers from message text.
func CleanCitations(text string) string {
	return citationNoise.ReplaceAllString(text, "")
}
