package slug

import (
	"regexp"
	"strings"
)

var (
	nonAlphaNum = regexp.MustCompile(`[^a-z0-9]+`)
	accidentals = strings.NewReplacer("#", " sharp ", "♯", " sharp ", "♭", " flat ")
)

// Make turns a label into a lowercase file-name fragment. Accidentals are spelled
// out so "A#3" and "A3" never collide.
func Make(input string) string {
	s := strings.ToLower(accidentals.Replace(strings.TrimSpace(input)))
	s = nonAlphaNum.ReplaceAllString(s, "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "untitled"
	}
	return s
}
