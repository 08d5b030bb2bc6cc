package generator

import (
	"regexp"
	"strings"
)

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify lowercases title, collapses every non-alphanumeric run into a
// single hyphen, trims hyphens and cuts the result to max bytes
func Slugify(title string, max int) string {
	s := nonSlugChars.ReplaceAllString(strings.ToLower(title), "-")
	s = strings.Trim(s, "-")
	if max > 0 && len(s) > max {
		s = s[:max]
	}
	return s
}

// DatedSlug prefixes the slug of title with a publish date
func DatedSlug(date, title string, max int) string {
	return date + "-" + Slugify(title, max)
}

var (
	fenceOpen  = regexp.MustCompile("^```(?:html?)?\\s*")
	fenceClose = regexp.MustCompile("\\s*```$")
)

// StripFences removes a surrounding markdown code fence from model output
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	text = fenceOpen.ReplaceAllString(text, "")
	return fenceClose.ReplaceAllString(text, "")
}
