// Package linkextract finds URLs in channel posts and reduces them to web domains.
package linkextract

import (
	"regexp"
	"strings"
)

// Link is a URL found in post text.
type Link struct {
	URL      string
	Domain   string
	Position int
}

var urlRegex = regexp.MustCompile(`https?://[^\s<>"{}|\\^\x60\[\]]+`)

const trailingPunctuation = ".,;:!?)»\"'"

// ExtractLinks returns the distinct http(s) URLs of text in order of appearance.
func ExtractLinks(text string) []Link {
	matches := urlRegex.FindAllStringIndex(text, -1)
	if len(matches) == 0 {
		return nil
	}

	links := make([]Link, 0, len(matches))
	seen := make(map[string]bool, len(matches))

	for _, match := range matches {
		rawURL := strings.TrimRight(text[match[0]:match[1]], trailingPunctuation)

		normalized := normalizeURL(rawURL)
		if normalized == "" || seen[normalized] {
			continue
		}

		seen[normalized] = true

		links = append(links, Link{
			URL:      normalized,
			Domain:   Domain(normalized),
			Position: match[0],
		})
	}

	return links
}
