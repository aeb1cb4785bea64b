package linkextract

import (
	"encoding/json"
	"strings"
)

// ExtractURLsFromJSON walks raw API payloads and returns any HTTP(S) URLs found under
// "url" keys (entity links, web page previews), without duplicates.
func ExtractURLsFromJSON(payloads ...[]byte) []string {
	seen := make(map[string]bool)
	urls := make([]string, 0)

	addURL := func(raw string) {
		url := normalizeURL(raw)
		if url == "" || seen[url] {
			return
		}

		seen[url] = true
		urls = append(urls, url)
	}

	for _, raw := range payloads {
		collectURLs(raw, addURL)
	}

	return urls
}

func collectURLs(raw []byte, add func(string)) {
	if len(raw) == 0 {
		return
	}

	var payload any
	if err := json.Unmarshal(raw, &payload); err != nil {
		return
	}

	visitJSON(payload, add)
}

func visitJSON(val any, add func(string)) {
	switch v := val.(type) {
	case map[string]any:
		for key, child := range v {
			if isURLKey(key) {
				if s, ok := child.(string); ok {
					add(s)
				}
			}

			visitJSON(child, add)
		}
	case []any:
		for _, child := range v {
			visitJSON(child, add)
		}
	}
}

func isURLKey(key string) bool {
	return strings.EqualFold(key, "url")
}

func normalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}

	lower := strings.ToLower(raw)
	if strings.HasPrefix(lower, "http://") || strings.HasPrefix(lower, "https://") {
		return raw
	}

	if strings.HasPrefix(raw, "//") {
		return "https:" + raw
	}

	if strings.Contains(raw, ".") && !strings.ContainsAny(raw, " \t\n") {
		return "https://" + raw
	}

	return ""
}
