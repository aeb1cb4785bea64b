package linkextract

import (
	"net"
	"net/url"
	"strings"

	"golang.org/x/net/idna"
	"golang.org/x/net/publicsuffix"
)

// TelegramDomain hosts links to other channels and posts, not external sources.
const TelegramDomain = "t.me"

const wwwPrefix = "www."

var telegramAliases = map[string]bool{
	"t.me":         true,
	"telegram.me":  true,
	"telegram.dog": true,
}

// Domain returns the lower-cased host of rawURL without port or www. prefix.
// Punycode hosts are rendered in Unicode. Unparsable URLs yield "".
func Domain(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	host := u.Hostname()
	if host == "" {
		return ""
	}

	host = strings.TrimSuffix(strings.ToLower(host), ".")
	if net.ParseIP(host) == nil {
		if unicodeHost, err := idna.Display.ToUnicode(host); err == nil {
			host = unicodeHost
		}
	}

	host = strings.TrimPrefix(host, wwwPrefix)
	if telegramAliases[host] {
		return TelegramDomain
	}

	return host
}

// RegistrableDomain collapses a host to its eTLD+1 (news.bbc.co.uk -> bbc.co.uk).
// Hosts without a public suffix are returned unchanged.
func RegistrableDomain(host string) string {
	if host == "" || net.ParseIP(host) != nil {
		return host
	}

	ascii, err := idna.Lookup.ToASCII(host)
	if err != nil {
		return host
	}

	etld1, err := publicsuffix.EffectiveTLDPlusOne(ascii)
	if err != nil {
		return host
	}

	if display, err := idna.Display.ToUnicode(etld1); err == nil {
		return display
	}

	return etld1
}

// MessageDomains returns one domain per distinct URL cited by a post,
// from its text and its raw API payload. Spellings of one URL that differ only in
// scheme, host case, a www. prefix or a trailing slash count once.
// Telegram links are kept; callers filter them.
func MessageDomains(text string, payload []byte, collapse bool) []string {
	seen := make(map[string]bool)

	var domains []string

	add := func(rawURL string) {
		key := citationKey(rawURL)
		if key == "" || seen[key] {
			return
		}

		seen[key] = true

		d := Domain(rawURL)

		if collapse && d != TelegramDomain {
			d = RegistrableDomain(d)
		}

		domains = append(domains, d)
	}

	for _, link := range ExtractLinks(text) {
		add(link.URL)
	}

	for _, u := range ExtractURLsFromJSON(payload) {
		add(u)
	}

	return domains
}

// citationKey identifies a cited URL regardless of scheme, host case, www. prefix,
// port, fragment and trailing slash. Unparsable URLs yield "".
func citationKey(rawURL string) string {
	host := Domain(rawURL)
	if host == "" {
		return ""
	}

	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}

	key := host + strings.TrimRight(u.EscapedPath(), "/")
	if u.RawQuery != "" {
		key += "?" + u.RawQuery
	}

	return key
}
