package cache

import (
	"net/url"
	"strconv"
	"strings"
)

const (
	SearchPrefix = "search:"
	PagePrefix   = "page:"
)

// SearchKey derives the cache key for a SERP query. Keyword case and repeated
// whitespace do not produce distinct keys.
func SearchKey(keyword, geo string, numResults int) string {
	normalized := strings.Join(strings.Fields(strings.ToLower(keyword)), " ")
	key := SearchPrefix + normalized + "|" + strings.ToLower(strings.TrimSpace(geo))
	if numResults > 0 {
		key += "|" + strconv.Itoa(numResults)
	}
	return key
}

// PageKey derives the cache key for a scraped URL.
func PageKey(rawURL string) string {
	return PagePrefix + NormalizeURL(rawURL)
}

// NormalizeURL lowercases scheme and host, drops the fragment, and strips a
// trailing slash from the path. Unparseable input is only trimmed.
func NormalizeURL(rawURL string) string {
	trimmed := strings.TrimSpace(rawURL)
	u, err := url.Parse(trimmed)
	if err != nil || u.Host == "" {
		return trimmed
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimRight(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
