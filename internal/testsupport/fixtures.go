package testsupport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

// SERPServer serves a Serper-style response listing the given links and a
// fixed people-also-ask entry.
func SERPServer(t testing.TB, links ...string) *httptest.Server {
	t.Helper()
	organic := make([]map[string]any, 0, len(links))
	for i, link := range links {
		organic = append(organic, map[string]any{
			"title":    fmt.Sprintf("Result %d", i+1),
			"link":     link,
			"snippet":  "snippet",
			"position": i + 1,
		})
	}
	body, err := json.Marshal(map[string]any{
		"organic":       organic,
		"peopleAlsoAsk": []map[string]any{{"question": "What matters most?"}},
	})
	if err != nil {
		t.Fatalf("marshal serp: %v", err)
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

// HTMLServer serves an article page at every path listed in words, with
// the given number of body words. Words are derived from the path so pages
// never look like duplicates of each other.
func HTMLServer(t testing.TB, words map[string]int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, ok := words[r.URL.Path]
		if !ok {
			http.Error(w, "missing", http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		stem := strings.Trim(r.URL.Path, "/")
		tokens := make([]string, n)
		for i := range tokens {
			tokens[i] = fmt.Sprintf("%s%d", stem, i)
		}
		body := strings.Join(tokens, " ")
		fmt.Fprintf(w, "<html><head><title>%s</title></head><body><article><p>%s</p></article></body></html>", r.URL.Path, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}
