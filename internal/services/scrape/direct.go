package scrape

import (
	"bytes"
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"seoforge/internal/config"
	"seoforge/internal/services"
	"seoforge/internal/services/apiclient"
)

const directName = "direct"

var (
	chromeSelector   = "nav, footer, header, aside, form, [role=navigation], [aria-hidden=true]"
	noiseSelector    = "script, style, noscript, iframe, svg, template"
	contentSelectors = []string{"article", "main", "[role=main]", "#content", ".post-content", "body"}
	blankLines       = regexp.MustCompile(`\n{3,}`)
	inlineSpace      = regexp.MustCompile(`[ \t]+`)
)

// Direct fetches pages over plain HTTP and extracts the main content locally.
// It needs no API key but cannot render JavaScript.
type Direct struct {
	api *apiclient.Client
	now func() time.Time
}

// NewDirect builds a Direct fetcher from configuration.
func NewDirect(cfg config.Scrape) *Direct {
	header := http.Header{}
	header.Set("User-Agent", cfg.UserAgent)
	header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.5")
	return &Direct{
		api: apiclient.New(directName, "", cfg.Timeout(), header),
		now: time.Now,
	}
}

func (d *Direct) Name() string { return directName }

func (d *Direct) Fetch(ctx context.Context, url string, opts Options) (Page, error) {
	body, header, err := d.api.Get(ctx, "scrape", url)
	if err != nil {
		return Page{}, err
	}
	if ct := strings.ToLower(header.Get("Content-Type")); ct != "" && !strings.Contains(ct, "html") {
		return Page{}, services.ExternalService(directName, "scrape", "unsupported content type "+ct, 0, nil)
	}
	title, content, err := ExtractHTML(body, opts.IncludeChrome)
	if err != nil {
		return Page{}, services.ExternalService(directName, "scrape", "parse html", 0, err)
	}
	page := NewPage(url, title, content, opts.MaxChars, d.now())
	page.Source = directName
	return page, nil
}

// ExtractHTML returns the page title and the main content of document as
// lightly formatted markdown.
func ExtractHTML(document []byte, includeChrome bool) (string, string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(document))
	if err != nil {
		return "", "", err
	}

	title, _ := doc.Find(`meta[property="og:title"]`).Attr("content")
	if strings.TrimSpace(title) == "" {
		title = doc.Find("title").First().Text()
	}
	if strings.TrimSpace(title) == "" {
		title = doc.Find("h1").First().Text()
	}

	doc.Find(noiseSelector).Remove()
	if !includeChrome {
		doc.Find(chromeSelector).Remove()
	}

	var root *goquery.Selection
	for _, selector := range contentSelectors {
		candidate := doc.Find(selector).First()
		if candidate.Length() > 0 && strings.TrimSpace(candidate.Text()) != "" {
			root = candidate
			break
		}
	}
	if root == nil {
		return strings.TrimSpace(title), "", nil
	}

	var sb strings.Builder
	for _, node := range root.Nodes {
		writeNode(&sb, node, 0)
	}
	return strings.TrimSpace(title), cleanText(sb.String()), nil
}

func writeNode(sb *strings.Builder, n *html.Node, depth int) {
	if depth > 64 {
		return
	}
	switch n.Type {
	case html.TextNode:
		if text := strings.TrimSpace(n.Data); text != "" {
			sb.WriteString(text)
			sb.WriteByte(' ')
		}
		return
	case html.ElementNode:
		switch n.Data {
		case "h1", "h2", "h3", "h4", "h5", "h6":
			sb.WriteString("\n\n")
			sb.WriteString(strings.Repeat("#", int(n.Data[1]-'0')))
			sb.WriteByte(' ')
		case "p", "div", "section", "table", "blockquote":
			sb.WriteString("\n\n")
		case "br", "tr":
			sb.WriteString("\n")
		case "li":
			sb.WriteString("\n- ")
		case "img":
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeNode(sb, c, depth+1)
	}
	if n.Type == html.ElementNode && len(n.Data) == 2 && n.Data[0] == 'h' && n.Data[1] >= '1' && n.Data[1] <= '6' {
		sb.WriteString("\n\n")
	}
}

func cleanText(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimSpace(inlineSpace.ReplaceAllString(line, " "))
	}
	s = strings.Join(lines, "\n")
	s = blankLines.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
