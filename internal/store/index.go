package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"seoforge/internal/services/scrape"
)

// PageIndex implements scrape.Indexer, keeping the latest copy of every
// scraped page for later lookup.
type PageIndex struct{ s *Store }

// Index returns the scraped page index.
func (s *Store) Index() *PageIndex { return &PageIndex{s: s} }

func (p *PageIndex) IndexPage(ctx context.Context, page scrape.Page) error {
	if strings.TrimSpace(page.URL) == "" {
		return fmt.Errorf("index page: url is required")
	}
	_, err := p.s.exec(ctx,
		`INSERT INTO page_index (url, title, source, word_count, content, scraped_at, indexed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(url) DO UPDATE SET
             title = excluded.title, source = excluded.source, word_count = excluded.word_count,
             content = excluded.content, scraped_at = excluded.scraped_at, indexed_at = excluded.indexed_at`,
		page.URL,
		nullableString(page.Title),
		nullableString(page.Source),
		page.WordCount,
		page.Content,
		formatTime(page.ScrapedAt),
		formatTime(p.s.now()),
	)
	if err != nil {
		return fmt.Errorf("index page: %w", err)
	}
	return nil
}

// Lookup returns indexed pages whose title or content contains term, most
// recently scraped first.
func (p *PageIndex) Lookup(ctx context.Context, term string, limit int) ([]scrape.Page, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.TrimSuffix(likePrefix(strings.TrimSpace(term)), "%") + "%"
	rows, err := p.s.db.QueryContext(ctx,
		`SELECT url, title, source, word_count, content, scraped_at FROM page_index
         WHERE title LIKE ? ESCAPE '\' OR content LIKE ? ESCAPE '\'
         ORDER BY scraped_at DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("lookup pages: %w", err)
	}
	defer rows.Close()
	var out []scrape.Page
	for rows.Next() {
		var (
			page    scrape.Page
			title   sql.NullString
			source  sql.NullString
			scraped sql.NullString
		)
		if err := rows.Scan(&page.URL, &title, &source, &page.WordCount, &page.Content, &scraped); err != nil {
			return nil, fmt.Errorf("scan indexed page: %w", err)
		}
		page.Title = title.String
		page.Source = source.String
		page.ScrapedAt = parseTime(scraped)
		out = append(out, page)
	}
	return out, rows.Err()
}

// Count returns the number of indexed pages.
func (p *PageIndex) Count(ctx context.Context) (int, error) {
	var n int
	if err := p.s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM page_index`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count indexed pages: %w", err)
	}
	return n, nil
}
