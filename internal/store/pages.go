package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"seoforge/internal/article"
	"seoforge/internal/batch"
	"seoforge/internal/services"
)

// PageRepository implements batch.PageStore and batch.ProjectStore.
type PageRepository struct{ s *Store }

// Pages returns the content-plan repository.
func (s *Store) Pages() *PageRepository { return &PageRepository{s: s} }

const pageColumns = "id, project_id, position, keyword, title, status, overrides_json, workflow_id, article_id, article_json, error_message, updated_at"

// PutProject inserts or updates a project.
func (r *PageRepository) PutProject(ctx context.Context, p batch.Project) error {
	if strings.TrimSpace(p.ID) == "" {
		return services.Validation("store", "project id is required")
	}
	defaults, err := encodeJSON(p.Defaults)
	if err != nil {
		return err
	}
	created := p.CreatedAt
	if created.IsZero() {
		created = r.s.now()
	}
	_, err = r.s.exec(ctx,
		`INSERT INTO projects (id, name, defaults_json, created_at) VALUES (?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET name = excluded.name, defaults_json = excluded.defaults_json`,
		p.ID, nullableString(p.Name), defaults, formatTime(created),
	)
	if err != nil {
		return fmt.Errorf("put project: %w", err)
	}
	return nil
}

func (r *PageRepository) GetProject(ctx context.Context, id string) (batch.Project, error) {
	var (
		p        batch.Project
		name     sql.NullString
		defaults sql.NullString
		created  sql.NullString
	)
	err := r.s.db.QueryRowContext(ctx, `SELECT id, name, defaults_json, created_at FROM projects WHERE id = ?`, id).
		Scan(&p.ID, &name, &defaults, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return batch.Project{}, batch.ProjectNotFound(id)
	}
	if err != nil {
		return batch.Project{}, fmt.Errorf("get project: %w", err)
	}
	p.Name = name.String
	p.CreatedAt = parseTime(created)
	if err := decodeJSON(defaults, &p.Defaults); err != nil {
		return batch.Project{}, err
	}
	return p, nil
}

// ListProjects returns every project ordered by id.
func (r *PageRepository) ListProjects(ctx context.Context) ([]batch.Project, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT id FROM projects ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan project: %w", err)
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out := make([]batch.Project, 0, len(ids))
	for _, id := range ids {
		p, err := r.GetProject(ctx, id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

// AddPages appends pages to a project after its last position in a single
// transaction.
func (r *PageRepository) AddPages(ctx context.Context, projectID string, pages []batch.Page) error {
	if _, err := r.GetProject(ctx, projectID); err != nil {
		return err
	}
	return retryOnBusy(ctx, func() error {
		tx, err := r.s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin page tx: %w", err)
		}
		defer func() { _ = tx.Rollback() }()

		var next int
		if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(position) + 1, 0) FROM pages WHERE project_id = ?`, projectID).Scan(&next); err != nil {
			return fmt.Errorf("next page position: %w", err)
		}
		for _, p := range pages {
			if strings.TrimSpace(p.ID) == "" {
				return services.Validation("store", "page id is required")
			}
			p.ProjectID = projectID
			p.Position = next
			if p.Status == "" {
				p.Status = batch.StatusPending
			}
			if p.UpdatedAt.IsZero() {
				p.UpdatedAt = r.s.now()
			}
			args, err := pageArgs(p)
			if err != nil {
				return err
			}
			if _, err := tx.ExecContext(ctx, `INSERT INTO pages (`+pageColumns+`) VALUES (`+makePlaceholders(12)+`)`, args...); err != nil {
				return fmt.Errorf("insert page %s: %w", p.ID, err)
			}
			next++
		}
		return tx.Commit()
	})
}

func (r *PageRepository) ListPages(ctx context.Context, projectID string) ([]batch.Page, error) {
	rows, err := r.s.db.QueryContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE project_id = ? ORDER BY position, id`, projectID)
	if err != nil {
		return nil, fmt.Errorf("list pages: %w", err)
	}
	defer rows.Close()
	var out []batch.Page
	for rows.Next() {
		p, err := scanPage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *PageRepository) GetPage(ctx context.Context, id string) (batch.Page, error) {
	row := r.s.db.QueryRowContext(ctx, `SELECT `+pageColumns+` FROM pages WHERE id = ?`, id)
	p, err := scanPage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return batch.Page{}, batch.PageNotFound(id)
	}
	return p, err
}

func (r *PageRepository) UpdatePage(ctx context.Context, p batch.Page) error {
	overrides, err := encodeJSON(p.Overrides)
	if err != nil {
		return err
	}
	var articleJSON any
	if p.Article != nil {
		encoded, err := encodeJSON(p.Article)
		if err != nil {
			return err
		}
		articleJSON = encoded
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = r.s.now()
	}
	n, err := r.s.affected(ctx,
		`UPDATE pages
         SET keyword = ?, title = ?, status = ?, overrides_json = ?, workflow_id = ?,
             article_id = ?, article_json = ?, error_message = ?, updated_at = ?
         WHERE id = ?`,
		nullableString(p.Keyword),
		nullableString(p.Title),
		string(p.Status),
		overrides,
		nullableString(p.WorkflowID),
		nullableString(p.ArticleID),
		articleJSON,
		nullableString(p.Error),
		formatTime(p.UpdatedAt),
		p.ID,
	)
	if err != nil {
		return fmt.Errorf("update page: %w", err)
	}
	if n == 0 {
		return batch.PageNotFound(p.ID)
	}
	return nil
}

// SetPageStatus updates only the status of the given pages.
func (r *PageRepository) SetPageStatus(ctx context.Context, status batch.GenerationStatus, ids ...string) (int, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	if !status.Valid() {
		return 0, services.Validation("store", "unknown page status "+string(status))
	}
	args := []any{string(status), formatTime(r.s.now())}
	for _, id := range ids {
		args = append(args, id)
	}
	return r.s.affected(ctx, `UPDATE pages SET status = ?, updated_at = ? WHERE id IN (`+makePlaceholders(len(ids))+`)`, args...)
}

func pageArgs(p batch.Page) ([]any, error) {
	overrides, err := encodeJSON(p.Overrides)
	if err != nil {
		return nil, err
	}
	var articleJSON any
	if p.Article != nil {
		encoded, err := encodeJSON(p.Article)
		if err != nil {
			return nil, err
		}
		articleJSON = encoded
	}
	return []any{
		p.ID,
		p.ProjectID,
		p.Position,
		nullableString(p.Keyword),
		nullableString(p.Title),
		string(p.Status),
		overrides,
		nullableString(p.WorkflowID),
		nullableString(p.ArticleID),
		articleJSON,
		nullableString(p.Error),
		formatTime(p.UpdatedAt),
	}, nil
}

func scanPage(scanner interface{ Scan(dest ...any) error }) (batch.Page, error) {
	var (
		p           batch.Page
		keyword     sql.NullString
		title       sql.NullString
		status      string
		overrides   sql.NullString
		workflowID  sql.NullString
		articleID   sql.NullString
		articleJSON sql.NullString
		errMessage  sql.NullString
		updated     sql.NullString
	)
	if err := scanner.Scan(
		&p.ID, &p.ProjectID, &p.Position, &keyword, &title, &status,
		&overrides, &workflowID, &articleID, &articleJSON, &errMessage, &updated,
	); err != nil {
		return batch.Page{}, err
	}
	p.Keyword = keyword.String
	p.Title = title.String
	p.Status = batch.GenerationStatus(status)
	p.WorkflowID = workflowID.String
	p.ArticleID = articleID.String
	p.Error = errMessage.String
	p.UpdatedAt = parseTime(updated)
	if err := decodeJSON(overrides, &p.Overrides); err != nil {
		return batch.Page{}, err
	}
	if articleJSON.Valid && articleJSON.String != "" {
		var a article.Article
		if err := decodeJSON(articleJSON, &a); err != nil {
			return batch.Page{}, err
		}
		p.Article = &a
	}
	return p, nil
}
