package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"seoforge/internal/research"
	"seoforge/internal/workflow"
)

// WorkflowRepository implements workflow.Store.
type WorkflowRepository struct{ s *Store }

// Workflows returns the workflow state repository.
func (s *Store) Workflows() *WorkflowRepository { return &WorkflowRepository{s: s} }

func (r *WorkflowRepository) Get(ctx context.Context, id string) (workflow.State, error) {
	var raw sql.NullString
	err := r.s.db.QueryRowContext(ctx, `SELECT state_json FROM workflows WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return workflow.State{}, workflow.NotFound(id)
	}
	if err != nil {
		return workflow.State{}, fmt.Errorf("get workflow: %w", err)
	}
	var st workflow.State
	if err := decodeJSON(raw, &st); err != nil {
		return workflow.State{}, fmt.Errorf("workflow %s: %w", id, err)
	}
	return st, nil
}

func (r *WorkflowRepository) Put(ctx context.Context, st workflow.State) error {
	payload, err := encodeJSON(st)
	if err != nil {
		return err
	}
	_, err = r.s.exec(ctx,
		`INSERT INTO workflows (id, status, keyword, project_id, page_id, started_at, updated_at, state_json)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET
             status = excluded.status,
             updated_at = excluded.updated_at,
             state_json = excluded.state_json`,
		st.ID,
		string(st.Status),
		st.Keyword,
		nullableString(st.ProjectID),
		nullableString(st.PageID),
		formatTime(st.StartedAt),
		formatTime(st.UpdatedAt),
		payload,
	)
	if err != nil {
		return fmt.Errorf("put workflow: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.s.exec(ctx, `DELETE FROM workflows WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete workflow: %w", err)
	}
	return nil
}

func (r *WorkflowRepository) List(ctx context.Context, limit int) ([]workflow.State, error) {
	query := `SELECT state_json FROM workflows ORDER BY started_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list workflows: %w", err)
	}
	defer rows.Close()
	var out []workflow.State
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan workflow: %w", err)
		}
		var st workflow.State
		if err := decodeJSON(raw, &st); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

// ResetStuck marks workflows left in a processing status by a previous
// process as failed. It returns the number of workflows changed.
func (r *WorkflowRepository) ResetStuck(ctx context.Context) (int, error) {
	states, err := r.List(ctx, 0)
	if err != nil {
		return 0, err
	}
	now := r.s.now().UTC()
	changed := 0
	for _, st := range states {
		if st.Status.IsTerminal() || st.Status == workflow.StatusPending {
			continue
		}
		st.Error = "interrupted while " + string(st.Status)
		st.ErrorKind = "internal"
		st.Status = workflow.StatusFailed
		st.Stage = workflow.StatusFailed.Label()
		st.UpdatedAt = now
		st.CompletedAt = &now
		if err := r.Put(ctx, st); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// ResearchRepository implements research.Repository.
type ResearchRepository struct{ s *Store }

// Research returns the research result repository.
func (s *Store) Research() *ResearchRepository { return &ResearchRepository{s: s} }

func (r *ResearchRepository) Get(ctx context.Context, id string) (research.Result, error) {
	var raw sql.NullString
	err := r.s.db.QueryRowContext(ctx, `SELECT result_json FROM research_results WHERE id = ?`, id).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return research.Result{}, research.NotFound(id)
	}
	if err != nil {
		return research.Result{}, fmt.Errorf("get research: %w", err)
	}
	var res research.Result
	if err := decodeJSON(raw, &res); err != nil {
		return research.Result{}, fmt.Errorf("research %s: %w", id, err)
	}
	return res, nil
}

func (r *ResearchRepository) Put(ctx context.Context, res research.Result) error {
	payload, err := encodeJSON(res)
	if err != nil {
		return err
	}
	_, err = r.s.exec(ctx,
		`INSERT INTO research_results (id, keyword, geo, created_at, result_json)
         VALUES (?, ?, ?, ?, ?)
         ON CONFLICT(id) DO UPDATE SET result_json = excluded.result_json`,
		res.ID, res.Keyword, nullableString(res.Geo), formatTime(res.CreatedAt), payload,
	)
	if err != nil {
		return fmt.Errorf("put research: %w", err)
	}
	return nil
}

func (r *ResearchRepository) Delete(ctx context.Context, id string) error {
	if _, err := r.s.exec(ctx, `DELETE FROM research_results WHERE id = ?`, id); err != nil {
		return fmt.Errorf("delete research: %w", err)
	}
	return nil
}

func (r *ResearchRepository) List(ctx context.Context, limit int) ([]research.Result, error) {
	query := `SELECT result_json FROM research_results ORDER BY created_at DESC, id`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := r.s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list research: %w", err)
	}
	defer rows.Close()
	var out []research.Result
	for rows.Next() {
		var raw sql.NullString
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan research: %w", err)
		}
		var res research.Result
		if err := decodeJSON(raw, &res); err != nil {
			return nil, err
		}
		out = append(out, res)
	}
	return out, rows.Err()
}
