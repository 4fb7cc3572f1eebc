package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"seoforge/internal/logging"
	"seoforge/internal/retry"
	"seoforge/internal/services"
)

const (
	terminalPersistRetries = 3
	terminalPersistDelay   = 50 * time.Millisecond
)

func (e *Engine) run(ctx context.Context, st *State) error {
	ctx = services.WithWorkflowID(ctx, st.ID)
	if st.ProjectID != "" {
		ctx = services.WithProjectID(ctx, st.ProjectID)
	}
	if st.PageID != "" {
		ctx = services.WithPageID(ctx, st.PageID)
	}
	ctx, span := otel.Tracer("seoforge/workflow").Start(ctx, "workflow.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("workflow.id", st.ID),
		attribute.String("workflow.keyword", st.Keyword),
	)
	logger := logging.WithContext(ctx, e.logger)
	logger.Info("workflow started",
		logging.String(logging.FieldEventType, "workflow_start"),
		logging.String("keyword", st.Keyword),
		logging.String("geo", st.Geo),
	)

	for _, s := range e.stages {
		if s.name == "edit" && st.Options.SkipEdit {
			continue
		}
		if err := e.executeStage(ctx, s, st); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, s.name+" failed")
			return err
		}
	}
	if err := e.transition(ctx, st, StatusCompleted, 100); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "completion not persisted")
		e.recordUnsavedCompletion(ctx, logger, st, err)
		return err
	}
	words := 0
	if st.Article != nil {
		words = st.Article.WordCount
	}
	span.SetAttributes(attribute.Int("workflow.words", words))
	logger.Info("workflow completed",
		logging.String(logging.FieldEventType, "workflow_complete"),
		logging.Int("word_count", words),
		logging.Duration("duration", st.Duration(e.now())),
	)
	return nil
}

func (e *Engine) executeStage(ctx context.Context, s pipelineStage, st *State) error {
	ctx = services.WithStage(ctx, s.name)
	stageLogger := logging.WithContext(ctx, e.logger)
	if err := e.transition(ctx, st, s.processingStatus, s.progress); err != nil {
		e.handleStageFailure(ctx, stageLogger, s.name, st, err)
		return err
	}
	stageStart := e.now()
	stageLogger.Info("stage started",
		logging.String(logging.FieldEventType, "stage_start"),
		logging.String("processing_status", string(s.processingStatus)),
	)
	if s.handler == nil {
		err := fmt.Errorf("stage %s missing handler", s.name)
		e.handleStageFailure(ctx, stageLogger, s.name, st, err)
		return err
	}
	if err := e.execute(ctx, s, st); err != nil {
		e.handleStageFailure(ctx, stageLogger, s.name, st, err)
		return err
	}
	stageLogger.Info("stage completed",
		logging.String(logging.FieldEventType, "stage_complete"),
		logging.Duration("stage_duration", e.now().Sub(stageStart)),
	)
	return nil
}

func (e *Engine) execute(ctx context.Context, s pipelineStage, st *State) (err error) {
	ctx, span := otel.Tracer("seoforge/workflow").Start(ctx, "workflow.stage."+s.name)
	defer span.End()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("stage %s panicked: %v", s.name, r)
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "stage failed")
		}
	}()
	return s.handler.Execute(ctx, st)
}

func (e *Engine) handleStageFailure(ctx context.Context, logger *slog.Logger, stageName string, st *State, stageErr error) {
	details := services.Details(stageErr)
	message := strings.TrimSpace(details.Message)
	if message == "" {
		message = stageName + " failed"
	}
	st.Error = message
	st.ErrorKind = details.Kind
	if err := e.transition(ctx, st, StatusFailed, st.Progress); err != nil {
		logger.Error("failed to record stage failure", logging.Error(err))
	}
	logging.ErrorWithContext(logger, "stage failed", "stage_failure",
		logging.String("resolved_status", string(StatusFailed)),
		logging.String("error_message", message),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.String(logging.FieldErrorHint, details.Hint),
		logging.String(logging.FieldProvider, details.Service),
		logging.Error(stageErr),
	)
}

// recordUnsavedCompletion replaces a completed state the store rejected with
// a failed one so pollers reach a terminal status instead of waiting on the
// last stored processing status.
func (e *Engine) recordUnsavedCompletion(ctx context.Context, logger *slog.Logger, st *State, persistErr error) {
	details := services.Details(persistErr)
	st.Status = StatusFailed
	st.Stage = StatusFailed.Label()
	st.Error = "completed article could not be saved: " + details.Message
	st.ErrorKind = details.Kind
	policy := retry.Policy{
		MaxRetries:   terminalPersistRetries,
		InitialDelay: terminalPersistDelay,
		MaxDelay:     4 * terminalPersistDelay,
		ShouldRetry:  func(error) bool { return true },
		Logger:       logger,
	}
	err := retry.Run(ctx, "workflow.persist", policy, func(ctx context.Context) error {
		return e.commit(ctx, st)
	})
	logging.ErrorWithContext(logger, "workflow completion not saved", "workflow_persist_failed",
		logging.String("resolved_status", string(st.Status)),
		logging.String(logging.FieldErrorKind, details.Kind),
		logging.Bool("failure_recorded", err == nil),
		logging.Error(persistErr),
	)
}

// transition applies a guarded status change and commits the snapshot.
func (e *Engine) transition(ctx context.Context, st *State, to Status, progress int) error {
	if !CanTransition(st.Status, to) {
		return &TransitionError{From: st.Status, To: to}
	}
	st.Status = to
	st.Stage = to.Label()
	if progress > st.Progress {
		st.Progress = progress
	}
	if to.IsTerminal() {
		at := e.now().UTC()
		st.CompletedAt = &at
	}
	return e.commit(ctx, st)
}

// commit persists then publishes. A processing snapshot is published even
// when the store rejects it so live observers still see progress; a rejected
// completed snapshot is not, since it is replaced by a failed one.
func (e *Engine) commit(ctx context.Context, st *State) error {
	st.UpdatedAt = e.now().UTC()
	snapshot := st.Clone()
	err := e.store.Put(ctx, snapshot)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, e.logger), "failed to persist workflow state", "workflow_persist_failed",
			logging.Error(err),
			logging.String("status", string(st.Status)),
			logging.String(logging.FieldImpact, "pollers may observe a stale status"),
		)
	}
	if err == nil || st.Status != StatusCompleted {
		e.publisher.Publish(ctx, snapshot)
	}
	if err != nil {
		return fmt.Errorf("persist workflow %s: %w", st.ID, err)
	}
	return nil
}
