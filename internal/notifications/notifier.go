package notifications

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"seoforge/internal/batch"
	"seoforge/internal/config"
	"seoforge/internal/logging"
	"seoforge/internal/workflow"
)

// Notifier routes workflow and batch events to a Service according to the
// configured toggles. Delivery failures are logged and never propagated.
type Notifier struct {
	service  Service
	settings config.Notifications
	logger   *slog.Logger
	now      func() time.Time
}

var (
	_ workflow.Publisher = (*Notifier)(nil)
	_ batch.Notifier     = (*Notifier)(nil)
)

// NewNotifier wraps service with the event toggles from settings.
func NewNotifier(service Service, settings config.Notifications, logger *slog.Logger) *Notifier {
	if service == nil {
		service = noopService{}
	}
	return &Notifier{
		service:  service,
		settings: settings,
		logger:   logging.NewComponentLogger(logger, "notifications"),
		now:      time.Now,
	}
}

// Publish sends a message when a standalone workflow reaches a terminal
// status. Workflows owned by a batch page are summarised by BatchFinished.
func (n *Notifier) Publish(ctx context.Context, st workflow.State) {
	if n == nil || st.ProjectID != "" {
		return
	}
	switch st.Status {
	case workflow.StatusCompleted:
		if !n.settings.Workflow {
			return
		}
		var title string
		var words int
		if st.Article != nil {
			title = st.Article.Title
			words = st.Article.WordCount
		}
		n.deliver(ctx, "article_completed", n.service.NotifyArticleCompleted(ctx, st.Keyword, title, words, st.Duration(n.now())))
	case workflow.StatusFailed:
		if !n.settings.Errors {
			return
		}
		msg := st.Error
		if msg == "" {
			msg = "workflow failed"
		}
		n.deliver(ctx, "workflow_failed", n.service.NotifyError(ctx, errors.New(msg), "workflow "+st.Keyword))
	}
}

// BatchStarted announces a new batch run.
func (n *Notifier) BatchStarted(ctx context.Context, status batch.Status) {
	if n == nil || !n.settings.Batch {
		return
	}
	n.deliver(ctx, "batch_started", n.service.NotifyBatchStarted(ctx, status.ProjectID, status.Total))
}

// BatchFinished summarises a finished or cancelled batch run.
func (n *Notifier) BatchFinished(ctx context.Context, status batch.Status) {
	if n == nil || !n.settings.Batch {
		return
	}
	var duration time.Duration
	if !status.StartedAt.IsZero() && !status.FinishedAt.IsZero() {
		duration = status.FinishedAt.Sub(status.StartedAt)
	}
	err := n.service.NotifyBatchCompleted(ctx, status.ProjectID, status.Stats.Completed, status.Stats.Failed, status.Cancelled, duration)
	n.deliver(ctx, "batch_completed", err)
}

func (n *Notifier) deliver(ctx context.Context, event string, err error) {
	if err == nil {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, n.logger), "notification delivery failed", "notification_failed",
		logging.String("notification", event),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check ntfy_topic and network connectivity"),
		logging.String(logging.FieldImpact, "notification was not delivered"),
	)
}
