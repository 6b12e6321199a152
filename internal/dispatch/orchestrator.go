// Package dispatch runs the inbound message pipeline: keyword detection,
// notification persistence, fan-out to the outbound channels, and the
// delivered-state reconciliation afterwards.
package dispatch

import (
	"context"
	"time"

	"wecom-keyword-alert/internal/channel"
	apperrors "wecom-keyword-alert/internal/common/errors"
	"wecom-keyword-alert/internal/common/logger"
	"wecom-keyword-alert/internal/common/metrics"
	"wecom-keyword-alert/internal/common/observability"
	"wecom-keyword-alert/internal/detect"
	"wecom-keyword-alert/internal/store"
)

// Terminal pipeline states.
const (
	StateIgnored        = "ignored"
	StateDelivered      = "delivered"
	StateDeliveryFailed = "delivery_failed"
)

type notificationStore interface {
	Create(ctx context.Context, message, keyword, source string, notified bool) (*store.Notification, error)
	MarkDelivered(ctx context.Context, id string) (*store.Notification, error)
}

type recipientSource interface {
	GetRecipients(ctx context.Context, key string) ([]string, error)
}

// Binding attaches an outbound channel to the config key holding its
// recipient set and the formatter that renders its alert body.
type Binding struct {
	Channel      channel.Channel
	RecipientKey string
	Format       func(keyword, message, source string, at time.Time) string
}

// Outcome is the terminal result of one pipeline run. Keyword is empty when
// the message was ignored; Record is nil unless a notification was persisted.
type Outcome struct {
	State      string
	Keyword    string
	Record     *store.Notification
	DetectedAt time.Time
}

type Orchestrator struct {
	matcher       *detect.Matcher
	notifications notificationStore
	recipients    recipientSource
	bindings      []Binding
	log           logger.Logger
	obs           *observability.Observability
	now           func() time.Time
}

func New(
	matcher *detect.Matcher,
	notifications notificationStore,
	recipients recipientSource,
	bindings []Binding,
	log logger.Logger,
	obs *observability.Observability,
) *Orchestrator {
	return &Orchestrator{
		matcher:       matcher,
		notifications: notifications,
		recipients:    recipients,
		bindings:      bindings,
		log:           log.WithFields(map[string]interface{}{"component": "dispatch"}),
		obs:           obs,
		now:           time.Now,
	}
}

// HandleMessage runs the full pipeline for one inbound message.
//
// The notification row is written before any send is attempted, with the
// delivered flag off; it is flipped only after at least one channel confirms
// success. A crash between send and flip therefore re-delivers on replay
// rather than losing the alert.
//
// Channel failures are absorbed here: they are logged and counted but never
// returned to the caller. Only persistence failures propagate.
func (o *Orchestrator) HandleMessage(ctx context.Context, msgtype, content, source string) (*Outcome, error) {
	start := time.Now()

	if msgtype == "" {
		msgtype = "unknown"
	}
	metrics.WebhooksReceived.WithLabelValues(msgtype).Inc()

	if msgtype != "text" || content == "" {
		return o.finish(ctx, start, &Outcome{State: StateIgnored}), nil
	}

	keyword, matched := o.matcher.Detect(content)
	if !matched {
		return o.finish(ctx, start, &Outcome{State: StateIgnored}), nil
	}

	detectedAt := o.now().UTC()
	metrics.KeywordsMatched.WithLabelValues(keyword).Inc()
	o.log.Info("keyword matched", map[string]interface{}{
		"keyword": keyword,
		"source":  source,
	})

	record, err := o.notifications.Create(ctx, content, keyword, source, false)
	if err != nil {
		return nil, err
	}

	delivered := false
	for _, b := range o.bindings {
		if o.deliver(ctx, b, keyword, content, source, detectedAt) {
			delivered = true
		}
	}

	outcome := &Outcome{
		State:      StateDeliveryFailed,
		Keyword:    keyword,
		Record:     record,
		DetectedAt: detectedAt,
	}

	if delivered {
		outcome.State = StateDelivered
		if updated, err := o.notifications.MarkDelivered(ctx, record.ID); err != nil {
			// The alert is already out; a failed flip leaves the row pending
			// and a replay would re-deliver. Log it, keep the outcome.
			o.log.WithError(err).Error("failed to mark notification delivered", map[string]interface{}{
				"notificationId": record.ID,
			})
		} else {
			outcome.Record = updated
		}
	}

	return o.finish(ctx, start, outcome), nil
}

// deliver runs one channel binding end to end and reports whether the send
// succeeded. An empty recipient set is a skip, not a failure.
func (o *Orchestrator) deliver(ctx context.Context, b Binding, keyword, content, source string, detectedAt time.Time) bool {
	name := b.Channel.Name()

	recipients, err := o.recipients.GetRecipients(ctx, b.RecipientKey)
	if err != nil {
		o.log.WithError(err).Error("failed to load channel recipients", map[string]interface{}{
			"channel": name,
		})
		metrics.DeliveriesAttempted.WithLabelValues(name, "error").Inc()
		return false
	}

	body := b.Format(keyword, content, source, detectedAt)

	sendStart := time.Now()
	result, err := b.Channel.SendAlert(ctx, recipients, body)
	metrics.DeliveryDuration.WithLabelValues(name).Observe(time.Since(sendStart).Seconds())

	if err != nil {
		if apperrors.Is(err, apperrors.ErrCodeNoRecipients) {
			o.log.Warn("channel has no recipients configured, skipping", map[string]interface{}{
				"channel": name,
			})
			metrics.DeliveriesAttempted.WithLabelValues(name, "skipped").Inc()
			return false
		}
		o.log.WithError(err).Error("alert delivery failed", map[string]interface{}{
			"channel": name,
			"keyword": keyword,
		})
		metrics.DeliveriesAttempted.WithLabelValues(name, "failure").Inc()
		return false
	}

	metrics.DeliveriesAttempted.WithLabelValues(name, "success").Inc()
	o.log.Info("alert delivered", map[string]interface{}{
		"channel": name,
		"mode":    result.Mode,
	})
	return true
}

func (o *Orchestrator) finish(ctx context.Context, start time.Time, outcome *Outcome) *Outcome {
	if o.obs != nil {
		o.obs.RecordDispatch(ctx, outcome.State)
		o.obs.RecordDispatchDuration(ctx, time.Since(start), outcome.State)
	}
	return outcome
}
