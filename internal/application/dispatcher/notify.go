package dispatcher

import (
	"context"

	"github.com/legalworks/docflow/internal/application/port"
	"github.com/legalworks/docflow/internal/domain/event"
)

// NotifyHandler bridges dispatched events to the outbound notification sink.
// Events without a recipient are dropped silently; delivery errors propagate
// to the dispatcher, which logs and continues.
func NotifyHandler(sink port.NotificationSink) Handler {
	return func(ctx context.Context, evt *event.Event) error {
		if evt.Recipient == "" {
			return nil
		}
		return sink.Notify(ctx, evt.Recipient, evt.Type.String(), evt.Payload)
	}
}

// RegisterNotifications subscribes the sink to every event type that carries
// a user-facing notification.
func RegisterNotifications(d Dispatcher, sink port.NotificationSink) {
	handler := NotifyHandler(sink)
	for _, t := range []event.Type{
		event.TypeRequestSubmitted,
		event.TypeRequestApproved,
		event.TypeRequestRejected,
		event.TypeRequestCompleted,
		event.TypeDiscussionOpened,
		event.TypeDiscussionClosed,
		event.TypeAgreementCreated,
		event.TypeAgreementApproved,
		event.TypeAgreementRejected,
		event.TypeAgreementRediscuss,
		event.TypeStepAssigned,
	} {
		d.Subscribe(t, "notification-sink", handler)
	}
}
