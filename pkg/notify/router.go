// Package notify publishes the notifications an execution snapshot fires.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/dukex/flytestate/pkg/models"
)

const Topic = "flytestate.notifications"

// Event is the payload of a published notification.
type Event struct {
	ID          string                             `json:"id"`
	ExecutionID models.WorkflowExecutionIdentifier `json:"execution_id"`
	Phase       models.WorkflowExecutionPhase      `json:"phase"`
	Channel     string                             `json:"channel"`
	Recipients  []string                           `json:"recipients"`
	Timestamp   time.Time                          `json:"timestamp"`
}

type Router struct {
	publisher message.Publisher
	logger    *slog.Logger
	now       func() time.Time
}

func NewRouter(publisher message.Publisher, logger *slog.Logger) *Router {
	return &Router{
		publisher: publisher,
		logger:    logger.With("module", "notify"),
		now:       time.Now,
	}
}

// Select returns the notifications of the execution's spec bound to its
// current phase.
func (r *Router) Select(exec models.Execution) []models.Notification {
	spec := exec.Spec
	if spec.NotificationsDisabled() || spec.Notifications == nil {
		return nil
	}

	return spec.Notifications.Matching(exec.Closure.Phase)
}

// Publish sends one message per selected notification and returns how many
// were sent.
func (r *Router) Publish(ctx context.Context, exec models.Execution) (int, error) {
	selected := r.Select(exec)

	for i, notification := range selected {
		event := Event{
			ID:          watermill.NewUUID(),
			ExecutionID: exec.ID,
			Phase:       exec.Closure.Phase,
			Channel:     notification.Channel.Kind(),
			Recipients:  append([]string{}, notification.Channel.Recipients()...),
			Timestamp:   r.now().UTC(),
		}

		payload, err := json.Marshal(event)
		if err != nil {
			return i, fmt.Errorf("failed to marshal notification event: %w", err)
		}

		msg := message.NewMessage(event.ID, payload)
		msg.SetContext(ctx)
		msg.Metadata.Set("key", exec.ID.String())
		msg.Metadata.Set("channel", event.Channel)
		msg.Metadata.Set("phase", event.Phase.String())
		msg.Metadata.Set("execution", exec.ID.String())

		r.logger.DebugContext(ctx, "publishing notification",
			"execution", exec.ID.String(),
			"channel", event.Channel,
			"phase", event.Phase.String(),
			"topic", Topic)

		err = r.publisher.Publish(Topic, msg)
		if err != nil {
			r.logger.ErrorContext(ctx, "failed to publish notification", "error", err, "execution", exec.ID.String())

			return i, fmt.Errorf("failed to publish notification: %w", err)
		}
	}

	return len(selected), nil
}
