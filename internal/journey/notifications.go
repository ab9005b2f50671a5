package journey

import "context"

// Notifier is told about stage transitions. Delivery is fire-and-forget:
// the state machine never depends on it succeeding.
type Notifier interface {
	JourneyStageChanged(ctx context.Context, j *Journey, stage Stage)
}

// NopNotifier discards all notifications
type NopNotifier struct{}

func (NopNotifier) JourneyStageChanged(ctx context.Context, j *Journey, stage Stage) {}
