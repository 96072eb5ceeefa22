package telemetry

import "go.uber.org/zap"

// Event is a single structured audit/observability record.
type Event struct {
	Name      string
	ActorRole string
	Context   map[string]any
}

// Emitter writes telemetry events to a structured log. It is an injected
// service object rather than a process global, and emission is fire and
// forget: failures never affect the operation that produced the event.
type Emitter struct {
	log *zap.Logger
}

// NewEmitter creates an emitter over the given logger.
func NewEmitter(log *zap.Logger) *Emitter {
	return &Emitter{log: log}
}

// Emit records one event. Safe to call on a nil emitter.
func (e *Emitter) Emit(event Event) {
	if e == nil || e.log == nil {
		return
	}
	role := event.ActorRole
	if role == "" {
		role = "system"
	}
	e.log.Info("telemetry",
		zap.String("name", event.Name),
		zap.String("actor_role", role),
		zap.Any("context", event.Context),
	)
}
