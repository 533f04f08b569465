package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/trace"

	"service-ninja/internal/domain"
	"service-ninja/internal/usecase/eventbus"
)

// funcTool adapts a typed handler into a domain.Tool running through the
// Execute middleware.
type funcTool[P any] struct {
	name        string
	description string
	parameters  json.RawMessage
	logger      *slog.Logger
	handler     func(ctx context.Context, span trace.Span, p P) (any, error)
}

func newTool[P any](
	name, description string,
	parameters json.RawMessage,
	logger *slog.Logger,
	handler func(ctx context.Context, span trace.Span, p P) (any, error),
) domain.Tool {
	return &funcTool[P]{
		name:        name,
		description: description,
		parameters:  parameters,
		logger:      logger,
		handler:     handler,
	}
}

func (t *funcTool[P]) Name() string        { return t.name }
func (t *funcTool[P]) Description() string { return t.description }

func (t *funcTool[P]) Schema() domain.ToolSchema {
	return domain.ToolSchema{
		Name:        t.name,
		Description: t.description,
		Parameters:  t.parameters,
	}
}

func (t *funcTool[P]) Execute(ctx context.Context, params json.RawMessage) (*domain.ToolResult, error) {
	return Execute(ctx, "tool."+t.name, t.logger, params, t.handler)
}

// RequireField returns an error when a mandatory string parameter is empty.
func RequireField(name, value string) error {
	if value == "" {
		return fmt.Errorf("'%s' is required", name)
	}
	return nil
}

// publishToolEvent publishes a domain event from a tool. Nil bus is a no-op.
func publishToolEvent(ctx context.Context, bus domain.EventBus, eventType domain.EventType, payload any) {
	if bus == nil {
		return
	}
	bus.Publish(ctx, eventbus.NewEvent(eventType, payload))
}
