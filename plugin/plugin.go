package plugin

import (
	"context"

	"go-sniper/models"
)

// Plugin defines a launcher backend. It receives the rendered command of
// a freshly registered scan result and hands it to an executor.
type Plugin interface {
	Name() string
	Launch(ctx context.Context, resultID string, d models.InvocationDescriptor) error
}
