package event

import (
	"github.com/erp/bcsync/internal/domain/integration"
	"github.com/erp/bcsync/internal/domain/phoneauth"
)

// KnownEventTypes returns the fixed set of event types the service emits
func KnownEventTypes() []string {
	return append(integration.AllEventTypes(), phoneauth.EventTypeResolved)
}
