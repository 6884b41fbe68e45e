package api

import "github.com/praisehq/praise/internal/services"

// Store is the full persistence surface the router wires into the services.
// Each service depends only on its own narrow slice of this interface.
type Store interface {
	services.PeriodStore
	services.QuantifyStore
	services.AuthStore

	ListAudit() []services.AuditEntry
}

var _ Store = (*memoryStore)(nil)
