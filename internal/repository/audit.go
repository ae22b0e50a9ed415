package repository

import (
	"context"
	"time"

	"trips/internal/domain"
)

// AuditEntry records one applied lifecycle transition.
type AuditEntry struct {
	ID         string
	TripID     string
	Command    string
	FromStatus domain.TripStatus
	ToStatus   domain.TripStatus
	ActorType  string
	ActorID    string
	Detail     string
	CreatedAt  time.Time
}

// AuditRepository defines the append-only transition log.
type AuditRepository interface {
	// Append persists one audit entry.
	Append(ctx context.Context, entry *AuditEntry) error

	// ListByTripID retrieves a trip's audit trail in order of occurrence.
	ListByTripID(ctx context.Context, tripID string) ([]*AuditEntry, error)
}
