package postgres

import (
	"context"
	"database/sql"

	"trips/internal/domain"
	"trips/internal/repository"
)

// AuditRepository is a PostgreSQL implementation of repository.AuditRepository.
type AuditRepository struct {
	q Querier
}

// NewAuditRepository creates a new PostgreSQL audit repository.
func NewAuditRepository(db *sql.DB) *AuditRepository {
	return &AuditRepository{q: db}
}

// NewAuditRepositoryWithTx creates an audit repository using a transaction.
func NewAuditRepositoryWithTx(tx *sql.Tx) *AuditRepository {
	return &AuditRepository{q: tx}
}

// Append persists one audit entry.
func (r *AuditRepository) Append(ctx context.Context, entry *repository.AuditEntry) error {
	query := `
		INSERT INTO trip_audit (id, trip_id, command, from_status, to_status, actor_type, actor_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`

	_, err := r.q.ExecContext(ctx, query,
		entry.ID,
		entry.TripID,
		entry.Command,
		string(entry.FromStatus),
		string(entry.ToStatus),
		entry.ActorType,
		nullString(entry.ActorID),
		nullString(entry.Detail),
		entry.CreatedAt,
	)
	return err
}

// ListByTripID retrieves a trip's audit trail in order of occurrence.
func (r *AuditRepository) ListByTripID(ctx context.Context, tripID string) ([]*repository.AuditEntry, error) {
	query := `
		SELECT id, trip_id, command, from_status, to_status, actor_type, actor_id, detail, created_at
		FROM trip_audit WHERE trip_id = $1 ORDER BY created_at ASC
	`

	rows, err := r.q.QueryContext(ctx, query, tripID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []*repository.AuditEntry
	for rows.Next() {
		var entry repository.AuditEntry
		var fromStatus, toStatus string
		var actorID, detail sql.NullString

		if err := rows.Scan(
			&entry.ID,
			&entry.TripID,
			&entry.Command,
			&fromStatus,
			&toStatus,
			&entry.ActorType,
			&actorID,
			&detail,
			&entry.CreatedAt,
		); err != nil {
			return nil, err
		}

		entry.FromStatus = domain.TripStatus(fromStatus)
		entry.ToStatus = domain.TripStatus(toStatus)
		entry.ActorID = actorID.String
		entry.Detail = detail.String
		entries = append(entries, &entry)
	}

	return entries, rows.Err()
}
