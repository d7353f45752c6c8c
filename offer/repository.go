package offer

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store is the persistence capability consumed by the customer-action
// service and the sweep orchestrator.
type Store interface {
	ListNonTerminal(ctx context.Context) ([]Offer, error)
	Get(ctx context.Context, id string) (Offer, error)
	ApplyTransition(ctx context.Context, params TransitionParams) (Offer, error)
	RecordNotification(ctx context.Context, id string, expectedVersion int64, tag string) (Offer, error)
	ListHistory(ctx context.Context, offerID string) ([]HistoryEntry, error)
}

// TransitionParams enumerates the writes applied as a single atomic unit:
// the status update, the version bump, the optional idempotency tag, and
// the history row.
type TransitionParams struct {
	OfferID         string
	ExpectedVersion int64
	ToStatus        Status
	Tag             string
	OccurredAt      time.Time
	Trigger         Trigger
	ActorID         *string
	Note            string
}

// Repository is the PostgreSQL-backed Store.
type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

const offerColumns = `id, created_at, sent_at, amount_cents, currency, status::text,
       last_transition_at, notifications_sent, assigned_owner_id::text, customer_contact_id::text, version`

func scanOffer(row pgx.Row) (Offer, error) {
	var o Offer
	var tags []string
	if err := row.Scan(
		&o.ID,
		&o.CreatedAt,
		&o.SentAt,
		&o.AmountCents,
		&o.Currency,
		&o.Status,
		&o.LastTransitionAt,
		&tags,
		&o.AssignedOwnerID,
		&o.CustomerContactID,
		&o.Version,
	); err != nil {
		return Offer{}, err
	}
	o.NotificationsSent = TagSet(tags)
	return o, nil
}

// ListNonTerminal returns every offer the sweep still has to look at.
// Ordering by sent_at keeps overdue offers first so a partial run that
// gets cut off has processed the most urgent ones.
func (r *Repository) ListNonTerminal(ctx context.Context) ([]Offer, error) {
	query := fmt.Sprintf(`
        SELECT %s
        FROM offers
        WHERE status NOT IN ('accepted','rejected','expired')
          AND sent_at IS NOT NULL
        ORDER BY sent_at ASC
    `, offerColumns)

	rows, err := r.pool.Query(ctx, query)
	if err != nil {
		return nil, &StoreError{Op: "list non-terminal", Err: err}
	}
	defer rows.Close()

	offers := make([]Offer, 0, 64)
	for rows.Next() {
		o, err := scanOffer(rows)
		if err != nil {
			return nil, &StoreError{Op: "scan offer", Err: err}
		}
		offers = append(offers, o)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "iterate offers", Err: err}
	}
	return offers, nil
}

// Get loads a single offer by id.
func (r *Repository) Get(ctx context.Context, id string) (Offer, error) {
	query := fmt.Sprintf(`SELECT %s FROM offers WHERE id = $1`, offerColumns)
	o, err := scanOffer(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		return Offer{}, &StoreError{Op: "get offer", Err: err}
	}
	return o, nil
}

// ApplyTransition writes the new status, bumps version, appends the
// idempotency tag, and inserts the history row in one transaction. The
// UPDATE is guarded by the expected version: zero rows affected means a
// concurrent writer got there first (or the offer vanished) and nothing
// is persisted.
func (r *Repository) ApplyTransition(ctx context.Context, params TransitionParams) (Offer, error) {
	if params.OfferID == "" {
		return Offer{}, fmt.Errorf("offer: missing offer id")
	}
	if !params.ToStatus.IsValid() {
		return Offer{}, fmt.Errorf("offer: unknown target status %q", params.ToStatus)
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Offer{}, &StoreError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback(ctx)

	var fromStatus Status
	if err := tx.QueryRow(ctx, `SELECT status::text FROM offers WHERE id = $1 FOR UPDATE`, params.OfferID).Scan(&fromStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrOfferNotFound
		}
		return Offer{}, &StoreError{Op: "load current status", Err: err}
	}

	updateSQL := fmt.Sprintf(`
        UPDATE offers
        SET status = $2::offer_status,
            last_transition_at = $3,
            notifications_sent = CASE
                WHEN $4 = '' OR $4 = ANY(notifications_sent) THEN notifications_sent
                ELSE array_append(notifications_sent, $4)
            END,
            version = version + 1
        WHERE id = $1 AND version = $5
        RETURNING %s
    `, offerColumns)

	updated, err := scanOffer(tx.QueryRow(ctx, updateSQL,
		params.OfferID,
		params.ToStatus,
		params.OccurredAt,
		params.Tag,
		params.ExpectedVersion,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrVersionConflict
		}
		return Offer{}, &StoreError{Op: "update status", Err: err}
	}

	const historySQL = `
        INSERT INTO offer_status_history (offer_id, from_status, to_status, occurred_at, trigger, actor_id, note)
        VALUES ($1, $2::offer_status, $3::offer_status, $4, $5, $6, $7)
    `
	var actor any
	if params.ActorID != nil && *params.ActorID != "" {
		actor = *params.ActorID
	}
	if _, err := tx.Exec(ctx, historySQL,
		params.OfferID,
		fromStatus,
		params.ToStatus,
		params.OccurredAt,
		params.Trigger,
		actor,
		params.Note,
	); err != nil {
		return Offer{}, &StoreError{Op: "insert history", Err: err}
	}

	if err := tx.Commit(ctx); err != nil {
		return Offer{}, &StoreError{Op: "commit transition", Err: err}
	}
	return updated, nil
}

// RecordNotification appends an idempotency tag without changing status.
// Used for notify-only decisions; no history row is written because the
// status did not move.
func (r *Repository) RecordNotification(ctx context.Context, id string, expectedVersion int64, tag string) (Offer, error) {
	if tag == "" {
		return Offer{}, fmt.Errorf("offer: empty notification tag")
	}

	query := fmt.Sprintf(`
        UPDATE offers
        SET notifications_sent = CASE
                WHEN $2 = ANY(notifications_sent) THEN notifications_sent
                ELSE array_append(notifications_sent, $2)
            END,
            version = version + 1
        WHERE id = $1 AND version = $3
        RETURNING %s
    `, offerColumns)

	updated, err := scanOffer(r.pool.QueryRow(ctx, query, id, tag, expectedVersion))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Offer{}, ErrVersionConflict
		}
		return Offer{}, &StoreError{Op: "record notification", Err: err}
	}
	return updated, nil
}

// ListHistory returns the append-only audit trail for an offer, oldest first.
func (r *Repository) ListHistory(ctx context.Context, offerID string) ([]HistoryEntry, error) {
	const query = `
        SELECT id, offer_id, from_status::text, to_status::text, occurred_at, trigger, actor_id::text, note
        FROM offer_status_history
        WHERE offer_id = $1
        ORDER BY occurred_at ASC, id ASC
    `

	rows, err := r.pool.Query(ctx, query, offerID)
	if err != nil {
		return nil, &StoreError{Op: "list history", Err: err}
	}
	defer rows.Close()

	entries := make([]HistoryEntry, 0, 8)
	for rows.Next() {
		var e HistoryEntry
		if err := rows.Scan(&e.ID, &e.OfferID, &e.FromStatus, &e.ToStatus, &e.OccurredAt, &e.Trigger, &e.ActorID, &e.Note); err != nil {
			return nil, &StoreError{Op: "scan history", Err: err}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, &StoreError{Op: "iterate history", Err: err}
	}
	return entries, nil
}
