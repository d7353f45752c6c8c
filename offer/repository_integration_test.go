package offer

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TestRepository_Integration connects to a real PostgreSQL via DATABASE_URL
// and verifies the version-guarded transition write end to end.
func TestRepository_Integration(t *testing.T) {
	dsn := os.Getenv("DATABASE_URL")
	if dsn == "" {
		t.Skip("DATABASE_URL is empty; set it to a live PostgreSQL to run integration test")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pool: %v", err)
	}
	defer pool.Close()

	if !tableExists(ctx, t, pool, "offers") || !tableExists(ctx, t, pool, "offer_status_history") {
		t.Skip("database schema missing; apply migrations/0001_offers.sql first")
	}

	repo := NewRepository(pool)

	ownerID := uuid.NewString()
	contactID := uuid.NewString()
	sentAt := time.Now().UTC().Add(-8 * 24 * time.Hour)

	var offerID string
	if err := pool.QueryRow(ctx, `
        INSERT INTO offers (sent_at, amount_cents, currency, status, last_transition_at, assigned_owner_id, customer_contact_id)
        VALUES ($1, 125000, 'EUR', 'pending', $1, $2, $3)
        RETURNING id
    `, sentAt, ownerID, contactID).Scan(&offerID); err != nil {
		t.Fatalf("seed offer: %v", err)
	}
	t.Cleanup(func() {
		ctx2, cancel2 := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel2()
		_, _ = pool.Exec(ctx2, `DELETE FROM offers WHERE id=$1`, offerID)
	})

	loaded, err := repo.Get(ctx, offerID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if loaded.Status != StatusPending || loaded.Version != 1 {
		t.Fatalf("unexpected seeded offer: %+v", loaded)
	}

	open, err := repo.ListNonTerminal(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	found := false
	for _, o := range open {
		if o.ID == offerID {
			found = true
		}
	}
	if !found {
		t.Fatal("seeded offer missing from non-terminal listing")
	}

	occurredAt := time.Now().UTC()
	updated, err := repo.ApplyTransition(ctx, TransitionParams{
		OfferID:         offerID,
		ExpectedVersion: 1,
		ToStatus:        StatusFollowedUp,
		Tag:             "followup7",
		OccurredAt:      occurredAt,
		Trigger:         TriggerScheduledSweep,
	})
	if err != nil {
		t.Fatalf("apply transition: %v", err)
	}
	if updated.Status != StatusFollowedUp || updated.Version != 2 {
		t.Fatalf("unexpected updated offer: %+v", updated)
	}
	if !updated.NotificationsSent.Has("followup7") {
		t.Fatalf("tag not persisted: %v", updated.NotificationsSent)
	}

	// Stale version: nothing is written, including history.
	if _, err := repo.ApplyTransition(ctx, TransitionParams{
		OfferID:         offerID,
		ExpectedVersion: 1,
		ToStatus:        StatusEscalated,
		OccurredAt:      time.Now().UTC(),
		Trigger:         TriggerScheduledSweep,
	}); !errors.Is(err, ErrVersionConflict) {
		t.Fatalf("expected ErrVersionConflict, got %v", err)
	}

	entries, err := repo.ListHistory(ctx, offerID)
	if err != nil {
		t.Fatalf("list history: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected exactly one history row, got %d", len(entries))
	}
	if entries[0].FromStatus != StatusPending || entries[0].ToStatus != StatusFollowedUp {
		t.Fatalf("unexpected history row: %+v", entries[0])
	}

	// Customer action on top of the sweep's version.
	actor := contactID
	final, err := repo.ApplyTransition(ctx, TransitionParams{
		OfferID:         offerID,
		ExpectedVersion: updated.Version,
		ToStatus:        StatusAccepted,
		OccurredAt:      time.Now().UTC(),
		Trigger:         TriggerCustomerAction,
		ActorID:         &actor,
	})
	if err != nil {
		t.Fatalf("customer transition: %v", err)
	}
	if final.Status != StatusAccepted || final.Version != 3 {
		t.Fatalf("unexpected final offer: %+v", final)
	}

	if _, err := repo.Get(ctx, uuid.NewString()); !errors.Is(err, ErrOfferNotFound) {
		t.Fatalf("expected ErrOfferNotFound, got %v", err)
	}
}

func tableExists(ctx context.Context, t *testing.T, pool *pgxpool.Pool, name string) bool {
	t.Helper()
	var exists bool
	if err := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM information_schema.tables WHERE table_name=$1)`, name).Scan(&exists); err != nil {
		t.Fatalf("check table %s: %v", name, err)
	}
	return exists
}
